// Package retry provides a bounded retry mechanism with pluggable backoff
// strategies.
//
// The retry policy is decoupled from the sleep mechanism: backoff
// strategies compute delays while Wait performs the context-aware sleep,
// so policies are unit-testable without real delays. The download
// pipeline consults a Retrier for transient fetch failures; permanent
// failures are rejected by the retry predicate and surface immediately.
package retry
