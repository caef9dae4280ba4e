package logger

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// CapturedMessage is one recorded log call
type CapturedMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// captureSink collects messages from a CaptureLogger and all its
// derived children
type captureSink struct {
	mu       sync.Mutex
	messages []CapturedMessage
}

// CaptureLogger is a Logger that records messages in memory. Used in
// tests to assert on logged degradations.
type CaptureLogger struct {
	sink   *captureSink
	nop    zerolog.Logger
	fields map[string]interface{}
	err    error
}

// NewCapture creates a capturing logger
func NewCapture() *CaptureLogger {
	return &CaptureLogger{sink: &captureSink{}, nop: zerolog.Nop()}
}

func (l *CaptureLogger) record(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.messages = append(l.sink.messages, CapturedMessage{
		Level:   level,
		Message: msg,
		Fields:  merged,
		Error:   l.err,
	})
}

func (l *CaptureLogger) Debug(msg string) { l.record("debug", msg, nil) }
func (l *CaptureLogger) Info(msg string)  { l.record("info", msg, nil) }
func (l *CaptureLogger) Warn(msg string)  { l.record("warn", msg, nil) }
func (l *CaptureLogger) Error(msg string) { l.record("error", msg, nil) }
func (l *CaptureLogger) Fatal(msg string) { l.record("fatal", msg, nil) }

func (l *CaptureLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("debug", msg, fields)
}

func (l *CaptureLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("info", msg, fields)
}

func (l *CaptureLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("warn", msg, fields)
}

func (l *CaptureLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("error", msg, fields)
}

// derive shares the message sink while carrying extra context
func (l *CaptureLogger) derive(fields map[string]interface{}, err error) *CaptureLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if err == nil {
		err = l.err
	}
	return &CaptureLogger{sink: l.sink, nop: l.nop, fields: merged, err: err}
}

func (l *CaptureLogger) WithField(key string, value interface{}) Logger {
	return l.derive(map[string]interface{}{key: value}, nil)
}

func (l *CaptureLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(fields, nil)
}

func (l *CaptureLogger) WithError(err error) Logger {
	return l.derive(nil, err)
}

func (l *CaptureLogger) WithContext(ctx context.Context) Logger {
	return l
}

func (l *CaptureLogger) GetZerolog() *zerolog.Logger {
	return &l.nop
}

// Messages returns a copy of all captured messages
func (l *CaptureLogger) Messages() []CapturedMessage {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]CapturedMessage, len(l.sink.messages))
	copy(out, l.sink.messages)
	return out
}

// HasMessage reports whether any captured message contains the substring
func (l *CaptureLogger) HasMessage(substring string) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	for _, m := range l.sink.messages {
		if strings.Contains(m.Message, substring) {
			return true
		}
	}
	return false
}

// MessagesAtLevel returns the captured messages with the given level
func (l *CaptureLogger) MessagesAtLevel(level string) []CapturedMessage {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	var out []CapturedMessage
	for _, m := range l.sink.messages {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}
