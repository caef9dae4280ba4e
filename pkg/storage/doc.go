// Package storage persists downloaded images into a directory scope.
//
// All writes are atomic: data goes to a temporary file that is renamed
// into place only once fully written, so later pipeline stages never see
// a corrupt file under its final name. The manager also keeps an
// in-memory index of source URLs stored during the run, letting the
// download pipeline skip duplicates cheaply.
package storage
