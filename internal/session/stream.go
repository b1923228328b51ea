package session

import "time"

// Stream is the byte channel to the bridge process.
type Stream interface {
	// Available reports whether unread bytes are buffered.
	Available() bool

	// ReadAvailable returns every byte currently buffered, without waiting
	// for more.
	ReadAvailable() (string, error)

	// WriteString writes text. Writes are best effort; failures are counted
	// but never retried.
	WriteString(s string) (int, error)
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, which carries Go's monotonic reading.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
