package streamio

import "errors"

var (
	// ErrUnsupportedScheme is returned for a stream URL with an unknown scheme.
	ErrUnsupportedScheme = errors.New("streamio: unsupported scheme")

	// ErrInvalidURL is returned when a stream URL cannot be parsed.
	ErrInvalidURL = errors.New("streamio: invalid url")

	// ErrOpenFailed is returned when the stream cannot be opened.
	ErrOpenFailed = errors.New("streamio: open failed")

	// ErrClosed is returned when writing to a closed Conn.
	ErrClosed = errors.New("streamio: closed")
)
