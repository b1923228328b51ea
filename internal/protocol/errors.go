package protocol

import "errors"

// Domain errors for the wire codec.
var (
	// ErrNoCommand is returned when a blob contains no recognisable frame.
	ErrNoCommand = errors.New("protocol: no command in frame")

	// ErrMalformedFrame is returned when a frame names a command but is
	// missing the fields that command requires.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrInvalidFrame is returned by a strict Decoder when the blob is not
	// enclosed in braces or brackets.
	ErrInvalidFrame = errors.New("protocol: invalid frame")

	// ErrUnknownEncoding is returned when an encoding name cannot be parsed.
	ErrUnknownEncoding = errors.New("protocol: unknown encoding")
)
