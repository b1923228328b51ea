package protocol

import (
	"fmt"
	"strings"
)

// Command names carried in the "cmd" field of JSON-object frames.
const (
	CmdSubscribe = "MQTT-SUB"
	CmdPublish   = "MQTT-PUB"
	CmdConnect   = "MQTT-CONN"
)

// Array frame codes (first element of a JSON-array frame).
const (
	codeSubscribe = 0
	codePublish   = 1
	codeKeepAlive = 2
)

// Encoding selects the textual wire form used for outgoing frames.
type Encoding int

const (
	// EncodingArray is the compact positional form. It is the default.
	EncodingArray Encoding = iota

	// EncodingObject is the keyed JSON-object form.
	EncodingObject
)

// String returns the configuration name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingObject:
		return "object"
	case EncodingArray:
		return "array"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding converts a configuration value into an Encoding.
// Accepted values are "array", "json-array", "object" and "json-object".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "array", "json-array", "":
		return EncodingArray, nil
	case "object", "json-object":
		return EncodingObject, nil
	default:
		return EncodingArray, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Kind classifies a decoded command.
type Kind int

const (
	// KindNone means no command was decoded.
	KindNone Kind = iota
	KindSubscribe
	KindPublish
	KindConnect
	KindUnknown
)

// String returns a short name for the kind, used in logs and the journal.
func (k Kind) String() string {
	switch k {
	case KindSubscribe:
		return "subscribe"
	case KindPublish:
		return "publish"
	case KindConnect:
		return "connect"
	case KindUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// Command is the result of decoding one frame.
type Command struct {
	Kind Kind

	// Name is the raw command text: the "cmd" value of an object frame or
	// the numeric code of an array frame.
	Name string

	Topic   string
	Message string

	// End is the offset just past the decoded frame within the input blob.
	End int
}
