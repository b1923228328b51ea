// Package protocol implements the serial2mqtt wire codec.
//
// The device and the bridge process exchange short text frames over a byte
// stream. Two encodings exist and are selected once per session:
//
//	JSON-object:  { "cmd":"MQTT-PUB","topic":"T","message":"M","qos":0,"retained":false }
//	JSON-array:   [1,"T","M",0,0]
//
// # Limitations
//
// No escaping is performed. A topic or message containing a double quote
// corrupts the frame. Decode only returns the first command in a blob; the
// caller decides whether to continue from Command.End.
//
// # Decoding
//
// Decode runs a small scanner over candidate frame starts ('{' and '[') and
// never produces offsets outside the input. When no command can be found it
// returns KindNone together with ErrNoCommand.
package protocol
