package protocol

import "strings"

// frameTerminator ends every outgoing frame.
const frameTerminator = "\r\n"

// EncodeSubscribe renders a subscribe request for topic.
//
//	object: { "cmd":"MQTT-SUB","topic":"T" }\r\n
//	array:  [0,"T"]\r\n
func EncodeSubscribe(enc Encoding, topic string) string {
	var b strings.Builder
	if enc == EncodingObject {
		b.WriteString(`{ "cmd":"` + CmdSubscribe + `","topic":"`)
		b.WriteString(topic)
		b.WriteString(`" }`)
	} else {
		b.WriteString(`[0,"`)
		b.WriteString(topic)
		b.WriteString(`"]`)
	}
	b.WriteString(frameTerminator)
	return b.String()
}

// EncodePublish renders a publish of message to topic. QoS and the retained
// flag are always zero.
//
//	object: { "cmd":"MQTT-PUB","topic":"T","message":"M","qos":0,"retained":false }\r\n
//	array:  [1,"T","M",0,0]\r\n
func EncodePublish(enc Encoding, topic, message string) string {
	var b strings.Builder
	if enc == EncodingObject {
		b.WriteString(`{ "cmd":"` + CmdPublish + `","topic":"`)
		b.WriteString(topic)
		b.WriteString(`","message":"`)
		b.WriteString(message)
		b.WriteString(`","qos":0,"retained":false }`)
	} else {
		b.WriteString(`[1,"`)
		b.WriteString(topic)
		b.WriteString(`","`)
		b.WriteString(message)
		b.WriteString(`",0,0]`)
	}
	b.WriteString(frameTerminator)
	return b.String()
}

// EncodeKeepAlive renders the idle frame sent when no loopback topic is
// configured. The array form is not valid JSON; bridges in the field expect
// exactly these bytes, so it is sent verbatim.
func EncodeKeepAlive(enc Encoding) string {
	if enc == EncodingObject {
		return "{ }" + frameTerminator
	}
	return `{ 2, "" }` + frameTerminator
}

// EncodeConnect renders the connect notice the bridge sends to the device
// once its broker connection is up.
func EncodeConnect() string {
	return `{ "cmd":"` + CmdConnect + `" }` + frameTerminator
}
