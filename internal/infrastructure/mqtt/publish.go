package mqtt

import "fmt"

// Publish sends payload to topic and waits for the broker to accept it
// (for QoS 0, until it is written to the socket).
//
// The topic must be a concrete name: wildcards return ErrWildcardTopic.
// Payloads over 1 MiB return ErrPayloadTooLarge.
//
//	err := client.Publish("home/lamp", []byte("on"), 0, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), defaultOperationTimeout, ErrPublishFailed)
}
