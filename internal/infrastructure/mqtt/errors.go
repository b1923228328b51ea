package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker link is down. Callers may
	// retry after the next connect callback.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps the reason the initial connect did not complete.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS values above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic is returned for empty, oversized or NUL-carrying topics
	// and for filters with misplaced wildcards.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrWildcardTopic is returned when a publish topic contains + or #.
	ErrWildcardTopic = errors.New("mqtt: wildcard in publish topic")

	// ErrPayloadTooLarge is returned for payloads over maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
