package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base of every topic the bridge owns. Device data
// topics are chosen by the device and are not under this prefix.
const TopicPrefix = "serial2mqtt"

// maxTopicLength is the MQTT limit on an encoded topic string.
const maxTopicLength = 65535

// Topics provides builders for the bridge's own MQTT topics.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("bench-01")
//	// Returns: "serial2mqtt/bench-01/status"
type Topics struct{}

// =============================================================================
// Per-bridge Topics
// =============================================================================

// Status returns the retained online/offline topic, also used as the LWT.
//
// Example: serial2mqtt/bench-01/status
func (Topics) Status(bridgeID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, bridgeID)
}

// Health returns the topic for periodic bridge health reports.
//
// Example: serial2mqtt/bench-01/health
func (Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefix, bridgeID)
}

// Diagnostics returns the topic carrying device diagnostic lines.
//
// Example: serial2mqtt/bench-01/diagnostics
func (Topics) Diagnostics(bridgeID string) string {
	return fmt.Sprintf("%s/%s/diagnostics", TopicPrefix, bridgeID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStatus returns a pattern matching the status of every bridge.
//
// Pattern: serial2mqtt/+/status
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefix)
}

// AllHealth returns a pattern matching the health of every bridge.
//
// Pattern: serial2mqtt/+/health
func (Topics) AllHealth() string {
	return fmt.Sprintf("%s/+/health", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge-owned topics.
//
// Pattern: serial2mqtt/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// =============================================================================
// Validation
// =============================================================================

// Device-supplied topics arrive over an unchecked serial line, so both
// checks run before anything reaches paho.

// ValidateTopicName checks a topic used for publishing: non-empty, within
// the length limit, no NUL and no wildcards.
func ValidateTopicName(topic string) error {
	if err := validateTopicString(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrWildcardTopic, topic)
	}
	return nil
}

// ValidateTopicFilter checks a subscription filter. "+" must fill a whole
// level and "#" must fill the last level.
func ValidateTopicFilter(filter string) error {
	if err := validateTopicString(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: # must be the last level in %q", ErrInvalidTopic, filter)
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard must fill a level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func validateTopicString(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidTopic, len(topic), maxTopicLength)
	case strings.IndexByte(topic, 0) >= 0:
		return fmt.Errorf("%w: contains NUL", ErrInvalidTopic)
	}
	return nil
}
