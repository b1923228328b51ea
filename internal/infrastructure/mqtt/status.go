package mqtt

import (
	"encoding/json"
	"time"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// statusMessage is the retained payload on the status topic.
type statusMessage struct {
	Status    string `json:"status"`
	Bridge    string `json:"bridge"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, reason, bridgeID, clientID string, now time.Time) []byte {
	// Only string fields; Marshal cannot fail.
	payload, _ := json.Marshal(statusMessage{
		Status:    status,
		Bridge:    bridgeID,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return payload
}
