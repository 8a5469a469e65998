// Package envelope defines the normalised event envelope used to report
// node and peer lifecycle transitions (peer offline, peer left, fail2ban
// ban) out of the core for logging or forwarding to an external sink.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the normalised envelope for a single lifecycle transition. It
// carries a machine-readable source/type classification plus a payload
// describing what happened.
type Event struct {
	// Source identifies the subsystem that raised the event (e.g. "gossip",
	// "fail2ban").
	Source string `json:"source"`

	// Type classifies the event (e.g. "peer.offline", "peer.left",
	// "auth.banned").
	Type string `json:"type"`

	// TS is the UTC timestamp at which the event was generated.
	TS time.Time `json:"ts"`

	// Payload carries the human-readable message and optional structured data.
	Payload EventPayload `json:"payload"`
}

// EventPayload holds the content of an event.
type EventPayload struct {
	// Message is a human-readable description of the event, suitable for a
	// log line or an operator-facing notification.
	Message string `json:"message"`

	// Data holds optional structured metadata for the event.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Validate checks that an Event is structurally valid.
// It returns a descriptive error if any invariant is violated, or nil if the
// event may be safely logged or forwarded.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("event must not be nil")
	}
	if e.Source == "" {
		return fmt.Errorf("source must not be empty")
	}
	if e.Type == "" {
		return fmt.Errorf("type must not be empty")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts must not be zero")
	}
	return nil
}

// ParseEvent decodes a JSON-encoded Event and validates it.
// It is the canonical entry point for deserialising events received from
// another node or an external sink.
func ParseEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("envelope parse: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("envelope validate: %w", err)
	}
	return &evt, nil
}
