package nats

import (
	"encoding/json"
	"time"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "MEALWISE_EVENTS"
)

// Subject constants.
const (
	SubjectEventsAll  = "mealwise.events.>"
	SubjectAuditEvent = "mealwise.events.imagegen.audit"
)

// AuditEvent is published once per image generation attempt.
type AuditEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Outcome   string          `json:"outcome"`
	Severity  string          `json:"severity"` // info, warn, error
	Message   string          `json:"message"`
	IPHash    string          `json:"ip_hash,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
