package models

import "time"

// MessageEnvelope is the wire form of an inbound message on the input topic.
type MessageEnvelope struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Metadata  Metadata  `json:"metadata"`
}

type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
}

// AlertEnvelope is published to the alert topic for high priority messages.
type AlertEnvelope struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	MessageID      string            `json:"message_id,omitempty"`
	Source         string            `json:"source"`
	Sender         string            `json:"sender"`
	Subject        string            `json:"subject"`
	Summary        string            `json:"summary"`
	Category       string            `json:"category"`
	Priority       string            `json:"priority"`
	ActionRequired *string           `json:"action_required,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
	Metadata       Metadata          `json:"metadata"`
}
