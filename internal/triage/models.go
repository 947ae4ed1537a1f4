package triage

import (
	"time"
)

// BodyLimit caps the number of characters of a message body sent for classification.
const BodyLimit = 5000

type Category string

const (
	CategoryJob         Category = "job"
	CategoryNetworking  Category = "networking"
	CategoryMeeting     Category = "meeting"
	CategoryOpportunity Category = "opportunity"
	CategoryPromotion   Category = "promotion"
	CategoryInfo        Category = "info"
	CategoryIgnore      Category = "ignore"
)

var categories = map[Category]bool{
	CategoryJob:         true,
	CategoryNetworking:  true,
	CategoryMeeting:     true,
	CategoryOpportunity: true,
	CategoryPromotion:   true,
	CategoryInfo:        true,
	CategoryIgnore:      true,
}

func (c Category) Valid() bool {
	return categories[c]
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Decision string

const (
	DecisionNotify    Decision = "notify"
	DecisionStoreOnly Decision = "store_only"
)

type RecordID int64

// RawMessage is an inbound message as delivered by a source connector.
type RawMessage struct {
	ID      string `json:"id,omitempty"`
	Source  string `json:"source"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ClassificationResult struct {
	Summary        string   `json:"summary"`
	Category       Category `json:"category"`
	Priority       Priority `json:"priority"`
	ActionRequired *string  `json:"action_required"`
	Metadata       Metadata `json:"dynamic_metadata"`
}

// Fallback is the classification used whenever the reasoning service
// cannot produce one.
func Fallback(subject string) ClassificationResult {
	return ClassificationResult{
		Summary:  subject,
		Category: CategoryInfo,
		Priority: PriorityMedium,
		Metadata: NewMetadata(),
	}
}

type PersistedRecord struct {
	ID             RecordID  `json:"id"`
	Source         string    `json:"source"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Summary        string    `json:"summary"`
	Category       Category  `json:"category"`
	Priority       Priority  `json:"priority"`
	ActionRequired *string   `json:"action_required"`
	MetadataJSON   string    `json:"metadata_json"`
	CreatedAt      time.Time `json:"created_at"`
}

// TruncateBody returns at most limit characters of body. Truncation counts
// runes so multi-byte text is never split mid-character.
func TruncateBody(body string, limit int) string {
	if limit <= 0 {
		return body
	}
	n := 0
	for i := range body {
		if n == limit {
			return body[:i]
		}
		n++
	}
	return body
}
