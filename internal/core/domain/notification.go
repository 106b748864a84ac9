package domain

import (
	"time"
)

// ProcessingStatus is the pipeline-owned lifecycle state of a notification.
type ProcessingStatus string

const (
	StatusNew      ProcessingStatus = "new"
	StatusError    ProcessingStatus = "error"
	StatusComplete ProcessingStatus = "complete"
)

// BusinessStatus is owned by the downstream consumer and mutated only through
// the restricted internal update endpoint, never by the pipeline.
type BusinessStatus string

const (
	BusinessPending    BusinessStatus = "pending"
	BusinessProcessing BusinessStatus = "processing"
	BusinessComplete   BusinessStatus = "complete"
	BusinessFailed     BusinessStatus = "failed"
)

// ValidBusinessStatus reports whether s is one of the downstream-owned states.
func ValidBusinessStatus(s BusinessStatus) bool {
	switch s {
	case BusinessPending, BusinessProcessing, BusinessComplete, BusinessFailed:
		return true
	}
	return false
}

const (
	// MaxRawBodyLen is the hard cap on stored raw bodies, in bytes.
	MaxRawBodyLen = 10000
	// MaxErrorDescriptionLen bounds persisted diagnostics.
	MaxErrorDescriptionLen = 5000
	// RawPrefixLen is how much of the raw body travels in the envelope for audit.
	RawPrefixLen = 500
)

// ProcessedAtSentinel marks "not yet processed". The column is never NULL;
// a row is unprocessed exactly while processed_at equals this epoch value.
var ProcessedAtSentinel = time.Unix(0, 0).UTC()

// Notification is one durably recorded inbound webhook call and its lifecycle.
// Request metadata and the raw body are immutable after creation.
type Notification struct {
	ID            int64            `json:"id"`
	InsertedAt    time.Time        `json:"inserted_at"`
	RequestMethod string           `json:"request_method"`
	Path          string           `json:"path"`
	FullURL       string           `json:"full_url"`
	UserAgent     string           `json:"user_agent"`
	ClientIP      string           `json:"client_ip"`
	ContentType   string           `json:"content_type"`
	Data          string           `json:"data"`
	CategoryID    int64            `json:"category_id"`
	ParsedBody    map[string]any   `json:"parsed_body"`
	Status        ProcessingStatus `json:"status"`
	ErrorDesc     string           `json:"error_description"`
	ProcessedAt   time.Time        `json:"processed_at"`

	// Set only after a successful push to the downstream queue. Independent
	// of ProcessedAt: parsing success and forwarding success are separate events.
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`

	BusinessStatus      BusinessStatus `json:"business_status"`
	BusinessProcessedAt *time.Time     `json:"business_processed_at,omitempty"`
}

// IsTerminal returns true once the processing state machine has finished.
func (n *Notification) IsTerminal() bool {
	return n.Status == StatusError || n.Status == StatusComplete
}

// TruncateError bounds a diagnostic string for persistence.
func TruncateError(s string) string {
	if len(s) > MaxErrorDescriptionLen {
		return s[:MaxErrorDescriptionLen]
	}
	return s
}

// RawPrefix returns the audit prefix of the raw body.
func (n *Notification) RawPrefix() string {
	if len(n.Data) > RawPrefixLen {
		return n.Data[:RawPrefixLen]
	}
	return n.Data
}
