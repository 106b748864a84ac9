package domain

import (
	"time"
)

// EnvelopeVersion identifies the envelope schema pushed downstream.
const EnvelopeVersion = "1.0"

// EnvelopeSource identifies this service in envelope metadata.
const EnvelopeSource = "webhook_relay"

// Envelope is the normalized message pushed to the downstream queue for each
// successfully parsed notification.
type Envelope struct {
	ID          int64          `json:"id"`
	Category    string         `json:"category"`
	ParsedBody  map[string]any `json:"parsed_body"`
	ContentType string         `json:"content_type"`
	RawPrefix   string         `json:"raw_prefix"`
	SourceIP    string         `json:"source_ip"`
	CreatedAt   time.Time      `json:"created_at"`
	// Hints are optional business attributes lifted out of the parsed body
	// via configured candidate-key lists.
	Hints    map[string]any   `json:"hints,omitempty"`
	Metadata EnvelopeMetadata `json:"metadata"`
}

// EnvelopeMetadata describes the envelope itself.
type EnvelopeMetadata struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"` // UTC, RFC 3339
	Version   string `json:"version"`
}

// NewEnvelope builds the forwarding envelope for a parsed notification.
func NewEnvelope(n *Notification, categoryExternalID string, hints map[string]any) Envelope {
	return Envelope{
		ID:          n.ID,
		Category:    categoryExternalID,
		ParsedBody:  n.ParsedBody,
		ContentType: n.ContentType,
		RawPrefix:   n.RawPrefix(),
		SourceIP:    n.ClientIP,
		CreatedAt:   n.InsertedAt,
		Hints:       hints,
		Metadata: EnvelopeMetadata{
			Source:    EnvelopeSource,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   EnvelopeVersion,
		},
	}
}
