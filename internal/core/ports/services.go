package ports

import (
	"context"
	"time"

	"webhook-relay/internal/core/domain"
)

// HashService handles password hashing (Argon2id) for operator accounts.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for the internal API.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// AuthService authenticates internal-API operators.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// --- Pipeline Ports ---

// IntakeRequest carries everything the intake service needs from one HTTP call.
type IntakeRequest struct {
	CategoryExternalID string
	Method             string
	Path               string
	FullURL            string
	UserAgent          string
	ClientIP           string
	ContentType        string
	Body               []byte
}

// IntakeService validates an inbound call, persists the notification and
// schedules asynchronous processing. Rejections never create a record.
type IntakeService interface {
	Accept(ctx context.Context, req IntakeRequest) (*domain.Notification, error)
}

// Processor drives one notification through the processing state machine.
// Process must leave the row in exactly one terminal status per attempt,
// except for transient dependency failures, which propagate for retry.
type Processor interface {
	Process(ctx context.Context, id int64) error
}

// Dispatcher schedules asynchronous processing of a notification.
// Enqueue never blocks the caller.
type Dispatcher interface {
	Enqueue(id int64)
}

// QueueForwarder pushes envelopes onto the downstream business queue.
// Push returns success/failure and never propagates connectivity errors.
type QueueForwarder interface {
	Push(ctx context.Context, env domain.Envelope) bool
	Stats(ctx context.Context) (QueueStats, error)
}

// QueueStats is the read-only operational view of the downstream queue.
type QueueStats struct {
	QueueName       string `json:"queue_name"`
	PendingMessages int64  `json:"pending_messages"`
}
