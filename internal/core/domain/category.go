package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the routing token a webhook URL is bound to. Inactive or
// unknown categories refuse new notifications. A category with referencing
// notifications cannot be deleted.
type Category struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCategory creates an active category with a freshly generated opaque
// external identifier.
func NewCategory(name string) *Category {
	return &Category{
		ExternalID: NewExternalID(),
		Name:       name,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewExternalID generates an opaque URL-safe routing token.
func NewExternalID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
