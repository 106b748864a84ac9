package dto

import (
	"time"

	"webhook-relay/internal/core/domain"
)

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// NotificationResponse is the internal-API view of a stored notification.
type NotificationResponse struct {
	ID                  int64          `json:"id"`
	InsertedAt          string         `json:"inserted_at"`
	RequestMethod       string         `json:"request_method"`
	Path                string         `json:"path"`
	ClientIP            string         `json:"client_ip"`
	ContentType         string         `json:"content_type"`
	CategoryID          int64          `json:"category_id"`
	ParsedBody          map[string]any `json:"parsed_body"`
	Status              string         `json:"status"`
	ErrorDescription    string         `json:"error_description,omitempty"`
	ProcessedAt         *string        `json:"processed_at,omitempty"`
	DispatchedAt        *string        `json:"dispatched_at,omitempty"`
	BusinessStatus      string         `json:"business_status"`
	BusinessProcessedAt *string        `json:"business_processed_at,omitempty"`
}

// NotificationListResponse wraps a paginated notification list.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
}

// StatsResponse reports per-status counts and queue depth.
type StatsResponse struct {
	Counts          map[string]int64 `json:"counts"`
	Total           int64            `json:"total"`
	QueueName       string           `json:"queue_name"`
	PendingMessages int64            `json:"pending_messages"`
}

// FromNotification maps a domain notification to its API view. The raw body
// is deliberately absent: it may hold unparseable or hostile bytes.
func FromNotification(n *domain.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:               n.ID,
		InsertedAt:       n.InsertedAt.UTC().Format(time.RFC3339),
		RequestMethod:    n.RequestMethod,
		Path:             n.Path,
		ClientIP:         n.ClientIP,
		ContentType:      n.ContentType,
		CategoryID:       n.CategoryID,
		ParsedBody:       n.ParsedBody,
		Status:           string(n.Status),
		ErrorDescription: n.ErrorDesc,
		BusinessStatus:   string(n.BusinessStatus),
	}
	if !n.ProcessedAt.Equal(domain.ProcessedAtSentinel) {
		s := n.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	if n.DispatchedAt != nil {
		s := n.DispatchedAt.UTC().Format(time.RFC3339)
		resp.DispatchedAt = &s
	}
	if n.BusinessProcessedAt != nil {
		s := n.BusinessProcessedAt.UTC().Format(time.RFC3339)
		resp.BusinessProcessedAt = &s
	}
	return resp
}
