package handler

import (
	"encoding/json"
	"strconv"
	"time"

	"webhook-relay/internal/adapter/http/dto"
	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
	"webhook-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// InternalHandler serves the JWT-guarded operator API: read access to stored
// notifications, the single restricted write, and queue statistics.
type InternalHandler struct {
	notifRepo ports.NotificationRepository
	forwarder ports.QueueForwarder
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(notifRepo ports.NotificationRepository, forwarder ports.QueueForwarder) *InternalHandler {
	return &InternalHandler{notifRepo: notifRepo, forwarder: forwarder}
}

// List handles GET /api/internal/notifications.
func (h *InternalHandler) List(c *gin.Context) {
	params := ports.NotificationListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", defaultPageSize),
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		params.PageSize = defaultPageSize
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.ProcessingStatus(raw)
		switch status {
		case domain.StatusNew, domain.StatusError, domain.StatusComplete:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("unknown status filter"))
			return
		}
	}

	notifications, total, err := h.notifRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	out := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		out = append(out, dto.FromNotification(&notifications[i]))
	}

	response.OK(c, dto.NotificationListResponse{
		Notifications: out,
		Total:         total,
		Page:          params.Page,
		PageSize:      params.PageSize,
	})
}

// Get handles GET /api/internal/notifications/:id.
func (h *InternalHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("invalid notification id"))
		return
	}

	n, err := h.notifRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if n == nil {
		response.Error(c, apperror.ErrNotificationNotFound())
		return
	}

	response.OK(c, dto.FromNotification(n))
}

// statusUpdateFields are the only keys the restricted update accepts.
var statusUpdateFields = map[string]struct{}{
	"business_status":       {},
	"business_processed_at": {},
}

// UpdateStatus handles PATCH /api/internal/notifications/:id/status. The
// endpoint mutates only the downstream-owned fields; a body naming anything
// else is rejected outright rather than silently filtered. Either field may
// be supplied alone: an absent field keeps its stored value, an explicit
// null clears business_processed_at.
func (h *InternalHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, apperror.Validation("invalid notification id"))
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	for field := range body {
		if _, ok := statusUpdateFields[field]; !ok {
			response.Error(c, apperror.ErrRestrictedUpdate(field))
			return
		}
	}
	if len(body) == 0 {
		response.Error(c, apperror.Validation("no updatable fields in request"))
		return
	}

	var newStatus *domain.BusinessStatus
	if rawStatus, ok := body["business_status"]; ok {
		var statusStr string
		if err := json.Unmarshal(rawStatus, &statusStr); err != nil {
			response.Error(c, apperror.Validation("business_status must be a string"))
			return
		}
		status := domain.BusinessStatus(statusStr)
		if !domain.ValidBusinessStatus(status) {
			response.Error(c, apperror.Validation("unknown business_status"))
			return
		}
		newStatus = &status
	}

	var newProcessedAt *time.Time
	processedAtSet := false
	if raw, ok := body["business_processed_at"]; ok {
		processedAtSet = true
		if string(raw) != "null" {
			var ts time.Time
			if err := json.Unmarshal(raw, &ts); err != nil {
				response.Error(c, apperror.Validation("business_processed_at must be an RFC 3339 timestamp"))
				return
			}
			newProcessedAt = &ts
		}
	}

	n, err := h.notifRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if n == nil {
		response.Error(c, apperror.ErrNotificationNotFound())
		return
	}

	// Merge onto the stored values so a partial body never erases the
	// field it did not name.
	status := n.BusinessStatus
	if newStatus != nil {
		status = *newStatus
	}
	processedAt := n.BusinessProcessedAt
	if processedAtSet {
		processedAt = newProcessedAt
	}

	if err := h.notifRepo.UpdateBusinessStatus(c.Request.Context(), id, status, processedAt); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	n.BusinessStatus = status
	n.BusinessProcessedAt = processedAt
	response.OK(c, dto.FromNotification(n))
}

// QueueStats handles GET /api/internal/queue/stats.
func (h *InternalHandler) QueueStats(c *gin.Context) {
	stats, err := h.forwarder.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.TransientDependency("queue stats unavailable", err))
		return
	}

	counts, err := h.notifRepo.CountByStatus(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	out := make(map[string]int64, len(counts))
	var total int64
	for status, count := range counts {
		out[string(status)] = count
		total += count
	}

	response.OK(c, dto.StatsResponse{
		Counts:          out,
		Total:           total,
		QueueName:       stats.QueueName,
		PendingMessages: stats.PendingMessages,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
