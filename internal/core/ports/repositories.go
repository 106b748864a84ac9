package ports

import (
	"context"
	"time"

	"webhook-relay/internal/core/domain"
)

// NotificationRepository defines persistence operations for notifications.
// GetByID returns (nil, nil) when the row does not exist.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)

	// MarkProcessed writes the terminal outcome of one processing attempt:
	// parsed mapping, status, bounded diagnostic and processed_at in a single
	// update. Parsed may be nil on error outcomes.
	MarkProcessed(ctx context.Context, id int64, status domain.ProcessingStatus, parsed map[string]any, errDesc string, processedAt time.Time) error

	// MarkDispatched records the downstream forward timestamp. It never
	// touches the processing status.
	MarkDispatched(ctx context.Context, id int64, dispatchedAt time.Time) error

	// UpdateBusinessStatus is the restricted consumer-facing update: only the
	// downstream-owned fields change.
	UpdateBusinessStatus(ctx context.Context, id int64, status domain.BusinessStatus, processedAt *time.Time) error

	// ResetForRetry moves an error row back to new, clearing the diagnostic
	// and restoring the processed_at sentinel.
	ResetForRetry(ctx context.Context, id int64) error

	// ListPendingIDs returns ids of rows still new with inserted_at before
	// olderThan, capped at limit, oldest first.
	ListPendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)

	// ListFailedIDs returns ids of all rows in error status.
	ListFailedIDs(ctx context.Context) ([]int64, error)

	// DeleteOlderThan removes rows with inserted_at before cutoff and returns
	// the count removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int64, error)

	List(ctx context.Context, params NotificationListParams) ([]domain.Notification, int64, error)
}

// NotificationListParams holds filter + pagination for listing notifications.
type NotificationListParams struct {
	Status   *domain.ProcessingStatus
	Page     int
	PageSize int
}

// CategoryRepository defines persistence operations for categories.
// Delete must refuse removal while referencing notifications exist.
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	// GetActiveByExternalID returns (nil, nil) when no active category
	// carries the external id.
	GetActiveByExternalID(ctx context.Context, externalID string) (*domain.Category, error)
	Delete(ctx context.Context, id int64) error
}
