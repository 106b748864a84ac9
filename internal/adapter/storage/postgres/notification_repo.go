package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, inserted_at, request_method, path, full_url, user_agent, client_ip,
	content_type, data, category_id, parsed_body, status, error_description, processed_at,
	dispatched_at, business_status, business_processed_at`

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create inserts a new notification and fills in its generated id.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `INSERT INTO notifications (inserted_at, request_method, path, full_url, user_agent,
		client_ip, content_type, data, category_id, parsed_body, status, error_description,
		processed_at, business_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	parsed := n.ParsedBody
	if parsed == nil {
		parsed = map[string]any{}
	}

	err := r.pool.QueryRow(ctx, query,
		n.InsertedAt, n.RequestMethod, n.Path, n.FullURL, n.UserAgent,
		n.ClientIP, n.ContentType, n.Data, n.CategoryID, parsed,
		n.Status, n.ErrorDesc, n.ProcessedAt, n.BusinessStatus,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetByID fetches a notification by id. Returns (nil, nil) when absent.
func (r *NotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1`, notificationColumns)
	return r.scanNotification(r.pool.QueryRow(ctx, query, id))
}

// MarkProcessed writes one processing attempt's terminal outcome in a single update.
func (r *NotificationRepo) MarkProcessed(ctx context.Context, id int64, status domain.ProcessingStatus, parsed map[string]any, errDesc string, processedAt time.Time) error {
	if parsed == nil {
		parsed = map[string]any{}
	}
	query := `UPDATE notifications
		SET parsed_body = $1, status = $2, error_description = $3, processed_at = $4
		WHERE id = $5`

	tag, err := r.pool.Exec(ctx, query, parsed, status, domain.TruncateError(errDesc), processedAt, id)
	if err != nil {
		return fmt.Errorf("mark notification processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %d", id)
	}
	return nil
}

// MarkDispatched records the downstream forward timestamp only.
func (r *NotificationRepo) MarkDispatched(ctx context.Context, id int64, dispatchedAt time.Time) error {
	query := `UPDATE notifications SET dispatched_at = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, dispatchedAt, id)
	if err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %d", id)
	}
	return nil
}

// UpdateBusinessStatus mutates only the downstream-owned fields.
func (r *NotificationRepo) UpdateBusinessStatus(ctx context.Context, id int64, status domain.BusinessStatus, processedAt *time.Time) error {
	query := `UPDATE notifications SET business_status = $1, business_processed_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, status, processedAt, id)
	if err != nil {
		return fmt.Errorf("update business status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found: %d", id)
	}
	return nil
}

// ResetForRetry moves an error row back to new. A row no longer in error
// status is left untouched, which keeps the retry job idempotent.
func (r *NotificationRepo) ResetForRetry(ctx context.Context, id int64) error {
	query := `UPDATE notifications
		SET status = $1, error_description = '', processed_at = $2
		WHERE id = $3 AND status = $4`

	_, err := r.pool.Exec(ctx, query, domain.StatusNew, domain.ProcessedAtSentinel, id, domain.StatusError)
	if err != nil {
		return fmt.Errorf("reset notification for retry: %w", err)
	}
	return nil
}

// ListPendingIDs returns rows still new that predate olderThan, oldest first.
func (r *NotificationRepo) ListPendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	query := `SELECT id FROM notifications
		WHERE status = $1 AND inserted_at < $2
		ORDER BY inserted_at ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusNew, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListFailedIDs returns all rows currently in error status.
func (r *NotificationRepo) ListFailedIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM notifications WHERE status = $1 ORDER BY inserted_at ASC`

	rows, err := r.pool.Query(ctx, query, domain.StatusError)
	if err != nil {
		return nil, fmt.Errorf("list failed notifications: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// DeleteOlderThan removes rows older than cutoff by creation time.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE inserted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns row counts grouped by processing status.
func (r *NotificationRepo) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count notifications by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ProcessingStatus]int64)
	for rows.Next() {
		var status domain.ProcessingStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// List fetches notifications with optional status filter and pagination.
func (r *NotificationRepo) List(ctx context.Context, params ports.NotificationListParams) ([]domain.Notification, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM notifications %s
		ORDER BY inserted_at DESC LIMIT $%d OFFSET $%d`, notificationColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n := domain.Notification{}
		if err := rows.Scan(
			&n.ID, &n.InsertedAt, &n.RequestMethod, &n.Path, &n.FullURL, &n.UserAgent,
			&n.ClientIP, &n.ContentType, &n.Data, &n.CategoryID, &n.ParsedBody,
			&n.Status, &n.ErrorDesc, &n.ProcessedAt,
			&n.DispatchedAt, &n.BusinessStatus, &n.BusinessProcessedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}
	return out, total, nil
}

func (r *NotificationRepo) scanNotification(row pgx.Row) (*domain.Notification, error) {
	n := &domain.Notification{}
	err := row.Scan(
		&n.ID, &n.InsertedAt, &n.RequestMethod, &n.Path, &n.FullURL, &n.UserAgent,
		&n.ClientIP, &n.ContentType, &n.Data, &n.CategoryID, &n.ParsedBody,
		&n.Status, &n.ErrorDesc, &n.ProcessedAt,
		&n.DispatchedAt, &n.BusinessStatus, &n.BusinessProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return n, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notification id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
