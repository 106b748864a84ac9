package postgres

import (
	"context"
	"errors"
	"fmt"

	"webhook-relay/internal/core/domain"
	"webhook-relay/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgFKViolation = "23503"

// CategoryRepo implements ports.CategoryRepository.
type CategoryRepo struct {
	pool Pool
}

// NewCategoryRepo creates a new CategoryRepo.
func NewCategoryRepo(pool Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

// Create inserts a new category and fills in its generated id.
func (r *CategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	query := `INSERT INTO categories (external_id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query, c.ExternalID, c.Name, c.IsActive, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID fetches a category by id. Returns (nil, nil) when absent.
func (r *CategoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `SELECT id, external_id, name, is_active, created_at
		FROM categories WHERE id = $1`
	return r.scanCategory(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByExternalID resolves an opaque URL identifier to an active
// category. Inactive and unknown identifiers both come back (nil, nil) so
// callers cannot tell the two apart.
func (r *CategoryRepo) GetActiveByExternalID(ctx context.Context, externalID string) (*domain.Category, error) {
	query := `SELECT id, external_id, name, is_active, created_at
		FROM categories WHERE external_id = $1 AND is_active = TRUE`
	return r.scanCategory(r.pool.QueryRow(ctx, query, externalID))
}

// Delete removes a category. Categories still referenced by notifications
// are refused.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	var inUse bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notifications WHERE category_id = $1)`, id,
	).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("check category references: %w", err)
	}
	if inUse {
		return apperror.ErrCategoryInUse()
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgFKViolation {
			return apperror.ErrCategoryInUse()
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category not found: %d", id)
	}
	return nil
}

func (r *CategoryRepo) scanCategory(row pgx.Row) (*domain.Category, error) {
	c := &domain.Category{}
	err := row.Scan(&c.ID, &c.ExternalID, &c.Name, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}
