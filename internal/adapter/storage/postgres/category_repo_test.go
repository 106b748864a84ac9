package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"webhook-relay/internal/core/domain"
	"webhook-relay/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCategory() *domain.Category {
	return &domain.Category{
		ID:         7,
		ExternalID: "3f2a6b1c9d8e4f5a7b6c5d4e3f2a1b0c",
		Name:       "bank-transfers",
		IsActive:   true,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func categoryRow(c *domain.Category) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "external_id", "name", "is_active", "created_at"}).
		AddRow(c.ID, c.ExternalID, c.Name, c.IsActive, c.CreatedAt)
}

func TestCategoryRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)
	c := newTestCategory()
	c.ID = 0

	mock.ExpectQuery("INSERT INTO categories").
		WithArgs(c.ExternalID, c.Name, c.IsActive, c.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	err = repo.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepo_GetActiveByExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)
	c := newTestCategory()

	mock.ExpectQuery("SELECT .+ FROM categories WHERE external_id").
		WithArgs(c.ExternalID).
		WillReturnRows(categoryRow(c))

	result, err := repo.GetActiveByExternalID(context.Background(), c.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, c.ExternalID, result.ExternalID)
	assert.Equal(t, c.Name, result.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepo_GetActiveByExternalID_Unknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM categories WHERE external_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "external_id", "name", "is_active", "created_at"}))

	result, err := repo.GetActiveByExternalID(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("DELETE FROM categories").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err = repo.Delete(context.Background(), 7)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepo_Delete_StillReferenced(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err = repo.Delete(context.Background(), 7)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CAT_001", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepo_Delete_FKViolationMapped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCategoryRepo(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("DELETE FROM categories").
		WithArgs(int64(7)).
		WillReturnError(&pgconn.PgError{Code: pgFKViolation})

	err = repo.Delete(context.Background(), 7)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CAT_001", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
