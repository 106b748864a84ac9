package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
)

// --- In-Memory Notification Repo ---

type inMemoryNotificationRepo struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*domain.Notification
}

func newInMemoryNotificationRepo() *inMemoryNotificationRepo {
	return &inMemoryNotificationRepo{nextID: 1, rows: make(map[int64]*domain.Notification)}
}

func (r *inMemoryNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.nextID
	r.nextID++
	stored := *n
	r.rows[n.ID] = &stored
	return nil
}

func (r *inMemoryNotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *inMemoryNotificationRepo) MarkProcessed(ctx context.Context, id int64, status domain.ProcessingStatus, parsed map[string]any, errDesc string, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("notification not found: %d", id)
	}
	if parsed == nil {
		parsed = map[string]any{}
	}
	n.ParsedBody = parsed
	n.Status = status
	n.ErrorDesc = domain.TruncateError(errDesc)
	n.ProcessedAt = processedAt
	return nil
}

func (r *inMemoryNotificationRepo) MarkDispatched(ctx context.Context, id int64, dispatchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("notification not found: %d", id)
	}
	n.DispatchedAt = &dispatchedAt
	return nil
}

func (r *inMemoryNotificationRepo) UpdateBusinessStatus(ctx context.Context, id int64, status domain.BusinessStatus, processedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("notification not found: %d", id)
	}
	n.BusinessStatus = status
	n.BusinessProcessedAt = processedAt
	return nil
}

func (r *inMemoryNotificationRepo) ResetForRetry(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.Status != domain.StatusError {
		return nil
	}
	n.Status = domain.StatusNew
	n.ErrorDesc = ""
	n.ProcessedAt = domain.ProcessedAtSentinel
	return nil
}

func (r *inMemoryNotificationRepo) ListPendingIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int64
	for id, n := range r.rows {
		if n.Status == domain.StatusNew && n.InsertedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *inMemoryNotificationRepo) ListFailedIDs(ctx context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int64
	for id, n := range r.rows {
		if n.Status == domain.StatusError {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *inMemoryNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.rows {
		if n.InsertedAt.Before(cutoff) {
			delete(r.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *inMemoryNotificationRepo) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.ProcessingStatus]int64)
	for _, n := range r.rows {
		counts[n.Status]++
	}
	return counts, nil
}

func (r *inMemoryNotificationRepo) List(ctx context.Context, params ports.NotificationListParams) ([]domain.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Notification
	for _, n := range r.rows {
		if params.Status != nil && n.Status != *params.Status {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].InsertedAt.After(all[j].InsertedAt) })
	total := int64(len(all))

	start := (params.Page - 1) * params.PageSize
	if start < 0 {
		start = 0
	}
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// --- In-Memory Category Repo ---

type inMemoryCategoryRepo struct {
	mu         sync.RWMutex
	nextID     int64
	categories map[int64]*domain.Category
	notifRepo  *inMemoryNotificationRepo
}

func newInMemoryCategoryRepo(notifRepo *inMemoryNotificationRepo) *inMemoryCategoryRepo {
	return &inMemoryCategoryRepo{nextID: 1, categories: make(map[int64]*domain.Category), notifRepo: notifRepo}
}

func (r *inMemoryCategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	stored := *c
	r.categories[c.ID] = &stored
	return nil
}

func (r *inMemoryCategoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryCategoryRepo) GetActiveByExternalID(ctx context.Context, externalID string) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.ExternalID == externalID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryCategoryRepo) Delete(ctx context.Context, id int64) error {
	r.notifRepo.mu.RLock()
	inUse := false
	for _, n := range r.notifRepo.rows {
		if n.CategoryID == id {
			inUse = true
			break
		}
	}
	r.notifRepo.mu.RUnlock()
	if inUse {
		return apperror.ErrCategoryInUse()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return fmt.Errorf("category not found: %d", id)
	}
	delete(r.categories, id)
	return nil
}
