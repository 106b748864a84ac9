package integration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webhook-relay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentIntake fires 100 concurrent webhook calls at the same
// category and verifies every one of them ends up as its own complete row
// with its own envelope on the downstream queue.
func TestConcurrentIntake(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	concurrency := 100

	var wg sync.WaitGroup
	var accepted atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf("event=charge.succeeded&reference=ref-%d", idx)
			resp, err := http.Post(
				app.server.URL+"/webhooks/payments",
				"application/x-www-form-urlencoded",
				strings.NewReader(body),
			)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				accepted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(concurrency), accepted.Load())

	// Every accepted call must reach a terminal complete status.
	require.Eventually(t, func() bool {
		counts, err := app.notifRepo.CountByStatus(context.Background())
		return err == nil && counts[domain.StatusComplete] == int64(concurrency)
	}, 10*time.Second, 10*time.Millisecond)

	counts, err := app.notifRepo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[domain.StatusError])
	assert.Zero(t, counts[domain.StatusNew])

	// One envelope per notification, no duplicates and no drops.
	require.Eventually(t, func() bool {
		items, err := app.redis.List(testQueueName)
		return err == nil && len(items) == concurrency
	}, 10*time.Second, 10*time.Millisecond)

	seen := make(map[string]bool)
	items, err := app.redis.List(testQueueName)
	require.NoError(t, err)
	for _, item := range items {
		require.False(t, seen[item], "duplicate envelope pushed")
		seen[item] = true
	}
}
