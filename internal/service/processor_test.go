package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"webhook-relay/config"
	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports/mocks"
	"webhook-relay/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testForwardConfig() config.ForwardConfig {
	return config.ForwardConfig{
		Attempts:     3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func testExtractConfig() config.ExtractConfig {
	return config.ExtractConfig{
		AccountKeys:   []string{"customerId", "customer_id"},
		ReferenceKeys: []string{"organizationId", "organization_id"},
	}
}

func newTestProcessor(t *testing.T, ctrl *gomock.Controller) (*ProcessorImpl, *mocks.MockNotificationRepository, *mocks.MockCategoryRepository, *mocks.MockQueueForwarder) {
	t.Helper()
	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)
	forwarder := mocks.NewMockQueueForwarder(ctrl)

	proc := NewProcessor(notifRepo, categoryRepo, newTestParser(), forwarder,
		testExtractConfig(), testForwardConfig(), newTestLogger())
	return proc, notifRepo, categoryRepo, forwarder
}

func pendingNotification() *domain.Notification {
	return &domain.Notification{
		ID:             42,
		InsertedAt:     time.Now().UTC().Add(-time.Minute),
		RequestMethod:  "POST",
		ClientIP:       "203.0.113.7",
		ContentType:    "application/x-www-form-urlencoded",
		Data:           "customerId=CUST-9&amount=100",
		CategoryID:     7,
		Status:         domain.StatusNew,
		ProcessedAt:    domain.ProcessedAtSentinel,
		BusinessStatus: domain.BusinessPending,
	}
}

func TestProcessor_Process_CompleteAndForward(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, categoryRepo, forwarder := newTestProcessor(t, ctrl)
	n := pendingNotification()

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusComplete,
		map[string]any{"customerId": "CUST-9", "amount": "100"}, "", gomock.Any()).Return(nil)
	categoryRepo.EXPECT().GetByID(gomock.Any(), int64(7)).
		Return(&domain.Category{ID: 7, ExternalID: "ext-7"}, nil)
	forwarder.EXPECT().Push(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env domain.Envelope) bool {
			assert.Equal(t, int64(42), env.ID)
			assert.Equal(t, "ext-7", env.Category)
			assert.Equal(t, "CUST-9", env.Hints["account"])
			assert.Equal(t, domain.EnvelopeVersion, env.Metadata.Version)
			return true
		})
	notifRepo.EXPECT().MarkDispatched(gomock.Any(), int64(42), gomock.Any()).Return(nil)

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err)
}

func TestProcessor_Process_ParseFailureBecomesErrorStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, _, _ := newTestProcessor(t, ctrl)
	n := pendingNotification()
	n.ContentType = "application/json"
	n.Data = `{"broken":`

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusError,
		nil, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, _ domain.ProcessingStatus, _ map[string]any, desc string, _ time.Time) error {
			assert.Contains(t, desc, ParseReasonInvalidJSON)
			return nil
		})

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err, "a parse failure is a recorded outcome, not a processing error")
}

func TestProcessor_Process_NotFoundIsTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, _, _ := newTestProcessor(t, ctrl)

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(999)).Return(nil, nil)

	err := proc.Process(context.Background(), 999)
	require.Error(t, err)
	assert.False(t, apperror.IsTransient(err), "missing rows must not be retried")
}

func TestProcessor_Process_LoadFailureIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, _, _ := newTestProcessor(t, ctrl)

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(nil, errors.New("connection refused"))

	err := proc.Process(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestProcessor_Process_SkipsTerminalRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, _, _ := newTestProcessor(t, ctrl)
	n := pendingNotification()
	n.Status = domain.StatusComplete

	// No MarkProcessed, no forwarding: already-finished rows are no-ops.
	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err)
}

func TestProcessor_Process_MarkProcessedFailureIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, _, _ := newTestProcessor(t, ctrl)
	n := pendingNotification()

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusComplete,
		gomock.Any(), "", gomock.Any()).Return(errors.New("connection refused"))

	err := proc.Process(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestProcessor_Process_ForwardRetriesThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, categoryRepo, forwarder := newTestProcessor(t, ctrl)
	n := pendingNotification()

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusComplete,
		gomock.Any(), "", gomock.Any()).Return(nil)
	categoryRepo.EXPECT().GetByID(gomock.Any(), int64(7)).
		Return(&domain.Category{ID: 7, ExternalID: "ext-7"}, nil)

	gomock.InOrder(
		forwarder.EXPECT().Push(gomock.Any(), gomock.Any()).Return(false),
		forwarder.EXPECT().Push(gomock.Any(), gomock.Any()).Return(true),
	)
	notifRepo.EXPECT().MarkDispatched(gomock.Any(), int64(42), gomock.Any()).Return(nil)

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err)
}

func TestProcessor_Process_ForwardExhaustedRowStaysComplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, categoryRepo, forwarder := newTestProcessor(t, ctrl)
	n := pendingNotification()

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusComplete,
		gomock.Any(), "", gomock.Any()).Return(nil)
	categoryRepo.EXPECT().GetByID(gomock.Any(), int64(7)).
		Return(&domain.Category{ID: 7, ExternalID: "ext-7"}, nil)
	forwarder.EXPECT().Push(gomock.Any(), gomock.Any()).Return(false).Times(3)
	// No MarkDispatched: dispatched_at stays unset when the queue is down.

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err)
}

func TestProcessor_Process_CategoryLookupFailureSkipsForwarding(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, notifRepo, categoryRepo, _ := newTestProcessor(t, ctrl)
	n := pendingNotification()

	notifRepo.EXPECT().GetByID(gomock.Any(), int64(42)).Return(n, nil)
	notifRepo.EXPECT().MarkProcessed(gomock.Any(), int64(42), domain.StatusComplete,
		gomock.Any(), "", gomock.Any()).Return(nil)
	categoryRepo.EXPECT().GetByID(gomock.Any(), int64(7)).Return(nil, errors.New("connection refused"))

	err := proc.Process(context.Background(), 42)
	assert.NoError(t, err)
}

func TestProcessor_ExtractHints(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	proc, _, _, _ := newTestProcessor(t, ctrl)

	t.Run("first candidate wins", func(t *testing.T) {
		hints := proc.extractHints(map[string]any{
			"customerId":  "CUST-1",
			"customer_id": "CUST-2",
		})
		assert.Equal(t, "CUST-1", hints["account"])
	})

	t.Run("later candidates used when earlier absent", func(t *testing.T) {
		hints := proc.extractHints(map[string]any{"organization_id": "ORG-1"})
		assert.Equal(t, "ORG-1", hints["reference"])
	})

	t.Run("no candidates yields nil", func(t *testing.T) {
		hints := proc.extractHints(map[string]any{"unrelated": "x"})
		assert.Nil(t, hints)
	})
}
