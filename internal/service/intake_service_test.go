package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"webhook-relay/config"
	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"
	"webhook-relay/internal/core/ports/mocks"
	"webhook-relay/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testIntakeRequest() ports.IntakeRequest {
	return ports.IntakeRequest{
		CategoryExternalID: "3f2a6b1c9d8e4f5a7b6c5d4e3f2a1b0c",
		Method:             "POST",
		Path:               "/webhooks/3f2a6b1c9d8e4f5a7b6c5d4e3f2a1b0c",
		FullURL:            "https://relay.example.com/webhooks/3f2a6b1c9d8e4f5a7b6c5d4e3f2a1b0c",
		UserAgent:          "provider/1.0",
		ClientIP:           "203.0.113.7",
		ContentType:        "application/x-www-form-urlencoded",
		Body:               []byte("account=ACC-1&amount=100"),
	}
}

func testIntakeConfig() config.IntakeConfig {
	return config.IntakeConfig{MaxBodyBytes: 10000}
}

func TestIntakeService_Accept_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	svc := NewIntakeService(notifRepo, categoryRepo, dispatcher, testIntakeConfig(), newTestLogger())
	req := testIntakeRequest()

	categoryRepo.EXPECT().GetActiveByExternalID(gomock.Any(), req.CategoryExternalID).
		Return(&domain.Category{ID: 7, ExternalID: req.CategoryExternalID, Name: "bank", IsActive: true}, nil)
	notifRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *domain.Notification) error {
			n.ID = 42
			return nil
		})
	dispatcher.EXPECT().Enqueue(int64(42))

	n, err := svc.Accept(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(42), n.ID)
	assert.Equal(t, domain.StatusNew, n.Status)
	assert.Equal(t, domain.BusinessPending, n.BusinessStatus)
	assert.Equal(t, domain.ProcessedAtSentinel, n.ProcessedAt)
	assert.Equal(t, int64(7), n.CategoryID)
	assert.Equal(t, "account=ACC-1&amount=100", n.Data)
}

func TestIntakeService_Accept_RejectsNonPost(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewIntakeService(
		mocks.NewMockNotificationRepository(ctrl),
		mocks.NewMockCategoryRepository(ctrl),
		mocks.NewMockDispatcher(ctrl),
		testIntakeConfig(), newTestLogger())

	req := testIntakeRequest()
	req.Method = "GET"

	n, err := svc.Accept(context.Background(), req)
	assert.Nil(t, n)
	assertAppErrorCode(t, err, "INTAKE_003")
}

func TestIntakeService_Accept_RejectsUnsupportedContentType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewIntakeService(
		mocks.NewMockNotificationRepository(ctrl),
		mocks.NewMockCategoryRepository(ctrl),
		mocks.NewMockDispatcher(ctrl),
		testIntakeConfig(), newTestLogger())

	req := testIntakeRequest()
	req.ContentType = "text/xml"

	n, err := svc.Accept(context.Background(), req)
	assert.Nil(t, n)
	assertAppErrorCode(t, err, "INTAKE_002")
}

func TestIntakeService_Accept_AcceptsContentTypeWithCharset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	svc := NewIntakeService(notifRepo, categoryRepo, dispatcher, testIntakeConfig(), newTestLogger())

	req := testIntakeRequest()
	req.ContentType = "application/json; charset=utf-8"
	req.Body = []byte(`{"a":1}`)

	categoryRepo.EXPECT().GetActiveByExternalID(gomock.Any(), gomock.Any()).
		Return(&domain.Category{ID: 7}, nil)
	notifRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	dispatcher.EXPECT().Enqueue(gomock.Any())

	_, err := svc.Accept(context.Background(), req)
	assert.NoError(t, err)
}

func TestIntakeService_Accept_RejectsOversizedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewIntakeService(
		mocks.NewMockNotificationRepository(ctrl),
		mocks.NewMockCategoryRepository(ctrl),
		mocks.NewMockDispatcher(ctrl),
		testIntakeConfig(), newTestLogger())

	req := testIntakeRequest()
	req.Body = make([]byte, 10001)

	n, err := svc.Accept(context.Background(), req)
	assert.Nil(t, n)
	assertAppErrorCode(t, err, "INTAKE_001")
}

func TestIntakeService_Accept_UnknownCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)

	svc := NewIntakeService(notifRepo, categoryRepo, mocks.NewMockDispatcher(ctrl), testIntakeConfig(), newTestLogger())
	req := testIntakeRequest()

	categoryRepo.EXPECT().GetActiveByExternalID(gomock.Any(), req.CategoryExternalID).Return(nil, nil)

	n, err := svc.Accept(context.Background(), req)
	assert.Nil(t, n)
	assertAppErrorCode(t, err, "INTAKE_003")
}

func TestIntakeService_Accept_RejectedCallsCreateNoRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)

	// No Create, no Enqueue expectations: a rejected call must not persist.
	svc := NewIntakeService(notifRepo, categoryRepo, mocks.NewMockDispatcher(ctrl), testIntakeConfig(), newTestLogger())

	req := testIntakeRequest()
	req.ContentType = "text/plain"

	_, err := svc.Accept(context.Background(), req)
	assert.Error(t, err)
}

func TestIntakeService_Accept_CreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifRepo := mocks.NewMockNotificationRepository(ctrl)
	categoryRepo := mocks.NewMockCategoryRepository(ctrl)

	svc := NewIntakeService(notifRepo, categoryRepo, mocks.NewMockDispatcher(ctrl), testIntakeConfig(), newTestLogger())
	req := testIntakeRequest()

	categoryRepo.EXPECT().GetActiveByExternalID(gomock.Any(), gomock.Any()).
		Return(&domain.Category{ID: 7}, nil)
	notifRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	n, err := svc.Accept(context.Background(), req)
	assert.Nil(t, n)
	assertAppErrorCode(t, err, "INTAKE_004")
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}
