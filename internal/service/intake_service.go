package service

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"webhook-relay/config"
	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// IntakeServiceImpl implements ports.IntakeService. It is the only write
// path for new notifications: every check happens before a row exists, so a
// rejected call leaves no trace beyond its log line.
type IntakeServiceImpl struct {
	notifRepo    ports.NotificationRepository
	categoryRepo ports.CategoryRepository
	dispatcher   ports.Dispatcher
	cfg          config.IntakeConfig
	log          zerolog.Logger
}

// NewIntakeService creates a new IntakeServiceImpl.
func NewIntakeService(
	notifRepo ports.NotificationRepository,
	categoryRepo ports.CategoryRepository,
	dispatcher ports.Dispatcher,
	cfg config.IntakeConfig,
	log zerolog.Logger,
) *IntakeServiceImpl {
	return &IntakeServiceImpl{
		notifRepo:    notifRepo,
		categoryRepo: categoryRepo,
		dispatcher:   dispatcher,
		cfg:          cfg,
		log:          log.With().Str("component", "intake").Logger(),
	}
}

// Accept validates an inbound webhook call, records it with status new and
// hands the id to the dispatcher. Validation order matters: cheap checks
// first, the category lookup last, and nothing is persisted until all of
// them pass.
func (s *IntakeServiceImpl) Accept(ctx context.Context, req ports.IntakeRequest) (*domain.Notification, error) {
	if req.Method != http.MethodPost {
		return nil, apperror.ErrUnknownEndpoint()
	}

	if !supportedContentType(req.ContentType) {
		return nil, apperror.ErrUnsupportedContentType()
	}

	if len(req.Body) > s.cfg.MaxBodyBytes {
		return nil, apperror.ErrPayloadTooLarge()
	}

	category, err := s.categoryRepo.GetActiveByExternalID(ctx, req.CategoryExternalID)
	if err != nil {
		s.log.Error().Err(err).Msg("Category lookup failed")
		return nil, apperror.ErrIntakeFailed(err)
	}
	if category == nil {
		// Unknown and inactive identifiers answer identically.
		return nil, apperror.ErrUnknownEndpoint()
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		InsertedAt:     now,
		RequestMethod:  req.Method,
		Path:           req.Path,
		FullURL:        req.FullURL,
		UserAgent:      req.UserAgent,
		ClientIP:       req.ClientIP,
		ContentType:    req.ContentType,
		Data:           string(req.Body),
		CategoryID:     category.ID,
		ParsedBody:     map[string]any{},
		Status:         domain.StatusNew,
		ProcessedAt:    domain.ProcessedAtSentinel,
		BusinessStatus: domain.BusinessPending,
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist notification")
		return nil, apperror.ErrIntakeFailed(fmt.Errorf("create notification: %w", err))
	}

	s.dispatcher.Enqueue(n.ID)

	s.log.Info().
		Int64("notification_id", n.ID).
		Str("category", category.Name).
		Int("body_bytes", len(req.Body)).
		Msg("Notification accepted")

	return n, nil
}

// supportedContentType accepts the two media type bases the parser handles.
// Parameters such as charset are ignored.
func supportedContentType(contentType string) bool {
	base := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		base = mt
	}
	switch strings.ToLower(strings.TrimSpace(base)) {
	case ContentTypeForm, ContentTypeJSON:
		return true
	default:
		return false
	}
}
