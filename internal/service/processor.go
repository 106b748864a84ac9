package service

import (
	"context"
	"fmt"
	"time"

	"webhook-relay/config"
	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
	"webhook-relay/pkg/backoff"

	"github.com/rs/zerolog"
)

// ProcessorImpl implements ports.Processor. One call covers the full
// lifecycle of a stored notification: parse, persist the terminal outcome,
// and forward successful results downstream.
//
// Error discipline: a parse failure is a normal outcome (status error, no Go
// error returned); only store/dependency trouble surfaces as an error, marked
// transient so the dispatcher can retry. A panic anywhere inside processing
// is converted into status error rather than taking the worker down.
type ProcessorImpl struct {
	notifRepo    ports.NotificationRepository
	categoryRepo ports.CategoryRepository
	parser       *SafeParser
	forwarder    ports.QueueForwarder
	extract      config.ExtractConfig
	forwardCfg   config.ForwardConfig
	log          zerolog.Logger
}

// NewProcessor creates a new ProcessorImpl.
func NewProcessor(
	notifRepo ports.NotificationRepository,
	categoryRepo ports.CategoryRepository,
	parser *SafeParser,
	forwarder ports.QueueForwarder,
	extract config.ExtractConfig,
	forwardCfg config.ForwardConfig,
	log zerolog.Logger,
) *ProcessorImpl {
	return &ProcessorImpl{
		notifRepo:    notifRepo,
		categoryRepo: categoryRepo,
		parser:       parser,
		forwarder:    forwarder,
		extract:      extract,
		forwardCfg:   forwardCfg,
		log:          log.With().Str("component", "processor").Logger(),
	}
}

// Process runs one stored notification to a terminal status.
func (p *ProcessorImpl) Process(ctx context.Context, id int64) (err error) {
	n, loadErr := p.notifRepo.GetByID(ctx, id)
	if loadErr != nil {
		return apperror.TransientDependency("load notification", loadErr)
	}
	if n == nil {
		return apperror.ErrNotificationNotFound()
	}
	if n.IsTerminal() {
		// Sweep and retry jobs race with the dispatcher; a row someone else
		// already finished is a no-op, not a failure.
		p.log.Debug().Int64("notification_id", id).Str("status", string(n.Status)).Msg("Skipping non-pending notification")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int64("notification_id", id).Interface("panic", r).Msg("Processing panicked")
			desc := fmt.Sprintf("processing panic: %v", r)
			if markErr := p.notifRepo.MarkProcessed(ctx, id, domain.StatusError, nil, desc, time.Now().UTC()); markErr != nil {
				err = apperror.TransientDependency("record panic outcome", markErr)
			}
		}
	}()

	parsed, perr := p.parser.Parse(n.ContentType, []byte(n.Data))
	now := time.Now().UTC()

	if perr != nil {
		if markErr := p.notifRepo.MarkProcessed(ctx, id, domain.StatusError, nil, perr.String(), now); markErr != nil {
			return apperror.TransientDependency("record parse failure", markErr)
		}
		p.log.Info().
			Int64("notification_id", id).
			Str("reason", perr.Reason).
			Msg("Notification rejected by parser")
		return nil
	}

	if markErr := p.notifRepo.MarkProcessed(ctx, id, domain.StatusComplete, parsed, "", now); markErr != nil {
		return apperror.TransientDependency("record parse result", markErr)
	}
	n.ParsedBody = parsed
	n.Status = domain.StatusComplete

	p.forward(ctx, n)
	return nil
}

// forward pushes the completed notification downstream. Forwarding is best
// effort: the row already reached status complete and stays there whatever
// happens here; only dispatched_at records whether the push landed.
func (p *ProcessorImpl) forward(ctx context.Context, n *domain.Notification) {
	category, err := p.categoryRepo.GetByID(ctx, n.CategoryID)
	if err != nil || category == nil {
		p.log.Warn().Err(err).
			Int64("notification_id", n.ID).
			Int64("category_id", n.CategoryID).
			Msg("Category lookup failed, envelope not forwarded")
		return
	}

	env := domain.NewEnvelope(n, category.ExternalID, p.extractHints(n.ParsedBody))

	strategy := &backoff.Exponential{
		Initial: p.forwardCfg.InitialDelay,
		Max:     p.forwardCfg.MaxDelay,
	}

	for attempt := 1; attempt <= p.forwardCfg.Attempts; attempt++ {
		if p.forwarder.Push(ctx, env) {
			if err := p.notifRepo.MarkDispatched(ctx, n.ID, time.Now().UTC()); err != nil {
				p.log.Warn().Err(err).Int64("notification_id", n.ID).Msg("Envelope forwarded but dispatched_at not recorded")
			}
			return
		}
		if attempt == p.forwardCfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			p.log.Warn().Int64("notification_id", n.ID).Msg("Forwarding abandoned, context cancelled")
			return
		case <-time.After(strategy.Delay(attempt)):
		}
	}

	p.log.Warn().
		Int64("notification_id", n.ID).
		Int("attempts", p.forwardCfg.Attempts).
		Msg("Envelope not forwarded, queue unavailable")
}

// extractHints lifts configured business attributes out of the parsed body.
// Each hint resolves to the first candidate key present at the top level.
func (p *ProcessorImpl) extractHints(parsed map[string]any) map[string]any {
	hints := make(map[string]any)
	if v, ok := firstPresent(parsed, p.extract.AccountKeys); ok {
		hints["account"] = v
	}
	if v, ok := firstPresent(parsed, p.extract.ReferenceKeys); ok {
		hints["reference"] = v
	}
	if len(hints) == 0 {
		return nil
	}
	return hints
}

func firstPresent(parsed map[string]any, candidates []string) (any, bool) {
	for _, key := range candidates {
		if v, ok := parsed[key]; ok {
			return v, true
		}
	}
	return nil, false
}
