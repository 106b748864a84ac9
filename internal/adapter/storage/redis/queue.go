package redis

import (
	"bytes"
	"context"
	"encoding/json"

	"webhook-relay/internal/core/domain"
	"webhook-relay/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QueueForwarder pushes processed notification envelopes onto a Redis list
// for downstream consumers. Delivery is fire-and-forget: a failed push is
// reported through the boolean result, never as an error, so processing
// outcomes stay independent of queue availability.
type QueueForwarder struct {
	client    *goredis.Client
	queueName string
	log       zerolog.Logger
}

// NewQueueForwarder creates a Redis-backed queue forwarder.
func NewQueueForwarder(client *goredis.Client, queueName string, log zerolog.Logger) *QueueForwarder {
	return &QueueForwarder{
		client:    client,
		queueName: queueName,
		log:       log.With().Str("component", "queue_forwarder").Logger(),
	}
}

// Push serializes the envelope and LPUSHes it onto the queue. Returns true
// only when the message was accepted by Redis.
func (f *QueueForwarder) Push(ctx context.Context, env domain.Envelope) bool {
	// Keep payloads as plain UTF-8; consumers are not HTML contexts.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		f.log.Error().Err(err).Int64("notification_id", env.ID).Msg("Failed to serialize envelope")
		return false
	}

	if err := f.client.LPush(ctx, f.queueName, bytes.TrimRight(buf.Bytes(), "\n")).Err(); err != nil {
		f.log.Warn().Err(err).
			Int64("notification_id", env.ID).
			Str("queue", f.queueName).
			Msg("Failed to push envelope to queue")
		return false
	}
	return true
}

// Stats reports the queue name and its current depth.
func (f *QueueForwarder) Stats(ctx context.Context) (ports.QueueStats, error) {
	pending, err := f.client.LLen(ctx, f.queueName).Result()
	if err != nil {
		return ports.QueueStats{}, err
	}
	return ports.QueueStats{
		QueueName:       f.queueName,
		PendingMessages: pending,
	}, nil
}
