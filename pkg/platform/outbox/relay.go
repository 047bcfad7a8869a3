package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Queue hands out pending messages in batches.
type Queue interface {
	Process(ctx context.Context, limit int, fn func(ctx context.Context, batch []Message) []uuid.UUID) (int, error)
}

// Publisher delivers one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay polls the queue and publishes what it finds. A message that fails
// to publish stays pending and is retried on a later poll; messages behind
// it in the batch are not held back.
type Relay struct {
	queue     Queue
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRelay(queue Queue, publisher Publisher, opts ...RelayOption) (*Relay, error) {
	if queue == nil {
		return nil, fmt.Errorf("outbox queue is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher is required")
	}
	r := &Relay{
		queue:     queue,
		publisher: publisher,
		logger:    slog.New(slog.DiscardHandler),
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another poll.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.Drain(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain publishes one batch and returns how many messages were delivered.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	return r.queue.Process(ctx, r.batchSize, func(ctx context.Context, batch []Message) []uuid.UUID {
		delivered := make([]uuid.UUID, 0, len(batch))
		for _, msg := range batch {
			if err := r.publisher.Publish(ctx, msg); err != nil {
				r.logger.WarnContext(ctx, "outbox publish failed",
					"outbox_id", msg.ID.String(),
					"event_type", msg.EventType,
					"error", err,
				)
				continue
			}
			delivered = append(delivered, msg.ID)
		}
		return delivered
	})
}
