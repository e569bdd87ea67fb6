package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RetryPublisher retries a failed publish with a linear backoff.
type RetryPublisher struct {
	publisher  Publisher
	maxRetries int
	retryDelay time.Duration
	clock      clockwork.Clock
	metrics    MetricsCollector
}

type RetryOption func(*RetryPublisher)

func WithRetryClock(clock clockwork.Clock) RetryOption {
	return func(r *RetryPublisher) {
		r.clock = clock
	}
}

func WithRetryMetrics(metrics MetricsCollector) RetryOption {
	return func(r *RetryPublisher) {
		r.metrics = metrics
	}
}

func NewRetryPublisher(publisher Publisher, maxRetries int, retryDelay time.Duration, opts ...RetryOption) *RetryPublisher {
	r := &RetryPublisher{
		publisher:  publisher,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		clock:      clockwork.NewRealClock(),
		metrics:    NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetryPublisher) Publish(ctx context.Context, msg models.Message) error {
	eventType := EventType(msg)
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if delay := r.retryDelay * time.Duration(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-r.clock.After(delay):
				}
			}
		}

		err := r.publisher.Publish(ctx, msg)
		r.metrics.RecordPublishAttempt(eventType, attempt+1, err == nil)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Str("event_type", eventType).
			Msg("failed to publish, retrying")
	}

	return fmt.Errorf("publish %s after %d attempts: %w", eventType, r.maxRetries+1, lastErr)
}
