package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MetricsCollector defines the interface for collecting broadcast metrics
type MetricsCollector interface {
	RecordPublished(eventType string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetrics is a no-op implementation for when metrics aren't needed
type NoOpMetrics struct{}

func (NoOpMetrics) RecordPublished(eventType string, success bool, duration time.Duration) {}
func (NoOpMetrics) RecordPublishAttempt(eventType string, attempt int, success bool)       {}

// Counts is a point-in-time copy of LogMetrics counters.
type Counts struct {
	Published map[string]int `json:"published"`
	Failed    map[string]int `json:"failed"`
	Retries   int            `json:"retries"`
}

// LogMetrics counts publishes per event type and logs failures.
type LogMetrics struct {
	mu        sync.Mutex
	published map[string]int
	failed    map[string]int
	retries   int
}

func NewLogMetrics() *LogMetrics {
	return &LogMetrics{
		published: make(map[string]int),
		failed:    make(map[string]int),
	}
}

func (m *LogMetrics) RecordPublished(eventType string, success bool, duration time.Duration) {
	m.mu.Lock()
	if success {
		m.published[eventType]++
	} else {
		m.failed[eventType]++
	}
	m.mu.Unlock()

	ev := log.Debug()
	if !success {
		ev = log.Warn()
	}
	ev.Str("event_type", eventType).
		Bool("success", success).
		Dur("duration", duration).
		Msg("broadcast")
}

func (m *LogMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	if attempt <= 1 {
		return
	}
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *LogMetrics) Snapshot() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := Counts{
		Published: make(map[string]int, len(m.published)),
		Failed:    make(map[string]int, len(m.failed)),
		Retries:   m.retries,
	}
	for k, v := range m.published {
		c.Published[k] = v
	}
	for k, v := range m.failed {
		c.Failed[k] = v
	}
	return c
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, msg models.Message) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, msg)

	p.metrics.RecordPublished(EventType(msg), err == nil, time.Since(start))
	return err
}
