package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRuleMatched        EventType = "rule_matched"
	EventPassthrough        EventType = "passthrough"
	EventResponseCompleted  EventType = "response_completed"
	EventReachabilityChange EventType = "reachability_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Rule       string
	Upstream   string
	Duration   time.Duration
	StatusCode int
	Reachable  bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRuleMatched:
		c.metrics.RecordRuleMatch(event.Rule, event.Upstream)

	case EventPassthrough:
		c.metrics.RecordPassthrough()

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Upstream, event.Duration, event.StatusCode)

	case EventReachabilityChange:
		c.metrics.UpdateReachability(event.Upstream, event.Reachable)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
