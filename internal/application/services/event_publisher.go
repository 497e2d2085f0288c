package services

import (
	"context"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

const publishTimeout = 2 * time.Second

// EventPublisher fans queue events out to the event bus from a background
// goroutine. Emit never blocks; a full buffer drops the event.
type EventPublisher struct {
	bus     providers.EventBus
	metrics *observability.Metrics
	events  chan *entities.QueueEvent
}

// NewEventPublisher creates a publisher with bufferSize pending events
func NewEventPublisher(bus providers.EventBus, bufferSize int) *EventPublisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventPublisher{
		bus:    bus,
		events: make(chan *entities.QueueEvent, bufferSize),
	}
}

// SetMetrics attaches the drop counter
func (p *EventPublisher) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

// Emit queues an event for publishing
func (p *EventPublisher) Emit(event *entities.QueueEvent) {
	if event == nil {
		return
	}
	select {
	case p.events <- event:
	default:
		p.metrics.RecordDropped(context.Background(), "queue_events")
		observability.GetLogger().Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Event buffer full, dropping queue event")
	}
}

// Run publishes buffered events until ctx is done
func (p *EventPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.events:
			p.publish(ctx, ev)
		}
	}
}

// publish sends the event on the hospital-wide channel and, when it concerns a
// department, on that department's channel too
func (p *EventPublisher) publish(ctx context.Context, ev *entities.QueueEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	logger := observability.LoggerFromContext(ctx)

	channels := []string{providers.EventChannelQueueUpdates}
	if ev.Department != "" {
		channels = append(channels, providers.GetDepartmentChannel(ev.Department))
	}
	for _, ch := range channels {
		if err := p.bus.Publish(ctx, ch, ev); err != nil {
			logger.Warn().Err(err).Str("channel", ch).Str("event_id", ev.ID).Msg("Failed to publish queue event")
		}
	}
}
