package providers

import (
	"context"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

// EventBus publishes queue events to display boards and lets the stream
// process subscribe to them
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.QueueEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelQueueUpdates carries every queue event
	EventChannelQueueUpdates = "smartcare:queue-events"

	// EventChannelDepartmentPrefix prefixes per-department channels
	EventChannelDepartmentPrefix = "smartcare:queue:"
)

// GetDepartmentChannel returns the channel carrying one department's events
func GetDepartmentChannel(department string) string {
	return EventChannelDepartmentPrefix + entities.NormalizeDepartment(department)
}
