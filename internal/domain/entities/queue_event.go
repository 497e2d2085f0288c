package entities

import (
	"time"

	"github.com/google/uuid"
)

// QueueEventType is the kind of queue change broadcast to display boards
type QueueEventType string

const (
	QueueEventCheckIn     QueueEventType = "checkin"
	QueueEventCalled      QueueEventType = "called"
	QueueEventCompleted   QueueEventType = "completed"
	QueueEventRemoved     QueueEventType = "removed"
	QueueEventOverride    QueueEventType = "override"
	QueueEventRecalculate QueueEventType = "recalculated"
	QueueEventAllocation  QueueEventType = "allocation"
	QueueEventReset       QueueEventType = "reset"
)

// QueueEvent is a real-time queue update
type QueueEvent struct {
	ID         string                 `json:"id"`
	Type       QueueEventType         `json:"type"`
	Department string                 `json:"department,omitempty"`
	EntryID    string                 `json:"entry_id,omitempty"`
	PatientID  string                 `json:"patient_id,omitempty"`
	Position   int                    `json:"position,omitempty"`
	Priority   float64                `json:"priority,omitempty"`
	QueueSize  int                    `json:"queue_size"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewQueueEvent creates a queue event stamped now
func NewQueueEvent(eventType QueueEventType, department string) *QueueEvent {
	return &QueueEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Department: department,
		Timestamp:  time.Now().UTC(),
	}
}
