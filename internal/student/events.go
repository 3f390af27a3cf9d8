package student

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated EventType = "student.created"
	EventUpdated EventType = "student.updated"
	EventDeleted EventType = "student.deleted"
)

// Event is published after a successful write. For deletions Student holds
// the row as it was before removal.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	StudentID  int64     `json:"student_id"`
	Student    *Student  `json:"student"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(eventType EventType, s *Student) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		StudentID:  s.ID,
		Student:    s,
		OccurredAt: time.Now().UTC(),
	}
}

// Key partitions events per student.
func (e Event) Key() string {
	return strconv.FormatInt(e.StudentID, 10)
}

// Publisher delivers events to a broker. Implemented by the NATS and Kafka producers.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// NoopPublisher discards events.
func NoopPublisher() Publisher {
	return noopPublisher{}
}
