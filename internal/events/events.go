package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the practice service.
const (
	TypeAttemptSubmitted = "attempt.submitted"
)

// Event is the envelope published to the message broker.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttemptSubmittedEvent is emitted exactly once per attempt, by the submit
// request that wins the version race.
type AttemptSubmittedEvent struct {
	AttemptID      string    `json:"attempt_id"`
	OwnerID        *string   `json:"owner_id,omitempty"`
	Score          float64   `json:"score"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// NewEvent creates an event envelope with a fresh ID and timestamp
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "practice-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to the message broker
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
