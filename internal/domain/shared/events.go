// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published after the write that caused them
// has committed, so a subscriber never observes state that was rolled back.
const (
	// Profile events
	EventProfileCreated EventType = "profile.created"

	// Progress events
	EventXPAwarded        EventType = "progress.xp_awarded"
	EventStreakReconciled EventType = "progress.streak_reconciled"

	// Quiz events
	EventAttemptRecorded EventType = "quiz.attempt_recorded"

	// Challenge events
	EventChallengeCompleted EventType = "challenge.completed"

	// Lesson events
	EventLessonCompleted EventType = "lesson.completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when a scoring operation credits XP to a profile.
// Zero-XP outcomes do not produce this event.
type XPAwardedEvent struct {
	BaseEvent
	ProfileID string `json:"profile_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	Source    string `json:"source"` // "quiz", "challenge", "lesson"
	SourceRef string `json:"source_ref"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id": e.ProfileID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"source":     e.Source,
		"source_ref": e.SourceRef,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(profileID string, amount, newTotal int, source, sourceRef string, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, profileID, at),
		ProfileID: profileID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		SourceRef: sourceRef,
	}
}

// StreakReconciledEvent is emitted when a stale cached streak was overwritten
// with the value computed from the activity log.
type StreakReconciledEvent struct {
	BaseEvent
	ProfileID string `json:"profile_id"`
	OldStreak int    `json:"old_streak"`
	NewStreak int    `json:"new_streak"`
}

// Payload implements Event interface.
func (e StreakReconciledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id": e.ProfileID,
		"old_streak": e.OldStreak,
		"new_streak": e.NewStreak,
	}
}

// NewStreakReconciledEvent creates a new StreakReconciledEvent.
func NewStreakReconciledEvent(profileID string, oldStreak, newStreak int, at time.Time) StreakReconciledEvent {
	return StreakReconciledEvent{
		BaseEvent: NewBaseEvent(EventStreakReconciled, profileID, at),
		ProfileID: profileID,
		OldStreak: oldStreak,
		NewStreak: newStreak,
	}
}

// ProfileCreatedEvent is emitted when a new profile is stored.
type ProfileCreatedEvent struct {
	BaseEvent
	ProfileID   string `json:"profile_id"`
	DisplayName string `json:"display_name"`
}

// Payload implements Event interface.
func (e ProfileCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id":   e.ProfileID,
		"display_name": e.DisplayName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Completion Events
// ═══════════════════════════════════════════════════════════════════════════

// AttemptRecordedEvent is emitted when a new quiz attempt row is stored.
type AttemptRecordedEvent struct {
	BaseEvent
	ProfileID       string `json:"profile_id"`
	QuizID          string `json:"quiz_id"`
	AttemptID       string `json:"attempt_id"`
	XPEarned        int    `json:"xp_earned"`
	Passed          bool   `json:"passed"`
	IsPerfect       bool   `json:"is_perfect"`
	PersonalityType string `json:"personality_type,omitempty"`
}

// Payload implements Event interface.
func (e AttemptRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id":       e.ProfileID,
		"quiz_id":          e.QuizID,
		"attempt_id":       e.AttemptID,
		"xp_earned":        e.XPEarned,
		"passed":           e.Passed,
		"is_perfect":       e.IsPerfect,
		"personality_type": e.PersonalityType,
	}
}

// ChallengeCompletedEvent is emitted on the first successful claim of a
// challenge for a date.
type ChallengeCompletedEvent struct {
	BaseEvent
	ProfileID     string `json:"profile_id"`
	ChallengeID   int64  `json:"challenge_id"`
	CompletedDate string `json:"completed_date"`
	XPAwarded     int    `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id":     e.ProfileID,
		"challenge_id":   e.ChallengeID,
		"completed_date": e.CompletedDate,
		"xp_awarded":     e.XPAwarded,
	}
}

// LessonCompletedEvent is emitted the first time a profile completes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	ProfileID string `json:"profile_id"`
	LessonID  string `json:"lesson_id"`
	XPAwarded int    `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"profile_id": e.ProfileID,
		"lesson_id":  e.LessonID,
		"xp_awarded": e.XPAwarded,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// Subscription is the handle returned by Subscribe. Cancel detaches the
// handler; it is safe to call more than once.
type Subscription interface {
	Cancel()
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) (Subscription, error)

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) (Subscription, error)
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
