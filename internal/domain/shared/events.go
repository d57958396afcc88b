// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Outbound events (published by this service)
	EventProgressUpdated   EventType = "progress.updated"
	EventProgressCompleted EventType = "progress.completed"
	EventCertificateIssued EventType = "certificate.issued"

	// Inbound events (consumed from other services).
	// Delivery is at-least-once with no ordering guarantee across
	// partitions; every handler must be safely re-runnable.
	EventEnrollmentCreated EventType = "enrollment.created"
	EventAssessmentGraded  EventType = "assessment.graded"
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
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
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
// Outbound Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted on every successful progress upsert.
// The body mirrors the ProgressRecord entity.
type ProgressUpdatedEvent struct {
	BaseEvent
	ProgressID           string  `json:"progress_id"`
	UserID               int64   `json:"user_id"`
	CourseID             int64   `json:"course_id"`
	CompletionPercentage float64 `json:"completion_percentage"`
	TotalTimeSpent       int     `json:"total_time_spent"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"progress_id":           e.ProgressID,
		"user_id":               e.UserID,
		"course_id":             e.CourseID,
		"completion_percentage": e.CompletionPercentage,
		"total_time_spent":      e.TotalTimeSpent,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(progressID string, userID, courseID int64, completion float64, timeSpent int) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent:            NewBaseEvent(EventProgressUpdated, progressID),
		ProgressID:           progressID,
		UserID:               userID,
		CourseID:             courseID,
		CompletionPercentage: completion,
		TotalTimeSpent:       timeSpent,
	}
}

// ProgressCompletedEvent is emitted exactly once per pair, when
// completion_percentage first reaches 100.
type ProgressCompletedEvent struct {
	BaseEvent
	ProgressID string `json:"progress_id"`
	UserID     int64  `json:"user_id"`
	CourseID   int64  `json:"course_id"`
}

// Payload implements Event interface.
func (e ProgressCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"progress_id": e.ProgressID,
		"user_id":     e.UserID,
		"course_id":   e.CourseID,
	}
}

// NewProgressCompletedEvent creates a new ProgressCompletedEvent.
func NewProgressCompletedEvent(progressID string, userID, courseID int64) ProgressCompletedEvent {
	return ProgressCompletedEvent{
		BaseEvent:  NewBaseEvent(EventProgressCompleted, progressID),
		ProgressID: progressID,
		UserID:     userID,
		CourseID:   courseID,
	}
}

// CertificateIssuedEvent is emitted on every new certificate.
// The body mirrors the Certificate entity.
type CertificateIssuedEvent struct {
	BaseEvent
	CertificateID  string  `json:"certificate_id"`
	UserID         int64   `json:"user_id"`
	CourseID       int64   `json:"course_id"`
	CertificateURL string  `json:"certificate_url"`
	FinalScore     float64 `json:"final_score"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"certificate_id":  e.CertificateID,
		"user_id":         e.UserID,
		"course_id":       e.CourseID,
		"certificate_url": e.CertificateURL,
		"final_score":     e.FinalScore,
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(certificateID string, userID, courseID int64, url string, finalScore float64) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:      NewBaseEvent(EventCertificateIssued, certificateID),
		CertificateID:  certificateID,
		UserID:         userID,
		CourseID:       courseID,
		CertificateURL: url,
		FinalScore:     finalScore,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Inbound Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentCreatedEvent arrives when the user service enrolls a user
// in a course. EnrollmentID is the de-duplication key: a redelivery with
// the same enrollment_id must not double-create or reset a record.
type EnrollmentCreatedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	UserID       int64  `json:"user_id"`
	CourseID     int64  `json:"course_id"`
}

// Payload implements Event interface.
func (e EnrollmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id": e.EnrollmentID,
		"user_id":       e.UserID,
		"course_id":     e.CourseID,
	}
}

// NewEnrollmentCreatedEvent creates a new EnrollmentCreatedEvent.
func NewEnrollmentCreatedEvent(enrollmentID string, userID, courseID int64) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		BaseEvent:    NewBaseEvent(EventEnrollmentCreated, enrollmentID),
		EnrollmentID: enrollmentID,
		UserID:       userID,
		CourseID:     courseID,
	}
}

// AssessmentGradedEvent arrives when the course service finishes grading
// an assessment submission.
type AssessmentGradedEvent struct {
	BaseEvent
	UserID       int64   `json:"user_id"`
	AssessmentID int64   `json:"assessment_id"`
	CourseID     int64   `json:"course_id"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	TimeTaken    int     `json:"time_taken"`
}

// Payload implements Event interface.
func (e AssessmentGradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"assessment_id": e.AssessmentID,
		"course_id":     e.CourseID,
		"score":         e.Score,
		"max_score":     e.MaxScore,
		"time_taken":    e.TimeTaken,
	}
}

// NewAssessmentGradedEvent creates a new AssessmentGradedEvent.
func NewAssessmentGradedEvent(userID, assessmentID, courseID int64, score, maxScore float64, timeTaken int) AssessmentGradedEvent {
	return AssessmentGradedEvent{
		BaseEvent:    NewBaseEvent(EventAssessmentGraded, ""),
		UserID:       userID,
		AssessmentID: assessmentID,
		CourseID:     courseID,
		Score:        score,
		MaxScore:     maxScore,
		TimeTaken:    timeTaken,
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

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
