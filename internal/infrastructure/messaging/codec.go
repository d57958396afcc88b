package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

// wireEnvelope is the on-the-wire form of an event. InstanceID lets a
// subscriber drop messages it published itself; Payload carries the full
// typed event including its base fields.
type wireEnvelope struct {
	ID          string           `json:"id"`
	InstanceID  string           `json:"instance_id"`
	Type        shared.EventType `json:"type"`
	AggregateID string           `json:"aggregate_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Payload     json.RawMessage  `json:"payload"`
}

// EncodeEvent serializes an event into a wire envelope.
func EncodeEvent(event shared.Event, instanceID string) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return json.Marshal(wireEnvelope{
		ID:          uuid.NewString(),
		InstanceID:  instanceID,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	})
}

// DecodeEvent deserializes a wire envelope back into a typed domain event,
// so subscribers can type-assert the concrete event structs. Event types
// this service does not know are rejected with ErrEventNotSupported.
func DecodeEvent(data []byte) (shared.Event, string, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", fmt.Errorf("unmarshal envelope: %w", err)
	}

	event, err := decodePayload(envelope.Type, envelope.Payload)
	if err != nil {
		return nil, "", err
	}

	return event, envelope.InstanceID, nil
}

func decodePayload(eventType shared.EventType, payload json.RawMessage) (shared.Event, error) {
	switch eventType {
	case shared.EventProgressUpdated:
		return unmarshalEvent[shared.ProgressUpdatedEvent](payload)
	case shared.EventProgressCompleted:
		return unmarshalEvent[shared.ProgressCompletedEvent](payload)
	case shared.EventCertificateIssued:
		return unmarshalEvent[shared.CertificateIssuedEvent](payload)
	case shared.EventEnrollmentCreated:
		return unmarshalEvent[shared.EnrollmentCreatedEvent](payload)
	case shared.EventAssessmentGraded:
		return unmarshalEvent[shared.AssessmentGradedEvent](payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrEventNotSupported, eventType)
	}
}

func unmarshalEvent[E shared.Event](payload json.RawMessage) (shared.Event, error) {
	var event E
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", event.EventType(), err)
	}
	return event, nil
}
