package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

func TestEncodeDecodeProgressUpdated(t *testing.T) {
	original := shared.NewProgressUpdatedEvent("rec-1", 42, 7, 62.5, 180)

	data, err := EncodeEvent(original, "instance-a")
	require.NoError(t, err)

	decoded, instanceID, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "instance-a", instanceID)

	event, ok := decoded.(shared.ProgressUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, "rec-1", event.ProgressID)
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, int64(7), event.CourseID)
	assert.Equal(t, 62.5, event.CompletionPercentage)
	assert.Equal(t, 180, event.TotalTimeSpent)
	assert.Equal(t, shared.EventProgressUpdated, event.EventType())
}

func TestEncodeDecodeInboundEvents(t *testing.T) {
	enrollment := shared.NewEnrollmentCreatedEvent("enr-1", 42, 7)
	data, err := EncodeEvent(enrollment, "catalog")
	require.NoError(t, err)

	decoded, _, err := DecodeEvent(data)
	require.NoError(t, err)
	enrollEvent, ok := decoded.(shared.EnrollmentCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "enr-1", enrollEvent.EnrollmentID)

	graded := shared.NewAssessmentGradedEvent(42, 9, 7, 85, 100, 20)
	data, err = EncodeEvent(graded, "grader")
	require.NoError(t, err)

	decoded, _, err = DecodeEvent(data)
	require.NoError(t, err)
	gradeEvent, ok := decoded.(shared.AssessmentGradedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(9), gradeEvent.AssessmentID)
	assert.Equal(t, 85.0, gradeEvent.Score)
	assert.Equal(t, 100.0, gradeEvent.MaxScore)
}

func TestDecodeUnknownEventType(t *testing.T) {
	data := []byte(`{"id":"x","instance_id":"a","type":"user.deleted","payload":{}}`)

	_, _, err := DecodeEvent(data)
	assert.ErrorIs(t, err, ErrEventNotSupported)
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	_, _, err := DecodeEvent([]byte("{not json"))
	assert.Error(t, err)
}
