package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(v float64) *Completion {
	c := Completion(v)
	return &c
}

func newTestRecord(t *testing.T, pct float64, spent int) *ProgressRecord {
	t.Helper()
	rec, err := NewProgressRecord(NewProgressRecordParams{
		ID:         "rec-1",
		Pair:       Pair{UserID: 42, CourseID: 7},
		Completion: Completion(pct),
		TimeSpent:  Minutes(spent),
	})
	require.NoError(t, err)
	return rec
}

func TestNewProgressRecord_Validation(t *testing.T) {
	_, err := NewProgressRecord(NewProgressRecordParams{
		ID:   "rec-1",
		Pair: Pair{UserID: 0, CourseID: 7},
	})
	assert.Error(t, err)

	_, err = NewProgressRecord(NewProgressRecordParams{
		ID:         "rec-1",
		Pair:       Pair{UserID: 42, CourseID: 7},
		Completion: Completion(120),
	})
	assert.Error(t, err)

	_, err = NewProgressRecord(NewProgressRecordParams{
		ID:        "rec-1",
		Pair:      Pair{UserID: 42, CourseID: 7},
		TimeSpent: Minutes(-5),
	})
	assert.Error(t, err)
}

func TestApply_UpdatesCompletionAndTime(t *testing.T) {
	rec := newTestRecord(t, 75.5, 450)
	now := time.Now().UTC()

	res, err := rec.Apply(Update{
		Completion:     completion(80.0),
		TimeSpentDelta: 30,
	}, now)
	require.NoError(t, err)

	assert.True(t, res.CompletionChanged)
	assert.False(t, res.JustCompleted)
	assert.Equal(t, Completion(80.0), rec.CompletionPercentage)
	assert.Equal(t, Minutes(480), rec.TotalTimeSpent)
	assert.Equal(t, now, rec.LastAccessed)
	assert.Equal(t, now, rec.UpdatedAt)
}

func TestApply_ClampsRegression(t *testing.T) {
	rec := newTestRecord(t, 80, 100)

	res, err := rec.Apply(Update{Completion: completion(60)}, time.Now().UTC())
	require.NoError(t, err)

	assert.False(t, res.CompletionChanged)
	assert.Equal(t, Completion(80), rec.CompletionPercentage)
}

func TestApply_AllowRegression(t *testing.T) {
	rec := newTestRecord(t, 80, 100)

	res, err := rec.Apply(Update{
		Completion:      completion(60),
		AllowRegression: true,
	}, time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, res.CompletionChanged)
	assert.Equal(t, Completion(60), rec.CompletionPercentage)
}

func TestApply_TimeOnlyUpdateKeepsCompletion(t *testing.T) {
	rec := newTestRecord(t, 55, 10)

	res, err := rec.Apply(Update{TimeSpentDelta: 15}, time.Now().UTC())
	require.NoError(t, err)

	assert.False(t, res.CompletionChanged)
	assert.Equal(t, Completion(55), rec.CompletionPercentage)
	assert.Equal(t, Minutes(25), rec.TotalTimeSpent)
}

func TestApply_JustCompletedFiresOnce(t *testing.T) {
	rec := newTestRecord(t, 90, 0)
	now := time.Now().UTC()

	res, err := rec.Apply(Update{Completion: completion(100)}, now)
	require.NoError(t, err)
	assert.True(t, res.JustCompleted)
	assert.Equal(t, StateCompleted, rec.State())

	// Repeated 100% delivery must not re-fire the transition.
	res, err = rec.Apply(Update{Completion: completion(100)}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, res.JustCompleted)
	assert.False(t, res.CompletionChanged)
}

func TestApply_RejectsInvalidUpdate(t *testing.T) {
	rec := newTestRecord(t, 50, 0)

	_, err := rec.Apply(Update{Completion: completion(101)}, time.Now().UTC())
	assert.Error(t, err)

	_, err = rec.Apply(Update{TimeSpentDelta: -1}, time.Now().UTC())
	assert.Error(t, err)

	// Failed updates must not leave partial state behind.
	assert.Equal(t, Completion(50), rec.CompletionPercentage)
	assert.Equal(t, Minutes(0), rec.TotalTimeSpent)
}

func TestState_Transitions(t *testing.T) {
	rec := newTestRecord(t, 0, 0)
	assert.Equal(t, StateInProgress, rec.State())

	rec.CompletionPercentage = 99.9
	assert.Equal(t, StateInProgress, rec.State())

	rec.CompletionPercentage = 100
	assert.Equal(t, StateCompleted, rec.State())
}

func TestCompletion_Clamp(t *testing.T) {
	assert.Equal(t, Completion(0), Completion(-3).Clamp())
	assert.Equal(t, Completion(100), Completion(130).Clamp())
	assert.Equal(t, Completion(42.5), Completion(42.5).Clamp())
}

func TestClone_IsIndependent(t *testing.T) {
	rec := newTestRecord(t, 10, 5)
	clone := rec.Clone()

	clone.CompletionPercentage = 90
	assert.Equal(t, Completion(10), rec.CompletionPercentage)
}
