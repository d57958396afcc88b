package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

func newAssessmentFixture() (*RecordAssessmentHandler, *memStore, *fakeCache, *fakePublisher) {
	store := newMemStore()
	cache := &fakeCache{}
	pub := &fakePublisher{}
	return NewRecordAssessmentHandler(store, cache, pub), store, cache, pub
}

func TestRecordAssessmentNumbersAttempts(t *testing.T) {
	handler, _, _, _ := newAssessmentFixture()
	ctx := context.Background()

	first, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7,
		Score: 85, MaxScore: 100, TimeTaken: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, 85.0, first.Result.PercentageScore)
	assert.True(t, first.RecordCreated)
	assert.Equal(t, progress.Minutes(20), first.Record.TotalTimeSpent)

	second, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7,
		Score: 92, MaxScore: 100, TimeTaken: 15,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, second.AttemptNumber)
	assert.Equal(t, 92.0, second.Result.PercentageScore)
	assert.False(t, second.RecordCreated)
	assert.Equal(t, progress.Minutes(35), second.Record.TotalTimeSpent)
}

func TestRecordAssessmentSeparateKeysNumberIndependently(t *testing.T) {
	handler, _, _, _ := newAssessmentFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7, Score: 85, MaxScore: 100,
	})
	require.NoError(t, err)

	// A different assessment for the same user starts at attempt 1.
	res, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 10, CourseID: 7, Score: 70, MaxScore: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AttemptNumber)

	// As does the same assessment for a different user.
	res, err = handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 43, AssessmentID: 9, CourseID: 7, Score: 60, MaxScore: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AttemptNumber)
}

func TestRecordAssessmentJoinsExistingRecord(t *testing.T) {
	handler, store, _, _ := newAssessmentFixture()
	ctx := context.Background()

	rec, err := progress.NewProgressRecord(progress.NewProgressRecordParams{
		ID:         "existing",
		Pair:       progress.Pair{UserID: 42, CourseID: 7},
		Completion: 40,
		TimeSpent:  100,
	})
	require.NoError(t, err)
	store.records[rec.Pair()] = rec

	res, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7,
		Score: 7, MaxScore: 8, TimeTaken: 30,
	})
	require.NoError(t, err)

	assert.False(t, res.RecordCreated)
	assert.Equal(t, "existing", res.Result.ProgressID)
	assert.Equal(t, progress.Minutes(130), res.Record.TotalTimeSpent)
	assert.InDelta(t, 87.5, res.Result.PercentageScore, 0.001)
	// Assessment time never moves completion.
	assert.Equal(t, progress.Completion(40), res.Record.CompletionPercentage)
}

func TestRecordAssessmentRetriesOnDuplicateAttempt(t *testing.T) {
	handler, store, _, _ := newAssessmentFixture()
	store.failCreateAttempts = 1

	res, err := handler.Handle(context.Background(), RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7, Score: 85, MaxScore: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.AttemptNumber)
	assert.GreaterOrEqual(t, store.beginCount, 2)

	count, err := (&memAssessmentRepo{store: store}).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAssessmentRetriesLostRecordCreateRace(t *testing.T) {
	handler, store, _, _ := newAssessmentFixture()
	store.failCreateRecords = 1

	// Losing the first write of the owning record must not surface as a
	// conflict; the retry attaches the attempt to the winner's row.
	res, err := handler.Handle(context.Background(), RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7,
		Score: 85, MaxScore: 100, TimeTaken: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.AttemptNumber)
	assert.False(t, res.RecordCreated)
	assert.GreaterOrEqual(t, store.beginCount, 2)
	assert.Len(t, store.records, 1)
	assert.Equal(t, progress.Minutes(20), res.Record.TotalTimeSpent)
}

func TestRecordAssessmentInvalidatesAndPublishes(t *testing.T) {
	handler, _, cache, pub := newAssessmentFixture()

	_, err := handler.Handle(context.Background(), RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7, Score: 85, MaxScore: 100,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"user:42", "course:7"}, cache.invalidated)
	assert.Equal(t, []shared.EventType{shared.EventProgressUpdated}, pub.types())
}

func TestRecordAssessmentValidation(t *testing.T) {
	handler, _, _, _ := newAssessmentFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7, Score: 50, MaxScore: 0,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidMaxScore)

	_, err = handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 9, CourseID: 7, Score: -1, MaxScore: 100,
	})
	assert.ErrorIs(t, err, shared.ErrNegativeScore)

	_, err = handler.Handle(ctx, RecordAssessmentCommand{
		UserID: 42, AssessmentID: 0, CourseID: 7, Score: 50, MaxScore: 100,
	})
	assert.True(t, shared.IsValidation(err))
}
