package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

const testCertBaseURL = "https://certificates.test"

func newUpsertFixture() (*UpsertProgressHandler, *memStore, *fakeCache, *fakePublisher) {
	store := newMemStore()
	cache := &fakeCache{}
	pub := &fakePublisher{}
	return NewUpsertProgressHandler(store, cache, pub, testCertBaseURL), store, cache, pub
}

func TestUpsertProgressCreatesRecord(t *testing.T) {
	handler, store, cache, pub := newUpsertFixture()

	res, err := handler.Handle(context.Background(), UpsertProgressCommand{
		UserID:               42,
		CourseID:             7,
		CompletionPercentage: pct(30),
		TimeSpentDelta:       15,
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.True(t, res.CompletionChanged)
	assert.False(t, res.JustCompleted)
	assert.Nil(t, res.Certificate)
	assert.Equal(t, progress.Completion(30), res.Record.CompletionPercentage)
	assert.Equal(t, progress.Minutes(15), res.Record.TotalTimeSpent)

	stored := store.records[progress.Pair{UserID: 42, CourseID: 7}]
	require.NotNil(t, stored)
	assert.Equal(t, progress.Completion(30), stored.CompletionPercentage)

	assert.Equal(t, []shared.EventType{shared.EventProgressUpdated}, pub.types())
	assert.ElementsMatch(t, []string{"user:42", "course:7"}, cache.invalidated)
}

func TestUpsertProgressUpdatesExisting(t *testing.T) {
	handler, _, _, _ := newUpsertFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(30), TimeSpentDelta: 15,
	})
	require.NoError(t, err)

	res, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(55.5), TimeSpentDelta: 20,
	})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.True(t, res.CompletionChanged)
	assert.Equal(t, progress.Completion(55.5), res.Record.CompletionPercentage)
	assert.Equal(t, progress.Minutes(35), res.Record.TotalTimeSpent)
}

func TestUpsertProgressClampsRegression(t *testing.T) {
	handler, _, _, _ := newUpsertFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(80),
	})
	require.NoError(t, err)

	// A lower value is silently kept at the stored completion.
	res, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(60), TimeSpentDelta: 10,
	})
	require.NoError(t, err)

	assert.False(t, res.CompletionChanged)
	assert.Equal(t, progress.Completion(80), res.Record.CompletionPercentage)
	assert.Equal(t, progress.Minutes(10), res.Record.TotalTimeSpent)
}

func TestUpsertProgressAllowsRegressionWhenRequested(t *testing.T) {
	handler, _, _, _ := newUpsertFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(80),
	})
	require.NoError(t, err)

	res, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(60), AllowRegression: true,
	})
	require.NoError(t, err)

	assert.True(t, res.CompletionChanged)
	assert.Equal(t, progress.Completion(60), res.Record.CompletionPercentage)
}

func TestUpsertProgressCompletionIssuesCertificate(t *testing.T) {
	handler, store, _, pub := newUpsertFixture()
	ctx := context.Background()

	res, err := handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(100),
	})
	require.NoError(t, err)

	assert.True(t, res.JustCompleted)
	require.NotNil(t, res.Certificate)
	assert.True(t, res.Certificate.IsValid)
	assert.Equal(t, 1, store.validCertificates(progress.Pair{UserID: 42, CourseID: 7}))
	assert.Equal(t, []shared.EventType{
		shared.EventProgressUpdated,
		shared.EventProgressCompleted,
		shared.EventCertificateIssued,
	}, pub.types())

	// Repeating the update at 100% is idempotent: no second transition,
	// no second certificate.
	res, err = handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(100),
	})
	require.NoError(t, err)

	assert.False(t, res.JustCompleted)
	assert.Nil(t, res.Certificate)
	assert.Equal(t, 1, store.validCertificates(progress.Pair{UserID: 42, CourseID: 7}))
}

func TestUpsertProgressRetriesLostCreateRace(t *testing.T) {
	handler, store, _, _ := newUpsertFixture()
	store.failCreateRecords = 1

	// The insert loses to a concurrent first write; the retry must find
	// the winner's row and update it instead of surfacing a conflict.
	res, err := handler.Handle(context.Background(), UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(30), TimeSpentDelta: 15,
	})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.GreaterOrEqual(t, store.beginCount, 2)
	assert.Equal(t, progress.Completion(30), res.Record.CompletionPercentage)
	assert.Equal(t, progress.Minutes(15), res.Record.TotalTimeSpent)

	stored := store.records[progress.Pair{UserID: 42, CourseID: 7}]
	require.NotNil(t, stored)
	assert.Equal(t, progress.Completion(30), stored.CompletionPercentage)
	assert.Len(t, store.records, 1)
}

func TestUpsertProgressValidation(t *testing.T) {
	handler, _, _, _ := newUpsertFixture()
	ctx := context.Background()

	_, err := handler.Handle(ctx, UpsertProgressCommand{UserID: 0, CourseID: 7})
	assert.True(t, shared.IsValidation(err))

	_, err = handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, CompletionPercentage: pct(150),
	})
	assert.True(t, shared.IsValidation(err))

	_, err = handler.Handle(ctx, UpsertProgressCommand{
		UserID: 42, CourseID: 7, TimeSpentDelta: -5,
	})
	assert.True(t, shared.IsValidation(err))
}
