package eventhandler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// memoryStore is a minimal in-memory record store backing the real
// command handlers under test.
type memoryStore struct {
	records  map[progress.Pair]*progress.ProgressRecord
	attempts map[progress.AttemptKey][]*progress.AssessmentResult
	certs    []*progress.Certificate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:  make(map[progress.Pair]*progress.ProgressRecord),
		attempts: make(map[progress.AttemptKey][]*progress.AssessmentResult),
	}
}

func (s *memoryStore) Begin(ctx context.Context) (progress.UnitOfWork, error) {
	return &memoryUOW{store: s}, nil
}

type memoryUOW struct {
	store *memoryStore
}

func (u *memoryUOW) Progress() progress.Repository                { return u.store }
func (u *memoryUOW) Assessments() progress.AssessmentRepository   { return memoryAttempts{u.store} }
func (u *memoryUOW) Certificates() progress.CertificateRepository { return memoryCerts{u.store} }
func (u *memoryUOW) Commit(ctx context.Context) error             { return nil }
func (u *memoryUOW) Rollback(ctx context.Context) error           { return nil }

func (s *memoryStore) Create(ctx context.Context, rec *progress.ProgressRecord) error {
	if _, ok := s.records[rec.Pair()]; ok {
		return shared.ErrProgressAlreadyExists
	}
	s.records[rec.Pair()] = rec
	return nil
}

func (s *memoryStore) GetByPair(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	rec, ok := s.records[pair]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return rec, nil
}

func (s *memoryStore) GetByPairForUpdate(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	return s.GetByPair(ctx, pair)
}

func (s *memoryStore) Update(ctx context.Context, rec *progress.ProgressRecord) error {
	s.records[rec.Pair()] = rec
	return nil
}

func (s *memoryStore) ListByUser(ctx context.Context, userID progress.UserID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	return nil, nil
}

func (s *memoryStore) ListByCourse(ctx context.Context, courseID progress.CourseID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	return nil, nil
}

func (s *memoryStore) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	return len(s.records), nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	return 0, nil
}

// memoryAttempts exposes the assessment side of the store; its Create
// signature differs from the progress repository's.
type memoryAttempts struct {
	store *memoryStore
}

func (a memoryAttempts) Create(ctx context.Context, res *progress.AssessmentResult) error {
	key := res.Key()
	a.store.attempts[key] = append(a.store.attempts[key], res)
	return nil
}

func (a memoryAttempts) CountAttempts(ctx context.Context, key progress.AttemptKey) (int, error) {
	return len(a.store.attempts[key]), nil
}

func (a memoryAttempts) ListByProgress(ctx context.Context, progressID string) ([]*progress.AssessmentResult, error) {
	return nil, nil
}

func (a memoryAttempts) ListByUserCourse(ctx context.Context, userID progress.UserID, courseID progress.CourseID) ([]*progress.AssessmentResult, error) {
	return nil, nil
}

func (a memoryAttempts) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	return 0, nil
}

func (a memoryAttempts) Count(ctx context.Context) (int, error) {
	n := 0
	for _, results := range a.store.attempts {
		n += len(results)
	}
	return n, nil
}

// memoryCerts exposes the certificate side of the store; its ListByUser
// signature differs from the progress repository's.
type memoryCerts struct {
	store *memoryStore
}

func (c memoryCerts) Create(ctx context.Context, cert *progress.Certificate) error {
	c.store.certs = append(c.store.certs, cert)
	return nil
}

func (c memoryCerts) GetValidByPair(ctx context.Context, pair progress.Pair) (*progress.Certificate, error) {
	return nil, shared.ErrCertificateNotFound
}

func (c memoryCerts) InvalidatePair(ctx context.Context, pair progress.Pair) (int, error) {
	return 0, nil
}

func (c memoryCerts) ListByUser(ctx context.Context, userID progress.UserID) ([]*progress.Certificate, error) {
	return nil, nil
}

func (c memoryCerts) Count(ctx context.Context) (int, error) {
	return len(c.store.certs), nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(event shared.Event) error { return nil }

func newEnrollmentFixture() (*OnEnrollmentCreatedHandler, *memoryStore) {
	store := newMemoryStore()
	upsert := command.NewUpsertProgressHandler(store, analytics.NoopSnapshotCache{}, nopPublisher{}, "https://certs.test")
	return NewOnEnrollmentCreatedHandler(store, upsert, nil, DefaultEnrollmentCreatedConfig()), store
}

func TestOnEnrollmentCreatedSeedsRecord(t *testing.T) {
	handler, store := newEnrollmentFixture()

	err := handler.Handle(shared.NewEnrollmentCreatedEvent("enr-1", 42, 7))
	require.NoError(t, err)

	rec, ok := store.records[progress.Pair{UserID: 42, CourseID: 7}]
	require.True(t, ok)
	assert.Equal(t, progress.Completion(0), rec.CompletionPercentage)
	assert.Equal(t, progress.Minutes(0), rec.TotalTimeSpent)
}

func TestOnEnrollmentCreatedRedeliveryIsIdempotent(t *testing.T) {
	handler, store := newEnrollmentFixture()
	event := shared.NewEnrollmentCreatedEvent("enr-1", 42, 7)

	require.NoError(t, handler.Handle(event))
	firstID := store.records[progress.Pair{UserID: 42, CourseID: 7}].ID

	// Redelivery finds the record in place and leaves it untouched.
	require.NoError(t, handler.Handle(event))
	assert.Len(t, store.records, 1)
	assert.Equal(t, firstID, store.records[progress.Pair{UserID: 42, CourseID: 7}].ID)
}

func TestOnEnrollmentCreatedPreservesExistingProgress(t *testing.T) {
	handler, store := newEnrollmentFixture()

	rec, err := progress.NewProgressRecord(progress.NewProgressRecordParams{
		ID:         "existing",
		Pair:       progress.Pair{UserID: 42, CourseID: 7},
		Completion: 60,
		TimeSpent:  90,
	})
	require.NoError(t, err)
	store.records[rec.Pair()] = rec

	// The enrollment arrived after progress updates already landed.
	require.NoError(t, handler.Handle(shared.NewEnrollmentCreatedEvent("enr-late", 42, 7)))

	assert.Equal(t, progress.Completion(60), store.records[rec.Pair()].CompletionPercentage)
}

func TestOnEnrollmentCreatedIgnoresForeignEvent(t *testing.T) {
	handler, store := newEnrollmentFixture()

	err := handler.Handle(shared.NewAssessmentGradedEvent(42, 9, 7, 85, 100, 10))
	require.NoError(t, err)
	assert.Empty(t, store.records)
}

func newGradedFixture() (*OnAssessmentGradedHandler, *memoryStore) {
	store := newMemoryStore()
	record := command.NewRecordAssessmentHandler(store, analytics.NoopSnapshotCache{}, nopPublisher{})
	return NewOnAssessmentGradedHandler(record, nil, DefaultAssessmentGradedConfig()), store
}

func TestOnAssessmentGradedRecordsAttempt(t *testing.T) {
	handler, store := newGradedFixture()

	err := handler.Handle(shared.NewAssessmentGradedEvent(42, 9, 7, 85, 100, 20))
	require.NoError(t, err)

	key := progress.AttemptKey{UserID: 42, AssessmentID: 9}
	require.Len(t, store.attempts[key], 1)
	assert.Equal(t, 85.0, store.attempts[key][0].PercentageScore)
	assert.Equal(t, 1, store.attempts[key][0].AttemptNumber)

	// The attempt seeded the owning record and carried its study time.
	rec, ok := store.records[progress.Pair{UserID: 42, CourseID: 7}]
	require.True(t, ok)
	assert.Equal(t, progress.Minutes(20), rec.TotalTimeSpent)
}

func TestOnAssessmentGradedDropsMalformedEvent(t *testing.T) {
	handler, store := newGradedFixture()

	// A non-positive max score can never succeed; the handler acks it so
	// the transport does not redeliver forever.
	err := handler.Handle(shared.NewAssessmentGradedEvent(42, 9, 7, 85, 0, 20))
	require.NoError(t, err)
	assert.Empty(t, store.attempts)
}

func TestOnAssessmentGradedIgnoresForeignEvent(t *testing.T) {
	handler, store := newGradedFixture()

	err := handler.Handle(shared.NewEnrollmentCreatedEvent("enr-1", 42, 7))
	require.NoError(t, err)
	assert.Empty(t, store.attempts)
}
