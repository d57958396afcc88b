package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// memStore is an in-memory record store exercised through the unit of
// work interfaces. Commit is a no-op; writes land immediately.
type memStore struct {
	mu       sync.Mutex
	records  map[progress.Pair]*progress.ProgressRecord
	attempts map[progress.AttemptKey][]*progress.AssessmentResult
	certs    []*progress.Certificate

	beginCount int

	// failCreateAttempts makes the next N assessment inserts fail with
	// a duplicate-attempt conflict, simulating a racing writer.
	failCreateAttempts int

	// failCreateRecords makes the next N record inserts lose the
	// first-write race: the winner's row lands in the store and the
	// insert reports already-exists.
	failCreateRecords int
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[progress.Pair]*progress.ProgressRecord),
		attempts: make(map[progress.AttemptKey][]*progress.AssessmentResult),
	}
}

func (s *memStore) Begin(ctx context.Context) (progress.UnitOfWork, error) {
	s.mu.Lock()
	s.beginCount++
	s.mu.Unlock()
	return &memUOW{store: s}, nil
}

func (s *memStore) validCertificates(pair progress.Pair) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.certs {
		if c.UserID == pair.UserID && c.CourseID == pair.CourseID && c.IsValid {
			n++
		}
	}
	return n
}

type memUOW struct {
	store *memStore
}

func (u *memUOW) Progress() progress.Repository                { return (*memProgressRepo)(u) }
func (u *memUOW) Assessments() progress.AssessmentRepository   { return (*memAssessmentRepo)(u) }
func (u *memUOW) Certificates() progress.CertificateRepository { return (*memCertificateRepo)(u) }
func (u *memUOW) Commit(ctx context.Context) error             { return nil }
func (u *memUOW) Rollback(ctx context.Context) error           { return nil }

type memProgressRepo memUOW

func (r *memProgressRepo) Create(ctx context.Context, rec *progress.ProgressRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := rec.Pair()
	if s.failCreateRecords > 0 {
		s.failCreateRecords--
		winner, err := progress.NewProgressRecord(progress.NewProgressRecordParams{
			ID:   "winner-" + rec.ID,
			Pair: pair,
		})
		if err != nil {
			return err
		}
		s.records[pair] = winner
		return shared.ErrProgressAlreadyExists
	}
	if _, ok := s.records[pair]; ok {
		return shared.ErrProgressAlreadyExists
	}
	s.records[pair] = rec.Clone()
	return nil
}

func (r *memProgressRepo) GetByPair(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[pair]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return rec.Clone(), nil
}

func (r *memProgressRepo) GetByPairForUpdate(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	return r.GetByPair(ctx, pair)
}

func (r *memProgressRepo) Update(ctx context.Context, rec *progress.ProgressRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := rec.Pair()
	if _, ok := s.records[pair]; !ok {
		return shared.ErrProgressNotFound
	}
	s.records[pair] = rec.Clone()
	return nil
}

func (r *memProgressRepo) ListByUser(ctx context.Context, userID progress.UserID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.ProgressRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *memProgressRepo) ListByCourse(ctx context.Context, courseID progress.CourseID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.ProgressRecord
	for _, rec := range s.records {
		if rec.CourseID == courseID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *memProgressRepo) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	recs, _ := r.ListByUser(ctx, userID, progress.ListOptions{})
	return len(recs), nil
}

func (r *memProgressRepo) Count(ctx context.Context) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

type memAssessmentRepo memUOW

func (r *memAssessmentRepo) Create(ctx context.Context, res *progress.AssessmentResult) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateAttempts > 0 {
		s.failCreateAttempts--
		return shared.ErrDuplicateAttempt
	}
	key := res.Key()
	for _, existing := range s.attempts[key] {
		if existing.AttemptNumber == res.AttemptNumber {
			return shared.ErrDuplicateAttempt
		}
	}
	s.attempts[key] = append(s.attempts[key], res)
	return nil
}

func (r *memAssessmentRepo) CountAttempts(ctx context.Context, key progress.AttemptKey) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts[key]), nil
}

func (r *memAssessmentRepo) ListByProgress(ctx context.Context, progressID string) ([]*progress.AssessmentResult, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.AssessmentResult
	for _, results := range s.attempts {
		for _, res := range results {
			if res.ProgressID == progressID {
				out = append(out, res)
			}
		}
	}
	return out, nil
}

func (r *memAssessmentRepo) ListByUserCourse(ctx context.Context, userID progress.UserID, courseID progress.CourseID) ([]*progress.AssessmentResult, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.AssessmentResult
	for _, results := range s.attempts {
		for _, res := range results {
			if res.UserID == userID && res.CourseID == courseID {
				out = append(out, res)
			}
		}
	}
	return out, nil
}

func (r *memAssessmentRepo) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, results := range s.attempts {
		for _, res := range results {
			if res.UserID == userID {
				n++
			}
		}
	}
	return n, nil
}

func (r *memAssessmentRepo) Count(ctx context.Context) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, results := range s.attempts {
		n += len(results)
	}
	return n, nil
}

type memCertificateRepo memUOW

func (r *memCertificateRepo) Create(ctx context.Context, cert *progress.Certificate) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs = append(s.certs, cert)
	return nil
}

func (r *memCertificateRepo) GetValidByPair(ctx context.Context, pair progress.Pair) (*progress.Certificate, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.UserID == pair.UserID && c.CourseID == pair.CourseID && c.IsValid {
			return c, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *memCertificateRepo) InvalidatePair(ctx context.Context, pair progress.Pair) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.certs {
		if c.UserID == pair.UserID && c.CourseID == pair.CourseID && c.IsValid {
			c.Invalidate()
			n++
		}
	}
	return n, nil
}

func (r *memCertificateRepo) ListByUser(ctx context.Context, userID progress.UserID) ([]*progress.Certificate, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.Certificate
	for _, c := range s.certs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCertificateRepo) Count(ctx context.Context) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.certs), nil
}

// fakeCache records invalidations; reads always miss.
type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *fakeCache) GetUser(ctx context.Context, userID progress.UserID) (*analytics.UserSnapshot, error) {
	return nil, analytics.ErrSnapshotMiss
}

func (c *fakeCache) SetUser(ctx context.Context, snap *analytics.UserSnapshot) error { return nil }

func (c *fakeCache) GetCourse(ctx context.Context, courseID progress.CourseID) (*analytics.CourseSnapshot, error) {
	return nil, analytics.ErrSnapshotMiss
}

func (c *fakeCache) SetCourse(ctx context.Context, snap *analytics.CourseSnapshot) error { return nil }

func (c *fakeCache) Invalidate(ctx context.Context, kind analytics.SnapshotKind, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, fmt.Sprintf("%s:%d", kind, id))
	return nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func pct(v float64) *float64 {
	return &v
}
