package query

import (
	"context"
	"errors"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// fakeReadModel serves canned rows and counts how often it is consulted.
type fakeReadModel struct {
	userRows    analytics.UserRows
	courseRows  analytics.CourseRows
	totals      analytics.ServiceTotals
	userCalls   int
	courseCalls int
}

func (m *fakeReadModel) UserRows(ctx context.Context, userID progress.UserID) (analytics.UserRows, error) {
	m.userCalls++
	return m.userRows, nil
}

func (m *fakeReadModel) CourseRows(ctx context.Context, courseID progress.CourseID) (analytics.CourseRows, error) {
	m.courseCalls++
	return m.courseRows, nil
}

func (m *fakeReadModel) ServiceTotals(ctx context.Context) (analytics.ServiceTotals, error) {
	return m.totals, nil
}

// fakeSnapCache is an in-memory snapshot cache with a switchable failure
// mode for exercising the degradation path.
type fakeSnapCache struct {
	users    map[progress.UserID]*analytics.UserSnapshot
	courses  map[progress.CourseID]*analytics.CourseSnapshot
	failing  bool
	setUsers int
}

func newFakeSnapCache() *fakeSnapCache {
	return &fakeSnapCache{
		users:   make(map[progress.UserID]*analytics.UserSnapshot),
		courses: make(map[progress.CourseID]*analytics.CourseSnapshot),
	}
}

var errCacheDown = errors.New("cache down")

func (c *fakeSnapCache) GetUser(ctx context.Context, userID progress.UserID) (*analytics.UserSnapshot, error) {
	if c.failing {
		return nil, errCacheDown
	}
	snap, ok := c.users[userID]
	if !ok {
		return nil, analytics.ErrSnapshotMiss
	}
	return snap, nil
}

func (c *fakeSnapCache) SetUser(ctx context.Context, snap *analytics.UserSnapshot) error {
	if c.failing {
		return errCacheDown
	}
	c.setUsers++
	c.users[progress.UserID(snap.UserID)] = snap
	return nil
}

func (c *fakeSnapCache) GetCourse(ctx context.Context, courseID progress.CourseID) (*analytics.CourseSnapshot, error) {
	if c.failing {
		return nil, errCacheDown
	}
	snap, ok := c.courses[courseID]
	if !ok {
		return nil, analytics.ErrSnapshotMiss
	}
	return snap, nil
}

func (c *fakeSnapCache) SetCourse(ctx context.Context, snap *analytics.CourseSnapshot) error {
	if c.failing {
		return errCacheDown
	}
	c.courses[progress.CourseID(snap.CourseID)] = snap
	return nil
}

func (c *fakeSnapCache) Invalidate(ctx context.Context, kind analytics.SnapshotKind, id int64) error {
	if c.failing {
		return errCacheDown
	}
	switch kind {
	case analytics.KindUser:
		delete(c.users, progress.UserID(id))
	case analytics.KindCourse:
		delete(c.courses, progress.CourseID(id))
	}
	return nil
}

// fakeProgressRepo serves a fixed record set for one user.
type fakeProgressRepo struct {
	records []*progress.ProgressRecord
}

func (r *fakeProgressRepo) Create(ctx context.Context, rec *progress.ProgressRecord) error {
	return nil
}

func (r *fakeProgressRepo) GetByPair(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	for _, rec := range r.records {
		if rec.Pair() == pair {
			return rec, nil
		}
	}
	return nil, shared.ErrProgressNotFound
}

func (r *fakeProgressRepo) GetByPairForUpdate(ctx context.Context, pair progress.Pair) (*progress.ProgressRecord, error) {
	return r.GetByPair(ctx, pair)
}

func (r *fakeProgressRepo) Update(ctx context.Context, rec *progress.ProgressRecord) error {
	return nil
}

func (r *fakeProgressRepo) ListByUser(ctx context.Context, userID progress.UserID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	var matched []*progress.ProgressRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			matched = append(matched, rec)
		}
	}
	if opts.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (r *fakeProgressRepo) ListByCourse(ctx context.Context, courseID progress.CourseID, opts progress.ListOptions) ([]*progress.ProgressRecord, error) {
	return nil, nil
}

func (r *fakeProgressRepo) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeProgressRepo) Count(ctx context.Context) (int, error) {
	return len(r.records), nil
}

// fakeAssessmentRepo serves a fixed result set.
type fakeAssessmentRepo struct {
	results []*progress.AssessmentResult
}

func (r *fakeAssessmentRepo) Create(ctx context.Context, res *progress.AssessmentResult) error {
	return nil
}

func (r *fakeAssessmentRepo) CountAttempts(ctx context.Context, key progress.AttemptKey) (int, error) {
	return 0, nil
}

func (r *fakeAssessmentRepo) ListByProgress(ctx context.Context, progressID string) ([]*progress.AssessmentResult, error) {
	return nil, nil
}

func (r *fakeAssessmentRepo) ListByUserCourse(ctx context.Context, userID progress.UserID, courseID progress.CourseID) ([]*progress.AssessmentResult, error) {
	var out []*progress.AssessmentResult
	for _, res := range r.results {
		if res.UserID == userID && res.CourseID == courseID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeAssessmentRepo) CountByUser(ctx context.Context, userID progress.UserID) (int, error) {
	return len(r.results), nil
}

func (r *fakeAssessmentRepo) Count(ctx context.Context) (int, error) {
	return len(r.results), nil
}

// fakeCertRepo serves a fixed certificate set.
type fakeCertRepo struct {
	certs []*progress.Certificate
}

func (r *fakeCertRepo) Create(ctx context.Context, cert *progress.Certificate) error {
	return nil
}

func (r *fakeCertRepo) GetValidByPair(ctx context.Context, pair progress.Pair) (*progress.Certificate, error) {
	return nil, shared.ErrCertificateNotFound
}

func (r *fakeCertRepo) InvalidatePair(ctx context.Context, pair progress.Pair) (int, error) {
	return 0, nil
}

func (r *fakeCertRepo) ListByUser(ctx context.Context, userID progress.UserID) ([]*progress.Certificate, error) {
	var out []*progress.Certificate
	for _, c := range r.certs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCertRepo) Count(ctx context.Context) (int, error) {
	return len(r.certs), nil
}
