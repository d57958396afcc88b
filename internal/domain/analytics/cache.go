package analytics

import (
	"context"
	"errors"

	"github.com/edulearn/progress-service/internal/domain/progress"
)

// ErrSnapshotMiss reports that the cache holds no usable entry for a key.
// Both an absent key and a stored-but-expired value surface as a miss;
// either way the caller recomputes and repopulates.
var ErrSnapshotMiss = errors.New("analytics: snapshot cache miss")

// SnapshotCache stores serialized snapshots keyed by (kind, subject id).
// TTL is a backstop for invalidations the event path might miss; the
// primary freshness mechanism is explicit invalidation from mutations.
type SnapshotCache interface {
	// GetUser returns the cached user snapshot or ErrSnapshotMiss.
	GetUser(ctx context.Context, userID progress.UserID) (*UserSnapshot, error)

	// SetUser stores a user snapshot.
	SetUser(ctx context.Context, snap *UserSnapshot) error

	// GetCourse returns the cached course snapshot or ErrSnapshotMiss.
	GetCourse(ctx context.Context, courseID progress.CourseID) (*CourseSnapshot, error)

	// SetCourse stores a course snapshot.
	SetCourse(ctx context.Context, snap *CourseSnapshot) error

	// Invalidate removes the entry for a subject unconditionally.
	// Absence of the key is not an error.
	Invalidate(ctx context.Context, kind SnapshotKind, subjectID int64) error
}

// NoopSnapshotCache is a SnapshotCache that never holds anything.
// Used when Redis is disabled; every read recomputes from the store.
type NoopSnapshotCache struct{}

// GetUser always reports a miss.
func (NoopSnapshotCache) GetUser(ctx context.Context, userID progress.UserID) (*UserSnapshot, error) {
	return nil, ErrSnapshotMiss
}

// SetUser discards the snapshot.
func (NoopSnapshotCache) SetUser(ctx context.Context, snap *UserSnapshot) error { return nil }

// GetCourse always reports a miss.
func (NoopSnapshotCache) GetCourse(ctx context.Context, courseID progress.CourseID) (*CourseSnapshot, error) {
	return nil, ErrSnapshotMiss
}

// SetCourse discards the snapshot.
func (NoopSnapshotCache) SetCourse(ctx context.Context, snap *CourseSnapshot) error { return nil }

// Invalidate is a no-op.
func (NoopSnapshotCache) Invalidate(ctx context.Context, kind SnapshotKind, subjectID int64) error {
	return nil
}

// ReadModel is the Aggregator's read-only view of the record store.
// It never writes; ownership of the rows stays with the mutation side.
type ReadModel interface {
	// UserRows fetches everything needed for a user snapshot.
	UserRows(ctx context.Context, userID progress.UserID) (UserRows, error)

	// CourseRows fetches everything needed for a course snapshot.
	CourseRows(ctx context.Context, courseID progress.CourseID) (CourseRows, error)

	// ServiceTotals returns store-wide row counts for the metrics endpoint.
	ServiceTotals(ctx context.Context) (ServiceTotals, error)
}

// UserRows is the raw input to ComputeUserSnapshot.
type UserRows struct {
	Records           []*progress.ProgressRecord
	Results           []*progress.AssessmentResult
	ValidCertificates int
}

// CourseRows is the raw input to ComputeCourseSnapshot.
type CourseRows struct {
	Records            []*progress.ProgressRecord
	CertificatesIssued int
}

// ServiceTotals are store-wide counters exposed on the metrics endpoint.
type ServiceTotals struct {
	ProgressRecords   int `json:"total_progress_records"`
	AssessmentResults int `json:"total_assessment_results"`
	Certificates      int `json:"total_certificates"`
}
