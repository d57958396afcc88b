package query

import (
	"context"
	"errors"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE ANALYTICS QUERY
// Cache-first read of one course's aggregate standing, including the
// four-bucket completion distribution.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseAnalyticsQuery contains the parameters for a course analytics read.
type GetCourseAnalyticsQuery struct {
	// CourseID identifies the course.
	CourseID int64
}

// Validate validates the query.
func (q GetCourseAnalyticsQuery) Validate() error {
	if q.CourseID <= 0 {
		return shared.ErrInvalidID
	}
	return nil
}

// GetCourseAnalyticsHandler handles the GetCourseAnalyticsQuery.
type GetCourseAnalyticsHandler struct {
	readModel analytics.ReadModel
	cache     analytics.SnapshotCache
	breaker   *circuitbreaker.CircuitBreaker
}

// NewGetCourseAnalyticsHandler creates a new GetCourseAnalyticsHandler.
func NewGetCourseAnalyticsHandler(
	readModel analytics.ReadModel,
	cache analytics.SnapshotCache,
	breaker *circuitbreaker.CircuitBreaker,
) *GetCourseAnalyticsHandler {
	return &GetCourseAnalyticsHandler{
		readModel: readModel,
		cache:     cache,
		breaker:   breaker,
	}
}

// Handle executes the course analytics query.
func (h *GetCourseAnalyticsHandler) Handle(ctx context.Context, query GetCourseAnalyticsQuery) (*analytics.CourseSnapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCourseAnalytics", shared.ErrValidation, "invalid course id", err)
	}

	courseID := progress.CourseID(query.CourseID)

	// A plain miss is a healthy response and must not count against the
	// breaker; only transport failures do.
	var cached *analytics.CourseSnapshot
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		snap, err := h.cache.GetCourse(ctx, courseID)
		if err != nil && !errors.Is(err, analytics.ErrSnapshotMiss) {
			return err
		}
		cached = snap
		return nil
	})
	if err == nil && cached != nil {
		return cached, nil
	}
	// Miss, open breaker, or cache failure: degrade to a direct read.

	rows, err := h.readModel.CourseRows(ctx, courseID)
	if err != nil {
		return nil, err
	}

	snap := analytics.ComputeCourseSnapshot(courseID, rows.Records, rows.CertificatesIssued, time.Now().UTC())

	_ = h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.SetCourse(ctx, &snap)
	})

	return &snap, nil
}
