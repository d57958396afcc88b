// Package jobs contains the scheduled jobs of the progress service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edulearn/progress-service/internal/application/query"
	"github.com/edulearn/progress-service/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SNAPSHOTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ActivityLister reports which subjects have seen recent progress
// activity, so only snapshots that are actually read get re-warmed.
type ActivityLister interface {
	// ActiveCourses returns course IDs with progress activity since the
	// given time, most recently active first.
	ActiveCourses(ctx context.Context, since time.Time, limit int) ([]progress.CourseID, error)

	// ActiveUsers returns user IDs with progress activity since the
	// given time, most recently active first.
	ActiveUsers(ctx context.Context, since time.Time, limit int) ([]progress.UserID, error)
}

// RefreshSnapshotsConfig contains configuration for RefreshSnapshotsJob.
type RefreshSnapshotsConfig struct {
	// ActivityWindow is how far back to look for active subjects.
	ActivityWindow time.Duration

	// MaxCourses caps the number of course snapshots warmed per run.
	MaxCourses int

	// MaxUsers caps the number of user snapshots warmed per run.
	MaxUsers int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultRefreshSnapshotsConfig returns sensible defaults.
func DefaultRefreshSnapshotsConfig() RefreshSnapshotsConfig {
	return RefreshSnapshotsConfig{
		ActivityWindow: 15 * time.Minute,
		MaxCourses:     50,
		MaxUsers:       200,
		Logger:         slog.Default(),
	}
}

// RefreshSnapshotsJob re-warms analytics snapshots for recently active
// users and courses. Warming goes through the regular query handlers,
// so a snapshot that is still cached costs one cache read and a
// missing one is computed and stored exactly like an API request
// would. This keeps hot analytics reads off the cold path after a
// cache entry expires.
type RefreshSnapshotsJob struct {
	activity  ActivityLister
	userQuery *query.GetUserAnalyticsHandler
	course    *query.GetCourseAnalyticsHandler
	config    RefreshSnapshotsConfig
	logger    *slog.Logger
}

// NewRefreshSnapshotsJob creates the snapshot refresh job.
func NewRefreshSnapshotsJob(
	activity ActivityLister,
	userQuery *query.GetUserAnalyticsHandler,
	course *query.GetCourseAnalyticsHandler,
	config RefreshSnapshotsConfig,
) *RefreshSnapshotsJob {
	if config.ActivityWindow <= 0 {
		config.ActivityWindow = 15 * time.Minute
	}
	if config.MaxCourses <= 0 {
		config.MaxCourses = 50
	}
	if config.MaxUsers <= 0 {
		config.MaxUsers = 200
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RefreshSnapshotsJob{
		activity:  activity,
		userQuery: userQuery,
		course:    course,
		config:    config,
		logger:    config.Logger,
	}
}

// Name returns the unique name of the job.
func (j *RefreshSnapshotsJob) Name() string {
	return "refresh_snapshots"
}

// Description returns a human-readable description of the job.
func (j *RefreshSnapshotsJob) Description() string {
	return "Re-warms analytics snapshots for recently active users and courses"
}

// Run executes the job.
func (j *RefreshSnapshotsJob) Run(ctx context.Context) error {
	since := time.Now().Add(-j.config.ActivityWindow)

	courses, err := j.activity.ActiveCourses(ctx, since, j.config.MaxCourses)
	if err != nil {
		return fmt.Errorf("list active courses: %w", err)
	}

	users, err := j.activity.ActiveUsers(ctx, since, j.config.MaxUsers)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	var warmed, failed int

	for _, courseID := range courses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := j.course.Handle(ctx, query.GetCourseAnalyticsQuery{CourseID: int64(courseID)}); err != nil {
			failed++
			j.logger.Warn("course snapshot warm failed",
				"course_id", int64(courseID),
				"error", err,
			)
			continue
		}
		warmed++
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := j.userQuery.Handle(ctx, query.GetUserAnalyticsQuery{UserID: int64(userID)}); err != nil {
			failed++
			j.logger.Warn("user snapshot warm failed",
				"user_id", int64(userID),
				"error", err,
			)
			continue
		}
		warmed++
	}

	j.logger.Info("snapshot refresh finished",
		"window", j.config.ActivityWindow.String(),
		"courses", len(courses),
		"users", len(users),
		"warmed", warmed,
		"failed", failed,
	)

	return nil
}
