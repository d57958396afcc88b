package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/circuitbreaker"
)

func makeRecord(t *testing.T, id string, userID, courseID int64, pct float64, spent int) *progress.ProgressRecord {
	t.Helper()
	rec, err := progress.NewProgressRecord(progress.NewProgressRecordParams{
		ID:         id,
		Pair:       progress.Pair{UserID: progress.UserID(userID), CourseID: progress.CourseID(courseID)},
		Completion: progress.Completion(pct),
		TimeSpent:  progress.Minutes(spent),
	})
	require.NoError(t, err)
	return rec
}

func TestGetUserAnalyticsMissComputesAndCaches(t *testing.T) {
	readModel := &fakeReadModel{
		userRows: analytics.UserRows{
			Records: []*progress.ProgressRecord{
				makeRecord(t, "r1", 42, 1, 100, 300),
				makeRecord(t, "r2", 42, 2, 50, 100),
			},
			Results:           []*progress.AssessmentResult{{PercentageScore: 90}},
			ValidCertificates: 1,
		},
	}
	cache := newFakeSnapCache()
	handler := NewGetUserAnalyticsHandler(readModel, cache, circuitbreaker.CacheBreaker(nil))
	ctx := context.Background()

	snap, err := handler.Handle(ctx, GetUserAnalyticsQuery{UserID: 42})
	require.NoError(t, err)

	assert.Equal(t, int64(42), snap.UserID)
	assert.Equal(t, 2, snap.TotalCoursesEnrolled)
	assert.Equal(t, 1, snap.CompletedCourses)
	assert.Equal(t, 400, snap.TotalTimeSpentMinutes)
	assert.Equal(t, 75.0, snap.AverageCompletionRate)
	assert.Equal(t, 90.0, snap.AverageAssessmentScore)
	assert.Equal(t, 1, readModel.userCalls)
	assert.Equal(t, 1, cache.setUsers)

	// Second read is served from the cache.
	again, err := handler.Handle(ctx, GetUserAnalyticsQuery{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, snap.GeneratedAt, again.GeneratedAt)
	assert.Equal(t, 1, readModel.userCalls)
}

func TestGetUserAnalyticsColdMissesKeepBreakerClosed(t *testing.T) {
	readModel := &fakeReadModel{}
	cache := newFakeSnapCache()
	breaker := circuitbreaker.CacheBreaker(nil)
	handler := NewGetUserAnalyticsHandler(readModel, cache, breaker)
	ctx := context.Background()

	for id := int64(1); id <= 10; id++ {
		_, err := handler.Handle(ctx, GetUserAnalyticsQuery{UserID: id})
		require.NoError(t, err)
	}

	assert.True(t, breaker.IsClosed())
}

func TestGetUserAnalyticsDegradesWhenCacheFails(t *testing.T) {
	readModel := &fakeReadModel{
		userRows: analytics.UserRows{
			Records: []*progress.ProgressRecord{makeRecord(t, "r1", 42, 1, 30, 60)},
		},
	}
	cache := newFakeSnapCache()
	cache.failing = true
	breaker := circuitbreaker.CacheBreaker(nil)
	handler := NewGetUserAnalyticsHandler(readModel, cache, breaker)
	ctx := context.Background()

	// Every read succeeds from the store while the cache is down.
	for i := 0; i < 5; i++ {
		snap, err := handler.Handle(ctx, GetUserAnalyticsQuery{UserID: 42})
		require.NoError(t, err)
		assert.Equal(t, 1, snap.TotalCoursesEnrolled)
	}

	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 5, readModel.userCalls)

	// Reads keep working with the breaker open.
	snap, err := handler.Handle(ctx, GetUserAnalyticsQuery{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalTimeSpentMinutes)
}

func TestGetUserAnalyticsValidation(t *testing.T) {
	handler := NewGetUserAnalyticsHandler(&fakeReadModel{}, newFakeSnapCache(), circuitbreaker.CacheBreaker(nil))

	_, err := handler.Handle(context.Background(), GetUserAnalyticsQuery{UserID: 0})
	assert.True(t, shared.IsValidation(err))
}

func TestGetCourseAnalyticsMissComputesAndCaches(t *testing.T) {
	readModel := &fakeReadModel{
		courseRows: analytics.CourseRows{
			Records: []*progress.ProgressRecord{
				makeRecord(t, "r1", 1, 7, 100, 120),
				makeRecord(t, "r2", 2, 7, 20, 40),
				makeRecord(t, "r3", 3, 7, 60, 80),
			},
			CertificatesIssued: 1,
		},
	}
	cache := newFakeSnapCache()
	handler := NewGetCourseAnalyticsHandler(readModel, cache, circuitbreaker.CacheBreaker(nil))
	ctx := context.Background()

	snap, err := handler.Handle(ctx, GetCourseAnalyticsQuery{CourseID: 7})
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.CourseID)
	assert.Equal(t, 3, snap.TotalEnrollments)
	assert.Equal(t, 1, snap.CompletedStudents)
	assert.Equal(t, 33.3, snap.CompletionRatePercentage)
	assert.Equal(t, 60.0, snap.AverageProgressPercentage)
	assert.Equal(t, 80.0, snap.AverageTimePerStudent)
	assert.Equal(t, 1, snap.CertificatesIssued)
	assert.Equal(t, 3, snap.ProgressDistribution.Total())

	_, err = handler.Handle(ctx, GetCourseAnalyticsQuery{CourseID: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, readModel.courseCalls)
}

func TestGetCourseAnalyticsValidation(t *testing.T) {
	handler := NewGetCourseAnalyticsHandler(&fakeReadModel{}, newFakeSnapCache(), circuitbreaker.CacheBreaker(nil))

	_, err := handler.Handle(context.Background(), GetCourseAnalyticsQuery{CourseID: -1})
	assert.True(t, shared.IsValidation(err))
}
