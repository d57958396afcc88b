package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/progress-service/internal/domain/progress"
)

func record(t *testing.T, courseID int64, pct float64, spent int) *progress.ProgressRecord {
	t.Helper()
	rec, err := progress.NewProgressRecord(progress.NewProgressRecordParams{
		ID:         "rec-1",
		Pair:       progress.Pair{UserID: 42, CourseID: progress.CourseID(courseID)},
		Completion: progress.Completion(pct),
		TimeSpent:  progress.Minutes(spent),
	})
	require.NoError(t, err)
	return rec
}

func TestComputeUserSnapshotEmpty(t *testing.T) {
	now := time.Now().UTC()
	snap := ComputeUserSnapshot(42, nil, nil, 0, now)

	assert.Equal(t, int64(42), snap.UserID)
	assert.Zero(t, snap.TotalCoursesEnrolled)
	assert.Zero(t, snap.AverageCompletionRate)
	assert.Zero(t, snap.CompletionRatePercentage)
	assert.Zero(t, snap.AverageAssessmentScore)
	assert.Equal(t, now, snap.GeneratedAt)
}

func TestComputeUserSnapshot(t *testing.T) {
	now := time.Now().UTC()
	records := []*progress.ProgressRecord{
		record(t, 1, 100, 300),
		record(t, 2, 50, 120),
		record(t, 3, 25.5, 30),
	}
	results := []*progress.AssessmentResult{
		{PercentageScore: 85},
		{PercentageScore: 92.5},
	}

	snap := ComputeUserSnapshot(42, records, results, 1, now)

	assert.Equal(t, 3, snap.TotalCoursesEnrolled)
	assert.Equal(t, 1, snap.CompletedCourses)
	assert.Equal(t, 450, snap.TotalTimeSpentMinutes)
	assert.Equal(t, 1, snap.CertificatesEarned)
	assert.Equal(t, 2, snap.TotalAssessmentsTaken)

	// (100 + 50 + 25.5) / 3 = 58.5
	assert.Equal(t, 58.5, snap.AverageCompletionRate)
	// 1 of 3 completed, rounded to one decimal.
	assert.Equal(t, 33.3, snap.CompletionRatePercentage)
	// (85 + 92.5) / 2 = 88.75 -> 88.8
	assert.Equal(t, 88.8, snap.AverageAssessmentScore)
}

func TestComputeCourseSnapshotEmpty(t *testing.T) {
	snap := ComputeCourseSnapshot(7, nil, 0, time.Now().UTC())

	assert.Equal(t, int64(7), snap.CourseID)
	assert.Zero(t, snap.TotalEnrollments)
	assert.Zero(t, snap.CompletionRatePercentage)
	assert.Zero(t, snap.AverageTimePerStudent)
	assert.Zero(t, snap.ProgressDistribution.Total())
}

func TestComputeCourseSnapshot(t *testing.T) {
	now := time.Now().UTC()
	records := []*progress.ProgressRecord{
		record(t, 7, 10, 20),
		record(t, 7, 40, 60),
		record(t, 7, 75, 90),
		record(t, 7, 100, 130),
	}

	snap := ComputeCourseSnapshot(7, records, 2, now)

	assert.Equal(t, 4, snap.TotalEnrollments)
	assert.Equal(t, 1, snap.CompletedStudents)
	assert.Equal(t, 2, snap.CertificatesIssued)
	assert.Equal(t, 300, snap.TotalTimeSpentMinutes)
	assert.Equal(t, 25.0, snap.CompletionRatePercentage)
	// (10 + 40 + 75 + 100) / 4 = 56.25 -> 56.3
	assert.Equal(t, 56.3, snap.AverageProgressPercentage)
	assert.Equal(t, 75.0, snap.AverageTimePerStudent)

	dist := snap.ProgressDistribution
	assert.Equal(t, 1, dist.Bucket0To25)
	assert.Equal(t, 1, dist.Bucket25To50)
	assert.Equal(t, 0, dist.Bucket50To75)
	assert.Equal(t, 2, dist.Bucket75To100)
	assert.Equal(t, snap.TotalEnrollments, dist.Total())
}

func TestDistributionBoundaries(t *testing.T) {
	var d Distribution
	for _, v := range []float64{0, 24.9, 25, 49.9, 50, 74.9, 75, 99.9, 100} {
		d.Add(v)
	}

	assert.Equal(t, 2, d.Bucket0To25)
	assert.Equal(t, 2, d.Bucket25To50)
	assert.Equal(t, 2, d.Bucket50To75)
	assert.Equal(t, 3, d.Bucket75To100)
	assert.Equal(t, 9, d.Total())
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 33.3, Round1(33.333333))
	assert.Equal(t, 88.8, Round1(88.75))
	assert.Equal(t, 100.0, Round1(99.96))
	assert.Equal(t, 0.0, Round1(0))
}
