package analytics

import (
	"math"
	"time"

	"github.com/edulearn/progress-service/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS SNAPSHOTS
// Derived, cache-resident results with no independent durability. A snapshot
// is a pure function of the progress, assessment, and certificate rows for
// one subject; it stays valid until the mutation path invalidates it.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotKind discriminates cache entries by subject type.
type SnapshotKind string

const (
	KindUser   SnapshotKind = "user"
	KindCourse SnapshotKind = "course"
)

// UserSnapshot aggregates one user's standing across all courses.
// All percentage fields are rounded to one decimal place.
type UserSnapshot struct {
	UserID                   int64     `json:"user_id"`
	TotalCoursesEnrolled     int       `json:"total_courses_enrolled"`
	CompletedCourses         int       `json:"completed_courses"`
	AverageCompletionRate    float64   `json:"average_completion_rate"`
	TotalTimeSpentMinutes    int       `json:"total_time_spent_minutes"`
	TotalAssessmentsTaken    int       `json:"total_assessments_taken"`
	AverageAssessmentScore   float64   `json:"average_assessment_score"`
	CertificatesEarned       int       `json:"certificates_earned"`
	CompletionRatePercentage float64   `json:"completion_rate_percentage"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// CourseSnapshot aggregates one course's standing across all enrolled users.
type CourseSnapshot struct {
	CourseID                  int64        `json:"course_id"`
	TotalEnrollments          int          `json:"total_enrollments"`
	CompletedStudents         int          `json:"completed_students"`
	CompletionRatePercentage  float64      `json:"completion_rate_percentage"`
	AverageProgressPercentage float64      `json:"average_progress_percentage"`
	TotalTimeSpentMinutes     int          `json:"total_time_spent_minutes"`
	AverageTimePerStudent     float64      `json:"average_time_per_student"`
	CertificatesIssued        int          `json:"certificates_issued"`
	ProgressDistribution      Distribution `json:"progress_distribution"`
	GeneratedAt               time.Time    `json:"generated_at"`
}

// Distribution partitions enrollments into four completion buckets.
// Counts always sum to the course's total enrollments.
type Distribution struct {
	Bucket0To25   int `json:"0-25"`
	Bucket25To50  int `json:"25-50"`
	Bucket50To75  int `json:"50-75"`
	Bucket75To100 int `json:"75-100"`
}

// Add places one completion value into its bucket. Boundary values belong
// to the lower-inclusive bucket, except 100 which belongs to the top one.
func (d *Distribution) Add(completion float64) {
	switch {
	case completion < 25:
		d.Bucket0To25++
	case completion < 50:
		d.Bucket25To50++
	case completion < 75:
		d.Bucket50To75++
	default:
		d.Bucket75To100++
	}
}

// Total returns the sum of all bucket counts.
func (d Distribution) Total() int {
	return d.Bucket0To25 + d.Bucket25To50 + d.Bucket50To75 + d.Bucket75To100
}

// Round1 rounds to one decimal place. Applied at the output boundary only;
// intermediate accumulation stays unrounded.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ══════════════════════════════════════════════════════════════════════════════
// PURE AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// ComputeUserSnapshot builds a user snapshot from the user's rows.
// Empty inputs yield zero values, never division errors.
func ComputeUserSnapshot(
	userID progress.UserID,
	records []*progress.ProgressRecord,
	results []*progress.AssessmentResult,
	validCertificates int,
	now time.Time,
) UserSnapshot {
	snap := UserSnapshot{
		UserID:             int64(userID),
		CertificatesEarned: validCertificates,
		GeneratedAt:        now,
	}

	var completionSum float64
	for _, rec := range records {
		snap.TotalCoursesEnrolled++
		snap.TotalTimeSpentMinutes += int(rec.TotalTimeSpent)
		completionSum += float64(rec.CompletionPercentage)
		if rec.CompletionPercentage.IsComplete() {
			snap.CompletedCourses++
		}
	}

	var scoreSum float64
	for _, res := range results {
		snap.TotalAssessmentsTaken++
		scoreSum += res.PercentageScore
	}

	if snap.TotalCoursesEnrolled > 0 {
		snap.AverageCompletionRate = Round1(completionSum / float64(snap.TotalCoursesEnrolled))
		snap.CompletionRatePercentage = Round1(float64(snap.CompletedCourses) / float64(snap.TotalCoursesEnrolled) * 100)
	}
	if snap.TotalAssessmentsTaken > 0 {
		snap.AverageAssessmentScore = Round1(scoreSum / float64(snap.TotalAssessmentsTaken))
	}

	return snap
}

// ComputeCourseSnapshot builds a course snapshot from the course's rows.
func ComputeCourseSnapshot(
	courseID progress.CourseID,
	records []*progress.ProgressRecord,
	certificatesIssued int,
	now time.Time,
) CourseSnapshot {
	snap := CourseSnapshot{
		CourseID:           int64(courseID),
		CertificatesIssued: certificatesIssued,
		GeneratedAt:        now,
	}

	var completionSum float64
	for _, rec := range records {
		snap.TotalEnrollments++
		snap.TotalTimeSpentMinutes += int(rec.TotalTimeSpent)
		completionSum += float64(rec.CompletionPercentage)
		snap.ProgressDistribution.Add(float64(rec.CompletionPercentage))
		if rec.CompletionPercentage.IsComplete() {
			snap.CompletedStudents++
		}
	}

	if snap.TotalEnrollments > 0 {
		snap.AverageProgressPercentage = Round1(completionSum / float64(snap.TotalEnrollments))
		snap.CompletionRatePercentage = Round1(float64(snap.CompletedStudents) / float64(snap.TotalEnrollments) * 100)
		snap.AverageTimePerStudent = Round1(float64(snap.TotalTimeSpentMinutes) / float64(snap.TotalEnrollments))
	}

	return snap
}
