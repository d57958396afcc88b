package progress

import (
	"errors"
	"time"

	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT RESULT
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentID identifies an assessment in the course catalog.
type AssessmentID int64

// IsValid checks that the AssessmentID is positive.
func (a AssessmentID) IsValid() bool {
	return a > 0
}

// AttemptKey identifies the sequence of attempts one user made on one
// assessment. Attempt numbering is 1-based and strictly increasing per key.
type AttemptKey struct {
	UserID       UserID
	AssessmentID AssessmentID
}

// IsValid checks that both identifiers are valid.
func (k AttemptKey) IsValid() bool {
	return k.UserID.IsValid() && k.AssessmentID.IsValid()
}

// AssessmentResult is one graded attempt. Results are immutable once
// stored: percentage_score is computed at write time and never
// recomputed, so historical scores stay fixed even if business rules
// change later.
type AssessmentResult struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// UserID references the user who took the assessment.
	UserID UserID

	// AssessmentID references the assessment in the course catalog.
	AssessmentID AssessmentID

	// CourseID references the course the assessment belongs to.
	CourseID CourseID

	// Score is the raw score achieved.
	Score float64

	// MaxScore is the maximum achievable score and is always positive.
	MaxScore float64

	// PercentageScore is score/max_score*100, clamped to [0, 100].
	PercentageScore float64

	// AttemptNumber is 1 + the count of prior results for the same
	// AttemptKey. Never reused or renumbered.
	AttemptNumber int

	// CompletedAt is when the attempt finished.
	CompletedAt time.Time

	// TimeTaken is the duration of the attempt, in minutes.
	TimeTaken Minutes

	// ProgressID links to the owning ProgressRecord (created if absent).
	ProgressID string
}

// PercentageScore computes score/maxScore*100 clamped to [0, 100].
// Returns an error for a non-positive max score or negative score.
func PercentageScore(score, maxScore float64) (float64, error) {
	if maxScore <= 0 {
		return 0, shared.ErrInvalidMaxScore
	}
	if score < 0 {
		return 0, shared.ErrNegativeScore
	}

	pct := score / maxScore * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// NewAssessmentResultParams contains parameters for recording an attempt.
type NewAssessmentResultParams struct {
	ID            string
	Key           AttemptKey
	CourseID      CourseID
	Score         float64
	MaxScore      float64
	AttemptNumber int
	TimeTaken     Minutes
	ProgressID    string
	CompletedAt   time.Time
}

// NewAssessmentResult creates a result with validation of all fields.
// The percentage score is computed once, here.
func NewAssessmentResult(params NewAssessmentResultParams) (*AssessmentResult, error) {
	if params.ID == "" {
		return nil, errors.New("assessment result id is required")
	}
	if !params.Key.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if !params.CourseID.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if params.AttemptNumber < 1 {
		return nil, shared.ErrInvalidAttemptNumber
	}
	if !params.TimeTaken.IsValid() {
		return nil, shared.ErrNegativeTimeSpent
	}

	pct, err := PercentageScore(params.Score, params.MaxScore)
	if err != nil {
		return nil, err
	}

	completedAt := params.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	return &AssessmentResult{
		ID:              params.ID,
		UserID:          params.Key.UserID,
		AssessmentID:    params.Key.AssessmentID,
		CourseID:        params.CourseID,
		Score:           params.Score,
		MaxScore:        params.MaxScore,
		PercentageScore: pct,
		AttemptNumber:   params.AttemptNumber,
		CompletedAt:     completedAt,
		TimeTaken:       params.TimeTaken,
		ProgressID:      params.ProgressID,
	}, nil
}

// Key returns the attempt key of this result.
func (r *AssessmentResult) Key() AttemptKey {
	return AttemptKey{UserID: r.UserID, AssessmentID: r.AssessmentID}
}
