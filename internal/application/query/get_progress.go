// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns one (user, course) progress record with the user's assessment
// results for the course nested in.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters for a single-record lookup.
type GetProgressQuery struct {
	// UserID identifies the learner.
	UserID int64

	// CourseID identifies the course.
	CourseID int64

	// ExcludeAssessments skips loading the nested results. They are
	// part of the record's contract, so nesting is the default.
	ExcludeAssessments bool
}

// Validate validates the query.
func (q GetProgressQuery) Validate() error {
	if q.UserID <= 0 || q.CourseID <= 0 {
		return shared.ErrInvalidID
	}
	return nil
}

// ProgressDTO is the read-side shape of one progress record.
// Percentages are rounded to one decimal at this boundary.
type ProgressDTO struct {
	ID                    string               `json:"id"`
	UserID                int64                `json:"user_id"`
	CourseID              int64                `json:"course_id"`
	CompletionPercentage  float64              `json:"completion_percentage"`
	IsCompleted           bool                 `json:"is_completed"`
	LastAccessed          time.Time            `json:"last_accessed"`
	TotalTimeSpentMinutes int                  `json:"total_time_spent_minutes"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	AssessmentResults     []AssessmentResultDTO `json:"assessment_results,omitempty"`
}

// AssessmentResultDTO is the read-side shape of one graded attempt.
type AssessmentResultDTO struct {
	ID               string    `json:"id"`
	AssessmentID     int64     `json:"assessment_id"`
	Score            float64   `json:"score"`
	MaxScore         float64   `json:"max_score"`
	PercentageScore  float64   `json:"percentage_score"`
	AttemptNumber    int       `json:"attempt_number"`
	CompletedAt      time.Time `json:"completed_at"`
	TimeTakenMinutes int       `json:"time_taken_minutes"`
}

// NewProgressDTO maps a domain record to its DTO.
func NewProgressDTO(rec *progress.ProgressRecord) ProgressDTO {
	return ProgressDTO{
		ID:                    rec.ID,
		UserID:                int64(rec.UserID),
		CourseID:              int64(rec.CourseID),
		CompletionPercentage:  analytics.Round1(float64(rec.CompletionPercentage)),
		IsCompleted:           rec.CompletionPercentage.IsComplete(),
		LastAccessed:          rec.LastAccessed,
		TotalTimeSpentMinutes: int(rec.TotalTimeSpent),
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
	}
}

// NewAssessmentResultDTO maps a domain result to its DTO.
func NewAssessmentResultDTO(res *progress.AssessmentResult) AssessmentResultDTO {
	return AssessmentResultDTO{
		ID:               res.ID,
		AssessmentID:     int64(res.AssessmentID),
		Score:            res.Score,
		MaxScore:         res.MaxScore,
		PercentageScore:  analytics.Round1(res.PercentageScore),
		AttemptNumber:    res.AttemptNumber,
		CompletedAt:      res.CompletedAt,
		TimeTakenMinutes: int(res.TimeTaken),
	}
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	progressRepo   progress.Repository
	assessmentRepo progress.AssessmentRepository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	progressRepo progress.Repository,
	assessmentRepo progress.AssessmentRepository,
) *GetProgressHandler {
	return &GetProgressHandler{
		progressRepo:   progressRepo,
		assessmentRepo: assessmentRepo,
	}
}

// Handle executes the get progress query.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*ProgressDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgress", shared.ErrValidation, "invalid identifiers", err)
	}

	pair := progress.Pair{UserID: progress.UserID(query.UserID), CourseID: progress.CourseID(query.CourseID)}

	rec, err := h.progressRepo.GetByPair(ctx, pair)
	if err != nil {
		return nil, err
	}

	dto := NewProgressDTO(rec)

	if !query.ExcludeAssessments {
		results, err := h.assessmentRepo.ListByUserCourse(ctx, pair.UserID, pair.CourseID)
		if err != nil {
			return nil, shared.WrapError("query", "GetProgress", shared.ErrExternalService, "load assessment results", err)
		}
		dto.AssessmentResults = make([]AssessmentResultDTO, 0, len(results))
		for _, res := range results {
			dto.AssessmentResults = append(dto.AssessmentResults, NewAssessmentResultDTO(res))
		}
	}

	return &dto, nil
}
