package query

import (
	"context"
	"time"

	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST PROGRESS QUERY
// Paginated listing of one user's progress across all courses.
// ══════════════════════════════════════════════════════════════════════════════

// ListProgressQuery contains the parameters for a user listing.
type ListProgressQuery struct {
	// UserID identifies the learner.
	UserID int64

	// Offset is the pagination offset.
	Offset int

	// Limit is the page size (default 50, capped at 200).
	Limit int
}

// Validate validates and normalizes the query.
func (q *ListProgressQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.ErrInvalidID
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	return nil
}

// ListProgressResult contains one page of a user's records.
type ListProgressResult struct {
	// Records is the page content.
	Records []ProgressDTO `json:"records"`

	// Total is the user's total record count, independent of the page.
	Total int `json:"total"`

	// Offset echoes the applied offset.
	Offset int `json:"offset"`

	// Limit echoes the applied limit.
	Limit int `json:"limit"`

	// GeneratedAt is when the page was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListProgressHandler handles the ListProgressQuery.
type ListProgressHandler struct {
	progressRepo progress.Repository
}

// NewListProgressHandler creates a new ListProgressHandler.
func NewListProgressHandler(progressRepo progress.Repository) *ListProgressHandler {
	return &ListProgressHandler{progressRepo: progressRepo}
}

// Handle executes the list progress query.
func (h *ListProgressHandler) Handle(ctx context.Context, query ListProgressQuery) (*ListProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListProgress", shared.ErrValidation, "invalid identifiers", err)
	}

	userID := progress.UserID(query.UserID)
	opts := progress.ListOptions{Offset: query.Offset, Limit: query.Limit}

	records, err := h.progressRepo.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	total, err := h.progressRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ListProgressResult{
		Records:     make([]ProgressDTO, 0, len(records)),
		Total:       total,
		Offset:      query.Offset,
		Limit:       query.Limit,
		GeneratedAt: time.Now().UTC(),
	}
	for _, rec := range records {
		result.Records = append(result.Records, NewProgressDTO(rec))
	}

	return result, nil
}
