package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ASSESSMENT COMMAND
// Records one graded attempt. Attempt numbers are assigned inside the
// transaction that inserts the row: count of prior attempts plus one,
// with the unique index on (user, assessment, attempt) as the backstop
// when two writers race. The attempt's study time also advances the
// owning progress record.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAssessmentCommand contains the data for one graded attempt.
type RecordAssessmentCommand struct {
	// UserID identifies the learner.
	UserID int64

	// AssessmentID identifies the assessment in the course catalog.
	AssessmentID int64

	// CourseID identifies the course the assessment belongs to.
	CourseID int64

	// Score is the raw score achieved.
	Score float64

	// MaxScore is the maximum achievable score. Must be positive.
	MaxScore float64

	// TimeTaken is the duration of the attempt in minutes.
	TimeTaken int

	// CompletedAt is when the attempt finished (defaults to now if zero).
	CompletedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordAssessmentCommand) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("record_assessment: %w: user_id must be positive", shared.ErrInvalidID)
	}
	if c.AssessmentID <= 0 {
		return fmt.Errorf("record_assessment: %w: assessment_id must be positive", shared.ErrInvalidID)
	}
	if c.CourseID <= 0 {
		return fmt.Errorf("record_assessment: %w: course_id must be positive", shared.ErrInvalidID)
	}
	if c.MaxScore <= 0 {
		return fmt.Errorf("record_assessment: %w: max_score %v", shared.ErrInvalidMaxScore, c.MaxScore)
	}
	if c.Score < 0 {
		return fmt.Errorf("record_assessment: %w: score %v", shared.ErrNegativeScore, c.Score)
	}
	if c.TimeTaken < 0 {
		return fmt.Errorf("record_assessment: %w: time_taken %d", shared.ErrNegativeTimeSpent, c.TimeTaken)
	}
	return nil
}

// RecordAssessmentResult contains the outcome of recording an attempt.
type RecordAssessmentResult struct {
	// Result is the stored attempt.
	Result *progress.AssessmentResult

	// AttemptNumber is the number assigned to this attempt.
	AttemptNumber int

	// Record is the owning progress record after the time update.
	Record *progress.ProgressRecord

	// RecordCreated indicates the owning record was created on the fly
	// (assessment arrived before any progress update).
	RecordCreated bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAssessmentHandler handles the RecordAssessmentCommand.
type RecordAssessmentHandler struct {
	uowFactory     progress.UnitOfWorkFactory
	cache          analytics.SnapshotCache
	eventPublisher shared.EventPublisher
}

// NewRecordAssessmentHandler creates a new RecordAssessmentHandler.
func NewRecordAssessmentHandler(
	uowFactory progress.UnitOfWorkFactory,
	cache analytics.SnapshotCache,
	eventPublisher shared.EventPublisher,
) *RecordAssessmentHandler {
	return &RecordAssessmentHandler{
		uowFactory:     uowFactory,
		cache:          cache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record assessment command.
func (h *RecordAssessmentHandler) Handle(ctx context.Context, cmd RecordAssessmentCommand) (*RecordAssessmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	completedAt := cmd.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	// Already-exists on the record insert means another writer created the
	// pair first; the retry finds that row and locks it instead.
	result, err := retry.DoWithData(ctx, func(ctx context.Context) (*RecordAssessmentResult, error) {
		res, err := h.recordTx(ctx, cmd, completedAt)
		if err != nil && (shared.IsConflict(err) || shared.IsAlreadyExists(err)) {
			return nil, retry.Retryable(err)
		}
		return res, err
	}, retry.ConflictOptions()...)
	if err != nil {
		return nil, err
	}

	_ = h.cache.Invalidate(ctx, analytics.KindUser, cmd.UserID)
	_ = h.cache.Invalidate(ctx, analytics.KindCourse, cmd.CourseID)

	updated := shared.NewProgressUpdatedEvent(
		result.Record.ID,
		cmd.UserID,
		cmd.CourseID,
		float64(result.Record.CompletionPercentage),
		int(result.Record.TotalTimeSpent),
	)
	if cmd.CorrelationID != "" {
		updated.BaseEvent = updated.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(updated)

	return result, nil
}

// recordTx runs one transactional attempt of the recording. The row lock
// on the progress record serializes attempt numbering per pair; two
// attempts for the same assessment by different users never contend.
func (h *RecordAssessmentHandler) recordTx(
	ctx context.Context,
	cmd RecordAssessmentCommand,
	completedAt time.Time,
) (*RecordAssessmentResult, error) {
	pair := progress.Pair{UserID: progress.UserID(cmd.UserID), CourseID: progress.CourseID(cmd.CourseID)}
	key := progress.AttemptKey{UserID: pair.UserID, AssessmentID: progress.AssessmentID(cmd.AssessmentID)}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("record_assessment: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	result := &RecordAssessmentResult{}

	rec, err := uow.Progress().GetByPairForUpdate(ctx, pair)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrProgressNotFound):
		rec, err = progress.NewProgressRecord(progress.NewProgressRecordParams{
			ID:   uuid.NewString(),
			Pair: pair,
		})
		if err != nil {
			return nil, fmt.Errorf("record_assessment: new record: %w", err)
		}
		result.RecordCreated = true
	default:
		return nil, fmt.Errorf("record_assessment: load record: %w", err)
	}

	if _, err := rec.Apply(progress.Update{
		TimeSpentDelta: progress.Minutes(cmd.TimeTaken),
	}, completedAt); err != nil {
		return nil, fmt.Errorf("record_assessment: apply time: %w", err)
	}

	if result.RecordCreated {
		if err := uow.Progress().Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("record_assessment: create record: %w", err)
		}
	} else {
		if err := uow.Progress().Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("record_assessment: update record: %w", err)
		}
	}

	count, err := uow.Assessments().CountAttempts(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("record_assessment: count attempts: %w", err)
	}
	attemptNumber := count + 1

	res, err := progress.NewAssessmentResult(progress.NewAssessmentResultParams{
		ID:            uuid.NewString(),
		Key:           key,
		CourseID:      pair.CourseID,
		Score:         cmd.Score,
		MaxScore:      cmd.MaxScore,
		AttemptNumber: attemptNumber,
		TimeTaken:     progress.Minutes(cmd.TimeTaken),
		ProgressID:    rec.ID,
		CompletedAt:   completedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("record_assessment: new result: %w", err)
	}

	if err := uow.Assessments().Create(ctx, res); err != nil {
		return nil, fmt.Errorf("record_assessment: create result: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("record_assessment: commit: %w", err)
	}

	result.Result = res
	result.AttemptNumber = attemptNumber
	result.Record = rec
	return result, nil
}
