// Package command contains write operations (CQRS - Commands).
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
// UPSERT PROGRESS COMMAND
// Creates or advances the progress record for one (user, course) pair.
// Completion is monotonic: a lower incoming value is clamped to the current
// one unless regression is explicitly allowed. The transition into the
// completed state issues a certificate inside the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProgressCommand contains the data for a progress update.
type UpsertProgressCommand struct {
	// UserID identifies the learner.
	UserID int64

	// CourseID identifies the course.
	CourseID int64

	// CompletionPercentage is the reported completion in [0, 100].
	// Nil leaves the stored value untouched.
	CompletionPercentage *float64

	// TimeSpentDelta is additional study time in minutes, never a total.
	TimeSpentDelta int

	// AllowRegression permits lowering the stored completion (admin resets,
	// content re-releases). Without it lower values are clamped.
	AllowRegression bool

	// AccessedAt is when the activity occurred (defaults to now if zero).
	AccessedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpsertProgressCommand) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("upsert_progress: %w: user_id must be positive", shared.ErrInvalidID)
	}
	if c.CourseID <= 0 {
		return fmt.Errorf("upsert_progress: %w: course_id must be positive", shared.ErrInvalidID)
	}
	if c.CompletionPercentage != nil {
		if v := *c.CompletionPercentage; v < 0 || v > 100 {
			return fmt.Errorf("upsert_progress: %w: completion_percentage %v outside [0, 100]",
				shared.ErrInvalidCompletion, v)
		}
	}
	if c.TimeSpentDelta < 0 {
		return fmt.Errorf("upsert_progress: %w: time_spent_delta %d",
			shared.ErrNegativeTimeSpent, c.TimeSpentDelta)
	}
	return nil
}

// UpsertProgressResult contains the outcome of a progress update.
type UpsertProgressResult struct {
	// Record is the state after the update.
	Record *progress.ProgressRecord

	// Created indicates a record was inserted rather than updated.
	Created bool

	// CompletionChanged indicates the stored completion moved.
	CompletionChanged bool

	// JustCompleted indicates this update crossed into the completed state.
	JustCompleted bool

	// Certificate is set when completion triggered issuance.
	Certificate *progress.Certificate
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProgressHandler handles the UpsertProgressCommand.
type UpsertProgressHandler struct {
	uowFactory     progress.UnitOfWorkFactory
	cache          analytics.SnapshotCache
	eventPublisher shared.EventPublisher
	certBaseURL    string
}

// NewUpsertProgressHandler creates a new UpsertProgressHandler.
func NewUpsertProgressHandler(
	uowFactory progress.UnitOfWorkFactory,
	cache analytics.SnapshotCache,
	eventPublisher shared.EventPublisher,
	certBaseURL string,
) *UpsertProgressHandler {
	return &UpsertProgressHandler{
		uowFactory:     uowFactory,
		cache:          cache,
		eventPublisher: eventPublisher,
		certBaseURL:    certBaseURL,
	}
}

// Handle executes the upsert progress command.
func (h *UpsertProgressHandler) Handle(ctx context.Context, cmd UpsertProgressCommand) (*UpsertProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := cmd.AccessedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	update := progress.Update{
		TimeSpentDelta:  progress.Minutes(cmd.TimeSpentDelta),
		AllowRegression: cmd.AllowRegression,
	}
	if cmd.CompletionPercentage != nil {
		c := progress.Completion(*cmd.CompletionPercentage)
		update.Completion = &c
	}
	if err := update.Validate(); err != nil {
		return nil, fmt.Errorf("upsert_progress: %w", err)
	}

	pair := progress.Pair{UserID: progress.UserID(cmd.UserID), CourseID: progress.CourseID(cmd.CourseID)}

	// Concurrent first writes for the same pair race on the unique index;
	// the loser sees the winner's row as already-exists and retries onto
	// the row-lock path.
	result, err := retry.DoWithData(ctx, func(ctx context.Context) (*UpsertProgressResult, error) {
		res, err := h.applyTx(ctx, pair, update, now, cmd.CorrelationID)
		if err != nil && (shared.IsConflict(err) || shared.IsAlreadyExists(err)) {
			return nil, retry.Retryable(err)
		}
		return res, err
	}, retry.ConflictOptions()...)
	if err != nil {
		return nil, err
	}

	// Side effects run strictly after commit, best-effort. A failed
	// invalidation is covered by the cache TTL backstop.
	h.invalidateAndPublish(ctx, result, cmd.CorrelationID)

	return result, nil
}

// applyTx runs one transactional attempt of the upsert.
func (h *UpsertProgressHandler) applyTx(
	ctx context.Context,
	pair progress.Pair,
	update progress.Update,
	now time.Time,
	correlationID string,
) (*UpsertProgressResult, error) {
	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert_progress: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	result := &UpsertProgressResult{}

	rec, err := uow.Progress().GetByPairForUpdate(ctx, pair)
	switch {
	case err == nil:
		// Existing record, row lock held.
	case errors.Is(err, shared.ErrProgressNotFound):
		rec, err = progress.NewProgressRecord(progress.NewProgressRecordParams{
			ID:   uuid.NewString(),
			Pair: pair,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert_progress: new record: %w", err)
		}
		result.Created = true
	default:
		return nil, fmt.Errorf("upsert_progress: load record: %w", err)
	}

	applied, err := rec.Apply(update, now)
	if err != nil {
		return nil, fmt.Errorf("upsert_progress: apply: %w", err)
	}
	result.CompletionChanged = applied.CompletionChanged
	result.JustCompleted = applied.JustCompleted

	if result.Created {
		if err := uow.Progress().Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("upsert_progress: create record: %w", err)
		}
	} else {
		if err := uow.Progress().Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("upsert_progress: update record: %w", err)
		}
	}

	// The completed transition fires exactly once per direction change;
	// repeating an update at 100% is a no-op here.
	if applied.JustCompleted {
		cert, err := ensureCertificate(ctx, uow, rec, "", h.certBaseURL)
		if err != nil {
			return nil, fmt.Errorf("upsert_progress: issue certificate: %w", err)
		}
		result.Certificate = cert
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("upsert_progress: commit: %w", err)
	}

	result.Record = rec
	return result, nil
}

// invalidateAndPublish performs the post-commit side effects.
func (h *UpsertProgressHandler) invalidateAndPublish(ctx context.Context, res *UpsertProgressResult, correlationID string) {
	rec := res.Record

	_ = h.cache.Invalidate(ctx, analytics.KindUser, int64(rec.UserID))
	_ = h.cache.Invalidate(ctx, analytics.KindCourse, int64(rec.CourseID))

	updated := shared.NewProgressUpdatedEvent(
		rec.ID,
		int64(rec.UserID),
		int64(rec.CourseID),
		float64(rec.CompletionPercentage),
		int(rec.TotalTimeSpent),
	)
	if correlationID != "" {
		updated.BaseEvent = updated.BaseEvent.WithCorrelationID(correlationID)
	}
	_ = h.eventPublisher.Publish(updated)

	if res.JustCompleted {
		completed := shared.NewProgressCompletedEvent(rec.ID, int64(rec.UserID), int64(rec.CourseID))
		if correlationID != "" {
			completed.BaseEvent = completed.BaseEvent.WithCorrelationID(correlationID)
		}
		_ = h.eventPublisher.Publish(completed)
	}

	if res.Certificate != nil {
		issued := shared.NewCertificateIssuedEvent(
			res.Certificate.ID,
			int64(res.Certificate.UserID),
			int64(res.Certificate.CourseID),
			res.Certificate.CertificateURL,
			res.Certificate.FinalScore,
		)
		if correlationID != "" {
			issued.BaseEvent = issued.BaseEvent.WithCorrelationID(correlationID)
		}
		_ = h.eventPublisher.Publish(issued)
	}
}
