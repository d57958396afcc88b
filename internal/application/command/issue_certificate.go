package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE COMMAND
// Manual issuance path for a completed course. The normal path is the
// completion transition inside UpsertProgress; this command covers
// re-issuance after an administrative reset and backfills.
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateCommand contains the data for manual certificate issuance.
type IssueCertificateCommand struct {
	// UserID identifies the learner.
	UserID int64

	// CourseID identifies the course.
	CourseID int64

	// CertificateURL overrides the generated document URL when set.
	CertificateURL string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c IssueCertificateCommand) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("issue_certificate: %w: user_id must be positive", shared.ErrInvalidID)
	}
	if c.CourseID <= 0 {
		return fmt.Errorf("issue_certificate: %w: course_id must be positive", shared.ErrInvalidID)
	}
	return nil
}

// IssueCertificateResult contains the outcome of certificate issuance.
type IssueCertificateResult struct {
	// Certificate is the valid certificate for the pair.
	Certificate *progress.Certificate

	// AlreadyIssued indicates an existing valid certificate was returned
	// instead of a new one being created.
	AlreadyIssued bool
}

// IssueCertificateHandler handles the IssueCertificateCommand.
type IssueCertificateHandler struct {
	uowFactory     progress.UnitOfWorkFactory
	cache          analytics.SnapshotCache
	eventPublisher shared.EventPublisher
	certBaseURL    string
}

// NewIssueCertificateHandler creates a new IssueCertificateHandler.
func NewIssueCertificateHandler(
	uowFactory progress.UnitOfWorkFactory,
	cache analytics.SnapshotCache,
	eventPublisher shared.EventPublisher,
	certBaseURL string,
) *IssueCertificateHandler {
	return &IssueCertificateHandler{
		uowFactory:     uowFactory,
		cache:          cache,
		eventPublisher: eventPublisher,
		certBaseURL:    certBaseURL,
	}
}

// Handle executes the issue certificate command.
func (h *IssueCertificateHandler) Handle(ctx context.Context, cmd IssueCertificateCommand) (*IssueCertificateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	pair := progress.Pair{UserID: progress.UserID(cmd.UserID), CourseID: progress.CourseID(cmd.CourseID)}

	result, err := retry.DoWithData(ctx, func(ctx context.Context) (*IssueCertificateResult, error) {
		res, err := h.issueTx(ctx, pair, cmd.CertificateURL)
		if err != nil && shared.IsConflict(err) {
			return nil, retry.Retryable(err)
		}
		return res, err
	}, retry.ConflictOptions()...)
	if err != nil {
		return nil, err
	}

	if !result.AlreadyIssued {
		_ = h.cache.Invalidate(ctx, analytics.KindUser, cmd.UserID)
		_ = h.cache.Invalidate(ctx, analytics.KindCourse, cmd.CourseID)

		issued := shared.NewCertificateIssuedEvent(
			result.Certificate.ID,
			cmd.UserID,
			cmd.CourseID,
			result.Certificate.CertificateURL,
			result.Certificate.FinalScore,
		)
		if cmd.CorrelationID != "" {
			issued.BaseEvent = issued.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(issued)
	}

	return result, nil
}

// issueTx runs one transactional attempt of the manual issuance.
func (h *IssueCertificateHandler) issueTx(ctx context.Context, pair progress.Pair, overrideURL string) (*IssueCertificateResult, error) {
	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue_certificate: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	rec, err := uow.Progress().GetByPairForUpdate(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("issue_certificate: load record: %w", err)
	}

	if !rec.CompletionPercentage.IsComplete() {
		return nil, fmt.Errorf("issue_certificate: %w: completion is %.1f%%",
			shared.ErrCourseNotCompleted, float64(rec.CompletionPercentage))
	}

	existing, err := uow.Certificates().GetValidByPair(ctx, pair)
	if err == nil {
		if err := uow.Commit(ctx); err != nil {
			return nil, fmt.Errorf("issue_certificate: commit: %w", err)
		}
		return &IssueCertificateResult{Certificate: existing, AlreadyIssued: true}, nil
	}
	if !errors.Is(err, shared.ErrCertificateNotFound) {
		return nil, fmt.Errorf("issue_certificate: check existing: %w", err)
	}

	cert, err := ensureCertificate(ctx, uow, rec, overrideURL, h.certBaseURL)
	if err != nil {
		return nil, fmt.Errorf("issue_certificate: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("issue_certificate: commit: %w", err)
	}

	return &IssueCertificateResult{Certificate: cert}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED ISSUANCE
// ══════════════════════════════════════════════════════════════════════════════

// ensureCertificate returns the valid certificate for the record's pair,
// creating one when none exists. At most one valid certificate per pair:
// any prior certificate is invalidated before the new insert, and the
// partial unique index backstops a racing writer. The final score is the
// unrounded mean of the user's assessment percentages for the course,
// zero when the course has no assessments.
func ensureCertificate(
	ctx context.Context,
	uow progress.UnitOfWork,
	rec *progress.ProgressRecord,
	overrideURL string,
	baseURL string,
) (*progress.Certificate, error) {
	pair := progress.Pair{UserID: rec.UserID, CourseID: rec.CourseID}

	existing, err := uow.Certificates().GetValidByPair(ctx, pair)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrCertificateNotFound) {
		return nil, fmt.Errorf("check existing certificate: %w", err)
	}

	results, err := uow.Assessments().ListByUserCourse(ctx, rec.UserID, rec.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load assessment results: %w", err)
	}

	var finalScore float64
	if len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += r.PercentageScore
		}
		finalScore = sum / float64(len(results))
	}

	if _, err := uow.Certificates().InvalidatePair(ctx, pair); err != nil {
		return nil, fmt.Errorf("invalidate prior certificates: %w", err)
	}

	certID := uuid.NewString()
	url := overrideURL
	if url == "" {
		url = progress.DefaultCertificateURL(baseURL, pair, certID)
	}

	cert, err := progress.NewCertificate(progress.NewCertificateParams{
		ID:             certID,
		Pair:           pair,
		CertificateURL: url,
		FinalScore:     finalScore,
	})
	if err != nil {
		return nil, fmt.Errorf("new certificate: %w", err)
	}

	if err := uow.Certificates().Create(ctx, cert); err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return cert, nil
}
