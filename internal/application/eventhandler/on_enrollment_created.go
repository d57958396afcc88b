// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ENROLLMENT CREATED HANDLER
// An enrollment in the catalog service seeds a zero-completion progress
// record here. Delivery is at-least-once with no ordering, so the handler
// must be safely re-runnable: a redelivered enrollment finds the record
// already in place and does nothing. The enrollment id travels in the
// event for tracing, but dedup rests on the record itself, which is
// naturally idempotent under upsert.
// ═══════════════════════════════════════════════════════════════════════════

// OnEnrollmentCreatedHandler handles the enrollment created event.
type OnEnrollmentCreatedHandler struct {
	progressRepo progress.Repository
	upsert       *command.UpsertProgressHandler
	logger       *slog.Logger
	config       EnrollmentCreatedConfig
}

// EnrollmentCreatedConfig contains configuration for the handler.
type EnrollmentCreatedConfig struct {
	// HandleTimeout bounds one delivery attempt. The transport redelivers
	// on failure, so a stuck store call must not pin the consumer.
	HandleTimeout time.Duration
}

// DefaultEnrollmentCreatedConfig returns default configuration.
func DefaultEnrollmentCreatedConfig() EnrollmentCreatedConfig {
	return EnrollmentCreatedConfig{
		HandleTimeout: 10 * time.Second,
	}
}

// NewOnEnrollmentCreatedHandler creates a new handler.
func NewOnEnrollmentCreatedHandler(
	progressRepo progress.Repository,
	upsert *command.UpsertProgressHandler,
	logger *slog.Logger,
	config EnrollmentCreatedConfig,
) *OnEnrollmentCreatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.HandleTimeout == 0 {
		config = DefaultEnrollmentCreatedConfig()
	}

	return &OnEnrollmentCreatedHandler{
		progressRepo: progressRepo,
		upsert:       upsert,
		logger:       logger.With("handler", "on_enrollment_created"),
		config:       config,
	}
}

// Handle processes one enrollment created delivery.
// Implements the shared.EventHandler contract.
func (h *OnEnrollmentCreatedHandler) Handle(event shared.Event) error {
	enrollEvent, ok := event.(shared.EnrollmentCreatedEvent)
	if !ok {
		h.logger.Warn("received non-EnrollmentCreatedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.HandleTimeout)
	defer cancel()

	pair := progress.Pair{
		UserID:   progress.UserID(enrollEvent.UserID),
		CourseID: progress.CourseID(enrollEvent.CourseID),
	}

	// Already-applied check: a record for the pair means this enrollment
	// (or a later progress update) has been seen. Redelivery stops here.
	_, err := h.progressRepo.GetByPair(ctx, pair)
	if err == nil {
		h.logger.Debug("enrollment already applied",
			"enrollment_id", enrollEvent.EnrollmentID,
			"user_id", enrollEvent.UserID,
			"course_id", enrollEvent.CourseID,
		)
		return nil
	}
	if !errors.Is(err, shared.ErrProgressNotFound) {
		h.logger.Error("enrollment lookup failed",
			"enrollment_id", enrollEvent.EnrollmentID,
			"error", err,
		)
		return err
	}

	_, err = h.upsert.Handle(ctx, command.UpsertProgressCommand{
		UserID:        enrollEvent.UserID,
		CourseID:      enrollEvent.CourseID,
		CorrelationID: enrollEvent.CorrelationID,
	})
	if err != nil {
		h.logger.Error("enrollment upsert failed",
			"enrollment_id", enrollEvent.EnrollmentID,
			"user_id", enrollEvent.UserID,
			"course_id", enrollEvent.CourseID,
			"error", err,
		)
		return err
	}

	h.logger.Info("progress record seeded from enrollment",
		"enrollment_id", enrollEvent.EnrollmentID,
		"user_id", enrollEvent.UserID,
		"course_id", enrollEvent.CourseID,
	)
	return nil
}
