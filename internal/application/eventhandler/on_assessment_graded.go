package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/edulearn/progress-service/internal/application/command"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ASSESSMENT GRADED HANDLER
// A grading event from the assessment service lands here as an attempt
// record, through the same command the direct API path uses. Validation
// failures are terminal: redelivering a malformed grade can never
// succeed, so the handler acks it and logs instead of poisoning the
// queue.
// ═══════════════════════════════════════════════════════════════════════════

// OnAssessmentGradedHandler handles the assessment graded event.
type OnAssessmentGradedHandler struct {
	record *command.RecordAssessmentHandler
	logger *slog.Logger
	config AssessmentGradedConfig
}

// AssessmentGradedConfig contains configuration for the handler.
type AssessmentGradedConfig struct {
	// HandleTimeout bounds one delivery attempt.
	HandleTimeout time.Duration
}

// DefaultAssessmentGradedConfig returns default configuration.
func DefaultAssessmentGradedConfig() AssessmentGradedConfig {
	return AssessmentGradedConfig{
		HandleTimeout: 10 * time.Second,
	}
}

// NewOnAssessmentGradedHandler creates a new handler.
func NewOnAssessmentGradedHandler(
	record *command.RecordAssessmentHandler,
	logger *slog.Logger,
	config AssessmentGradedConfig,
) *OnAssessmentGradedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.HandleTimeout == 0 {
		config = DefaultAssessmentGradedConfig()
	}

	return &OnAssessmentGradedHandler{
		record: record,
		logger: logger.With("handler", "on_assessment_graded"),
		config: config,
	}
}

// Handle processes one assessment graded delivery.
// Implements the shared.EventHandler contract.
func (h *OnAssessmentGradedHandler) Handle(event shared.Event) error {
	gradeEvent, ok := event.(shared.AssessmentGradedEvent)
	if !ok {
		h.logger.Warn("received non-AssessmentGradedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.HandleTimeout)
	defer cancel()

	result, err := h.record.Handle(ctx, command.RecordAssessmentCommand{
		UserID:        gradeEvent.UserID,
		AssessmentID:  gradeEvent.AssessmentID,
		CourseID:      gradeEvent.CourseID,
		Score:         gradeEvent.Score,
		MaxScore:      gradeEvent.MaxScore,
		TimeTaken:     gradeEvent.TimeTaken,
		CorrelationID: gradeEvent.CorrelationID,
	})
	if err != nil {
		if shared.IsValidation(err) {
			h.logger.Error("dropping malformed grade event",
				"user_id", gradeEvent.UserID,
				"assessment_id", gradeEvent.AssessmentID,
				"error", err,
			)
			return nil
		}
		h.logger.Error("assessment recording failed",
			"user_id", gradeEvent.UserID,
			"assessment_id", gradeEvent.AssessmentID,
			"error", err,
		)
		return err
	}

	h.logger.Info("assessment result recorded from event",
		"user_id", gradeEvent.UserID,
		"assessment_id", gradeEvent.AssessmentID,
		"attempt_number", result.AttemptNumber,
	)
	return nil
}
