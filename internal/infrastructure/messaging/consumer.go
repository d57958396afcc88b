package messaging

import (
	"errors"
	"log/slog"
	"time"

	"github.com/edulearn/progress-service/internal/application/eventhandler"
	"github.com/edulearn/progress-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INBOUND EVENT CONSUMER
// ══════════════════════════════════════════════════════════════════════════════

// Consumer binds the inbound integration events (enrollment.created,
// assessment.graded) to their application handlers through a dispatcher.
// Registration is synchronous so a failed delivery propagates back to the
// bus and can be redelivered.
type Consumer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// ConsumerConfig contains configuration for the Consumer.
type ConsumerConfig struct {
	// EventBus is the bus carrying inbound events
	EventBus shared.EventBus

	// Enrollment handles enrollment.created deliveries
	Enrollment *eventhandler.OnEnrollmentCreatedHandler

	// AssessmentGraded handles assessment.graded deliveries
	AssessmentGraded *eventhandler.OnAssessmentGradedHandler

	// HandlerTimeout bounds a single handler execution
	HandlerTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// NewConsumer creates a consumer and registers the inbound handlers.
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	if config.EventBus == nil {
		return nil, errors.New("event bus is required")
	}
	if config.Enrollment == nil || config.AssessmentGraded == nil {
		return nil, errors.New("inbound event handlers are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	dispatcher := NewDispatcher(DefaultDispatcherConfig(config.EventBus))
	dispatcher.Use(RecoveryMiddleware(config.Logger))
	dispatcher.Use(LoggingMiddleware(config.Logger))
	dispatcher.Use(MetricsMiddleware(dispatcher.Metrics()))
	dispatcher.Use(TimeoutMiddleware(config.HandlerTimeout))

	registrations := []struct {
		eventType shared.EventType
		name      string
		handler   shared.EventHandler
	}{
		{shared.EventEnrollmentCreated, "on_enrollment_created", config.Enrollment.Handle},
		{shared.EventAssessmentGraded, "on_assessment_graded", config.AssessmentGraded.Handle},
	}
	for _, reg := range registrations {
		if err := dispatcher.RegisterSync(reg.eventType, reg.name, reg.handler); err != nil {
			return nil, err
		}
	}

	return &Consumer{
		dispatcher: dispatcher,
		logger:     config.Logger,
	}, nil
}

// Start subscribes the dispatcher to the bus.
func (c *Consumer) Start() error {
	if err := c.dispatcher.Start(); err != nil {
		return err
	}
	c.logger.Info("event consumer started")
	return nil
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() error {
	return c.dispatcher.Stop()
}

// Metrics returns the dispatcher metrics.
func (c *Consumer) Metrics() *DispatcherMetrics {
	return c.dispatcher.Metrics()
}

// DeadLetters returns the dead letter queue.
func (c *Consumer) DeadLetters() *DeadLetterQueue {
	return c.dispatcher.DeadLetterQueue()
}
