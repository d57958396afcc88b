package query

import (
	"context"
	"errors"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
	"github.com/edulearn/progress-service/internal/domain/shared"
	"github.com/edulearn/progress-service/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER ANALYTICS QUERY
// Cache-first read of one user's aggregate standing. A miss recomputes
// from the record store and repopulates the cache. The circuit breaker
// keeps a degraded cache from blocking reads: while it is open, every
// request recomputes directly.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserAnalyticsQuery contains the parameters for a user analytics read.
type GetUserAnalyticsQuery struct {
	// UserID identifies the learner.
	UserID int64
}

// Validate validates the query.
func (q GetUserAnalyticsQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.ErrInvalidID
	}
	return nil
}

// GetUserAnalyticsHandler handles the GetUserAnalyticsQuery.
type GetUserAnalyticsHandler struct {
	readModel analytics.ReadModel
	cache     analytics.SnapshotCache
	breaker   *circuitbreaker.CircuitBreaker
}

// NewGetUserAnalyticsHandler creates a new GetUserAnalyticsHandler.
func NewGetUserAnalyticsHandler(
	readModel analytics.ReadModel,
	cache analytics.SnapshotCache,
	breaker *circuitbreaker.CircuitBreaker,
) *GetUserAnalyticsHandler {
	return &GetUserAnalyticsHandler{
		readModel: readModel,
		cache:     cache,
		breaker:   breaker,
	}
}

// Handle executes the user analytics query.
func (h *GetUserAnalyticsHandler) Handle(ctx context.Context, query GetUserAnalyticsQuery) (*analytics.UserSnapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserAnalytics", shared.ErrValidation, "invalid user id", err)
	}

	userID := progress.UserID(query.UserID)

	// A plain miss is a healthy response and must not count against the
	// breaker; only transport failures do.
	var cached *analytics.UserSnapshot
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		snap, err := h.cache.GetUser(ctx, userID)
		if err != nil && !errors.Is(err, analytics.ErrSnapshotMiss) {
			return err
		}
		cached = snap
		return nil
	})
	if err == nil && cached != nil {
		return cached, nil
	}
	// Miss, open breaker, or cache failure: degrade to a direct read.

	rows, err := h.readModel.UserRows(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := analytics.ComputeUserSnapshot(userID, rows.Records, rows.Results, rows.ValidCertificates, time.Now().UTC())

	_ = h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.SetUser(ctx, &snap)
	})

	return &snap, nil
}
