package query

import (
	"context"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SERVICE METRICS QUERY
// Store-wide row counts for the operational metrics endpoint. Always a
// direct read; the numbers are cheap to compute and staleness here is
// worse than the extra query.
// ══════════════════════════════════════════════════════════════════════════════

// ServiceMetricsResult contains store-wide counters.
type ServiceMetricsResult struct {
	Totals      analytics.ServiceTotals `json:"totals"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// GetServiceMetricsHandler handles service metrics reads.
type GetServiceMetricsHandler struct {
	readModel analytics.ReadModel
}

// NewGetServiceMetricsHandler creates a new GetServiceMetricsHandler.
func NewGetServiceMetricsHandler(readModel analytics.ReadModel) *GetServiceMetricsHandler {
	return &GetServiceMetricsHandler{readModel: readModel}
}

// Handle executes the service metrics query.
func (h *GetServiceMetricsHandler) Handle(ctx context.Context) (*ServiceMetricsResult, error) {
	totals, err := h.readModel.ServiceTotals(ctx)
	if err != nil {
		return nil, err
	}

	return &ServiceMetricsResult{
		Totals:      totals,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
