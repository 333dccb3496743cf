package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clarident/clarident-go/internal/application/services"
	domainmetrics "github.com/clarident/clarident-go/internal/domain/metrics"
	"github.com/clarident/clarident-go/internal/infrastructure/observability/logging"
	persistmetrics "github.com/clarident/clarident-go/internal/infrastructure/persistence/metrics"
	"github.com/clarident/clarident-go/internal/presentation/http/middleware"
)

// DashboardResponse is the GET /dashboard payload.
type DashboardResponse struct {
	Scope      any                                  `json:"scope"`
	Period     string                               `json:"period"`
	Totals     metricsView                          `json:"totals"`
	Breakdown  map[string]metricsView               `json:"breakdown"`
	Trends     map[string]domainmetrics.Trend       `json:"trends,omitempty"`
	ComputedAt time.Time                            `json:"computedAt"`
	Stale      bool                                 `json:"stale"`
}

// metricsView is one metric set with the derived percentages added at the
// presentation step.
type metricsView struct {
	ProductionCents       int64   `json:"productionCents"`
	CollectionsCents      int64   `json:"collectionsCents"`
	AppointmentsTotal     int64   `json:"appointmentsTotal"`
	AppointmentsCompleted int64   `json:"appointmentsCompleted"`
	NewPatients           int64   `json:"newPatients"`
	AvgRating             float64 `json:"avgRating"`
	CompletionRate        float64 `json:"completionRate"`
}

func viewOf(set domainmetrics.MetricSet) metricsView {
	return metricsView{
		ProductionCents:       set.ProductionCents,
		CollectionsCents:      set.CollectionsCents,
		AppointmentsTotal:     set.AppointmentsTotal,
		AppointmentsCompleted: set.AppointmentsCompleted,
		NewPatients:           set.NewPatients,
		AvgRating:             set.AvgRating(),
		CompletionRate:        set.CompletionRate(),
	}
}

// DashboardHandlers contains the metrics dashboard HTTP handlers
type DashboardHandlers struct {
	aggregator *services.AggregatorService
	logger     *logging.ChanneledLogger
}

// NewDashboardHandlers creates dashboard handlers with injected dependencies
func NewDashboardHandlers(aggregator *services.AggregatorService, logger *logging.ChanneledLogger) *DashboardHandlers {
	return &DashboardHandlers{aggregator: aggregator, logger: logger}
}

// GetDashboard computes aggregated metrics for the caller's bound scope and
// the requested period. A missing period defaults to the current month.
func (h *DashboardHandlers) GetDashboard(c *gin.Context) {
	sel, ok := middleware.GetScope(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scope not bound"})
		return
	}
	bound, ok := middleware.GetBoundConn(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection not bound"})
		return
	}

	period := domainmetrics.PeriodOf(time.Now())
	if raw := c.Query("period"); raw != "" {
		parsed, err := domainmetrics.ParsePeriod(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be formatted YYYY-MM"})
			return
		}
		period = parsed
	}

	querier, ok := bound.Conn().(persistmetrics.Querier)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection not queryable"})
		return
	}

	repo := persistmetrics.NewSQLRepository(querier, h.logger)
	agg, err := h.aggregator.Compute(c.Request.Context(), repo, sel, period)
	if err != nil {
		switch {
		case errors.Is(err, domainmetrics.ErrInsufficientData):
			c.JSON(http.StatusOK, gin.H{
				"scope":  sel,
				"period": period.String(),
				"empty":  true,
			})
		case errors.Is(err, domainmetrics.ErrAggregationTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "metrics are taking too long, try again shortly"})
		default:
			h.logger.Metrics().Error("Dashboard aggregation failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	resp := DashboardResponse{
		Scope:      agg.Scope,
		Period:     agg.Period.String(),
		Totals:     viewOf(agg.Totals),
		Breakdown:  make(map[string]metricsView, len(agg.Breakdown)),
		Trends:     agg.Trends,
		ComputedAt: agg.ComputedAt,
		Stale:      agg.Stale,
	}
	for tenantID, set := range agg.Breakdown {
		resp.Breakdown[tenantID] = viewOf(set)
	}
	c.JSON(http.StatusOK, resp)
}
