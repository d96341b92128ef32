package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/service"
)

// DashboardHandler serves the portfolio aggregates of the caller
type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *slog.Logger
}

func NewDashboardHandler(dashboard *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// Metrics handles GET /api/dashboard/metrics
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	serveView(w, r, h.logger, h.dashboard.Metrics)
}

// PortfolioPerformance handles GET /api/dashboard/portfolio-performance
func (h *DashboardHandler) PortfolioPerformance(w http.ResponseWriter, r *http.Request) {
	serveView(w, r, h.logger, h.dashboard.PortfolioPerformance)
}

// SectorAllocation handles GET /api/dashboard/sector-allocation
func (h *DashboardHandler) SectorAllocation(w http.ResponseWriter, r *http.Request) {
	serveView(w, r, h.logger, h.dashboard.SectorAllocation)
}

// TopPerformers handles GET /api/dashboard/top-performers
func (h *DashboardHandler) TopPerformers(w http.ResponseWriter, r *http.Request) {
	serveView(w, r, h.logger, h.dashboard.TopPerformers)
}

func serveView[R any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, view func(context.Context) (R, error)) {
	result, err := view(r.Context())
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
