package http

import (
	"context"
	"io"

	"fundscope/internal/filter"
	"fundscope/internal/services"
	api "fundscope/pkg/contracts/api/v1"
	"fundscope/pkg/contracts/domain"
)

// DashboardServiceInterface is the slice of the dashboard service the
// handlers use.
type DashboardServiceInterface interface {
	Dashboard(ctx context.Context, layout string, sel filter.Selection) (*domain.Report, error)
	Section(ctx context.Context, layout, id string, sel filter.Selection) (domain.Section, error)
	Metrics(ctx context.Context, sel filter.Selection) (domain.Metrics, error)
	Options(ctx context.Context) (domain.FilterOptions, error)
	Predictions(ctx context.Context, sel filter.Selection) (*api.PredictionsResponse, error)
	Export(ctx context.Context, w io.Writer, layout, id, format string, sel filter.Selection) error
	Layouts() []api.LayoutSummary
}

// TrendServiceInterface runs the estimator over caller data.
type TrendServiceInterface interface {
	Estimate(ctx context.Context, obs []domain.Observation) (*api.EstimateResponse, error)
}

// DatasetServiceInterface exposes the dataset lifecycle.
type DatasetServiceInterface interface {
	Status() api.DatasetStatus
	Reload(ctx context.Context) (bool, error)
}

// HealthServiceInterface defines the checks served under /health.
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
	SystemStats(ctx context.Context) services.SystemStats
}

var (
	_ DashboardServiceInterface = (*services.DashboardService)(nil)
	_ TrendServiceInterface     = (*services.DashboardService)(nil)
	_ DatasetServiceInterface   = (*services.DashboardService)(nil)
	_ HealthServiceInterface    = (*services.HealthService)(nil)
)
