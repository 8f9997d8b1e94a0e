package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"fundscope/internal/infrastructure"
	"fundscope/internal/report"
	"fundscope/pkg/contracts"
	api "fundscope/pkg/contracts/api/v1"
)

// DatasetStatusReader reports the state of the dataset in service.
type DatasetStatusReader interface {
	Status() api.DatasetStatus
	CacheStats() (report.CacheStats, bool)
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	dataset   DatasetStatusReader
	hub       ClientCounter
	collector *infrastructure.RuntimeCollector
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64                     `json:"uptime_seconds"`
	WebSocketClients int                         `json:"websocket_clients"`
	Dataset          api.DatasetStatus           `json:"dataset"`
	Cache            *report.CacheStats          `json:"cache,omitempty"`
	Runtime          infrastructure.RuntimeStats `json:"runtime"`
	GoVersion        string                      `json:"go_version"`
	OS               string                      `json:"os"`
	Arch             string                      `json:"arch"`
}

// NewHealthService creates a health service. hub and collector may be nil.
func NewHealthService(dataset DatasetStatusReader, hub ClientCounter, collector *infrastructure.RuntimeCollector, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if collector == nil {
		// a nil meter never fails
		collector, _ = infrastructure.NewRuntimeCollector(nil, 0)
	}
	return &HealthService{
		dataset:   dataset,
		hub:       hub,
		collector: collector,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
	if ready := hs.ReadinessCheck(ctx); ready.Status != "ready" {
		status.Status = "degraded"
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status),
		slog.Duration("uptime", time.Since(hs.startTime)))
	return status
}

// ReadinessCheck reports ready once a dataset is in service.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"dataset":   hs.checkDatasetHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns build information and uptime.
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"git_branch":   info.GitBranch,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"api_version":  info.APIVersion,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Runtime:       hs.collector.Collect(ctx),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.dataset != nil {
		stats.Dataset = hs.dataset.Status()
		if cs, ok := hs.dataset.CacheStats(); ok {
			stats.Cache = &cs
		}
	}
	return stats
}

func (hs *HealthService) checkDatasetHealth() ServiceHealth {
	if hs.dataset == nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset service not configured"}
	}
	st := hs.dataset.Status()
	if !st.Loaded {
		msg := "dataset not loaded"
		if st.LastError != "" {
			msg += ": " + st.LastError
		}
		return ServiceHealth{Status: "not_ready", Message: msg}
	}
	sh := ServiceHealth{
		Status:  "ready",
		Message: "dataset loaded from " + st.Source,
		Uptime:  time.Since(st.LoadedAt).Round(time.Second).String(),
	}
	if st.LastError != "" {
		sh.Message += "; last reload failed: " + st.LastError
	}
	return sh
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	// WebSocket hub is always considered healthy if it's running
	return ServiceHealth{
		Status:  "ready",
		Message: "WebSocket service is healthy",
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     hs.SystemStats(ctx),
	}
}
