package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = "none"
	cfg.EnableTracing = false

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestOTelUnsupportedExporter(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "zipkin"

	_, err := InitializeOTel(cfg, discardLogger())
	assert.Error(t, err)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestBusinessMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := CreateBusinessMetrics(mp.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDashboardBuild(ctx, "classic", false, 10*time.Millisecond, nil)
	m.RecordDashboardBuild(ctx, "classic", true, 0, nil)
	m.RecordDatasetLoad(ctx, "csv", 120, time.Second, nil)
	m.RecordDatasetLoad(ctx, "csv", 0, time.Second, errors.New("boom"))
	m.RecordTrendFit(ctx, 3, nil)
	m.RecordExport(ctx, "xlsx")

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["dashboard_builds_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["dashboard_cache_hits_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["dashboard_cache_misses_total"]))
	assert.Equal(t, int64(2), sumOf(t, data["dataset_reloads_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["trend_fits_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["exports_total"]))

	rows, ok := data["dataset_rows"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(120), rows.DataPoints[0].Value)
}

func TestBusinessMetricsNilSafe(t *testing.T) {
	var m *BusinessMetrics
	assert.NotPanics(t, func() {
		m.RecordDashboardBuild(context.Background(), "classic", false, 0, nil)
		m.RecordDatasetLoad(context.Background(), "csv", 1, 0, nil)
		m.RecordTrendFit(context.Background(), 1, nil)
		m.RecordExport(context.Background(), "csv")
	})

	noop, err := CreateBusinessMetrics(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { noop.RecordExport(context.Background(), "csv") })
}

func TestRuntimeCollector(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	rc, err := NewRuntimeCollector(mp.Meter(MeterName), time.Hour)
	require.NoError(t, err)

	stats := rc.Collect(context.Background())
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.CPUCount)
	assert.NotZero(t, stats.Sys)

	data := collect(t, reader)
	assert.Contains(t, data, "system_goroutines")
	assert.Contains(t, data, "system_uptime_seconds")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rc.Start(ctx)
		close(done)
	}()
	rc.Stop()
	rc.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestStartSpanWithoutTracing(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { RecordError(ctx, errors.New("x")) })
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
