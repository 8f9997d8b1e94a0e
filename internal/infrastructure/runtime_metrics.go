package infrastructure

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RuntimeStats is a snapshot of Go runtime figures reported by the
// detailed health endpoint.
type RuntimeStats struct {
	Goroutines  int           `json:"goroutines"`
	HeapAlloc   uint64        `json:"heap_alloc_bytes"`
	Sys         uint64        `json:"sys_bytes"`
	GCCount     uint32        `json:"gc_count"`
	LastGCPause time.Duration `json:"last_gc_pause_ns"`
	CPUCount    int           `json:"cpu_count"`
	Uptime      time.Duration `json:"uptime_ns"`
	CollectedAt time.Time     `json:"collected_at"`
}

// RuntimeCollector periodically records runtime gauges.
type RuntimeCollector struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	sysBytes   metric.Int64Gauge
	uptime     metric.Float64Gauge

	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewRuntimeCollector registers the runtime gauges on meter. A nil meter
// produces a collector that only snapshots.
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	goroutines, err1 := meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	heapAlloc, err2 := meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes in use"), metric.WithUnit("By"))
	sysBytes, err3 := meter.Int64Gauge("system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"), metric.WithUnit("By"))
	uptime, err4 := meter.Float64Gauge("system_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"), metric.WithUnit("s"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}

	return &RuntimeCollector{
		goroutines: goroutines,
		heapAlloc:  heapAlloc,
		sysBytes:   sysBytes,
		uptime:     uptime,
		startTime:  time.Now(),
		interval:   interval,
		stopCh:     make(chan struct{}),
	}, nil
}

// Collect records the gauges and returns the snapshot.
func (rc *RuntimeCollector) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   mem.HeapAlloc,
		Sys:         mem.Sys,
		GCCount:     mem.NumGC,
		LastGCPause: time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:    runtime.NumCPU(),
		Uptime:      time.Since(rc.startTime),
		CollectedAt: time.Now(),
	}

	rc.goroutines.Record(ctx, int64(stats.Goroutines))
	rc.heapAlloc.Record(ctx, int64(stats.HeapAlloc))
	rc.sysBytes.Record(ctx, int64(stats.Sys))
	rc.uptime.Record(ctx, stats.Uptime.Seconds())

	return stats
}

// Start collects on every interval until ctx is done or Stop is called.
func (rc *RuntimeCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			rc.Collect(ctx)
		case <-rc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends collection. Safe to call more than once.
func (rc *RuntimeCollector) Stop() {
	rc.stopOnce.Do(func() { close(rc.stopCh) })
}
