package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"fundscope/internal/dataset"
	apierrors "fundscope/internal/errors"
	"fundscope/internal/exporter"
	"fundscope/internal/filter"
	"fundscope/internal/infrastructure"
	"fundscope/internal/report"
	"fundscope/internal/trend"
	api "fundscope/pkg/contracts/api/v1"
	"fundscope/pkg/contracts/domain"
	"fundscope/pkg/contracts/events"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// SectionAll selects every section of a layout in an export.
const SectionAll = "all"

// ReloadTimeout bounds a shared reload once it is detached from the
// callers that started it.
const ReloadTimeout = 2 * time.Minute

// Notifier receives dataset lifecycle events. The websocket hub satisfies it.
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// DashboardOptions configures a DashboardService. Source and Layouts are
// required; the rest default.
type DashboardOptions struct {
	Source        dataset.Source
	LoadOptions   dataset.LoadOptions
	Layouts       *report.Registry
	DefaultLayout string
	Builder       *report.Builder
	Cache         *report.Cache
	Notifier      Notifier
	Metrics       *infrastructure.BusinessMetrics
	Logger        *slog.Logger
}

// DashboardService serves reports over the dataset currently in service.
type DashboardService struct {
	source        dataset.Source
	loadOpts      dataset.LoadOptions
	layouts       *report.Registry
	defaultLayout string
	builder       *report.Builder
	cache         *report.Cache
	notifier      Notifier
	metrics       *infrastructure.BusinessMetrics
	csv           *exporter.CSVWriter
	logger        *slog.Logger

	mu      sync.RWMutex
	ds      *dataset.Dataset
	lastErr error
	reloads int64

	builds singleflight.Group
	loads  singleflight.Group
}

// NewDashboardService creates the service. No data is read until Load.
func NewDashboardService(opts DashboardOptions) (*DashboardService, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("dashboard service: %w", dataset.ErrInvalidSource)
	}
	if opts.Layouts == nil {
		return nil, errors.New("dashboard service: layout registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "dashboard_service"))

	if opts.DefaultLayout == "" {
		opts.DefaultLayout = report.LayoutClassic
	}
	if !opts.Layouts.Has(opts.DefaultLayout) {
		return nil, fmt.Errorf("dashboard service: %w: default layout %s", ErrUnknownLayout, opts.DefaultLayout)
	}
	if opts.Builder == nil {
		opts.Builder = report.NewBuilder(report.BuilderOptions{}, logger)
	}
	if opts.LoadOptions.Logger == nil {
		opts.LoadOptions.Logger = logger
	}

	return &DashboardService{
		source:        opts.Source,
		loadOpts:      opts.LoadOptions,
		layouts:       opts.Layouts,
		defaultLayout: opts.DefaultLayout,
		builder:       opts.Builder,
		cache:         opts.Cache,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		csv:           exporter.NewCSVWriter(logger),
		logger:        logger,
	}, nil
}

// Load reads the source for the first time.
func (s *DashboardService) Load(ctx context.Context) error {
	_, err := s.Reload(ctx)
	return err
}

// Reload re-reads the source. It reports whether a new dataset was swapped
// in. On failure the current dataset stays in service. Concurrent callers
// share one read of the source; a caller whose ctx ends returns early while
// the read carries on for the others.
func (s *DashboardService) Reload(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ch := s.loads.DoChan("reload", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReloadTimeout)
		defer cancel()
		return s.reload(rctx)
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

func (s *DashboardService) reload(ctx context.Context) (bool, error) {
	ctx, span := infrastructure.StartSpan(ctx, "dataset.reload",
		attribute.String("dataset.source", s.source.URI()))
	defer span.End()

	logger := s.logger
	format, _ := dataset.DetectFormat(s.source.Name())

	start := time.Now()
	ds, err := dataset.Load(ctx, s.source, s.loadOpts)
	s.metrics.RecordDatasetLoad(ctx, string(format), ds.Len(), time.Since(start), err)

	if err != nil {
		err = loadError(s.source.URI(), err)
		infrastructure.RecordError(ctx, err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		logger.ErrorContext(ctx, "dataset reload failed",
			slog.String("source", s.source.URI()),
			slog.String("error", err.Error()))
		s.notify(events.MessageTypeDatasetError, events.DatasetError{
			Source:  s.source.URI(),
			Message: err.Error(),
			Retry:   errors.Is(err, infrastructure.ErrCircuitOpen),
		})
		return false, err
	}

	s.mu.Lock()
	prev := s.ds
	s.lastErr = nil
	s.reloads++
	if prev != nil && prev.Fingerprint == ds.Fingerprint {
		s.mu.Unlock()
		logger.DebugContext(ctx, "dataset unchanged",
			slog.String("fingerprint", report.FingerprintString(ds)))
		return false, nil
	}
	s.ds = ds
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Invalidate()
	}

	logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", ds.Source),
		slog.String("format", string(ds.Format)),
		slog.String("fingerprint", report.FingerprintString(ds)),
		slog.Int("rows", ds.Len()),
		slog.Int("skipped", ds.Skipped),
		slog.Int("invalid_amounts", ds.InvalidAmounts),
		slog.Duration("duration", time.Since(start)))

	s.notify(events.MessageTypeDatasetReloaded, events.DatasetReloaded{
		Source:         ds.Source,
		Fingerprint:    report.FingerprintString(ds),
		Previous:       report.FingerprintString(prev),
		Rows:           ds.Len(),
		Skipped:        ds.Skipped,
		InvalidAmounts: ds.InvalidAmounts,
		LoadedAt:       ds.LoadedAt,
	})
	return true, nil
}

// loadError types a failed load. Bytes that arrived but could not be
// decoded are a parsing error; anything that stopped them arriving is a
// storage error.
func loadError(uri string, err error) error {
	var appErr *apierrors.AppError
	switch {
	case errors.Is(err, dataset.ErrMalformed),
		errors.Is(err, dataset.ErrUnsupportedFormat),
		errors.Is(err, dataset.ErrEmptyInput),
		errors.Is(err, dataset.ErrMissingColumns),
		errors.Is(err, dataset.ErrTooLarge):
		appErr = apierrors.NewParsingError("failed to parse dataset", err)
	default:
		appErr = apierrors.NewStorageError("failed to read dataset", err)
	}
	return appErr.WithContext("source", uri)
}

func (s *DashboardService) notify(t events.MessageType, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(string(t), data)
}

// snapshot returns the dataset in service.
func (s *DashboardService) snapshot() (*dataset.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrDatasetNotLoaded
	}
	return s.ds, nil
}

func (s *DashboardService) layout(name string) (*report.Layout, error) {
	if name == "" {
		name = s.defaultLayout
	}
	return s.layouts.Get(name)
}

// Dashboard returns the full report for a layout. An empty layout name
// selects the default layout.
func (s *DashboardService) Dashboard(ctx context.Context, layoutName string, sel filter.Selection) (*domain.Report, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	layout, err := s.layout(layoutName)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, ds, layout, sel)
}

func (s *DashboardService) build(ctx context.Context, ds *dataset.Dataset, layout *report.Layout, sel filter.Selection) (*domain.Report, error) {
	key := report.CacheKey(ds.Fingerprint, layout.Name, sel)
	if s.cache != nil {
		if rep, ok := s.cache.Get(key); ok {
			s.metrics.RecordDashboardBuild(ctx, layout.Name, true, 0, nil)
			return rep, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := s.builds.DoChan(strconv.FormatUint(key, 16), func() (interface{}, error) {
		// the result is shared and cached, so no single caller may cancel it
		ctx, span := infrastructure.StartSpan(context.WithoutCancel(ctx), "dashboard.build",
			attribute.String("dashboard.layout", layout.Name),
			attribute.Int("dataset.rows", ds.Len()))
		defer span.End()

		start := time.Now()
		rep, err := s.builder.Build(ctx, ds, sel, layout)
		s.metrics.RecordDashboardBuild(ctx, layout.Name, false, time.Since(start), err)
		if err != nil {
			infrastructure.RecordError(ctx, err)
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, rep)
		}
		return rep, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "shared dashboard build", slog.String("layout", layout.Name))
		}
		return res.Val.(*domain.Report), nil
	}
}

// Section returns one section of a layout. A cached full report is reused
// when present.
func (s *DashboardService) Section(ctx context.Context, layoutName, id string, sel filter.Selection) (domain.Section, error) {
	ds, err := s.snapshot()
	if err != nil {
		return domain.Section{}, err
	}
	layout, err := s.layout(layoutName)
	if err != nil {
		return domain.Section{}, err
	}

	if s.cache != nil {
		if rep, ok := s.cache.Get(report.CacheKey(ds.Fingerprint, layout.Name, sel)); ok {
			for _, sec := range rep.Sections {
				if sec.ID == id {
					return sec, nil
				}
			}
		}
	}
	return s.builder.Section(ctx, ds, sel, layout, id)
}

// Metrics summarises the amounts of the rows matching the primary criteria
// of sel (year, round and location).
func (s *DashboardService) Metrics(ctx context.Context, sel filter.Selection) (domain.Metrics, error) {
	ds, err := s.snapshot()
	if err != nil {
		return domain.Metrics{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Metrics{}, err
	}
	return report.ComputeMetrics(report.Scoped(ds, sel, report.ScopePrimary)), nil
}

// Options lists the values a caller can filter on.
func (s *DashboardService) Options(ctx context.Context) (domain.FilterOptions, error) {
	ds, err := s.snapshot()
	if err != nil {
		return domain.FilterOptions{}, err
	}
	return ds.Options(), nil
}

// Predictions fits the funding trend of every company over the rows that
// match sel and fall in the prediction window.
func (s *DashboardService) Predictions(ctx context.Context, sel filter.Selection) (*api.PredictionsResponse, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := s.builder.PredictionWindow()
	p, err := report.Predict(filter.Apply(ds.Records, sel), window)
	if err != nil {
		s.metrics.RecordTrendFit(ctx, 0, err)
		return nil, err
	}
	s.metrics.RecordTrendFit(ctx, len(p.Lines), nil)

	return &api.PredictionsResponse{
		From:  window.From,
		To:    window.To,
		Rows:  p.Rows,
		Lines: p.Lines,
	}, nil
}

// Estimate fits one trend line per entity over caller supplied observations.
func (s *DashboardService) Estimate(ctx context.Context, obs []domain.Observation) (*api.EstimateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := infrastructure.StartSpan(ctx, "trend.estimate",
		attribute.Int("trend.observations", len(obs)))
	defer span.End()

	result, err := trend.Estimate(obs)
	if err != nil {
		s.metrics.RecordTrendFit(ctx, 0, err)
		return nil, err
	}
	s.metrics.RecordTrendFit(ctx, len(result.Lines), nil)

	lines := make(map[string]domain.TrendLine, len(result.Lines))
	for _, l := range result.TrendLines() {
		lines[l.EntityID] = l
	}
	return &api.EstimateResponse{Rows: result.Rows, Lines: lines}, nil
}

// Export writes a section, or with SectionAll the whole layout, to w. CSV
// holds a single table, so SectionAll is only valid for xlsx and json.
func (s *DashboardService) Export(ctx context.Context, w io.Writer, layoutName, id, format string, sel filter.Selection) error {
	switch format {
	case FormatCSV, FormatXLSX, FormatJSON:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidExport, format)
	}
	if id == "" {
		return fmt.Errorf("%w: section is required", ErrInvalidExport)
	}
	if id == SectionAll && format == FormatCSV {
		return fmt.Errorf("%w: csv exports a single section", ErrInvalidExport)
	}

	var err error
	if id == SectionAll {
		err = s.exportReport(ctx, w, layoutName, format, sel)
	} else {
		err = s.exportSection(ctx, w, layoutName, id, format, sel)
	}
	if err != nil {
		return err
	}

	s.metrics.RecordExport(ctx, format)
	s.logger.InfoContext(ctx, "export written",
		slog.String("layout", layoutName),
		slog.String("section", id),
		slog.String("format", format))
	return nil
}

func (s *DashboardService) exportReport(ctx context.Context, w io.Writer, layoutName, format string, sel filter.Selection) error {
	rep, err := s.Dashboard(ctx, layoutName, sel)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return exporter.WriteWorkbook(w, rep)
	}
	return json.NewEncoder(w).Encode(rep)
}

func (s *DashboardService) exportSection(ctx context.Context, w io.Writer, layoutName, id, format string, sel filter.Selection) error {
	sec, err := s.Section(ctx, layoutName, id, sel)
	if err != nil {
		return err
	}
	switch format {
	case FormatXLSX:
		return exporter.WriteSections(w, []domain.Section{sec})
	case FormatJSON:
		return json.NewEncoder(w).Encode(sec)
	default:
		headers, rows := exporter.SectionTable(sec)
		return s.csv.Write(w, exporter.WriteOptions{
			Headers:   headers,
			Records:   rows,
			BOMPrefix: true,
		})
	}
}

// Status describes the dataset in service and the outcome of the last load.
func (s *DashboardService) Status() api.DatasetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := api.DatasetStatus{
		Source:  s.source.URI(),
		Reloads: s.reloads,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.ds == nil {
		return status
	}
	status.Loaded = true
	status.Format = string(s.ds.Format)
	status.Fingerprint = report.FingerprintString(s.ds)
	status.Rows = s.ds.Len()
	status.Skipped = s.ds.Skipped
	status.InvalidAmounts = s.ds.InvalidAmounts
	status.LoadedAt = s.ds.LoadedAt
	return status
}

// Loaded reports whether a dataset is in service.
func (s *DashboardService) Loaded() bool {
	_, err := s.snapshot()
	return err == nil
}

// Layouts lists the registered layouts in name order.
func (s *DashboardService) Layouts() []api.LayoutSummary {
	names := s.layouts.Names()
	out := make([]api.LayoutSummary, 0, len(names))
	for _, name := range names {
		l, err := s.layouts.Get(name)
		if err != nil {
			continue
		}
		ids := make([]string, len(l.Sections))
		for i, sec := range l.Sections {
			ids[i] = sec.ID
		}
		out = append(out, api.LayoutSummary{Name: l.Name, Title: l.Title, Sections: ids})
	}
	return out
}

// CacheStats returns report cache statistics. ok is false without a cache.
func (s *DashboardService) CacheStats() (report.CacheStats, bool) {
	if s.cache == nil {
		return report.CacheStats{}, false
	}
	return s.cache.Stats(), true
}

// Close stops the report cache sweeper.
func (s *DashboardService) Close() {
	if s.cache != nil {
		s.cache.Stop()
	}
}
