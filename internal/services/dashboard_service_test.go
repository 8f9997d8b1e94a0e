package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundscope/internal/dataset"
	apierrors "fundscope/internal/errors"
	"fundscope/internal/filter"
	"fundscope/internal/report"
	"fundscope/internal/trend"
	"fundscope/pkg/contracts/domain"
	"fundscope/pkg/contracts/events"
)

const fundingCSV = "Company Name,Year_Funded,Round/Series,Location,Industry,Amount\n" +
	"Acme,2019,Seed,Bangalore,Fintech,100\n" +
	"Acme,2020,Series A,Bangalore,Fintech,200\n" +
	"Beta,2020,Seed,Mumbai,EV,500\n" +
	"Gamma,2020,Seed,Delhi,Fintech,Undisclosed\n" +
	"Acme,2021,Series B,Bangalore,Fintech,300\n" +
	"Delta,2017,Seed,Mumbai,Edtech,50\n" +
	"Beta,2022,Series A,Mumbai,EV,700\n"

// memSource serves a dataset from memory. Its content and failure can be
// swapped between loads.
type memSource struct {
	mu    sync.Mutex
	name  string
	data  string
	err   error
	opens atomic.Int32
}

func (m *memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	m.opens.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader(m.data)), nil
}

func (m *memSource) Name() string { return m.name }

func (m *memSource) URI() string { return "mem://" + m.name }

func (m *memSource) set(data string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data, m.err = data, err
}

type recordedEvent struct {
	Type string
	Data interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Broadcast(messageType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: messageType, Data: data})
}

func (n *recordingNotifier) all() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fixture struct {
	svc      *DashboardService
	source   *memSource
	notifier *recordingNotifier
	cache    *report.Cache
}

func newFixture(t *testing.T, load bool) *fixture {
	t.Helper()
	src := &memSource{name: "startup_funding.csv", data: fundingCSV}
	notifier := &recordingNotifier{}
	cache := report.NewCache(time.Minute, 16)

	svc, err := NewDashboardService(DashboardOptions{
		Source:   src,
		Layouts:  report.NewRegistry(),
		Cache:    cache,
		Notifier: notifier,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	if load {
		require.NoError(t, svc.Load(context.Background()))
	}
	return &fixture{svc: svc, source: src, notifier: notifier, cache: cache}
}

func TestNewDashboardServiceValidation(t *testing.T) {
	src := &memSource{name: "x.csv"}

	tests := []struct {
		name    string
		opts    DashboardOptions
		wantErr error
	}{
		{
			name:    "missing source",
			opts:    DashboardOptions{Layouts: report.NewRegistry()},
			wantErr: dataset.ErrInvalidSource,
		},
		{
			name: "missing layouts",
			opts: DashboardOptions{Source: src},
		},
		{
			name:    "unknown default layout",
			opts:    DashboardOptions{Source: src, Layouts: report.NewRegistry(), DefaultLayout: "nope"},
			wantErr: ErrUnknownLayout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewDashboardService(tt.opts)
			require.Error(t, err)
			assert.Nil(t, svc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDashboardServiceNotLoaded(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Dashboard(ctx, "", filter.Selection{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = f.svc.Section(ctx, "", "metrics", filter.Selection{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = f.svc.Metrics(ctx, filter.Selection{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = f.svc.Options(ctx)
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	_, err = f.svc.Predictions(ctx, filter.Selection{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)

	assert.False(t, f.svc.Loaded())
	status := f.svc.Status()
	assert.False(t, status.Loaded)
	assert.Equal(t, "mem://startup_funding.csv", status.Source)
}

func TestDashboardServiceLoad(t *testing.T) {
	f := newFixture(t, true)

	status := f.svc.Status()
	assert.True(t, status.Loaded)
	assert.Equal(t, 7, status.Rows)
	assert.Equal(t, 1, status.InvalidAmounts)
	assert.Equal(t, "csv", status.Format)
	assert.Len(t, status.Fingerprint, 16)
	assert.EqualValues(t, 1, status.Reloads)

	evts := f.notifier.all()
	require.Len(t, evts, 1)
	assert.Equal(t, string(events.MessageTypeDatasetReloaded), evts[0].Type)
	payload, ok := evts[0].Data.(events.DatasetReloaded)
	require.True(t, ok)
	assert.Equal(t, 7, payload.Rows)
	assert.Empty(t, payload.Previous)
}

func TestDashboardServiceDashboard(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	sel := filter.Selection{Years: []int{2020}}

	tests := []struct {
		name     string
		layout   string
		sections int
		wantErr  error
	}{
		{name: "default layout", layout: "", sections: len(report.Classic().Sections)},
		{name: "classic", layout: report.LayoutClassic, sections: len(report.Classic().Sections)},
		{name: "extended", layout: report.LayoutExtended, sections: len(report.Extended().Sections)},
		{name: "unknown", layout: "missing", wantErr: ErrUnknownLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := f.svc.Dashboard(ctx, tt.layout, sel)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rep.Sections, tt.sections)
			assert.Equal(t, 7, rep.Rows)

			metrics := rep.Sections[0].Metrics
			require.NotNil(t, metrics)
			assert.Equal(t, 3, metrics.Count)
			assert.Equal(t, 700.0, metrics.Total)
		})
	}
}

func TestDashboardServiceCachesReports(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	sel := filter.Selection{Locations: []string{"Mumbai"}}

	first, err := f.svc.Dashboard(ctx, report.LayoutClassic, sel)
	require.NoError(t, err)
	second, err := f.svc.Dashboard(ctx, report.LayoutClassic, sel)
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats, ok := f.svc.CacheStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.HitCount)

	// a different selection is a different entry
	_, err = f.svc.Dashboard(ctx, report.LayoutClassic, filter.Selection{})
	require.NoError(t, err)
	stats, _ = f.svc.CacheStats()
	assert.Equal(t, 2, stats.Entries)
}

func TestDashboardServiceConcurrentBuilds(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	reports := make([]*domain.Report, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := f.svc.Dashboard(ctx, report.LayoutExtended, filter.Selection{})
			assert.NoError(t, err)
			reports[i] = rep
		}(i)
	}
	wg.Wait()

	for _, rep := range reports {
		require.NotNil(t, rep)
		assert.Equal(t, reports[0].Fingerprint, rep.Fingerprint)
		assert.Len(t, rep.Sections, len(report.Extended().Sections))
	}
}

func TestDashboardServiceSection(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	sec, err := f.svc.Section(ctx, report.LayoutClassic, "location-distribution", filter.Selection{})
	require.NoError(t, err)
	assert.Equal(t, domain.SectionLocationDistribution, sec.Kind)
	require.NotEmpty(t, sec.Series)
	assert.Equal(t, "Bangalore", sec.Series[0].Label)
	assert.Equal(t, 3.0, sec.Series[0].Value)

	_, err = f.svc.Section(ctx, report.LayoutClassic, "nope", filter.Selection{})
	assert.ErrorIs(t, err, ErrUnknownSection)

	// served from a cached report after a full build
	_, err = f.svc.Dashboard(ctx, report.LayoutClassic, filter.Selection{})
	require.NoError(t, err)
	cached, err := f.svc.Section(ctx, report.LayoutClassic, "location-distribution", filter.Selection{})
	require.NoError(t, err)
	assert.Equal(t, sec.Series, cached.Series)
}

func TestDashboardServiceMetricsAndOptions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	// industry and amount criteria do not touch the primary scope
	m, err := f.svc.Metrics(ctx, filter.Selection{Rounds: []string{"Seed"}, Industries: []string{"EV"}})
	require.NoError(t, err)
	assert.Equal(t, 4, m.Count)
	assert.Equal(t, 3, m.ValidCount)
	assert.Equal(t, 650.0, m.Total)
	assert.Equal(t, "650", m.Display.Total)

	opts, err := f.svc.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020, 2021, 2017, 2022}, opts.Years)
	assert.Equal(t, []string{"Seed", "Series A", "Series B"}, opts.Rounds)
	assert.Equal(t, domain.AmountRange{Min: 50, Max: 700}, opts.Amount)
}

func TestDashboardServicePredictions(t *testing.T) {
	f := newFixture(t, true)

	p, err := f.svc.Predictions(context.Background(), filter.Selection{Years: []int{2020, 2021}})
	require.NoError(t, err)

	assert.Equal(t, report.DefaultPredictionWindow.From, p.From)
	assert.Equal(t, report.DefaultPredictionWindow.To, p.To)
	require.Len(t, p.Rows, 4)
	assert.Len(t, p.Lines, 3)

	byCompanyYear := map[string]float64{}
	for _, r := range p.Rows {
		byCompanyYear[fmt.Sprintf("%s/%d", r.CompanyName, r.YearFunded)] = r.Predicted
	}
	assert.InDelta(t, 200, byCompanyYear["Acme/2020"], 1e-9)
	assert.InDelta(t, 300, byCompanyYear["Acme/2021"], 1e-9)
	assert.InDelta(t, 500, byCompanyYear["Beta/2020"], 1e-9)
	assert.InDelta(t, 0, byCompanyYear["Gamma/2020"], 1e-9)
}

func TestDashboardServicePredictionsSelection(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name     string
		sel      filter.Selection
		wantRows int
	}{
		{name: "no selection", sel: filter.Selection{}, wantRows: 6},
		{name: "location", sel: filter.Selection{Locations: []string{"Mumbai"}}, wantRows: 2},
		{name: "industry", sel: filter.Selection{Industries: []string{"Fintech"}}, wantRows: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Predictions(ctx, tt.sel)
			require.NoError(t, err)
			assert.Len(t, p.Rows, tt.wantRows)

			// The classic section is scoped to the whole dataset.
			sec, err := f.svc.Section(ctx, report.LayoutClassic, "predictions", tt.sel)
			require.NoError(t, err)
			assert.Len(t, sec.Predictions, 6)
		})
	}
}

func TestDashboardServiceEstimate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.Estimate(ctx, []domain.Observation{
		{EntityID: "a", Period: 1, Value: 1},
		{EntityID: "b", Period: 5, Value: 10},
		{EntityID: "a", Period: 2, Value: 3},
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 3)
	assert.InDelta(t, 1, resp.Rows[0].Fitted, 1e-9)
	assert.InDelta(t, 10, resp.Rows[1].Fitted, 1e-9)
	assert.InDelta(t, 3, resp.Rows[2].Fitted, 1e-9)
	assert.InDelta(t, 2, resp.Lines["a"].Slope, 1e-9)
	assert.InDelta(t, -1, resp.Lines["a"].Intercept, 1e-9)
	assert.Equal(t, 1, resp.Lines["b"].Points)

	_, err = f.svc.Estimate(ctx, []domain.Observation{{Period: 1, Value: 1}})
	assert.ErrorIs(t, err, trend.ErrInvalidInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.svc.Estimate(cancelled, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDashboardServiceExport(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		format  string
		wantErr error
		check   func(t *testing.T, out []byte)
	}{
		{
			name:   "csv section",
			id:     "predictions",
			format: FormatCSV,
			check: func(t *testing.T, out []byte) {
				text := strings.TrimPrefix(string(out), "\ufeff")
				lines := strings.Split(strings.TrimSpace(text), "\n")
				assert.Equal(t, "Company Name,Year_Funded,Amount,Predicted_Revenue", lines[0])
				// header plus the six rows inside the prediction window
				assert.Len(t, lines, 7)
			},
		},
		{
			name:   "json section",
			id:     "metrics",
			format: FormatJSON,
			check: func(t *testing.T, out []byte) {
				var sec domain.Section
				require.NoError(t, json.Unmarshal(out, &sec))
				assert.Equal(t, "metrics", sec.ID)
				require.NotNil(t, sec.Metrics)
			},
		},
		{
			name:   "json report",
			id:     SectionAll,
			format: FormatJSON,
			check: func(t *testing.T, out []byte) {
				var rep domain.Report
				require.NoError(t, json.Unmarshal(out, &rep))
				assert.Len(t, rep.Sections, len(report.Classic().Sections))
			},
		},
		{
			name:   "xlsx workbook",
			id:     SectionAll,
			format: FormatXLSX,
			check: func(t *testing.T, out []byte) {
				wb, err := excelize.OpenReader(bytes.NewReader(out))
				require.NoError(t, err)
				defer wb.Close()
				assert.Len(t, wb.GetSheetList(), len(report.Classic().Sections))
			},
		},
		{name: "csv of everything", id: SectionAll, format: FormatCSV, wantErr: ErrInvalidExport},
		{name: "unknown format", id: "metrics", format: "pdf", wantErr: ErrInvalidExport},
		{name: "missing section", id: "", format: FormatCSV, wantErr: ErrInvalidExport},
		{name: "unknown section", id: "nope", format: FormatJSON, wantErr: ErrUnknownSection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := f.svc.Export(ctx, &buf, report.LayoutClassic, tt.id, tt.format, filter.Selection{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, buf.Bytes())
		})
	}
}

func TestDashboardServiceReload(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Dashboard(ctx, "", filter.Selection{})
	require.NoError(t, err)
	before := f.svc.Status().Fingerprint

	// unchanged content keeps the cache and sends nothing
	changed, err := f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	stats, _ := f.svc.CacheStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Len(t, f.notifier.all(), 1)

	// new content swaps the dataset and drops cached reports
	f.source.set(fundingCSV+"Epsilon,2023,Seed,Pune,AI,900\n", nil)
	changed, err = f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	status := f.svc.Status()
	assert.Equal(t, 8, status.Rows)
	assert.NotEqual(t, before, status.Fingerprint)
	stats, _ = f.svc.CacheStats()
	assert.Equal(t, 0, stats.Entries)

	evts := f.notifier.all()
	require.Len(t, evts, 2)
	payload := evts[1].Data.(events.DatasetReloaded)
	assert.Equal(t, before, payload.Previous)

	// a failing source keeps the dataset in service
	boom := errors.New("connection reset")
	f.source.set("", boom)
	changed, err = f.svc.Reload(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)

	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeStorage, appErr.Type)
	assert.Equal(t, "mem://startup_funding.csv", appErr.Context["source"])

	status = f.svc.Status()
	assert.True(t, status.Loaded)
	assert.Equal(t, 8, status.Rows)
	assert.Contains(t, status.LastError, "connection reset")

	evts = f.notifier.all()
	require.Len(t, evts, 3)
	assert.Equal(t, string(events.MessageTypeDatasetError), evts[2].Type)
}

func TestDashboardServiceLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     string
		srcErr   error
		maxBytes int64
		wantErr  error
		wantType apierrors.ErrorType
	}{
		{name: "missing columns", file: "a.csv", data: "Company Name,Location\nAcme,Pune\n", wantErr: dataset.ErrMissingColumns, wantType: apierrors.ErrTypeParsing},
		{name: "unsupported format", file: "a.parquet", data: "x", wantErr: dataset.ErrUnsupportedFormat, wantType: apierrors.ErrTypeParsing},
		{name: "empty", file: "a.csv", data: "", wantErr: dataset.ErrEmptyInput, wantType: apierrors.ErrTypeParsing},
		{name: "corrupt gzip", file: "a.csv.gz", data: "not gzip", wantErr: dataset.ErrMalformed, wantType: apierrors.ErrTypeParsing},
		{name: "over size limit", file: "a.csv", data: fundingCSV, maxBytes: 32, wantErr: dataset.ErrTooLarge, wantType: apierrors.ErrTypeParsing},
		{name: "unreadable source", file: "a.csv", srcErr: errors.New("access denied"), wantType: apierrors.ErrTypeStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			svc, err := NewDashboardService(DashboardOptions{
				Source:      &memSource{name: tt.file, data: tt.data, err: tt.srcErr},
				LoadOptions: dataset.LoadOptions{MaxBytes: tt.maxBytes},
				Layouts:     report.NewRegistry(),
				Notifier:    notifier,
				Logger:      testLogger(),
			})
			require.NoError(t, err)

			err = svc.Load(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			typ, ok := apierrors.TypeOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, typ)
			assert.False(t, svc.Loaded())
			require.Len(t, notifier.all(), 1)
			assert.Equal(t, string(events.MessageTypeDatasetError), notifier.all()[0].Type)
		})
	}
}

func TestDashboardServiceLayouts(t *testing.T) {
	f := newFixture(t, false)

	layouts := f.svc.Layouts()
	require.Len(t, layouts, 2)
	assert.Equal(t, report.LayoutClassic, layouts[0].Name)
	assert.Equal(t, report.LayoutExtended, layouts[1].Name)
	assert.Equal(t, "metrics", layouts[0].Sections[0])
}

// gatedSource blocks Open until released or until the read's ctx ends.
type gatedSource struct {
	memSource
	release chan struct{}
	opened  chan struct{}
	once    sync.Once
}

func (g *gatedSource) Open(ctx context.Context) (io.ReadCloser, error) {
	g.once.Do(func() { close(g.opened) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.memSource.Open(ctx)
}

func TestDashboardServiceReloadOutlivesCancelledCaller(t *testing.T) {
	src := &gatedSource{
		memSource: memSource{name: "startup_funding.csv", data: fundingCSV},
		release:   make(chan struct{}),
		opened:    make(chan struct{}),
	}
	svc, err := NewDashboardService(DashboardOptions{
		Source:  src,
		Layouts: report.NewRegistry(),
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Reload(first)
		firstErr <- err
	}()
	<-src.opened

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Reload(context.Background())
		secondErr <- err
	}()
	// let the second caller join the read in flight
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	select {
	case err := <-secondErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shared reload did not finish")
	}
	assert.True(t, svc.Loaded())
	assert.Empty(t, svc.Status().LastError)
}

func TestDashboardServiceCancelledCaller(t *testing.T) {
	f := newFixture(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Dashboard(ctx, "", filter.Selection{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.svc.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// the service itself is unaffected
	_, err = f.svc.Dashboard(context.Background(), "", filter.Selection{})
	assert.NoError(t, err)
}
