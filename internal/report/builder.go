package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fundscope/internal/dataset"
	"fundscope/internal/filter"
	"fundscope/pkg/contracts/domain"
)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// PredictionWindow is used by prediction sections without their own years.
	PredictionWindow YearWindow
	// MaxConcurrency bounds parallel section builds. Zero means unbounded.
	MaxConcurrency int
}

// Builder turns a dataset, a selection and a layout into a report.
type Builder struct {
	opts   BuilderOptions
	logger *slog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(opts BuilderOptions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PredictionWindow == (YearWindow{}) {
		opts.PredictionWindow = DefaultPredictionWindow
	}
	return &Builder{opts: opts, logger: logger.With(slog.String("component", "report_builder"))}
}

// Scoped returns the records a section with the given scope reads.
//
// The secondary scope always applies an amount range. Missing bounds default
// to the dataset's valid amount range, so rows with unparseable amounts never
// reach secondary sections.
func Scoped(ds *dataset.Dataset, sel filter.Selection, scope Scope) []domain.FundingRecord {
	if ds == nil {
		return nil
	}
	switch scope {
	case ScopePrimary:
		return filter.Apply(ds.Records, sel.Primary())
	case ScopeSecondary:
		sec := sel.Secondary()
		bounds, ok := ds.AmountBounds()
		if !ok {
			return []domain.FundingRecord{}
		}
		if sec.MinAmount == nil {
			sec.MinAmount = &bounds.Min
		}
		if sec.MaxAmount == nil {
			sec.MaxAmount = &bounds.Max
		}
		return filter.Apply(ds.Records, sec)
	default:
		return ds.Records
	}
}

// Build computes every section of layout concurrently and returns them in
// layout order.
func (b *Builder) Build(ctx context.Context, ds *dataset.Dataset, sel filter.Selection, layout *Layout) (*domain.Report, error) {
	start := time.Now()

	scoped := make(map[Scope][]domain.FundingRecord, 3)
	for _, s := range layout.Sections {
		if _, ok := scoped[s.Scope]; !ok {
			scoped[s.Scope] = Scoped(ds, sel, s.Scope)
		}
	}

	sections := make([]domain.Section, len(layout.Sections))
	g, gctx := errgroup.WithContext(ctx)
	if b.opts.MaxConcurrency > 0 {
		g.SetLimit(b.opts.MaxConcurrency)
	}

	for i, spec := range layout.Sections {
		i, spec := i, spec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sec, err := ComputeSection(spec, scoped[spec.Scope], b.opts.PredictionWindow)
			if err != nil {
				return err
			}
			sections[i] = sec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.ErrorContext(ctx, "report build failed",
			slog.String("layout", layout.Name),
			slog.String("error", err.Error()))
		return nil, err
	}

	b.logger.DebugContext(ctx, "report built",
		slog.String("layout", layout.Name),
		slog.Int("sections", len(sections)),
		slog.Duration("duration", time.Since(start)))

	return &domain.Report{
		Layout:      layout.Name,
		Fingerprint: FingerprintString(ds),
		Rows:        ds.Len(),
		GeneratedAt: time.Now().UTC(),
		Sections:    sections,
	}, nil
}

// Section computes a single section of layout.
func (b *Builder) Section(ctx context.Context, ds *dataset.Dataset, sel filter.Selection, layout *Layout, id string) (domain.Section, error) {
	if err := ctx.Err(); err != nil {
		return domain.Section{}, err
	}
	spec, err := layout.Section(id)
	if err != nil {
		return domain.Section{}, err
	}
	return ComputeSection(spec, Scoped(ds, sel, spec.Scope), b.opts.PredictionWindow)
}

// PredictionWindow returns the default window used for prediction sections.
func (b *Builder) PredictionWindow() YearWindow {
	return b.opts.PredictionWindow
}

// FingerprintString renders a dataset fingerprint as fixed-width hex.
func FingerprintString(ds *dataset.Dataset) string {
	if ds == nil {
		return ""
	}
	return fmt.Sprintf("%016x", ds.Fingerprint)
}
