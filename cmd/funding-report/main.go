// Command funding-report builds a dashboard from a funding dataset and
// writes it, or one of its sections, as json, csv or xlsx.
//
//	funding-report -in data/startups_dset.csv -location Bangalore -format xlsx -out report.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fundscope/internal/app"
	"fundscope/internal/config"
	"fundscope/internal/dataset"
	apierrors "fundscope/internal/errors"
	"fundscope/internal/filter"
	"fundscope/internal/infrastructure"
	"fundscope/internal/report"
	"fundscope/internal/services"
	"fundscope/internal/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		attrs := []any{slog.String("error", err.Error())}
		if typ, ok := apierrors.TypeOf(err); ok {
			attrs = append(attrs, slog.String("error_type", string(typ)))
		}
		slog.Error("funding report failed", attrs...)
		os.Exit(1)
	}
}

type options struct {
	in          string
	sheet       string
	layout      string
	layoutsFile string
	section     string
	format      string
	out         string
	logLevel    string
	query       url.Values
}

func parseFlags(args []string, stderr io.Writer, defaults *config.Config) (*options, error) {
	fs := flag.NewFlagSet("funding-report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", defaults.Dataset.Source, "dataset path or s3://bucket/key")
	fs.StringVar(&opts.sheet, "sheet", defaults.Dataset.Sheet, "worksheet of an xlsx dataset (defaults to the first)")
	fs.StringVar(&opts.layout, "layout", defaults.Dashboard.DefaultLayout, "dashboard layout")
	fs.StringVar(&opts.layoutsFile, "layouts-file", defaults.Dashboard.LayoutsFile, "yaml file with extra layouts")
	fs.StringVar(&opts.section, "section", services.SectionAll, "section id, or all for the whole layout")
	fs.StringVar(&opts.format, "format", services.FormatJSON, "json | csv | xlsx")
	fs.StringVar(&opts.out, "out", "", "output file (defaults to stdout)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug | info | warn | error")

	year := fs.String("year", "", "comma-separated funding years")
	round := fs.String("round", "", "comma-separated rounds")
	location := fs.String("location", "", "comma-separated locations")
	industry := fs.String("industry", "", "comma-separated industries")
	minAmount := fs.String("min-amount", "", "lowest amount kept")
	maxAmount := fs.String("max-amount", "", "highest amount kept")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	// the same parameter names the HTTP API accepts
	opts.query = url.Values{}
	for name, v := range map[string]string{
		"year":       *year,
		"round":      *round,
		"location":   *location,
		"industry":   *industry,
		"min_amount": *minAmount,
		"max_amount": *maxAmount,
	} {
		if v != "" {
			opts.query.Set(name, v)
		}
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "using default configuration: %v\n", err)
		cfg = config.Default()
	}

	opts, err := parseFlags(args, stderr, cfg)
	if err != nil {
		return err
	}
	logger := infrastructure.NewLoggerWithWriter(stderr, opts.logLevel)

	sel, err := filter.FromQuery(opts.query)
	if err != nil {
		return err
	}

	files := validation.NewFileValidator(logger)
	if !strings.Contains(opts.in, "://") {
		if err := files.ValidateDatasetFile(opts.in); err != nil {
			return err
		}
	}
	if toFile(opts.out) {
		if err := files.ValidateExportPath(opts.out, opts.format); err != nil {
			return err
		}
	}

	src, err := dataset.ParseSource(ctx, opts.in, app.S3SourceFactory(cfg.S3, logger))
	if err != nil {
		return err
	}

	layouts := report.NewRegistry()
	if opts.layoutsFile != "" {
		if _, err := layouts.LoadFile(opts.layoutsFile); err != nil {
			return apierrors.NewConfigError("failed to load layouts", err).
				WithContext("file", opts.layoutsFile)
		}
	}

	svc, err := services.NewDashboardService(services.DashboardOptions{
		Source:        src,
		LoadOptions:   dataset.LoadOptions{Sheet: opts.sheet, MaxBytes: cfg.Dataset.MaxBytes, Logger: logger},
		Layouts:       layouts,
		DefaultLayout: cfg.Dashboard.DefaultLayout,
		Builder: report.NewBuilder(report.BuilderOptions{
			PredictionWindow: report.YearWindow{
				From: cfg.Dashboard.PredictionFrom,
				To:   cfg.Dashboard.PredictionTo,
			},
			MaxConcurrency: cfg.Dashboard.MaxConcurrency,
		}, logger),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Load(ctx); err != nil {
		return err
	}
	st := svc.Status()
	logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", st.Source),
		slog.Int("rows", st.Rows),
		slog.Int("skipped", st.Skipped))

	if !toFile(opts.out) {
		return svc.Export(ctx, stdout, opts.layout, opts.section, opts.format, sel)
	}
	return writeFile(ctx, svc, opts, sel)
}

func toFile(out string) bool {
	return out != "" && out != "-"
}

// writeFile exports into opts.out, removing the file when the export fails.
func writeFile(ctx context.Context, svc *services.DashboardService, opts *options, sel filter.Selection) (err error) {
	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(opts.out)
		}
	}()

	return svc.Export(ctx, f, opts.layout, opts.section, opts.format, sel)
}
