package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"fundscope/pkg/contracts/domain"
)

// Format is the decoded file layout of a dataset.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVGzip Format = "csv.gz"
	FormatCSVZstd Format = "csv.zst"
	FormatCSVS2   Format = "csv.s2"
	FormatXLSX    Format = "xlsx"
)

// DetectFormat picks a format from a file name.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"), strings.HasSuffix(lower, ".csv.gzip"):
		return FormatCSVGzip, nil
	case strings.HasSuffix(lower, ".csv.zst"), strings.HasSuffix(lower, ".csv.zstd"):
		return FormatCSVZstd, nil
	case strings.HasSuffix(lower, ".csv.s2"):
		return FormatCSVS2, nil
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// DefaultMaxBytes bounds the raw size of a source when LoadOptions.MaxBytes
// is unset.
const DefaultMaxBytes int64 = 256 << 20

// LoadOptions tunes decoding.
type LoadOptions struct {
	// Sheet selects the xlsx sheet. Empty means the first sheet.
	Sheet string
	// MaxBytes caps the raw (still compressed) bytes read from a source.
	MaxBytes int64
	Logger   *slog.Logger
}

func (o LoadOptions) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

// Load reads src and returns the cleaned dataset.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Dataset, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := opts.maxBytes()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", src.URI(), err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, src.URI(), limit)
	}

	ds, err := Parse(src.Name(), data, opts)
	if err != nil {
		return nil, err
	}
	ds.Source = src.URI()
	return ds, nil
}

// Parse decodes raw file bytes named name.
func Parse(name string, data []byte, opts LoadOptions) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(format, data, opts.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMalformed, name, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Records:     make([]domain.FundingRecord, 0, len(rows)-1),
		Fingerprint: xxhash.Sum64(data),
		Source:      name,
		Format:      format,
		LoadedAt:    time.Now(),
	}

	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec, ok := cleanRow(i+1, row, cols)
		if !ok {
			ds.Skipped++
			continue
		}
		if !rec.AmountValid {
			ds.InvalidAmounts++
		}
		ds.Records = append(ds.Records, rec)
	}

	logger.Info("dataset parsed",
		slog.String("name", name),
		slog.String("format", string(format)),
		slog.Int("rows", len(ds.Records)),
		slog.Int("skipped", ds.Skipped),
		slog.Int("invalid_amounts", ds.InvalidAmounts),
		slog.Uint64("fingerprint", ds.Fingerprint))

	return ds, nil
}

func cleanRow(rowNum int, row []string, cols columnIndex) (domain.FundingRecord, bool) {
	year, ok := ParseYear(cols.get(row, ColumnYear))
	if !ok {
		return domain.FundingRecord{}, false
	}

	raw := cols.get(row, ColumnAmount)
	amount, valid := ParseAmount(raw)

	return domain.FundingRecord{
		Row:         rowNum,
		CompanyName: cols.get(row, ColumnCompany),
		YearFunded:  year,
		Round:       cols.get(row, ColumnRound),
		Location:    cols.get(row, ColumnLocation),
		Industry:    cols.get(row, ColumnIndustry),
		Amount:      amount,
		AmountValid: valid,
		RawAmount:   raw,
	}, true
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func decodeRows(format Format, data []byte, sheet string) ([][]string, error) {
	switch format {
	case FormatCSV:
		return readCSV(bytes.NewReader(data))
	case FormatCSVGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readCSV(zr)
	case FormatCSVZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return readCSV(bytes.NewReader(raw))
	case FormatCSVS2:
		raw, err := s2.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("s2: %w", err)
		}
		return readCSV(bytes.NewReader(raw))
	case FormatXLSX:
		return readXLSX(data, sheet)
	}
	return nil, ErrUnsupportedFormat
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}
	return f.GetRows(sheet)
}
