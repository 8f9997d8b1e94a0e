package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundscope/pkg/contracts/domain"
)

func seriesSection() domain.Section {
	return domain.Section{
		ID:        "sector-counts",
		Kind:      domain.SectionSectorCounts,
		Dimension: "Industry",
		Measure:   "Startup Count",
		Series: []domain.SeriesPoint{
			{Label: "Fintech", Value: 4},
			{Label: "EV, Mobility", Value: 2},
		},
	}
}

func predictionSection() domain.Section {
	return domain.Section{
		ID:   "predictions",
		Kind: domain.SectionPredictions,
		Predictions: []domain.PredictionRow{
			{CompanyName: "Acme", YearFunded: 2019, Amount: 100, AmountValid: true, Predicted: 100.5},
			{CompanyName: "Gamma", YearFunded: 2020, Predicted: 0},
		},
	}
}

func TestCSVWriterWrite(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		want    string
	}{
		{
			name:    "headers and records",
			options: WriteOptions{Headers: []string{"A", "B"}, Records: [][]string{{"1", "x,y"}}},
			want:    "A,B\n1,\"x,y\"\n",
		},
		{
			name:    "bom prefix",
			options: WriteOptions{Headers: []string{"A"}, BOMPrefix: true},
			want:    "\ufeffA\n",
		},
		{
			name:    "append skips headers and bom",
			options: WriteOptions{Headers: []string{"A"}, Records: [][]string{{"2"}}, Append: true, BOMPrefix: true},
			want:    "2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCSVWriter(nil).Write(&buf, tt.options))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestCSVWriterWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	w := NewCSVWriter(nil)

	require.NoError(t, w.WriteFile(path, WriteOptions{Headers: []string{"A"}, Records: [][]string{{"1"}}}))
	require.NoError(t, w.WriteFile(path, WriteOptions{Records: [][]string{{"2"}}, Append: true}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\n1\n2\n", string(content))
}

func TestSectionTableSeries(t *testing.T) {
	headers, rows := SectionTable(seriesSection())
	assert.Equal(t, []string{"Industry", "Startup Count"}, headers)
	assert.Equal(t, [][]string{{"Fintech", "4"}, {"EV, Mobility", "2"}}, rows)

	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(nil).Write(&buf, WriteOptions{Headers: headers, Records: rows}))
	parsed, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "EV, Mobility", parsed[2][0])
}

func TestSectionTablePredictions(t *testing.T) {
	headers, rows := SectionTable(predictionSection())
	assert.Equal(t, PredictionHeaders, headers)
	assert.Equal(t, [][]string{
		{"Acme", "2019", "100", "100.5"},
		{"Gamma", "2020", "", "0"},
	}, rows)
}

func TestSectionTableMetrics(t *testing.T) {
	sec := domain.Section{ID: "metrics", Kind: domain.SectionMetrics, Metrics: &domain.Metrics{
		Count: 3, ValidCount: 2, Total: 1500, Average: 750, Max: 1000, Min: 500,
		Display: domain.MetricsDisplay{Total: "1,500", Average: "750", Max: "1,000", Min: "500"},
	}}
	headers, rows := SectionTable(sec)
	assert.Equal(t, []string{"Metric", "Value", "Display"}, headers)
	assert.Equal(t, []string{"Total Investment", "1500", "1,500"}, rows[0])
	assert.Len(t, rows, 6)
}

func TestWriteWorkbook(t *testing.T) {
	rep := &domain.Report{Sections: []domain.Section{seriesSection(), predictionSection()}}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"sector-counts", "predictions"}, f.GetSheetList())

	rows, err := f.GetRows("predictions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, PredictionHeaders, rows[0])
	assert.Equal(t, "Acme", rows[1][0])
	assert.Equal(t, "100.5", rows[1][3])

	_, err = f.GetCellValue("sector-counts", "B2")
	require.NoError(t, err)
}

func TestWriteWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteWorkbook(&buf, &domain.Report{}))
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a_b", uniqueSheetName("a/b", used))
	assert.Equal(t, "a_b_2", uniqueSheetName("a:b", used))
	long := strings.Repeat("x", 40)
	assert.Len(t, uniqueSheetName(long, used), maxSheetName)
	assert.Equal(t, "section", uniqueSheetName("", used))
}
