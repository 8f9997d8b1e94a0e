package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fundscope/pkg/contracts/domain"
)

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(sampleRecords())

	assert.Equal(t, 7, m.Count)
	assert.Equal(t, 6, m.ValidCount)
	assert.Equal(t, 1850.0, m.Total)
	assert.InDelta(t, 308.3333333, m.Average, 1e-6)
	assert.Equal(t, 700.0, m.Max)
	assert.Equal(t, 50.0, m.Min)
	assert.Equal(t, domain.MetricsDisplay{Total: "1,850", Average: "308", Max: "700", Min: "50"}, m.Display)
}

func TestComputeMetricsNoValidAmounts(t *testing.T) {
	m := ComputeMetrics([]domain.FundingRecord{invalid(1, "X", 2020, "", "", "")})
	assert.Equal(t, 1, m.Count)
	assert.Zero(t, m.ValidCount)
	assert.Zero(t, m.Total)
	assert.Zero(t, m.Average)
	assert.Equal(t, "0", m.Display.Max)

	empty := ComputeMetrics(nil)
	assert.Zero(t, empty.Count)
}

func TestComputeMetricsDecimalTotal(t *testing.T) {
	records := make([]domain.FundingRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, rec(i, "A", 2020, "", "", "", 0.1))
	}
	m := ComputeMetrics(records)
	assert.Equal(t, 1.0, m.Total)
	assert.Equal(t, 0.1, m.Average)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567.5, "1,234,568"},
		{2.5, "2"},
		{-1234567, "-1,234,567"},
		{100000, "100,000"},
		{12345678901, "12,345,678,901"},
		{-0.4, "0"},
		{3.5, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.in))
		})
	}
}
