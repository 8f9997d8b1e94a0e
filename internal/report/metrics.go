package report

import (
	"math"
	"strconv"

	"github.com/govalues/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	"fundscope/pkg/contracts/domain"
)

// ComputeMetrics summarises the valid amounts of records. Totals are summed
// as decimals so large datasets do not drift. With no valid amounts every
// figure is zero.
func ComputeMetrics(records []domain.FundingRecord) domain.Metrics {
	m := domain.Metrics{Count: len(records)}

	amounts := make([]float64, 0, len(records))
	for _, r := range records {
		if r.AmountValid {
			amounts = append(amounts, r.Amount)
		}
	}
	m.ValidCount = len(amounts)
	if m.ValidCount == 0 {
		m.Display = display(m)
		return m
	}

	m.Min, m.Max = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		m.Min = math.Min(m.Min, a)
		m.Max = math.Max(m.Max, a)
	}

	if total, avg, ok := decimalTotals(amounts); ok {
		m.Total, m.Average = total, avg
	} else {
		// out of decimal range
		m.Average = stat.Mean(amounts, nil)
		m.Total = m.Average * float64(len(amounts))
	}

	m.Display = display(m)
	return m
}

func decimalTotals(amounts []float64) (total, average float64, ok bool) {
	sum := decimal.Zero
	for _, a := range amounts {
		d, err := decimal.NewFromFloat64(a)
		if err != nil {
			return 0, 0, false
		}
		if sum, err = sum.Add(d); err != nil {
			return 0, 0, false
		}
	}
	n, err := decimal.New(int64(len(amounts)), 0)
	if err != nil {
		return 0, 0, false
	}
	mean, err := sum.Quo(n)
	if err != nil {
		return 0, 0, false
	}

	total, ok = sum.Float64()
	if !ok {
		return 0, 0, false
	}
	average, ok = mean.Float64()
	return total, average, ok
}

func display(m domain.Metrics) domain.MetricsDisplay {
	return domain.MetricsDisplay{
		Total:   FormatAmount(m.Total),
		Average: FormatAmount(m.Average),
		Max:     FormatAmount(m.Max),
		Min:     FormatAmount(m.Min),
	}
}

// FormatAmount renders v rounded half to even with English thousands
// separators, e.g. 1234567.5 -> "1,234,568".
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	v = math.RoundToEven(v)
	if v == 0 {
		// no "-0"
		return "0"
	}
	return message.NewPrinter(language.English).Sprintf("%.0f", v)
}
