package report

import (
	"cmp"
	"slices"
	"strconv"

	"fundscope/pkg/contracts/domain"
)

// tally accumulates values per label, remembering first-seen order.
type tally struct {
	order  []string
	values map[string]float64
}

func newTally() *tally {
	return &tally{values: make(map[string]float64)}
}

func (t *tally) add(label string, v float64) {
	if _, ok := t.values[label]; !ok {
		t.order = append(t.order, label)
	}
	t.values[label] += v
}

func (t *tally) points() []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, len(t.order))
	for i, label := range t.order {
		out[i] = domain.SeriesPoint{Label: label, Value: t.values[label]}
	}
	return out
}

// sortDescending orders by value, largest first. Ties keep their current
// order.
func sortDescending(points []domain.SeriesPoint) {
	slices.SortStableFunc(points, func(a, b domain.SeriesPoint) int {
		return cmp.Compare(b.Value, a.Value)
	})
}

func sortByLabel(points []domain.SeriesPoint) {
	slices.SortStableFunc(points, func(a, b domain.SeriesPoint) int {
		return cmp.Compare(a.Label, b.Label)
	})
}

func limit(points []domain.SeriesPoint, n int) []domain.SeriesPoint {
	if n > 0 && len(points) > n {
		return points[:n]
	}
	return points
}

// valueCounts counts non-empty values of field, most frequent first. Ties
// keep first-seen order.
func valueCounts(records []domain.FundingRecord, field func(domain.FundingRecord) string) []domain.SeriesPoint {
	t := newTally()
	for _, r := range records {
		if v := field(r); v != "" {
			t.add(v, 1)
		}
	}
	points := t.points()
	sortDescending(points)
	return points
}

// groupSum sums valid amounts per non-empty key. Groups whose amounts are
// all invalid are kept with a zero total. Points come back sorted by label.
func groupSum(records []domain.FundingRecord, key func(domain.FundingRecord) string) []domain.SeriesPoint {
	t := newTally()
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		t.add(k, amountOrZero(r))
	}
	points := t.points()
	sortByLabel(points)
	return points
}

// yearSeries sums or counts per year in ascending year order.
func yearSeries(records []domain.FundingRecord, count bool) []domain.SeriesPoint {
	totals := make(map[int]float64)
	for _, r := range records {
		if count {
			totals[r.YearFunded]++
		} else {
			totals[r.YearFunded] += amountOrZero(r)
		}
	}

	years := make([]int, 0, len(totals))
	for y := range totals {
		years = append(years, y)
	}
	slices.Sort(years)

	out := make([]domain.SeriesPoint, len(years))
	for i, y := range years {
		out[i] = domain.SeriesPoint{Label: strconv.Itoa(y), Value: totals[y]}
	}
	return out
}

func company(r domain.FundingRecord) string  { return r.CompanyName }
func location(r domain.FundingRecord) string { return r.Location }
func industry(r domain.FundingRecord) string { return r.Industry }

// amountOrZero is the contribution of r to a sum; invalid amounts add nothing.
func amountOrZero(r domain.FundingRecord) float64 {
	if r.AmountValid {
		return r.Amount
	}
	return 0
}
