package trend

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"fundscope/pkg/contracts/domain"
)

// Line is a fitted trend: value = Slope*period + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
	Points    int
}

// At evaluates the line at period.
func (l Line) At(period int) float64 {
	return l.Slope*float64(period) + l.Intercept
}

// Fit computes the least-squares line through (periods[i], values[i]).
func Fit(periods []int, values []float64) (Line, error) {
	if len(periods) != len(values) {
		return Line{}, &InvalidInputError{Row: -1, Field: "values", Reason: "length does not match periods"}
	}
	if len(periods) == 0 {
		return Line{}, &InsufficientDataError{}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Line{}, &InvalidInputError{Row: i, Field: "value", Reason: "is not a finite number"}
		}
	}

	xs := make([]float64, len(periods))
	for i, p := range periods {
		xs[i] = float64(p)
	}

	if constant(periods) {
		return Line{Slope: 0, Intercept: stat.Mean(values, nil), Points: len(values)}, nil
	}

	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	return Line{Slope: beta, Intercept: alpha, Points: len(values)}, nil
}

func constant(periods []int) bool {
	for _, p := range periods[1:] {
		if p != periods[0] {
			return false
		}
	}
	return true
}

// Result is the output of Estimate. Rows are aligned with the input.
type Result struct {
	Rows  []domain.FittedValue
	Lines map[string]Line

	order []string
	index map[key]float64
}

type key struct {
	entity string
	period int
}

// Lookup returns the fitted value for an (entity, period) pair.
func (r *Result) Lookup(entityID string, period int) (float64, bool) {
	v, ok := r.index[key{entityID, period}]
	return v, ok
}

// Entities returns entity ids in the order they first appeared.
func (r *Result) Entities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// TrendLines returns one TrendLine per entity in first-seen order.
func (r *Result) TrendLines() []domain.TrendLine {
	out := make([]domain.TrendLine, 0, len(r.order))
	for _, id := range r.order {
		l := r.Lines[id]
		out = append(out, domain.TrendLine{EntityID: id, Slope: l.Slope, Intercept: l.Intercept, Points: l.Points})
	}
	return out
}

type partition struct {
	periods []int
	values  []float64
}

// Estimate fits one line per entity and returns a fitted value for every
// observation, in input order.
func Estimate(observations []domain.Observation) (*Result, error) {
	parts := make(map[string]*partition)
	var order []string

	for i, o := range observations {
		if o.EntityID == "" {
			return nil, &InvalidInputError{Row: i, Field: "entity_id", Reason: "is empty"}
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, &InvalidInputError{Row: i, EntityID: o.EntityID, Field: "value", Reason: "is not a finite number"}
		}
		p, ok := parts[o.EntityID]
		if !ok {
			p = &partition{}
			parts[o.EntityID] = p
			order = append(order, o.EntityID)
		}
		p.periods = append(p.periods, o.Period)
		p.values = append(p.values, o.Value)
	}

	lines := make(map[string]Line, len(parts))
	for _, id := range order {
		p := parts[id]
		line, err := Fit(p.periods, p.values)
		if err != nil {
			if ide, ok := err.(*InsufficientDataError); ok {
				ide.EntityID = id
			}
			return nil, err
		}
		lines[id] = line
	}

	result := &Result{
		Rows:  make([]domain.FittedValue, len(observations)),
		Lines: lines,
		order: order,
		index: make(map[key]float64, len(observations)),
	}
	for i, o := range observations {
		fitted := lines[o.EntityID].At(o.Period)
		result.Rows[i] = domain.FittedValue{
			EntityID: o.EntityID,
			Period:   o.Period,
			Value:    o.Value,
			Fitted:   fitted,
		}
		result.index[key{o.EntityID, o.Period}] = fitted
	}
	return result, nil
}
