package report

import (
	"fundscope/internal/trend"
	"fundscope/pkg/contracts/domain"
)

// YearWindow is an inclusive range of funding years.
type YearWindow struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// DefaultPredictionWindow covers 2018 through 2023.
var DefaultPredictionWindow = YearWindow{From: 2018, To: 2023}

// Contains reports whether year falls in the window. A zero bound is open.
func (w YearWindow) Contains(year int) bool {
	if w.From != 0 && year < w.From {
		return false
	}
	if w.To != 0 && year > w.To {
		return false
	}
	return true
}

// Predictions is the fitted funding trend for a record set.
type Predictions struct {
	Rows  []domain.PredictionRow
	Lines []domain.TrendLine
}

// Predict keeps the records inside window, totals the funding of each
// company per year and fits one trend line per company over those totals.
// Every kept record is returned with the fitted value for its company and
// year. Records without a company name are returned with a zero prediction.
func Predict(records []domain.FundingRecord, window YearWindow) (*Predictions, error) {
	kept := make([]domain.FundingRecord, 0, len(records))
	for _, r := range records {
		if window.Contains(r.YearFunded) {
			kept = append(kept, r)
		}
	}

	type pair struct {
		company string
		year    int
	}
	totals := make(map[pair]float64)
	var order []pair
	for _, r := range kept {
		if r.CompanyName == "" {
			continue
		}
		k := pair{r.CompanyName, r.YearFunded}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] += amountOrZero(r)
	}

	obs := make([]domain.Observation, len(order))
	for i, k := range order {
		obs[i] = domain.Observation{EntityID: k.company, Period: k.year, Value: totals[k]}
	}

	result, err := trend.Estimate(obs)
	if err != nil {
		return nil, err
	}

	out := &Predictions{
		Rows:  make([]domain.PredictionRow, len(kept)),
		Lines: result.TrendLines(),
	}
	for i, r := range kept {
		predicted, _ := result.Lookup(r.CompanyName, r.YearFunded)
		out.Rows[i] = domain.PredictionRow{
			CompanyName: r.CompanyName,
			YearFunded:  r.YearFunded,
			Amount:      r.Amount,
			AmountValid: r.AmountValid,
			Predicted:   predicted,
		}
	}
	return out, nil
}
