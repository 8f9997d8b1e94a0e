package exporter

import (
	"fundscope/internal/report"
	"fundscope/pkg/contracts/domain"
)

// PredictionHeaders are the columns of a predictions export.
var PredictionHeaders = []string{"Company Name", "Year_Funded", "Amount", "Predicted_Revenue"}

// SectionTable flattens a section into CSV-ready headers and rows.
func SectionTable(sec domain.Section) ([]string, [][]string) {
	switch {
	case sec.Metrics != nil:
		m := sec.Metrics
		return []string{"Metric", "Value", "Display"}, [][]string{
			{"Total Investment", formatFloat(m.Total), m.Display.Total},
			{"Average Investment", formatFloat(m.Average), m.Display.Average},
			{"Max Investment", formatFloat(m.Max), m.Display.Max},
			{"Min Investment", formatFloat(m.Min), m.Display.Min},
			{"Rows", formatInt(m.Count), report.FormatAmount(float64(m.Count))},
			{"Rows With Amount", formatInt(m.ValidCount), report.FormatAmount(float64(m.ValidCount))},
		}

	case sec.Kind == domain.SectionPredictions:
		rows := make([][]string, len(sec.Predictions))
		for i, p := range sec.Predictions {
			rows[i] = []string{
				p.CompanyName,
				formatInt(p.YearFunded),
				formatAmount(p.Amount, p.AmountValid),
				formatFloat(p.Predicted),
			}
		}
		return PredictionHeaders, rows

	default:
		dim, measure := sec.Dimension, sec.Measure
		if dim == "" {
			dim = "Label"
		}
		if measure == "" {
			measure = "Value"
		}
		rows := make([][]string, len(sec.Series))
		for i, p := range sec.Series {
			rows[i] = []string{p.Label, formatFloat(p.Value)}
		}
		return []string{dim, measure}, rows
	}
}
