package domain

import "time"

// SectionKind identifies how a dashboard section is computed.
type SectionKind string

const (
	SectionMetrics              SectionKind = "metrics"
	SectionTopCompanies         SectionKind = "top_companies"
	SectionFoundedByYear        SectionKind = "founded_by_year"
	SectionLocationDistribution SectionKind = "location_distribution"
	SectionLocationTop          SectionKind = "location_top"
	SectionIndustryCounts       SectionKind = "industry_counts"
	SectionFundingByYear        SectionKind = "funding_by_year"
	SectionIndustryTrend        SectionKind = "industry_trend"
	SectionSectorFunding        SectionKind = "sector_funding"
	SectionSectorCounts         SectionKind = "sector_counts"
	SectionPredictions          SectionKind = "predictions"
)

// Metrics are the scalar summaries of the Amount column.
type Metrics struct {
	Count      int     `json:"count"`
	ValidCount int     `json:"valid_count"`
	Total      float64 `json:"total"`
	Average    float64 `json:"average"`
	Max        float64 `json:"max"`
	Min        float64 `json:"min"`

	Display MetricsDisplay `json:"display"`
}

// MetricsDisplay carries the metrics formatted for presentation.
type MetricsDisplay struct {
	Total   string `json:"total"`
	Average string `json:"average"`
	Max     string `json:"max"`
	Min     string `json:"min"`
}

// SeriesPoint is one labelled value of a chart series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// PredictionRow is a dataset row with its fitted funding trend value.
type PredictionRow struct {
	CompanyName string  `json:"company_name"`
	YearFunded  int     `json:"year_funded"`
	Amount      float64 `json:"amount"`
	AmountValid bool    `json:"amount_valid"`
	Predicted   float64 `json:"predicted_revenue"`
}

// Section is one computed block of a dashboard.
type Section struct {
	ID          string          `json:"id"`
	Kind        SectionKind     `json:"kind"`
	Title       string          `json:"title"`
	Scope       string          `json:"scope"`
	Dimension   string          `json:"dimension,omitempty"`
	Measure     string          `json:"measure,omitempty"`
	Metrics     *Metrics        `json:"metrics,omitempty"`
	Series      []SeriesPoint   `json:"series,omitempty"`
	Predictions []PredictionRow `json:"predictions,omitempty"`
	Trends      []TrendLine     `json:"trends,omitempty"`
}

// Report is a fully built dashboard.
type Report struct {
	Layout      string    `json:"layout"`
	Fingerprint string    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}
