package report

import (
	"fmt"

	"fundscope/pkg/contracts/domain"
)

// Scope selects which record set a section reads.
type Scope string

const (
	// ScopeAll reads the full dataset and ignores every filter.
	ScopeAll Scope = "all"
	// ScopePrimary reads the dataset filtered by year, round and location.
	ScopePrimary Scope = "primary"
	// ScopeSecondary reads the full dataset filtered by industry and amount.
	ScopeSecondary Scope = "secondary"
)

func (s Scope) valid() bool {
	return s == ScopeAll || s == ScopePrimary || s == ScopeSecondary
}

// Params tune a section. Only the fields relevant to its kind are read.
type Params struct {
	// Limit caps the number of points (top_companies, location_top) or the
	// leading rows considered (industry_counts). Zero means no limit.
	Limit    int    `json:"limit,omitempty" yaml:"limit"`
	Year     int    `json:"year,omitempty" yaml:"year"`
	Industry string `json:"industry,omitempty" yaml:"industry"`
	FromYear int    `json:"from_year,omitempty" yaml:"from_year"`
	ToYear   int    `json:"to_year,omitempty" yaml:"to_year"`
}

func (p Params) window() YearWindow {
	return YearWindow{From: p.FromYear, To: p.ToYear}
}

// SectionSpec declares one section of a layout.
type SectionSpec struct {
	ID     string             `json:"id" yaml:"id"`
	Kind   domain.SectionKind `json:"kind" yaml:"kind"`
	Title  string             `json:"title" yaml:"title"`
	Scope  Scope              `json:"scope" yaml:"scope"`
	Params Params             `json:"params" yaml:"params"`
}

func (s SectionSpec) validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: section without id", ErrInvalidLayout)
	}
	if !s.Scope.valid() {
		return fmt.Errorf("%w: section %s has scope %q", ErrInvalidLayout, s.ID, s.Scope)
	}
	switch s.Kind {
	case domain.SectionSectorFunding:
		if s.Params.Year == 0 {
			return fmt.Errorf("%w: section %s needs params.year", ErrInvalidLayout, s.ID)
		}
	case domain.SectionIndustryTrend:
		if s.Params.Industry == "" {
			return fmt.Errorf("%w: section %s needs params.industry", ErrInvalidLayout, s.ID)
		}
	case domain.SectionMetrics, domain.SectionTopCompanies, domain.SectionFoundedByYear,
		domain.SectionLocationDistribution, domain.SectionLocationTop, domain.SectionIndustryCounts,
		domain.SectionFundingByYear, domain.SectionSectorCounts, domain.SectionPredictions:
	default:
		return fmt.Errorf("%w: section %s has unknown kind %q", ErrInvalidLayout, s.ID, s.Kind)
	}
	if s.Params.Limit < 0 {
		return fmt.Errorf("%w: section %s has negative limit", ErrInvalidLayout, s.ID)
	}
	return nil
}

// ComputeSection evaluates spec over records, which must already be scoped.
func ComputeSection(spec SectionSpec, records []domain.FundingRecord, predictionWindow YearWindow) (domain.Section, error) {
	sec := domain.Section{
		ID:    spec.ID,
		Kind:  spec.Kind,
		Title: spec.Title,
		Scope: string(spec.Scope),
	}
	p := spec.Params

	switch spec.Kind {
	case domain.SectionMetrics:
		m := ComputeMetrics(records)
		sec.Metrics = &m

	case domain.SectionTopCompanies:
		points := groupSum(records, company)
		sortDescending(points)
		sec.Dimension, sec.Measure = "Company Name", "Amount"
		sec.Series = limit(points, p.Limit)

	case domain.SectionFoundedByYear:
		sec.Dimension, sec.Measure = "Year_Funded", "Count"
		sec.Series = yearSeries(records, true)

	case domain.SectionLocationDistribution:
		sec.Dimension, sec.Measure = "Location", "Count"
		sec.Series = valueCounts(records, location)

	case domain.SectionLocationTop:
		t := newTally()
		for _, r := range records {
			if r.Location != "" && r.CompanyName != "" {
				t.add(r.Location, 1)
			}
		}
		points := t.points()
		sortByLabel(points)
		sortDescending(points)
		sec.Dimension, sec.Measure = "Location", "Company Count"
		sec.Series = limit(points, p.Limit)

	case domain.SectionIndustryCounts:
		head := records
		if p.Limit > 0 && len(head) > p.Limit {
			head = head[:p.Limit]
		}
		sec.Dimension, sec.Measure = "Industry", "Count"
		sec.Series = valueCounts(head, industry)

	case domain.SectionFundingByYear:
		sec.Dimension, sec.Measure = "Year_Funded", "Amount"
		sec.Series = yearSeries(records, false)

	case domain.SectionIndustryTrend:
		w := p.window()
		subset := make([]domain.FundingRecord, 0)
		for _, r := range records {
			if r.Industry == p.Industry && w.Contains(r.YearFunded) {
				subset = append(subset, r)
			}
		}
		sec.Dimension, sec.Measure = "Year_Funded", "Amount"
		sec.Series = yearSeries(subset, false)

	case domain.SectionSectorFunding:
		subset := make([]domain.FundingRecord, 0)
		for _, r := range records {
			if r.YearFunded == p.Year {
				subset = append(subset, r)
			}
		}
		points := groupSum(subset, industry)
		sortDescending(points)
		sec.Dimension, sec.Measure = "Industry", "Amount"
		sec.Series = limit(points, p.Limit)

	case domain.SectionSectorCounts:
		sec.Dimension, sec.Measure = "Industry", "Startup Count"
		sec.Series = valueCounts(records, industry)

	case domain.SectionPredictions:
		w := p.window()
		if w.From == 0 && w.To == 0 {
			w = predictionWindow
		}
		preds, err := Predict(records, w)
		if err != nil {
			return domain.Section{}, fmt.Errorf("section %s: %w", spec.ID, err)
		}
		sec.Predictions = preds.Rows
		sec.Trends = preds.Lines

	default:
		return domain.Section{}, fmt.Errorf("%w: kind %q", ErrInvalidLayout, spec.Kind)
	}

	if sec.Series == nil && spec.Kind != domain.SectionMetrics && spec.Kind != domain.SectionPredictions {
		sec.Series = []domain.SeriesPoint{}
	}
	return sec, nil
}
