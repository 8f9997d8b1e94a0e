package report

import (
	"fundscope/internal/dataset"
	"fundscope/pkg/contracts/domain"
)

func rec(row int, company string, year int, round, loc, ind string, amount float64) domain.FundingRecord {
	return domain.FundingRecord{
		Row: row, CompanyName: company, YearFunded: year, Round: round,
		Location: loc, Industry: ind, Amount: amount, AmountValid: true,
	}
}

func invalid(row int, company string, year int, round, loc, ind string) domain.FundingRecord {
	return domain.FundingRecord{
		Row: row, CompanyName: company, YearFunded: year, Round: round,
		Location: loc, Industry: ind, RawAmount: "Undisclosed",
	}
}

func sampleRecords() []domain.FundingRecord {
	return []domain.FundingRecord{
		rec(1, "Acme", 2019, "Seed", "Bangalore", "Fintech", 100),
		rec(2, "Acme", 2020, "Series A", "Bangalore", "Fintech", 200),
		rec(3, "Beta", 2020, "Seed", "Mumbai", "EV", 500),
		invalid(4, "Gamma", 2020, "Seed", "Delhi", "Fintech"),
		rec(5, "Acme", 2021, "Series B", "Bangalore", "Fintech", 300),
		rec(6, "Delta", 2017, "Seed", "Mumbai", "Edtech", 50),
		rec(7, "Beta", 2022, "Series A", "Mumbai", "EV", 700),
	}
}

func sampleDataset() *dataset.Dataset {
	return &dataset.Dataset{Records: sampleRecords(), Fingerprint: 0xabc}
}

func labels(points []domain.SeriesPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}

func values(points []domain.SeriesPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
