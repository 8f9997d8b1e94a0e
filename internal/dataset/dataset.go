package dataset

import (
	"time"

	"fundscope/pkg/contracts/domain"
)

// Dataset is an immutable, cleaned snapshot of funding records.
type Dataset struct {
	Records        []domain.FundingRecord
	Fingerprint    uint64
	Source         string
	Format         Format
	LoadedAt       time.Time
	Skipped        int
	InvalidAmounts int
}

// Len returns the number of kept rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Options returns distinct filter values in first-seen order, plus the valid
// amount range.
func (d *Dataset) Options() domain.FilterOptions {
	opts := domain.FilterOptions{
		Years:      []int{},
		Rounds:     []string{},
		Locations:  []string{},
		Industries: []string{},
	}
	if d == nil {
		return opts
	}

	years := make(map[int]struct{})
	rounds := make(map[string]struct{})
	locations := make(map[string]struct{})
	industries := make(map[string]struct{})

	for _, r := range d.Records {
		if _, ok := years[r.YearFunded]; !ok {
			years[r.YearFunded] = struct{}{}
			opts.Years = append(opts.Years, r.YearFunded)
		}
		opts.Rounds = appendUnique(opts.Rounds, rounds, r.Round)
		opts.Locations = appendUnique(opts.Locations, locations, r.Location)
		opts.Industries = appendUnique(opts.Industries, industries, r.Industry)
	}

	opts.Amount, _ = d.AmountBounds()
	return opts
}

func appendUnique(list []string, seen map[string]struct{}, v string) []string {
	if v == "" {
		return list
	}
	if _, ok := seen[v]; ok {
		return list
	}
	seen[v] = struct{}{}
	return append(list, v)
}

// AmountBounds returns the smallest and largest valid amount. ok is false
// when no row has a valid amount.
func (d *Dataset) AmountBounds() (domain.AmountRange, bool) {
	var (
		bounds domain.AmountRange
		found  bool
	)
	if d == nil {
		return bounds, false
	}
	for _, r := range d.Records {
		if !r.AmountValid {
			continue
		}
		if !found {
			bounds = domain.AmountRange{Min: r.Amount, Max: r.Amount}
			found = true
			continue
		}
		if r.Amount < bounds.Min {
			bounds.Min = r.Amount
		}
		if r.Amount > bounds.Max {
			bounds.Max = r.Amount
		}
	}
	return bounds, found
}
