// Package filter selects funding records by year, round, location, industry
// and amount range. Empty criteria do not constrain; non-empty criteria are
// combined with AND.
package filter

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"fundscope/pkg/contracts/domain"
)

// ErrInvalidSelection is wrapped by FromQuery parse failures.
var ErrInvalidSelection = errors.New("invalid selection")

// Selection is an explicit set of filter criteria.
type Selection struct {
	Years      []int    `json:"years,omitempty" yaml:"years"`
	Rounds     []string `json:"rounds,omitempty" yaml:"rounds"`
	Locations  []string `json:"locations,omitempty" yaml:"locations"`
	Industries []string `json:"industries,omitempty" yaml:"industries"`
	MinAmount  *float64 `json:"min_amount,omitempty" yaml:"min_amount"`
	MaxAmount  *float64 `json:"max_amount,omitempty" yaml:"max_amount"`
}

// IsZero reports whether the selection has no criteria.
func (s Selection) IsZero() bool {
	return len(s.Years) == 0 && len(s.Rounds) == 0 && len(s.Locations) == 0 &&
		len(s.Industries) == 0 && s.MinAmount == nil && s.MaxAmount == nil
}

// Primary keeps the year, round and location criteria.
func (s Selection) Primary() Selection {
	return Selection{Years: s.Years, Rounds: s.Rounds, Locations: s.Locations}
}

// Secondary keeps the industry and amount criteria.
func (s Selection) Secondary() Selection {
	return Selection{Industries: s.Industries, MinAmount: s.MinAmount, MaxAmount: s.MaxAmount}
}

// Match reports whether a single record satisfies the selection.
func (s Selection) Match(r domain.FundingRecord) bool {
	if len(s.Years) > 0 && !slices.Contains(s.Years, r.YearFunded) {
		return false
	}
	if len(s.Rounds) > 0 && !slices.Contains(s.Rounds, r.Round) {
		return false
	}
	if len(s.Locations) > 0 && !slices.Contains(s.Locations, r.Location) {
		return false
	}
	if len(s.Industries) > 0 && !slices.Contains(s.Industries, r.Industry) {
		return false
	}
	if s.MinAmount != nil || s.MaxAmount != nil {
		if !r.AmountValid {
			return false
		}
		if s.MinAmount != nil && r.Amount < *s.MinAmount {
			return false
		}
		if s.MaxAmount != nil && r.Amount > *s.MaxAmount {
			return false
		}
	}
	return true
}

// Apply returns the records matching sel in input order. The input slice is
// not modified. A zero selection returns records unchanged.
func Apply(records []domain.FundingRecord, sel Selection) []domain.FundingRecord {
	if sel.IsZero() {
		return records
	}
	out := make([]domain.FundingRecord, 0, len(records))
	for _, r := range records {
		if sel.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Key returns a canonical string for sel. Selections with the same criteria
// in a different order share a key.
func (s Selection) Key() string {
	years := slices.Clone(s.Years)
	slices.Sort(years)
	yearStrs := make([]string, len(years))
	for i, y := range years {
		yearStrs[i] = strconv.Itoa(y)
	}

	var b strings.Builder
	writePart(&b, "y", yearStrs)
	writePart(&b, "r", sortedCopy(s.Rounds))
	writePart(&b, "l", sortedCopy(s.Locations))
	writePart(&b, "i", sortedCopy(s.Industries))
	if s.MinAmount != nil {
		fmt.Fprintf(&b, "min=%g;", *s.MinAmount)
	}
	if s.MaxAmount != nil {
		fmt.Fprintf(&b, "max=%g;", *s.MaxAmount)
	}
	return b.String()
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

func writePart(b *strings.Builder, name string, values []string) {
	if len(values) == 0 {
		return
	}
	b.WriteString(name)
	b.WriteByte('=')
	for i, v := range values {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(url.QueryEscape(v))
	}
	b.WriteByte(';')
}

// FromQuery builds a selection from query parameters. Each parameter may be
// repeated or comma-separated: ?year=2019,2020&round=Seed&round=Series+A.
func FromQuery(q url.Values) (Selection, error) {
	var sel Selection

	for _, raw := range splitValues(q["year"]) {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: year %q is not an integer", ErrInvalidSelection, raw)
		}
		sel.Years = append(sel.Years, y)
	}
	sel.Rounds = splitValues(q["round"])
	sel.Locations = splitValues(q["location"])
	sel.Industries = splitValues(q["industry"])

	var err error
	if sel.MinAmount, err = parseAmountParam(q, "min_amount"); err != nil {
		return Selection{}, err
	}
	if sel.MaxAmount, err = parseAmountParam(q, "max_amount"); err != nil {
		return Selection{}, err
	}
	if sel.MinAmount != nil && sel.MaxAmount != nil && *sel.MinAmount > *sel.MaxAmount {
		return Selection{}, fmt.Errorf("%w: min_amount exceeds max_amount", ErrInvalidSelection)
	}
	return sel, nil
}

func parseAmountParam(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a number", ErrInvalidSelection, name, raw)
	}
	return &v, nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(raw string) []string {
	return splitValues([]string{raw})
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
