package dataset

import (
	"strings"
	"unicode"
)

// Canonical column names as they appear in the source CSV.
const (
	ColumnCompany  = "Company Name"
	ColumnYear     = "Year_Funded"
	ColumnRound    = "Round/Series"
	ColumnLocation = "Location"
	ColumnIndustry = "Industry"
	ColumnAmount   = "Amount"
)

var requiredColumns = []string{ColumnCompany, ColumnYear, ColumnAmount}

// aliases maps normalized header text to a canonical column.
var aliases = map[string]string{
	"companyname":   ColumnCompany,
	"company":       ColumnCompany,
	"startup":       ColumnCompany,
	"startupname":   ColumnCompany,
	"yearfunded":    ColumnYear,
	"year":          ColumnYear,
	"fundedyear":    ColumnYear,
	"roundseries":   ColumnRound,
	"round":         ColumnRound,
	"series":        ColumnRound,
	"stage":         ColumnRound,
	"location":      ColumnLocation,
	"city":          ColumnLocation,
	"headquarters":  ColumnLocation,
	"industry":      ColumnIndustry,
	"sector":        ColumnIndustry,
	"amount":        ColumnAmount,
	"funding":       ColumnAmount,
	"fundingamount": ColumnAmount,
	"amountusd":     ColumnAmount,
}

// normalizeHeader lowercases a header and drops the BOM, spaces and separators.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(h, "\ufeff") {
		switch {
		case r == '_' || r == '/' || r == '-' || r == '.' || unicode.IsSpace(r):
		case r == '(' || r == ')' || r == '$':
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// columnIndex maps canonical columns to their position in a row.
type columnIndex map[string]int

func resolveColumns(header []string) (columnIndex, error) {
	idx := make(columnIndex)
	for i, h := range header {
		canonical, ok := aliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		// first matching header wins
		if _, seen := idx[canonical]; !seen {
			idx[canonical] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return idx, nil
}

func (c columnIndex) get(row []string, column string) string {
	i, ok := c[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
