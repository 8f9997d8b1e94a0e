package exporter

import (
	"strconv"
)

// formatFloat renders f with the fewest digits that round-trip.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatAmount leaves unparseable amounts blank.
func formatAmount(f float64, valid bool) string {
	if !valid {
		return ""
	}
	return formatFloat(f)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
