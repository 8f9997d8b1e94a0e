package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
)

// ParseAmount cleans a raw amount cell. It strips "$" and "," and parses the
// remainder. ok is false when the text is not a finite number.
func ParseAmount(raw string) (value float64, ok bool) {
	d, ok := ParseAmountDecimal(raw)
	if !ok {
		return 0, false
	}
	value, ok = d.Float64()
	return value, ok
}

// ParseAmountDecimal is ParseAmount without the float conversion.
func ParseAmountDecimal(raw string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	if d, err := decimal.Parse(cleaned); err == nil {
		return d, true
	}

	// exponent forms and very long fractions fall through to float parsing
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromFloat64(f)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseYear parses a year cell. Spreadsheet exports such as "2019.0" are
// accepted; fractional years are not.
func ParseYear(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
