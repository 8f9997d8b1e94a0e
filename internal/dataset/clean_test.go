package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{"$1,000,000", 1000000, true},
		{"250000", 250000, true},
		{" $ 3,500.50 ", 3500.5, true},
		{"1e6", 1000000, true},
		{"-100", -100, true},
		{"", 0, false},
		{"Undisclosed", 0, false},
		{"$", 0, false},
		{"nan", 0, false},
		{"N/A", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"2019", 2019, true},
		{" 2020 ", 2020, true},
		{"2021.0", 2021, true},
		{"2021.5", 0, false},
		{"", 0, false},
		{"twenty", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseYear(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveColumns(t *testing.T) {
	idx, err := resolveColumns([]string{"\ufeffCompany Name", "year_funded", "Round / Series", "City", "Sector", "Amount ($)"})
	assert.NoError(t, err)
	assert.Equal(t, 0, idx[ColumnCompany])
	assert.Equal(t, 1, idx[ColumnYear])
	assert.Equal(t, 2, idx[ColumnRound])
	assert.Equal(t, 3, idx[ColumnLocation])
	assert.Equal(t, 4, idx[ColumnIndustry])
	assert.Equal(t, 5, idx[ColumnAmount])

	_, err = resolveColumns([]string{"Company Name", "Location"})
	var mce *MissingColumnsError
	assert.ErrorAs(t, err, &mce)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Equal(t, []string{ColumnYear, ColumnAmount}, mce.Columns)
}
