package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "\ufeffCompany Name,Year_Funded,Round/Series,Location,Industry,Amount\n" +
	"Acme,2019,Seed,Bangalore,Fintech,\"$1,000,000\"\n" +
	"Beta,2020,Series A,Mumbai,EV,250000\n" +
	"Gamma,unknown,Seed,Delhi,Fintech,100\n" +
	"Delta,2020.0,Seed,Bangalore,Fintech,Undisclosed\n" +
	",,,,,\n" +
	"Acme,2021,Series B,Bangalore,Fintech,\"$3,000,000\"\n"

func TestParseCSV(t *testing.T) {
	ds, err := Parse("startups.csv", []byte(sampleCSV), LoadOptions{})
	require.NoError(t, err)

	require.Equal(t, 4, ds.Len())
	assert.Equal(t, 1, ds.Skipped)
	assert.Equal(t, 1, ds.InvalidAmounts)
	assert.Equal(t, FormatCSV, ds.Format)
	assert.NotZero(t, ds.Fingerprint)

	first := ds.Records[0]
	assert.Equal(t, "Acme", first.CompanyName)
	assert.Equal(t, 2019, first.YearFunded)
	assert.Equal(t, "Seed", first.Round)
	assert.Equal(t, 1000000.0, first.Amount)
	assert.True(t, first.AmountValid)

	delta := ds.Records[2]
	assert.Equal(t, "Delta", delta.CompanyName)
	assert.Equal(t, 2020, delta.YearFunded)
	assert.False(t, delta.AmountValid)
	assert.Equal(t, "Undisclosed", delta.RawAmount)
}

func TestParseCompressedFormats(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll([]byte(sampleCSV), nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		name string
		data []byte
	}{
		{"startups.csv.gz", gz.Bytes()},
		{"startups.csv.zst", zst},
		{"startups.csv.s2", s2.Encode(nil, []byte(sampleCSV))},
	}

	plain, err := Parse("startups.csv", []byte(sampleCSV), LoadOptions{})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Parse(tt.name, tt.data, LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, plain.Records, ds.Records)
		})
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Company Name", "Year_Funded", "Round/Series", "Location", "Industry", "Amount"},
		{"Acme", 2019, "Seed", "Bangalore", "Fintech", "$500"},
		{"Beta", 2020, "Series A", "Mumbai", "EV", 1500},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ds, err := Parse("startups.xlsx", buf.Bytes(), LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, 500.0, ds.Records[0].Amount)
	assert.Equal(t, 1500.0, ds.Records[1].Amount)
	assert.Equal(t, 2020, ds.Records[1].YearFunded)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("startups.json", []byte("{}"), LoadOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse("startups.csv", nil, LoadOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Parse("startups.csv", []byte("Company Name,Location\nAcme,Pune\n"), LoadOptions{})
	assert.ErrorIs(t, err, ErrMissingColumns)

	_, err = Parse("startups.csv.gz", []byte("not gzip"), LoadOptions{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoadSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funding.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	size := int64(len(sampleCSV))

	tests := []struct {
		name     string
		maxBytes int64
		wantErr  bool
	}{
		{name: "default limit", maxBytes: 0},
		{name: "exact size", maxBytes: size},
		{name: "one byte short", maxBytes: size - 1, wantErr: true},
		{name: "tiny limit", maxBytes: 16, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Load(context.Background(), FileSource{Path: path}, LoadOptions{MaxBytes: tt.maxBytes})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooLarge)
				assert.Nil(t, ds)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4, ds.Len())
		})
	}
}

func TestLoadFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funding.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ds, err := Load(context.Background(), FileSource{Path: path}, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, 4, ds.Len())

	_, err = Load(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, LoadOptions{})
	assert.Error(t, err)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, err := Parse("a.csv", []byte(sampleCSV), LoadOptions{})
	require.NoError(t, err)
	b, err := Parse("b.csv", []byte(sampleCSV+"Zeta,2022,Seed,Pune,EV,10\n"), LoadOptions{})
	require.NoError(t, err)
	c, err := Parse("c.csv", []byte(sampleCSV), LoadOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Fingerprint, c.Fingerprint)
}

func TestOptionsAndBounds(t *testing.T) {
	ds, err := Parse("startups.csv", []byte(sampleCSV), LoadOptions{})
	require.NoError(t, err)

	opts := ds.Options()
	assert.Equal(t, []int{2019, 2020, 2021}, opts.Years)
	assert.Equal(t, []string{"Seed", "Series A", "Series B"}, opts.Rounds)
	assert.Equal(t, []string{"Bangalore", "Mumbai"}, opts.Locations)
	assert.Equal(t, []string{"Fintech", "EV"}, opts.Industries)
	assert.Equal(t, 250000.0, opts.Amount.Min)
	assert.Equal(t, 3000000.0, opts.Amount.Max)

	var empty *Dataset
	_, ok := empty.AmountBounds()
	assert.False(t, ok)
	assert.Empty(t, empty.Options().Years)
}
