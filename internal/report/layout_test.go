package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscope/pkg/contracts/domain"
)

func TestBuiltinLayoutsValidate(t *testing.T) {
	for _, l := range []*Layout{Classic(), Extended()} {
		t.Run(l.Name, func(t *testing.T) {
			require.NoError(t, l.Validate())
		})
	}
}

func TestClassicLayoutOrder(t *testing.T) {
	l := Classic()
	kinds := make([]domain.SectionKind, len(l.Sections))
	for i, s := range l.Sections {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []domain.SectionKind{
		domain.SectionMetrics,
		domain.SectionLocationDistribution,
		domain.SectionIndustryCounts,
		domain.SectionFundingByYear,
		domain.SectionIndustryTrend,
		domain.SectionSectorFunding,
		domain.SectionSectorCounts,
		domain.SectionIndustryTrend,
		domain.SectionPredictions,
	}, kinds)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{LayoutClassic, LayoutExtended}, r.Names())

	l, err := r.Get(LayoutExtended)
	require.NoError(t, err)
	assert.Equal(t, LayoutExtended, l.Name)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownLayout)

	_, err = l.Section("nope")
	assert.ErrorIs(t, err, ErrUnknownSection)

	err = r.Register(&Layout{Name: "bad"})
	assert.ErrorIs(t, err, ErrInvalidLayout)
	assert.False(t, r.Has("bad"))
}

const layoutYAML = `
layouts:
  - name: investor
    title: Investor view
    sections:
      - id: summary
        kind: metrics
      - id: ev-2021
        kind: sector_funding
        scope: all
        params:
          year: 2021
          limit: 5
  - name: regions
    sections:
      - id: cities
        kind: location_top
        params:
          limit: 3
`

func TestDecodeLayouts(t *testing.T) {
	layouts, err := DecodeLayouts(strings.NewReader(layoutYAML))
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	inv := layouts[0]
	assert.Equal(t, "investor", inv.Name)
	assert.Equal(t, ScopePrimary, inv.Sections[0].Scope)
	assert.Equal(t, ScopeAll, inv.Sections[1].Scope)
	assert.Equal(t, 2021, inv.Sections[1].Params.Year)
	assert.Equal(t, 5, inv.Sections[1].Params.Limit)
}

func TestDecodeSingleLayout(t *testing.T) {
	layouts, err := DecodeLayouts(strings.NewReader("name: solo\nsections:\n  - id: m\n    kind: metrics\n"))
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, "solo", layouts[0].Name)
}

func TestDecodeLayoutsRejectsInvalid(t *testing.T) {
	_, err := DecodeLayouts(strings.NewReader("name: dup\nsections:\n  - id: a\n    kind: metrics\n  - id: a\n    kind: metrics\n"))
	assert.ErrorIs(t, err, ErrInvalidLayout)

	_, err = DecodeLayouts(strings.NewReader("layouts: [: not yaml"))
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestRegistryLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(layoutYAML), 0o644))

	r := NewRegistry()
	names, err := r.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"investor", "regions"}, names)
	assert.True(t, r.Has("investor"))
	assert.Equal(t, []string{LayoutClassic, LayoutExtended, "investor", "regions"}, r.Names())
}

func TestShippedLayoutsFile(t *testing.T) {
	r := NewRegistry()
	names, err := r.LoadFile(filepath.Join("..", "..", "configs", "layouts.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"investor", "regions"}, names)

	inv, err := r.Get("investor")
	require.NoError(t, err)
	assert.Equal(t, "Investor View", inv.Title)
}
