package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v2"

	"fundscope/pkg/contracts/domain"
)

// Built-in layout names.
const (
	LayoutClassic  = "classic"
	LayoutExtended = "extended"
)

// Layout is a named, ordered list of sections.
type Layout struct {
	Name     string        `json:"name" yaml:"name"`
	Title    string        `json:"title" yaml:"title"`
	Sections []SectionSpec `json:"sections" yaml:"sections"`
}

// Section returns the spec with the given id.
func (l *Layout) Section(id string) (SectionSpec, error) {
	for _, s := range l.Sections {
		if s.ID == id {
			return s, nil
		}
	}
	return SectionSpec{}, fmt.Errorf("%w: %s in layout %s", ErrUnknownSection, id, l.Name)
}

// Validate checks section ids are unique and every section is well formed.
func (l *Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: layout without name", ErrInvalidLayout)
	}
	if len(l.Sections) == 0 {
		return fmt.Errorf("%w: layout %s has no sections", ErrInvalidLayout, l.Name)
	}
	seen := make(map[string]struct{}, len(l.Sections))
	for _, s := range l.Sections {
		if err := s.validate(); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate section id %s", ErrInvalidLayout, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Classic is the single-page startup analysis dashboard. Apart from the
// metrics, every section reads the full dataset.
func Classic() *Layout {
	return &Layout{
		Name:  LayoutClassic,
		Title: "Startup Analysis Dashboard",
		Sections: []SectionSpec{
			{ID: "metrics", Kind: domain.SectionMetrics, Title: "Investment Summary", Scope: ScopePrimary},
			{ID: "location-distribution", Kind: domain.SectionLocationDistribution, Title: "Location-wise Distribution of Startups", Scope: ScopeAll},
			{ID: "industry-counts", Kind: domain.SectionIndustryCounts, Title: "Count of Companies in Each Industry (Top 20)", Scope: ScopeAll, Params: Params{Limit: 20}},
			{ID: "funding-by-year", Kind: domain.SectionFundingByYear, Title: "Funding Trends by Year", Scope: ScopeAll},
			{ID: "fintech-trend", Kind: domain.SectionIndustryTrend, Title: "Fintech Revenue Analysis (2018-2023)", Scope: ScopeAll, Params: Params{Industry: "Fintech", FromYear: 2018, ToYear: 2023}},
			{ID: "sector-funding-2020", Kind: domain.SectionSectorFunding, Title: "Startup Funding by Sector in 2020", Scope: ScopeAll, Params: Params{Year: 2020}},
			{ID: "sector-counts", Kind: domain.SectionSectorCounts, Title: "Startup Counts by Sector", Scope: ScopeAll},
			{ID: "ev-trend", Kind: domain.SectionIndustryTrend, Title: "Funding Evolution for EVs Over Time", Scope: ScopeAll, Params: Params{Industry: "EV"}},
			{ID: "predictions", Kind: domain.SectionPredictions, Title: "Predicted Revenue for Each Row in the Dataset", Scope: ScopeAll},
		},
	}
}

// Extended is the multi-chart dashboard with the in-page industry and
// amount filter.
func Extended() *Layout {
	return &Layout{
		Name:  LayoutExtended,
		Title: "Startup Funding Dashboard",
		Sections: []SectionSpec{
			{ID: "metrics", Kind: domain.SectionMetrics, Title: "Investment Summary", Scope: ScopePrimary},
			{ID: "top-companies", Kind: domain.SectionTopCompanies, Title: "Top 10 Startups by Revenue", Scope: ScopePrimary, Params: Params{Limit: 10}},
			{ID: "founded-by-year", Kind: domain.SectionFoundedByYear, Title: "Founded by Year", Scope: ScopePrimary},
			{ID: "location-distribution", Kind: domain.SectionLocationDistribution, Title: "Location-wise Distribution of Startups", Scope: ScopeAll},
			{ID: "location-top", Kind: domain.SectionLocationTop, Title: "Location-wise Distribution of Top 100 Startups", Scope: ScopePrimary, Params: Params{Limit: 100}},
			{ID: "sector-funding-2020", Kind: domain.SectionSectorFunding, Title: "Startup Funding by Sector in 2020", Scope: ScopeSecondary, Params: Params{Year: 2020}},
			{ID: "sector-counts", Kind: domain.SectionSectorCounts, Title: "Number of Startups by Industry", Scope: ScopeSecondary},
			{ID: "industry-counts", Kind: domain.SectionIndustryCounts, Title: "Count of Companies in Each Industry", Scope: ScopeSecondary},
			{ID: "fintech-trend", Kind: domain.SectionIndustryTrend, Title: "Fintech Revenue Analysis (2018-2023)", Scope: ScopeAll, Params: Params{Industry: "Fintech", FromYear: 2018, ToYear: 2023}},
			{ID: "ev-trend", Kind: domain.SectionIndustryTrend, Title: "Funding Evolution for EVs Over Time", Scope: ScopeAll, Params: Params{Industry: "EV"}},
		},
	}
}

// Registry holds the layouts a service can build.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]*Layout
}

// NewRegistry returns a registry with the built-in layouts.
func NewRegistry() *Registry {
	r := &Registry{layouts: make(map[string]*Layout)}
	r.layouts[LayoutClassic] = Classic()
	r.layouts[LayoutExtended] = Extended()
	return r
}

// Register adds or replaces a layout after validating it.
func (r *Registry) Register(l *Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[l.Name] = l
	return nil
}

// Get returns the named layout.
func (r *Registry) Get(name string) (*Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return l, nil
}

// Names returns registered layout names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.layouts))
	for n := range r.layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layouts[name]
	return ok
}

// layoutFile is the YAML document shape: either a single layout or a list
// under "layouts".
type layoutFile struct {
	Layouts []*Layout `yaml:"layouts"`
}

// DecodeLayouts parses YAML layouts from r.
func DecodeLayouts(r io.Reader) ([]*Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if len(file.Layouts) == 0 {
		var single Layout
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
		}
		file.Layouts = []*Layout{&single}
	}

	for _, l := range file.Layouts {
		for i := range l.Sections {
			if l.Sections[i].Scope == "" {
				l.Sections[i].Scope = ScopePrimary
			}
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Layouts, nil
}

// LoadFile registers every layout in a YAML file and returns their names.
func (r *Registry) LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout file: %w", err)
	}
	defer f.Close()

	layouts, err := DecodeLayouts(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	names := make([]string, 0, len(layouts))
	for _, l := range layouts {
		if err := r.Register(l); err != nil {
			return nil, err
		}
		names = append(names, l.Name)
	}
	return names, nil
}
