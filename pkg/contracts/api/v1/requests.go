// Package api contains the request and response contracts of the v1 HTTP API.
package api

import (
	"fundscope/pkg/contracts/domain"
)

// SelectionRequest is the wire form of a record filter.
type SelectionRequest struct {
	Years      []int    `json:"years,omitempty" validate:"omitempty,dive,year"`
	Rounds     []string `json:"rounds,omitempty" validate:"omitempty,dive,required"`
	Locations  []string `json:"locations,omitempty" validate:"omitempty,dive,required"`
	Industries []string `json:"industries,omitempty" validate:"omitempty,dive,required"`
	MinAmount  *float64 `json:"min_amount,omitempty" validate:"omitempty,gte=0"`
	MaxAmount  *float64 `json:"max_amount,omitempty" validate:"omitempty,gte=0"`
}

// DashboardRequest selects a layout and the records it reads.
type DashboardRequest struct {
	Layout    string           `json:"layout,omitempty" validate:"omitempty,layout"`
	Selection SelectionRequest `json:"selection"`
}

// SectionRequest selects one section of a layout.
type SectionRequest struct {
	DashboardRequest
	Section string `json:"section" validate:"required,slug"`
}

// ExportRequest describes a download.
type ExportRequest struct {
	SectionRequest
	Format string `json:"format" validate:"required,oneof=csv xlsx json"`
}

// ObservationRequest is one sample of an estimate request. Value is a
// pointer so that a missing value is rejected rather than read as zero.
type ObservationRequest struct {
	EntityID string   `json:"entity_id" validate:"required"`
	Period   int      `json:"period"`
	Value    *float64 `json:"value" validate:"required"`
}

// EstimateRequest asks for per-entity trend lines over caller data.
type EstimateRequest struct {
	Observations []ObservationRequest `json:"observations" validate:"required,min=1,dive"`
}

// ToDomain converts the request into estimator input.
func (r EstimateRequest) ToDomain() []domain.Observation {
	out := make([]domain.Observation, len(r.Observations))
	for i, o := range r.Observations {
		out[i] = domain.Observation{EntityID: o.EntityID, Period: o.Period}
		if o.Value != nil {
			out[i].Value = *o.Value
		}
	}
	return out
}
