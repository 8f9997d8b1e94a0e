package api

import (
	"time"

	"fundscope/pkg/contracts/domain"
)

// Response is the success envelope every JSON endpoint uses.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
	Count  *int        `json:"count,omitempty"`
}

// EstimateResponse carries the fitted value of every input observation, in
// input order, and the line fitted for each entity keyed by entity id.
type EstimateResponse struct {
	Rows  []domain.FittedValue        `json:"rows"`
	Lines map[string]domain.TrendLine `json:"lines"`
}

// PredictionsResponse is the predictions table with its fitted lines.
type PredictionsResponse struct {
	From  int                    `json:"from"`
	To    int                    `json:"to"`
	Rows  []domain.PredictionRow `json:"rows"`
	Lines []domain.TrendLine     `json:"lines"`
}

// DatasetStatus describes the dataset currently in service.
type DatasetStatus struct {
	Loaded         bool      `json:"loaded"`
	Source         string    `json:"source"`
	Format         string    `json:"format,omitempty"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
	Rows           int       `json:"rows"`
	Skipped        int       `json:"skipped"`
	InvalidAmounts int       `json:"invalid_amounts"`
	LoadedAt       time.Time `json:"loaded_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Reloads        int64     `json:"reloads"`
}

// ReloadResponse reports the outcome of a reload.
type ReloadResponse struct {
	Changed bool          `json:"changed"`
	Dataset DatasetStatus `json:"dataset"`
}

// LayoutSummary lists a registered layout.
type LayoutSummary struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}
