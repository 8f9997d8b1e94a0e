package domain

// Observation is a single (entity, period, value) sample fed to the trend
// estimator.
type Observation struct {
	EntityID string  `json:"entity_id"`
	Period   int     `json:"period"`
	Value    float64 `json:"value"`
}

// FittedValue pairs an observation with the value its entity's trend line
// predicts for the same period.
type FittedValue struct {
	EntityID string  `json:"entity_id"`
	Period   int     `json:"period"`
	Value    float64 `json:"value"`
	Fitted   float64 `json:"fitted"`
}

// TrendLine describes the least-squares line fitted for one entity.
type TrendLine struct {
	EntityID  string  `json:"entity_id"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Points    int     `json:"points"`
}
