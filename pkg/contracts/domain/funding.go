package domain

// FundingRecord is one cleaned row of the funding dataset.
type FundingRecord struct {
	Row         int     `json:"row"`
	CompanyName string  `json:"company_name"`
	YearFunded  int     `json:"year_funded"`
	Round       string  `json:"round"`
	Location    string  `json:"location"`
	Industry    string  `json:"industry"`
	Amount      float64 `json:"amount"`
	// AmountValid is false when the raw amount could not be parsed. The row
	// is kept but skipped by every aggregate.
	AmountValid bool   `json:"amount_valid"`
	RawAmount   string `json:"raw_amount,omitempty"`
}

// FilterOptions lists the distinct values a caller can filter on, in the
// order they first appear in the dataset.
type FilterOptions struct {
	Years      []int       `json:"years"`
	Rounds     []string    `json:"rounds"`
	Locations  []string    `json:"locations"`
	Industries []string    `json:"industries"`
	Amount     AmountRange `json:"amount"`
}

// AmountRange holds the bounds of the valid amounts in a record set.
type AmountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
