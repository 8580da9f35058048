package domain

// Property is one catalog row. The catalog is loaded once and is read-only
// for the ranking core.
type Property struct {
	ID           string  `json:"property_id"`
	Location     string  `json:"location"`
	Environment  string  `json:"environment"`
	PropertyType string  `json:"property_type"`
	NightlyPrice float64 `json:"nightly_price"`
	Features     string  `json:"features"` // comma-delimited
	Tags         string  `json:"tags"`     // comma-delimited
	MinGuests    int     `json:"min_guests"`
	MaxGuests    int     `json:"max_guests"`
	Description  string  `json:"description,omitempty"`
}

type PropertiesPage struct {
	Items  []Property `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
