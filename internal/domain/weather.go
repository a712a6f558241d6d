package domain

// Conditions is the current weather reported by a provider for a free-text location.
type Conditions struct {
	Location     string
	Description  string
	TemperatureC float64
}
