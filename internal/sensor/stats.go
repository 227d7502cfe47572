package sensor

// Summary is the backend's aggregate for one quantity.
type Summary struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
}

// Stats is the payload of GET /api/stats. LastUpdated is passed through
// verbatim; the backend formats it.
type Stats struct {
	Temperature   Summary `json:"temperature"`
	Humidity      Summary `json:"humidity"`
	ReadingsCount int     `json:"readings_count"`
	LastUpdated   string  `json:"last_updated"`
}
