package scraper

// Compass is one of the eight principal wind directions.
type Compass string

// WindSnapshot is the latest reading scraped from the live sensor page.
type WindSnapshot struct {
	// WindSpeed is the speed text exactly as rendered (trimmed).
	WindSpeed string `json:"windSpeed"`

	// WindDirection is the direction text exactly as rendered (trimmed).
	WindDirection string `json:"windDirection"`

	// LatestTimestamp is the reading's timestamp text as rendered.
	LatestTimestamp string `json:"latestTimestamp"`

	// WindFrom is the compass point derived from WindDirection.
	WindFrom Compass `json:"windFrom"`

	// DirectionDegrees is the parsed integer form of WindDirection.
	DirectionDegrees int `json:"-"`
}
