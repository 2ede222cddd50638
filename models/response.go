package models

// ErrorResponse is the JSON error envelope for local failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UpstreamErrorResponse is the envelope for a non-success upstream
// response. Status and Body are always present, even when the upstream
// sent an empty body.
type UpstreamErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
	Code   string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	CacheEntries int    `json:"cacheEntries"`
	Version      string `json:"version"`
}
