package http

// ErrorResponse is the JSON error body for API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
