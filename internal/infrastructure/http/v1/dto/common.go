// Package dto provides Data Transfer Objects for API requests/responses.
// Wire shapes are kept separate from the persisted catalog.Record.
package dto

// MessageResponse for operations that only confirm.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse for connectivity probes.
type StatusResponse struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

// ErrorResponse for error details.
// Detail repeats Message for clients that read a single "detail" field.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  string         `json:"detail"`
	Details map[string]any `json:"details,omitempty"`
}
