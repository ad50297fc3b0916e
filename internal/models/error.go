package models

// ErrorResponse is the uniform API error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error codes attached to structured log lines.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeConfigError    = "CONFIG_ERROR"
	ErrCodeBackendError   = "BACKEND_ERROR"
	ErrCodeUnknownTool    = "UNKNOWN_TOOL"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
