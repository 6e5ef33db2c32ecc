package metricsdto

import "time"

// Error codes carried in ErrorResponse.
const (
	CodeInvalidFEN       = "INVALID_FEN"
	CodeAnalysisError    = "ANALYSIS_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotImplemented   = "NOT_IMPLEMENTED"
	CodeInternal         = "INTERNAL_ERROR"
)

type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "metrics service error"
}

type ErrorResponse struct {
	Error     DomainError `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}
