package dto

import "net/http"

// Error codes surfaced by the API
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// domainCodeHTTPStatus maps domain error codes to HTTP status codes.
// Domain codes not listed here are business rule violations (422).
var domainCodeHTTPStatus = map[string]int{
	"NOT_FOUND":           http.StatusNotFound,
	"ALREADY_EXISTS":      http.StatusConflict,
	"DUPLICATE_KEY":       http.StatusConflict,
	"INVALID_INPUT":       http.StatusBadRequest,
	"INVALID_COMPANY":     http.StatusBadRequest,
	"INVALID_CHANNEL":     http.StatusBadRequest,
	"INVALID_FILE":        http.StatusBadRequest,
	"UNAUTHORIZED":        http.StatusUnauthorized,
	"UNSUPPORTED_CHANNEL": http.StatusBadRequest,
	"INVALID_STATE":       http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK":  http.StatusUnprocessableEntity,
	"JOB_FINALIZED":       http.StatusUnprocessableEntity,
}

// DomainStatus returns the HTTP status for a domain error code
func DomainStatus(code string) int {
	if status, ok := domainCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusUnprocessableEntity
}
