package dto

import "net/http"

// API error codes, format ERR_<CATEGORY>. Codes are part of the wire contract
// so clients can branch on them without parsing messages.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeMissingScopes = "ERR_MISSING_SCOPES"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeUpstream     = "ERR_UPSTREAM"
	ErrCodeUpstreamAuth = "ERR_UPSTREAM_AUTH"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// httpStatusByCode drives the response status. Signature failures are 401
// rather than 403 so callers retry with fresh credentials, and upstream
// failures surface as 502 to distinguish them from our own 500s.
var httpStatusByCode = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeInvalidSignature: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeMissingScopes: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeUpstream:     http.StatusBadGateway,
	ErrCodeUpstreamAuth: http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus resolves an error code to its HTTP status, defaulting to 500
// for codes the map does not know.
func GetHTTPStatus(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// legacyCodes translates domain-layer error codes into wire codes.
var legacyCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"MISSING_SCOPES":       ErrCodeMissingScopes,
	"UPSTREAM_FAILURE":     ErrCodeUpstream,
	"RATE_LIMITED":         ErrCodeRateLimited,
	"BAD_REQUEST":          ErrCodeBadRequest,
}

// NormalizeErrorCode maps a domain error code onto the wire format. Codes
// already in the wire format, or unknown ones, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wire, ok := legacyCodes[code]; ok {
		return wire
	}
	return code
}
