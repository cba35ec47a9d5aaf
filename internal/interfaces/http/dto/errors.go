package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeDependencyFailed is used when a downstream dependency failed
	ErrCodeDependencyFailed = "ERR_DEPENDENCY_FAILED"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Entitlement error codes
const (
	// ErrCodeQuotaExceeded is used when the organization's monthly cap is reached
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
	// ErrCodeNoActiveSubscription is used when the organization has no active subscription
	ErrCodeNoActiveSubscription = "ERR_NO_ACTIVE_SUBSCRIPTION"
	// ErrCodeUnknownProduct is used when a purchase names a product not in the catalog
	ErrCodeUnknownProduct = "ERR_UNKNOWN_PRODUCT"
	// ErrCodeInvalidReceipt is used when the store rejects a purchase receipt
	ErrCodeInvalidReceipt = "ERR_INVALID_RECEIPT"
	// ErrCodeMissingOrganization is used when the caller's profile has no organization
	ErrCodeMissingOrganization = "ERR_MISSING_ORGANIZATION"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeMissingFields is used when required request fields are absent
	ErrCodeMissingFields = "ERR_MISSING_FIELDS"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:          http.StatusInternalServerError,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeDependencyFailed: http.StatusInternalServerError,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Entitlement errors. Quota and subscription denials answer 402 so
	// clients can distinguish "buy more" from every other failure.
	ErrCodeQuotaExceeded:        http.StatusPaymentRequired,
	ErrCodeNoActiveSubscription: http.StatusPaymentRequired,
	ErrCodeUnknownProduct:       http.StatusBadRequest,
	ErrCodeInvalidReceipt:       http.StatusBadRequest,
	ErrCodeMissingOrganization:  http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidJSON:   http.StatusBadRequest,
	ErrCodeMissingFields: http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the wire format
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_ORGANIZATION":   ErrCodeInvalidInput,
	"UNAUTHORIZED":           ErrCodeUnauthorized,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"QUOTA_EXCEEDED":         ErrCodeQuotaExceeded,
	"NO_ACTIVE_SUBSCRIPTION": ErrCodeNoActiveSubscription,
	"UNKNOWN_PRODUCT":        ErrCodeUnknownProduct,
	"INVALID_RECEIPT":        ErrCodeInvalidReceipt,
	"MISSING_FIELDS":         ErrCodeMissingFields,
	"MISSING_ORGANIZATION":   ErrCodeMissingOrganization,
	"DEPENDENCY_FAILED":      ErrCodeDependencyFailed,
}

// NormalizeErrorCode converts a domain error code to the wire format
// If the code is already in the wire format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if wireCode, ok := DomainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
