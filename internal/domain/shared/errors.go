package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict  = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized         = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrUnknownProduct       = NewDomainError("UNKNOWN_PRODUCT", "Product is not in the catalog")
	ErrQuotaExceeded        = NewDomainError("QUOTA_EXCEEDED", "Monthly usage limit reached")
	ErrNoActiveSubscription = NewDomainError("NO_ACTIVE_SUBSCRIPTION", "Organization has no active subscription")
	ErrDependencyFailed     = NewDomainError("DEPENDENCY_FAILED", "A downstream dependency failed")
)
