package shared

// DomainError pairs a stable machine-readable code with a human message.
// The HTTP layer translates the code into a status; the message goes to the
// caller verbatim.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError builds a DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// ErrConcurrencyConflict is returned when a merge-update loses the version
// race against a concurrent writer.
var ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
