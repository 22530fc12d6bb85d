package printing

// BoundaryError represents a failure at one of the external boundaries
type BoundaryError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BoundaryError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BoundaryError) Unwrap() error {
	return e.Cause
}

// Error codes for boundary failures
const (
	ErrCodeBinaryNotFound = "BINARY_NOT_FOUND"
	ErrCodeCommandFailed  = "COMMAND_FAILED"
	ErrCodeCommandTimeout = "COMMAND_TIMEOUT"
	ErrCodeScratchFailed  = "SCRATCH_FAILED"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeRenderFailed   = "RENDER_FAILED"
)

// NewBoundaryError creates a new BoundaryError
func NewBoundaryError(code, message string, cause error) *BoundaryError {
	return &BoundaryError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
