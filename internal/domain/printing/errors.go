package printing

import (
	"errors"
	"fmt"

	"github.com/erp/printdispatch/internal/domain/shared"
)

// Error codes for the pipeline error taxonomy
const (
	CodeDeviceNotFound        = "DEVICE_NOT_FOUND"
	CodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	CodeConversionFailed      = "CONVERSION_FAILED"
	CodeSubmissionFailed      = "SUBMISSION_FAILED"
	CodeResourceLeakPrevented = "RESOURCE_LEAK_PREVENTED"
	CodeInvalidRequest        = "INVALID_PRINT_REQUEST"
	CodeDuplicateRequest      = "DUPLICATE_PRINT_REQUEST"
)

// Sentinel kinds. Match with errors.Is against any error returned by the pipeline.
var (
	ErrDeviceNotFound        = shared.NewDomainError(CodeDeviceNotFound, "Print device not found")
	ErrUnsupportedFormat     = shared.NewDomainError(CodeUnsupportedFormat, "Unsupported input format")
	ErrConversionFailed      = shared.NewDomainError(CodeConversionFailed, "Conversion failed")
	ErrSubmissionFailed      = shared.NewDomainError(CodeSubmissionFailed, "Submission to print device failed")
	ErrResourceLeakPrevented = shared.NewDomainError(CodeResourceLeakPrevented, "Temporary resource cleanup failed")
	ErrInvalidRequest        = shared.NewDomainError(CodeInvalidRequest, "Invalid print request")
	ErrDuplicateRequest      = shared.NewDomainError(CodeDuplicateRequest, "Print request already dispatched")
)

// PipelineError carries a taxonomy kind together with the operation and
// subject that failed and the underlying cause, if any.
type PipelineError struct {
	Kind    *shared.DomainError
	Op      string
	Subject string
	Err     error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	msg := e.Kind.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Subject != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Subject)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the taxonomy code of the error
func (e *PipelineError) Code() string {
	return e.Kind.Code
}

// DeviceNotFound reports a device name that does not match any listed device.
// An empty name means no system default device is configured.
func DeviceNotFound(name string, cause error) error {
	op := "resolve device"
	if name == "" {
		op = "resolve default device"
	}
	return &PipelineError{Kind: ErrDeviceNotFound, Op: op, Subject: name, Err: cause}
}

// UnsupportedFormat reports a source whose extension is not in the format table
func UnsupportedFormat(path string) error {
	return &PipelineError{Kind: ErrUnsupportedFormat, Op: "resolve format", Subject: path}
}

// ConversionFailed reports a failure while turning the source into jobs
func ConversionFailed(op, subject string, cause error) error {
	return &PipelineError{Kind: ErrConversionFailed, Op: op, Subject: subject, Err: cause}
}

// SubmissionFailed reports a failure handing one job to the print device
func SubmissionFailed(subject string, cause error) error {
	return &PipelineError{Kind: ErrSubmissionFailed, Op: "submit", Subject: subject, Err: cause}
}

// ResourceLeakPrevented reports temporary resources that could not be released
func ResourceLeakPrevented(subject string, cause error) error {
	return &PipelineError{Kind: ErrResourceLeakPrevented, Op: "release", Subject: subject, Err: cause}
}

// InvalidRequest reports a print request that failed validation
func InvalidRequest(message string) error {
	return &PipelineError{Kind: ErrInvalidRequest, Op: message}
}

// ErrorCode returns the taxonomy code carried by err, or "" if it has none
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code()
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
