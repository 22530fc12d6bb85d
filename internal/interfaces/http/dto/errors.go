package dto

import (
	"net/http"

	"github.com/erp/printdispatch/internal/domain/printing"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when the server cannot take more work
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodePayloadLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
)

// Print pipeline error codes
const (
	ErrCodeDeviceNotFound        = "ERR_PRINT_DEVICE_NOT_FOUND"
	ErrCodeUnsupportedFormat     = "ERR_PRINT_UNSUPPORTED_FORMAT"
	ErrCodeConversionFailed      = "ERR_PRINT_CONVERSION_FAILED"
	ErrCodeSubmissionFailed      = "ERR_PRINT_SUBMISSION_FAILED"
	ErrCodeResourceLeakPrevented = "ERR_PRINT_RESOURCE_LEAK"
	ErrCodeInvalidPrintRequest   = "ERR_PRINT_INVALID_REQUEST"
	ErrCodeDuplicatePrintRequest = "ERR_PRINT_DUPLICATE_REQUEST"
	ErrCodeSourceForbidden       = "ERR_PRINT_SOURCE_FORBIDDEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodePayloadLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,

	ErrCodeDeviceNotFound:        http.StatusNotFound,
	ErrCodeUnsupportedFormat:     http.StatusUnsupportedMediaType,
	ErrCodeConversionFailed:      http.StatusUnprocessableEntity,
	ErrCodeSubmissionFailed:      http.StatusBadGateway,
	ErrCodeResourceLeakPrevented: http.StatusInternalServerError,
	ErrCodeInvalidPrintRequest:   http.StatusBadRequest,
	ErrCodeDuplicatePrintRequest: http.StatusConflict,
	ErrCodeSourceForbidden:       http.StatusForbidden,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to API error codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":      ErrCodeNotFound,
	"ALREADY_EXISTS": ErrCodeAlreadyExists,
	"INVALID_INPUT":  ErrCodeInvalidInput,
	"INVALID_STATE":  ErrCodeInvalidState,

	printing.CodeDeviceNotFound:        ErrCodeDeviceNotFound,
	printing.CodeUnsupportedFormat:     ErrCodeUnsupportedFormat,
	printing.CodeConversionFailed:      ErrCodeConversionFailed,
	printing.CodeSubmissionFailed:      ErrCodeSubmissionFailed,
	printing.CodeResourceLeakPrevented: ErrCodeResourceLeakPrevented,
	printing.CodeInvalidRequest:        ErrCodeInvalidPrintRequest,
	printing.CodeDuplicateRequest:      ErrCodeDuplicatePrintRequest,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
