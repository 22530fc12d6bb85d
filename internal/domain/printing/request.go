package printing

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	// MinCopies is the minimum number of copies per request
	MinCopies = 1
	// MaxCopies is the maximum number of copies per request
	MaxCopies = 100
)

// CompletionHook is invoked exactly once when a run terminates, after all
// temporary resources have been released. It receives the finished run, which
// is never nil. Callers holding a plain func() wrap it:
//
//	WithCompletionHook(func(*RunResult) { done() })
type CompletionHook func(result *RunResult)

// PrintRequest is an immutable print instruction. It is consumed by exactly one
// pipeline run; see Claim.
type PrintRequest struct {
	id          uuid.UUID
	sourcePath  string
	deviceName  string
	orientation Orientation
	copies      int
	onComplete  CompletionHook

	claimed atomic.Bool
}

// RequestOption configures a PrintRequest
type RequestOption func(*PrintRequest)

// WithRequestID sets the request identifier used for duplicate detection
func WithRequestID(id uuid.UUID) RequestOption {
	return func(r *PrintRequest) {
		r.id = id
	}
}

// WithDevice targets a named device instead of the system default. The name
// is matched exactly, so it is kept as given.
func WithDevice(name string) RequestOption {
	return func(r *PrintRequest) {
		r.deviceName = name
	}
}

// WithOrientation sets the requested orientation
func WithOrientation(o Orientation) RequestOption {
	return func(r *PrintRequest) {
		r.orientation = o
	}
}

// WithCopies sets the number of copies for raster submissions
func WithCopies(n int) RequestOption {
	return func(r *PrintRequest) {
		r.copies = n
	}
}

// WithCompletionHook registers the hook invoked when the run terminates
func WithCompletionHook(hook CompletionHook) RequestOption {
	return func(r *PrintRequest) {
		r.onComplete = hook
	}
}

// NewPrintRequest creates a validated print request for a source path
func NewPrintRequest(sourcePath string, opts ...RequestOption) (*PrintRequest, error) {
	r := &PrintRequest{
		sourcePath:  strings.TrimSpace(sourcePath),
		orientation: OrientationPortrait,
		copies:      MinCopies,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sourcePath == "" {
		return nil, InvalidRequest("source path cannot be empty")
	}
	if !r.orientation.IsValid() {
		return nil, InvalidRequest("invalid orientation: " + string(r.orientation))
	}
	if r.copies < MinCopies {
		return nil, InvalidRequest("number of copies must be at least 1")
	}
	if r.copies > MaxCopies {
		return nil, InvalidRequest("number of copies cannot exceed 100")
	}
	if r.id == uuid.Nil {
		r.id = uuid.New()
	}
	return r, nil
}

// ID returns the request identifier
func (r *PrintRequest) ID() uuid.UUID { return r.id }

// SourcePath returns the local path or remote URI of the source file
func (r *PrintRequest) SourcePath() string { return r.sourcePath }

// DeviceName returns the requested device name, empty for the system default
func (r *PrintRequest) DeviceName() string { return r.deviceName }

// HasDevice reports whether a device name was requested
func (r *PrintRequest) HasDevice() bool { return r.deviceName != "" }

// Orientation returns the requested orientation
func (r *PrintRequest) Orientation() Orientation { return r.orientation }

// Copies returns the requested number of copies
func (r *PrintRequest) Copies() int { return r.copies }

// CompletionHook returns the registered hook, or nil
func (r *PrintRequest) CompletionHook() CompletionHook { return r.onComplete }

// Claim marks the request as consumed. Only the first call succeeds;
// later calls return ErrDuplicateRequest.
func (r *PrintRequest) Claim() error {
	if !r.claimed.CompareAndSwap(false, true) {
		return &PipelineError{Kind: ErrDuplicateRequest, Op: "claim", Subject: r.id.String()}
	}
	return nil
}
