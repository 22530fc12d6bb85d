package printing

import (
	"context"
	"image"
	"io"

	"github.com/google/uuid"
)

// DeviceLister queries the OS print subsystem. No devices is a valid empty
// result, not an error.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
	// DefaultDevice returns the system default device; ok is false when none is configured
	DefaultDevice(ctx context.Context) (device Device, ok bool, err error)
}

// Spooler hands a finished job to the print subsystem
type Spooler interface {
	Submit(ctx context.Context, payload io.Reader, format SubmissionFormat, orientation Orientation, copies int, deviceName string) error
}

// PageRasterizer opens paginated documents for rendering
type PageRasterizer interface {
	Open(ctx context.Context, path string) (PaginatedDocument, error)
}

// PaginatedDocument is an open multi-page document
type PaginatedDocument interface {
	PageCount() int
	RenderPage(index int, dpi float64) (image.Image, error)
	Close() error
}

// OfficeBridge starts office automation sessions. Every session is an
// exclusively owned application instance.
type OfficeBridge interface {
	NewSession(ctx context.Context) (OfficeSession, error)
}

// DocumentHandle identifies a document opened in an OfficeSession
type DocumentHandle struct {
	ID   string
	Path string
}

// OfficeSession is one automation application instance. All calls are
// synchronous. Callers must always pair OpenDocument with CloseDocument and
// end the session with Quit.
type OfficeSession interface {
	OpenDocument(ctx context.Context, path string) (DocumentHandle, error)
	SetActiveDevice(ctx context.Context, doc DocumentHandle, deviceName string) error
	PrintDocument(ctx context.Context, doc DocumentHandle) error
	ExportToPaginated(ctx context.Context, doc DocumentHandle, outPath string) error
	CloseDocument(ctx context.Context, doc DocumentHandle) error
	Quit(ctx context.Context) error
}

// Artifact is a scratch file owned by one run
type Artifact interface {
	Path() string
	// Release deletes the file. Releasing an already deleted artifact succeeds.
	Release() error
}

// ArtifactAllocator creates run-owned scratch files
type ArtifactAllocator interface {
	Create(suffix string) (Artifact, error)
}

// ArtifactScope is the set of artifacts created during one run
type ArtifactScope interface {
	ArtifactAllocator
	// ReleaseAll deletes every artifact still live in the scope
	ReleaseAll() error
	// Live returns the number of artifacts not yet released
	Live() int
}

// ScratchProvider opens one artifact scope per run
type ScratchProvider interface {
	NewScope(runID uuid.UUID, sourcePath string) (ArtifactScope, error)
}

// SourceFetcher downloads remote sources into a local file
type SourceFetcher interface {
	Handles(source string) bool
	Fetch(ctx context.Context, source string, dst io.Writer) error
}

// RunRecorder persists finished runs
type RunRecorder interface {
	Record(ctx context.Context, result *RunResult) error
}

// RunHistory looks up recorded runs
type RunHistory interface {
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*RunResult, error)
	ListRecent(ctx context.Context, limit int) ([]RunResult, error)
}
