package printing_test

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domain "github.com/erp/printdispatch/internal/domain/printing"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockDeviceLister struct {
	mock.Mock
}

func (m *MockDeviceLister) ListDevices(ctx context.Context) ([]domain.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Device), args.Error(1)
}

func (m *MockDeviceLister) DefaultDevice(ctx context.Context) (domain.Device, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Device), args.Bool(1), args.Error(2)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) Record(ctx context.Context, result *domain.RunResult) error {
	return m.Called(ctx, result).Error(0)
}

type MockRunObserver struct {
	mock.Mock
}

func (m *MockRunObserver) ObserveRun(ctx context.Context, result *domain.RunResult) {
	m.Called(ctx, result)
}

// =============================================================================
// Fakes
// =============================================================================

type submission struct {
	data        []byte
	format      domain.SubmissionFormat
	orientation domain.Orientation
	copies      int
	device      string
	// liveArtifacts is the number of files in the scratch directory at submit time
	liveArtifacts int
}

type fakeSpooler struct {
	mu         sync.Mutex
	scratchDir string
	subs       []submission
	// fail decides the outcome of the n-th submission (0-based)
	fail     func(n int) error
	block    chan struct{}
	onSubmit func()
}

func (s *fakeSpooler) Submit(_ context.Context, payload io.Reader, format domain.SubmissionFormat, orientation domain.Orientation, copies int, device string) error {
	if s.block != nil {
		<-s.block
	}
	if s.onSubmit != nil {
		s.onSubmit()
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	n := len(s.subs)
	s.subs = append(s.subs, submission{
		data:          data,
		format:        format,
		orientation:   orientation,
		copies:        copies,
		device:        device,
		liveArtifacts: countFiles(s.scratchDir),
	})
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail(n)
	}
	return nil
}

func (s *fakeSpooler) submissions() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.subs...)
}

func countFiles(dir string) int {
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1
	}
	return len(entries)
}

type fakeRasterizer struct {
	mu       sync.Mutex
	pages    int
	failAt   int
	openErr  error
	opened   int
	closed   int
	lastPath string
	dpis     []float64
}

func newFakeRasterizer(pages int) *fakeRasterizer {
	return &fakeRasterizer{pages: pages, failAt: -1}
}

func (r *fakeRasterizer) Open(_ context.Context, path string) (domain.PaginatedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
	r.lastPath = path
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &fakeDocument{r: r}, nil
}

func (r *fakeRasterizer) counts() (opened, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed
}

type fakeDocument struct {
	r *fakeRasterizer
}

func (d *fakeDocument) PageCount() int {
	return d.r.pages
}

func (d *fakeDocument) RenderPage(index int, dpi float64) (image.Image, error) {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.dpis = append(d.r.dpis, dpi)
	if index == d.r.failAt {
		return nil, errors.New("mupdf: page tree broken")
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 4)), nil
}

func (d *fakeDocument) Close() error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.closed++
	return nil
}

type fakeBridge struct {
	mu        sync.Mutex
	calls     []string
	sessions  int
	quits     int
	newErr    error
	printErr  error
	exportErr error
}

func (b *fakeBridge) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBridge) snapshot() (calls []string, sessions, quits int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...), b.sessions, b.quits
}

func (b *fakeBridge) NewSession(context.Context) (domain.OfficeSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newErr != nil {
		return nil, b.newErr
	}
	b.sessions++
	return &fakeSession{b: b}, nil
}

type fakeSession struct {
	b *fakeBridge
}

func (s *fakeSession) OpenDocument(_ context.Context, path string) (domain.DocumentHandle, error) {
	s.b.record("open:" + filepath.Base(path))
	return domain.DocumentHandle{ID: "1", Path: path}, nil
}

func (s *fakeSession) SetActiveDevice(_ context.Context, _ domain.DocumentHandle, name string) error {
	s.b.record("device:" + name)
	return nil
}

func (s *fakeSession) PrintDocument(context.Context, domain.DocumentHandle) error {
	s.b.record("print")
	return s.b.printErr
}

func (s *fakeSession) ExportToPaginated(_ context.Context, _ domain.DocumentHandle, outPath string) error {
	s.b.record("export:" + filepath.Ext(outPath))
	if s.b.exportErr != nil {
		return s.b.exportErr
	}
	return os.WriteFile(outPath, []byte("%PDF-1.7"), 0o600)
}

func (s *fakeSession) CloseDocument(context.Context, domain.DocumentHandle) error {
	s.b.record("close")
	return nil
}

func (s *fakeSession) Quit(context.Context) error {
	s.b.record("quit")
	s.b.mu.Lock()
	s.b.quits++
	s.b.mu.Unlock()
	return nil
}

type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) Handles(source string) bool {
	return strings.HasPrefix(source, "s3://")
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, dst io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(dst, f.content)
	return err
}

type rejectingExecutor struct{}

func (rejectingExecutor) Execute(func()) error {
	return errors.New("job queue is full")
}
