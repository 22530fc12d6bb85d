package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	printingapp "github.com/erp/printdispatch/internal/application/printing"
	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/erp/printdispatch/internal/infrastructure/auth"
	"github.com/erp/printdispatch/internal/infrastructure/config"
	infraprinting "github.com/erp/printdispatch/internal/infrastructure/printing"
	"github.com/erp/printdispatch/internal/interfaces/http/dto"
	"github.com/erp/printdispatch/internal/interfaces/http/middleware"
	"github.com/erp/printdispatch/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Fakes
// =============================================================================

type stubDevices struct {
	devices []printing.Device
	def     string
	err     error
}

func (s *stubDevices) ListDevices(context.Context) ([]printing.Device, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]printing.Device(nil), s.devices...), nil
}

func (s *stubDevices) DefaultDevice(context.Context) (printing.Device, bool, error) {
	if s.err != nil {
		return printing.Device{}, false, s.err
	}
	if s.def == "" {
		return printing.Device{}, false, nil
	}
	return printing.Device{Name: s.def}, true, nil
}

type stubSpooler struct {
	mu    sync.Mutex
	count int
	block chan struct{}
}

func (s *stubSpooler) Submit(_ context.Context, payload io.Reader, _ printing.SubmissionFormat, _ printing.Orientation, _ int, _ string) error {
	if s.block != nil {
		<-s.block
	}
	if _, err := io.Copy(io.Discard, payload); err != nil {
		return err
	}
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func (s *stubSpooler) submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type memoryHistory struct {
	mu   sync.Mutex
	runs []printing.RunResult
}

func (m *memoryHistory) Record(_ context.Context, r *printing.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *r)
	return nil
}

func (m *memoryHistory) FindByRequestID(_ context.Context, id uuid.UUID) (*printing.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].RequestID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryHistory) ListRecent(_ context.Context, limit int) ([]printing.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]printing.RunResult, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

type refusingDispatcher struct{}

func (refusingDispatcher) Go(context.Context, *printing.PrintRequest) (*printingapp.Pending, error) {
	return nil, errors.New("job queue is full")
}

// =============================================================================
// Helpers
// =============================================================================

type testServer struct {
	engine    *gin.Engine
	spooler   *stubSpooler
	devices   *stubDevices
	history   *memoryHistory
	uploadDir string
	dir       string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	ts := &testServer{
		spooler:   &stubSpooler{},
		devices:   &stubDevices{devices: []printing.Device{{Name: "Office-MFP"}, {Name: "Label"}}, def: "Office-MFP"},
		history:   &memoryHistory{},
		uploadDir: t.TempDir(),
		dir:       t.TempDir(),
	}
	scratch, err := infraprinting.NewScratchManager(&infraprinting.ScratchConfig{Root: t.TempDir()})
	require.NoError(t, err)

	registry := printingapp.NewDeviceRegistry(ts.devices, nil)
	orch := printingapp.NewOrchestrator(
		registry,
		printingapp.NewStrategySet(printingapp.NewRasterImageStrategy()),
		printingapp.NewJobSubmitter(ts.spooler, nil),
		scratch,
		printingapp.WithRecorder(ts.history),
	)

	ts.engine = newEngine(
		NewPrintHandler(orch, ts.history, PrintConfig{
			UploadDir:      ts.uploadDir,
			MaxUploadBytes: 1 << 20,
			WaitTimeout:    5 * time.Second,
			AllowedRoots:   []string{ts.dir},
		}),
		NewDeviceHandler(registry),
	)
	return ts
}

func newEngine(ph *PrintHandler, dh *DeviceHandler) *gin.Engine {
	engine := router.NewEngine(router.EngineConfig{Mode: gin.TestMode}, zap.NewNop())
	router.NewRouter(engine).Register(PrintRoutes(ph), DeviceRoutes(dh)).Setup()
	return engine
}

func (ts *testServer) writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(ts.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))
	return path
}

func (ts *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postJSON(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return ts.do(http.MethodPost, "/api/v1/prints", bytes.NewReader(data), "application/json")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) (T, envelope) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	var data T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return data, env
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

// =============================================================================
// Tests
// =============================================================================

func TestPrintHandler_Create(t *testing.T) {
	t.Run("waits for a completed run", func(t *testing.T) {
		ts := newTestServer(t)
		src := ts.writeSource(t, "label.PNG")

		w := ts.postJSON(t, gin.H{"source": src, "orientation": "landscape", "copies": 2, "wait": true})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		run, env := decode[dto.PrintRunResponse](t, w)
		assert.True(t, env.Success)
		assert.Equal(t, "COMPLETED", run.State)
		assert.Equal(t, "Office-MFP", run.Device)
		assert.Equal(t, "LANDSCAPE", run.Orientation)
		assert.Equal(t, 2, run.Copies)
		assert.Equal(t, 1, run.JobsSubmitted)
		assert.Equal(t, 1, ts.spooler.submitted())
	})

	t.Run("returns 202 and the run becomes visible", func(t *testing.T) {
		ts := newTestServer(t)
		src := ts.writeSource(t, "photo.jpg")

		w := ts.postJSON(t, gin.H{"source": src})

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		accepted, _ := decode[dto.PrintAcceptedResponse](t, w)
		assert.Equal(t, dto.StateRunning, accepted.State)
		assert.Equal(t, "/api/v1/prints/"+accepted.RequestID, w.Header().Get("Location"))

		require.Eventually(t, func() bool {
			return ts.do(http.MethodGet, "/api/v1/prints/"+accepted.RequestID, nil, "").Code == http.StatusOK
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("failed run carries its error code", func(t *testing.T) {
		ts := newTestServer(t)
		src := ts.writeSource(t, "notes.txt")

		w := ts.postJSON(t, gin.H{"source": src, "wait": true})

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		run, env := decode[dto.PrintRunResponse](t, w)
		assert.False(t, env.Success)
		assert.Equal(t, dto.ErrCodeUnsupportedFormat, env.Error.Code)
		assert.Equal(t, "FAILED", run.State)
		assert.Zero(t, ts.spooler.submitted())
	})

	t.Run("unknown device", func(t *testing.T) {
		ts := newTestServer(t)
		src := ts.writeSource(t, "a.gif")

		w := ts.postJSON(t, gin.H{"source": src, "device": "Nonexistent", "wait": true})

		assert.Equal(t, http.StatusNotFound, w.Code)
		_, env := decode[dto.PrintRunResponse](t, w)
		assert.Equal(t, dto.ErrCodeDeviceNotFound, env.Error.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		ts := newTestServer(t)

		tests := []struct {
			name string
			body gin.H
		}{
			{name: "bad orientation", body: gin.H{"source": "/a.png", "orientation": "sideways"}},
			{name: "too many copies", body: gin.H{"source": "/a.png", "copies": 1000}},
			{name: "bad request id", body: gin.H{"source": "/a.png", "request_id": "nope"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := ts.postJSON(t, tt.body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				_, env := decode[any](t, w)
				assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
				assert.NotEmpty(t, env.Error.Details)
			})
		}
	})

	t.Run("missing source", func(t *testing.T) {
		ts := newTestServer(t)

		w := ts.postJSON(t, gin.H{"device": "Office-MFP"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		ts := newTestServer(t)

		w := ts.do(http.MethodPost, "/api/v1/prints", bytes.NewBufferString("{"), "application/json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("same request id while running is a conflict", func(t *testing.T) {
		ts := newTestServer(t)
		ts.spooler.block = make(chan struct{})
		src := ts.writeSource(t, "a.png")
		id := uuid.NewString()

		first := ts.postJSON(t, gin.H{"source": src, "request_id": id})
		require.Equal(t, http.StatusAccepted, first.Code)

		second := ts.postJSON(t, gin.H{"source": src, "request_id": id})
		assert.Equal(t, http.StatusConflict, second.Code)

		running := ts.do(http.MethodGet, "/api/v1/prints/"+id, nil, "")
		assert.Equal(t, http.StatusAccepted, running.Code)

		close(ts.spooler.block)
		require.Eventually(t, func() bool {
			return ts.do(http.MethodGet, "/api/v1/prints/"+id, nil, "").Code == http.StatusOK
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("refused by the dispatcher", func(t *testing.T) {
		engine := newEngine(
			NewPrintHandler(refusingDispatcher{}, nil, PrintConfig{}),
			NewDeviceHandler(printingapp.NewDeviceRegistry(&stubDevices{}, nil)),
		)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/prints", bytes.NewBufferString(`{"source":"s3://forms/a.png"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestPrintHandler_CreateSourceRoots(t *testing.T) {
	forbidden := func(t *testing.T, w *httptest.ResponseRecorder) {
		t.Helper()
		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		_, env := decode[any](t, w)
		assert.Equal(t, dto.ErrCodeSourceForbidden, env.Error.Code)
	}

	t.Run("path outside the allowed roots", func(t *testing.T) {
		ts := newTestServer(t)
		outside := filepath.Join(t.TempDir(), "secret.png")
		require.NoError(t, os.WriteFile(outside, []byte("\x89PNG"), 0o600))

		forbidden(t, ts.postJSON(t, gin.H{"source": outside, "wait": true}))
		assert.Zero(t, ts.spooler.submitted())
	})

	t.Run("dot-dot escape", func(t *testing.T) {
		ts := newTestServer(t)
		outside := filepath.Join(t.TempDir(), "secret.png")
		require.NoError(t, os.WriteFile(outside, []byte("\x89PNG"), 0o600))
		rel, err := filepath.Rel(ts.dir, outside)
		require.NoError(t, err)

		forbidden(t, ts.postJSON(t, gin.H{"source": ts.dir + string(filepath.Separator) + rel}))
		assert.Zero(t, ts.spooler.submitted())
	})

	t.Run("symlink pointing outside", func(t *testing.T) {
		ts := newTestServer(t)
		outside := filepath.Join(t.TempDir(), "secret.png")
		require.NoError(t, os.WriteFile(outside, []byte("\x89PNG"), 0o600))
		link := filepath.Join(ts.dir, "innocent.png")
		require.NoError(t, os.Symlink(outside, link))

		forbidden(t, ts.postJSON(t, gin.H{"source": link, "wait": true}))
		assert.Zero(t, ts.spooler.submitted())
	})

	t.Run("relative path", func(t *testing.T) {
		ts := newTestServer(t)

		forbidden(t, ts.postJSON(t, gin.H{"source": "a.png"}))
	})

	t.Run("no roots configured rejects local paths", func(t *testing.T) {
		ts := newTestServer(t)
		src := ts.writeSource(t, "a.png")
		engine := newEngine(
			NewPrintHandler(refusingDispatcher{}, nil, PrintConfig{}),
			NewDeviceHandler(printingapp.NewDeviceRegistry(&stubDevices{}, nil)),
		)
		data, err := json.Marshal(gin.H{"source": src})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/prints", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		forbidden(t, w)
	})

	t.Run("symlink inside the root is followed", func(t *testing.T) {
		ts := newTestServer(t)
		target := ts.writeSource(t, "target.png")
		link := filepath.Join(ts.dir, "alias.png")
		require.NoError(t, os.Symlink(target, link))

		w := ts.postJSON(t, gin.H{"source": link, "device": " Label ", "wait": true})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		run, _ := decode[dto.PrintRunResponse](t, w)
		assert.Equal(t, "target.png", filepath.Base(run.Source))
		assert.Equal(t, "Label", run.Device)
		assert.Equal(t, 1, ts.spooler.submitted())
	})
}

func TestPrintRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(t)
	svc := auth.NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key-at-least-32-chars",
		Issuer:          "printd",
		TokenExpiration: time.Minute,
	})
	registry := printingapp.NewDeviceRegistry(ts.devices, nil)
	engine := router.NewEngine(router.EngineConfig{Mode: gin.TestMode}, zap.NewNop())
	router.NewRouter(engine).Register(
		PrintRoutes(NewPrintHandler(refusingDispatcher{}, nil, PrintConfig{}), middleware.JWTAuth(svc)),
		DeviceRoutes(NewDeviceHandler(registry), middleware.JWTAuth(svc)),
	).Setup()

	serve := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(`{"source":"s3://forms/a.png"}`))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "/api/v1/prints", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/devices", "").Code)

	token, _, err := svc.GenerateToken("erp-backend", 0)
	require.NoError(t, err)
	// authenticated, then refused by the full queue
	assert.Equal(t, http.StatusServiceUnavailable, serve(http.MethodPost, "/api/v1/prints", token).Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/devices", token).Code)
}

func TestPrintHandler_CreateUpload(t *testing.T) {
	t.Run("upload is removed after the run", func(t *testing.T) {
		ts := newTestServer(t)
		body, ct := multipartBody(t, "scan.png", []byte("\x89PNG"), map[string]string{"wait": "true", "device": "Label"})

		w := ts.do(http.MethodPost, "/api/v1/prints", body, ct)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		run, _ := decode[dto.PrintRunResponse](t, w)
		assert.Equal(t, "Label", run.Device)
		assert.Equal(t, 1, ts.spooler.submitted())
		require.Eventually(t, func() bool {
			entries, err := os.ReadDir(ts.uploadDir)
			return err == nil && len(entries) == 0
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("unsupported upload is not stored", func(t *testing.T) {
		ts := newTestServer(t)
		body, ct := multipartBody(t, "notes.txt", []byte("hello"), nil)

		w := ts.do(http.MethodPost, "/api/v1/prints", body, ct)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		entries, err := os.ReadDir(ts.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("neither file nor source", func(t *testing.T) {
		ts := newTestServer(t)
		body, ct := multipartBody(t, "", nil, map[string]string{"device": "Label"})

		w := ts.do(http.MethodPost, "/api/v1/prints", body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPrintHandler_GetAndList(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"one.png", "two.png"} {
		w := ts.postJSON(t, gin.H{"source": ts.writeSource(t, name), "wait": true})
		require.Equal(t, http.StatusOK, w.Code)
	}

	t.Run("list newest first", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/prints?limit=10", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		runs, _ := decode[[]dto.PrintRunResponse](t, w)
		require.Len(t, runs, 2)
		assert.Equal(t, "two.png", filepath.Base(runs[0].Source))
	})

	t.Run("limit out of range", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/prints?limit=0", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = ts.do(http.MethodGet, "/api/v1/prints?limit=9999", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/prints/"+uuid.NewString(), nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/prints/not-a-uuid", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeviceHandler(t *testing.T) {
	t.Run("lists devices with the default flagged", func(t *testing.T) {
		ts := newTestServer(t)

		w := ts.do(http.MethodGet, "/api/v1/devices", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		devices, _ := decode[[]dto.DeviceResponse](t, w)
		assert.Equal(t, []dto.DeviceResponse{{Name: "Office-MFP", Default: true}, {Name: "Label"}}, devices)
	})

	t.Run("no devices is an empty list", func(t *testing.T) {
		ts := newTestServer(t)
		ts.devices.devices = nil
		ts.devices.def = ""

		w := ts.do(http.MethodGet, "/api/v1/devices", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		devices, _ := decode[[]dto.DeviceResponse](t, w)
		assert.Empty(t, devices)
	})

	t.Run("print subsystem error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.devices.err = errors.New("lpstat: scheduler is not running")

		w := ts.do(http.MethodGet, "/api/v1/devices", nil, "")

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("formats", func(t *testing.T) {
		ts := newTestServer(t)

		w := ts.do(http.MethodGet, "/api/v1/formats", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		formats, _ := decode[[]dto.FormatResponse](t, w)
		assert.Len(t, formats, len(printing.SupportedExtensions()))
	})
}

func TestHealthHandler(t *testing.T) {
	engine := gin.New()
	healthy := NewHealthHandler(map[string]HealthCheck{"database": func(context.Context) error { return nil }})
	broken := NewHealthHandler(map[string]HealthCheck{"database": func(context.Context) error { return errors.New("down") }})
	engine.GET("/ok", healthy.Health)
	engine.GET("/broken", broken.Health)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")
}
