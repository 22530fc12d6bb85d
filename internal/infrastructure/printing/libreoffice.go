package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSofficePath   = "soffice"
	defaultOfficeTimeout = 2 * time.Minute
)

// LibreOfficeConfig contains configuration for the headless LibreOffice bridge
type LibreOfficeConfig struct {
	// BinaryPath is the soffice binary, searched in PATH if relative
	BinaryPath string
	// ProfileRoot holds the per-session user profiles
	// Default: os.TempDir()
	ProfileRoot string
	// Timeout bounds every soffice invocation
	Timeout time.Duration
	// Logger for debug output
	Logger *zap.Logger
}

// LibreOfficeBridge starts LibreOffice sessions. Each session runs soffice
// with its own user profile, so concurrent sessions never share an
// application instance or its active printer.
type LibreOfficeBridge struct {
	config *LibreOfficeConfig
	runner CommandRunner
	logger *zap.Logger
}

var _ printing.OfficeBridge = (*LibreOfficeBridge)(nil)

// NewLibreOfficeBridge creates a new LibreOfficeBridge. With a nil runner the
// soffice binary must be installed.
func NewLibreOfficeBridge(config *LibreOfficeConfig, runner CommandRunner) (*LibreOfficeBridge, error) {
	cfg := LibreOfficeConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = defaultSofficePath
	}
	if cfg.ProfileRoot == "" {
		cfg.ProfileRoot = os.TempDir()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOfficeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if runner == nil {
		path, err := resolveBinary(cfg.BinaryPath)
		if err != nil {
			return nil, err
		}
		cfg.BinaryPath = path
		runner = NewExecRunner(cfg.Logger)
	}
	return &LibreOfficeBridge{config: &cfg, runner: runner, logger: cfg.Logger}, nil
}

// UnavailableOfficeBridge stands in for a bridge whose application could not
// be located. Every session attempt fails with the resolution error.
type UnavailableOfficeBridge struct {
	err error
}

var _ printing.OfficeBridge = (*UnavailableOfficeBridge)(nil)

// NewUnavailableOfficeBridge wraps the error reported while resolving the
// office binary.
func NewUnavailableOfficeBridge(err error) *UnavailableOfficeBridge {
	if err == nil {
		err = NewBoundaryError(ErrCodeBinaryNotFound, "office application not configured", nil)
	}
	return &UnavailableOfficeBridge{err: err}
}

// NewSession always returns the resolution error.
func (b *UnavailableOfficeBridge) NewSession(context.Context) (printing.OfficeSession, error) {
	return nil, b.err
}

// NewSession creates a private profile directory and returns a session bound to it
func (b *LibreOfficeBridge) NewSession(ctx context.Context) (printing.OfficeSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(b.config.ProfileRoot, 0o755); err != nil {
		return nil, NewBoundaryError(ErrCodeScratchFailed, "failed to create profile root", err)
	}
	profile, err := os.MkdirTemp(b.config.ProfileRoot, "printd-lo-")
	if err != nil {
		return nil, NewBoundaryError(ErrCodeScratchFailed, "failed to create office profile", err)
	}
	b.logger.Debug("office session started", zap.String("profile", profile))
	return &LibreOfficeSession{
		bridge:  b,
		profile: profile,
		docs:    make(map[string]*officeDocument),
	}, nil
}

type officeDocument struct {
	handle  printing.DocumentHandle
	printer string
}

// LibreOfficeSession is one headless soffice instance identified by its profile
type LibreOfficeSession struct {
	bridge  *LibreOfficeBridge
	profile string

	mu   sync.Mutex
	docs map[string]*officeDocument
	quit bool
}

var _ printing.OfficeSession = (*LibreOfficeSession)(nil)

// Profile returns the session's profile directory
func (s *LibreOfficeSession) Profile() string {
	return s.profile
}

// OpenDocument registers the document with the session
func (s *LibreOfficeSession) OpenDocument(_ context.Context, path string) (printing.DocumentHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return printing.DocumentHandle{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return printing.DocumentHandle{}, err
	}
	if info.IsDir() {
		return printing.DocumentHandle{}, fmt.Errorf("%s is a directory", abs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return printing.DocumentHandle{}, errors.New("office session has quit")
	}
	h := printing.DocumentHandle{ID: uuid.NewString(), Path: abs}
	s.docs[h.ID] = &officeDocument{handle: h}
	return h, nil
}

// SetActiveDevice selects the printer PrintDocument will use
func (s *LibreOfficeSession) SetActiveDevice(_ context.Context, h printing.DocumentHandle, deviceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[h.ID]
	if !ok {
		return fmt.Errorf("document %s is not open", h.Path)
	}
	doc.printer = deviceName
	return nil
}

// PrintDocument prints the document on its active device, or the default printer
func (s *LibreOfficeSession) PrintDocument(ctx context.Context, h printing.DocumentHandle) error {
	s.mu.Lock()
	doc, ok := s.docs[h.ID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("document %s is not open", h.Path)
	}

	args := s.baseArgs()
	if doc.printer != "" {
		args = append(args, "--pt", doc.printer, doc.handle.Path)
	} else {
		args = append(args, "-p", doc.handle.Path)
	}
	_, err := s.run(ctx, args)
	return err
}

// ExportToPaginated converts the document to PDF at outPath
func (s *LibreOfficeSession) ExportToPaginated(ctx context.Context, h printing.DocumentHandle, outPath string) error {
	s.mu.Lock()
	doc, ok := s.docs[h.ID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("document %s is not open", h.Path)
	}

	outDir, err := os.MkdirTemp(s.profile, "export-")
	if err != nil {
		return NewBoundaryError(ErrCodeScratchFailed, "failed to create export directory", err)
	}
	defer os.RemoveAll(outDir)

	args := append(s.baseArgs(), "--convert-to", "pdf", "--outdir", outDir, doc.handle.Path)
	if _, err := s.run(ctx, args); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(doc.handle.Path), filepath.Ext(doc.handle.Path))
	produced := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return NewBoundaryError(ErrCodeCommandFailed, "soffice produced no PDF", err)
	}
	return moveFile(produced, outPath)
}

// CloseDocument forgets the document. Closing twice is not an error.
func (s *LibreOfficeSession) CloseDocument(_ context.Context, h printing.DocumentHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, h.ID)
	return nil
}

// Quit closes all documents and removes the session profile
func (s *LibreOfficeSession) Quit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return nil
	}
	s.quit = true
	s.docs = make(map[string]*officeDocument)
	if err := os.RemoveAll(s.profile); err != nil {
		return NewBoundaryError(ErrCodeScratchFailed, "failed to remove office profile", err)
	}
	s.bridge.logger.Debug("office session ended", zap.String("profile", s.profile))
	return nil
}

func (s *LibreOfficeSession) baseArgs() []string {
	return []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(s.profile),
		"--headless",
		"--invisible",
		"--norestore",
		"--nolockcheck",
	}
}

func (s *LibreOfficeSession) run(ctx context.Context, args []string) ([]byte, error) {
	s.mu.Lock()
	quit := s.quit
	s.mu.Unlock()
	if quit {
		return nil, errors.New("office session has quit")
	}
	return s.bridge.runner.Run(ctx, Command{
		Binary:  s.bridge.config.BinaryPath,
		Args:    args,
		Timeout: s.bridge.config.Timeout,
	})
}

// moveFile renames src to dst, copying when they are on different filesystems
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
