package printing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ArtifactPrefix starts the name of every scratch file
const ArtifactPrefix = "printd-"

// ScratchConfig contains configuration for scratch file management
type ScratchConfig struct {
	// Root is the shared scratch directory
	// Default: <os temp dir>/printdispatch
	Root string
	// ColocateWithSource creates artifacts next to local source files instead of under Root
	ColocateWithSource bool
	// Logger for operations
	Logger *zap.Logger
}

// ScratchManager hands out one ArtifactScope per pipeline run. Scopes share
// the scratch directory; names are made unique with random suffixes.
type ScratchManager struct {
	config *ScratchConfig
	logger *zap.Logger
}

// NewScratchManager creates a new ScratchManager and ensures the root exists
func NewScratchManager(config *ScratchConfig) (*ScratchManager, error) {
	if config == nil {
		config = &ScratchConfig{}
	}
	if config.Root == "" {
		config.Root = filepath.Join(os.TempDir(), "printdispatch")
	}
	if err := os.MkdirAll(config.Root, 0o755); err != nil {
		return nil, NewBoundaryError(ErrCodeScratchFailed,
			fmt.Sprintf("failed to create scratch directory: %s", config.Root), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ScratchManager{
		config: config,
		logger: logger,
	}, nil
}

// Root returns the shared scratch directory
func (m *ScratchManager) Root() string {
	return m.config.Root
}

// NewScope opens the artifact scope of one run
func (m *ScratchManager) NewScope(runID uuid.UUID, sourcePath string) (printing.ArtifactScope, error) {
	dir := m.config.Root
	if m.config.ColocateWithSource {
		if d, ok := localDir(sourcePath); ok {
			dir = d
		}
	}
	return &ArtifactScope{
		dir:    dir,
		runID:  runID,
		live:   make(map[string]*TempArtifact),
		logger: m.logger,
	}, nil
}

// SweepOlderThan removes scratch files under Root older than age. It is meant
// for startup, to remove what a crashed process left behind.
func (m *ScratchManager) SweepOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	entries, err := os.ReadDir(m.config.Root)
	if err != nil {
		return 0, NewBoundaryError(ErrCodeScratchFailed, "failed to read scratch directory", err)
	}

	deleted := 0
	var errs error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), ArtifactPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(m.config.Root, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted++
		m.logger.Debug("deleted stale scratch file", zap.String("path", path))
	}

	m.logger.Info("scratch sweep completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, errs
}

func localDir(sourcePath string) (string, bool) {
	if sourcePath == "" || strings.Contains(sourcePath, "://") {
		return "", false
	}
	dir := filepath.Dir(sourcePath)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// ArtifactScope tracks the scratch files of one run until they are released
type ArtifactScope struct {
	dir    string
	runID  uuid.UUID
	logger *zap.Logger

	mu   sync.Mutex
	live map[string]*TempArtifact
}

var _ printing.ArtifactScope = (*ArtifactScope)(nil)

// Dir returns the directory artifacts are created in
func (s *ArtifactScope) Dir() string {
	return s.dir
}

// Create allocates an empty, uniquely named file ending in suffix
func (s *ArtifactScope) Create(suffix string) (printing.Artifact, error) {
	if strings.ContainsAny(suffix, `/\`) || strings.Contains(suffix, "..") {
		return nil, NewBoundaryError(ErrCodeScratchFailed, "invalid artifact suffix: "+suffix, nil)
	}
	name := fmt.Sprintf("%s%s-%s%s", ArtifactPrefix, s.runID.String()[:8], uuid.NewString(), suffix)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, NewBoundaryError(ErrCodeScratchFailed, "failed to create artifact", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, NewBoundaryError(ErrCodeScratchFailed, "failed to create artifact", err)
	}

	art := &TempArtifact{path: path, scope: s}
	s.mu.Lock()
	s.live[path] = art
	s.mu.Unlock()

	s.logger.Debug("artifact created", zap.String("path", path))
	return art, nil
}

// ReleaseAll deletes every artifact still live. Failures are aggregated;
// artifacts that could not be deleted stay live.
func (s *ArtifactScope) ReleaseAll() error {
	s.mu.Lock()
	arts := make([]*TempArtifact, 0, len(s.live))
	for _, art := range s.live {
		arts = append(arts, art)
	}
	s.mu.Unlock()

	var errs error
	for _, art := range arts {
		errs = multierr.Append(errs, art.Release())
	}
	return errs
}

// Live returns the number of artifacts not yet released
func (s *ArtifactScope) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *ArtifactScope) forget(path string) {
	s.mu.Lock()
	delete(s.live, path)
	s.mu.Unlock()
}

// TempArtifact is one scratch file
type TempArtifact struct {
	path  string
	scope *ArtifactScope
}

// Path returns the file path
func (a *TempArtifact) Path() string {
	return a.path
}

// Release deletes the file. A file that is already gone counts as released.
func (a *TempArtifact) Release() error {
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return NewBoundaryError(ErrCodeScratchFailed, "failed to delete artifact "+a.path, err)
	}
	a.scope.forget(a.path)
	return nil
}
