package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/erp/printdispatch/internal/infrastructure/storage"
)

var errSourceForbidden = errors.New("source is outside the allowed directories")

// sourceRoots limits local path sources to a set of directories. Remote
// sources are checked by their fetcher instead.
type sourceRoots struct {
	roots []string
}

func newSourceRoots(roots []string) sourceRoots {
	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		clean := filepath.Clean(root)
		if real, err := filepath.EvalSymlinks(clean); err == nil {
			clean = real
		}
		resolved = append(resolved, clean)
	}
	return sourceRoots{roots: resolved}
}

// resolve returns the path a local source should be read from, with symlinks
// resolved, or errSourceForbidden when it escapes every root.
func (r sourceRoots) resolve(source string) (string, error) {
	if strings.HasPrefix(source, storage.Scheme) {
		return source, nil
	}
	if !filepath.IsAbs(source) {
		return "", fmt.Errorf("%w: %q is not an absolute path", errSourceForbidden, source)
	}

	path := filepath.Clean(source)
	real, err := filepath.EvalSymlinks(path)
	switch {
	case err == nil:
		path = real
	case errors.Is(err, fs.ErrNotExist):
		// nothing to follow; the run reports the missing file
	default:
		return "", fmt.Errorf("%w: %v", errSourceForbidden, err)
	}

	for _, root := range r.roots {
		if within(root, path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errSourceForbidden, source)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
