// Package security keeps file system access inside a configured root.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the guarded root
var ErrOutsideRoot = errors.New("path is outside configured directory")

// PathGuard provides security validation for file paths
type PathGuard struct {
	root string
}

// NewPathGuard creates a new path guard for the given directory
func NewPathGuard(root string) (*PathGuard, error) {
	if root == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathGuard{root: filepath.Clean(absRoot)}, nil
}

// Root returns the guarded directory
func (g *PathGuard) Root() string {
	return g.root
}

// Join resolves a slash-separated relative name, such as a ZIP entry name,
// to a path under the root. Absolute names and names escaping the root
// through ".." are rejected.
func (g *PathGuard) Join(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if name == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: absolute path %s", ErrOutsideRoot, name)
	}

	joined := filepath.Join(g.root, filepath.FromSlash(slashed))
	if !g.contains(joined) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}

	return joined, nil
}

// ValidatePath checks that an existing or future path lies within the root,
// following symlinks where the path exists
func (g *PathGuard) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	if !g.contains(cleanPath) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	// A symlink inside the root may still point elsewhere
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("path validation failed: %w", err)
	}

	realRoot := g.root
	if resolved, err := filepath.EvalSymlinks(g.root); err == nil {
		realRoot = resolved
	}

	if !within(realPath, realRoot) && !within(realPath, g.root) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return nil
}

func (g *PathGuard) contains(path string) bool {
	return within(path, g.root)
}

// within reports whether path equals dir or lies below it
func within(path, dir string) bool {
	if path == dir {
		return true
	}

	dirWithSep := dir
	if !strings.HasSuffix(dirWithSep, string(filepath.Separator)) {
		dirWithSep += string(filepath.Separator)
	}

	return strings.HasPrefix(path, dirWithSep)
}
