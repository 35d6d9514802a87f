package playlist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// withinRoot reports an error when path, after resolving symlinks, lies
// outside root. Symlinked tracks are allowed only when they point back into
// the music directory.
func withinRoot(path, root string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve track path: %w", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve music dir: %w", err)
	}

	canonicalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return fmt.Errorf("resolve track symlinks: %w", err)
	}
	canonicalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve music dir symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalPath)
	if err != nil {
		return fmt.Errorf("track is outside music dir: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("track %s escapes music dir %s", path, root)
	}
	return nil
}
