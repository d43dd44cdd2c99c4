package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DirSource reads templates from files below Root. Names are slash
// separated paths relative to Root. Reads go through os.Root, so neither
// ".." nor a symlink can reach a file outside Root.
type DirSource struct {
	Root string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Root: dir}
}

// Load implements Source. The stamp is the file's modification time.
func (s *DirSource) Load(ctx context.Context, name string) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	root, err := os.OpenRoot(s.Root)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("opening template dir: %w", err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", time.Time{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", time.Time{}, fmt.Errorf("opening template %q: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("stat template %q: %w", name, err)
	}
	if info.IsDir() {
		return "", time.Time{}, fmt.Errorf("%w: %q is a directory", ErrNotFound, name)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reading template %q: %w", name, err)
	}
	return string(data), info.ModTime(), nil
}
