package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores files in a directory of the local filesystem.
type Local struct {
	root   string
	prefix string
}

// NewLocal returns a storage writing under root. URLs are path-relative
// when prefix is empty.
func NewLocal(root, prefix string) *Local {
	return &Local{root: root, prefix: strings.TrimSuffix(prefix, "/")}
}

// Store implements Storage. Files are renamed to a random name keeping
// their extension.
func (l *Local) Store(ctx context.Context, f *File, folder, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := path.Join(folder, uuid.NewString()+strings.ToLower(path.Ext(f.Name)))
	name, err := l.abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("storage: creating folder: %w", err)
	}
	src, err := f.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	dst, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("storage: creating file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(name)
		return "", fmt.Errorf("storage: writing %s: %w", rel, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("storage: writing %s: %w", rel, err)
	}
	return rel, nil
}

// Delete implements Storage.
func (l *Local) Delete(_ context.Context, rel, _ string) error {
	name, err := l.abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: deleting %s: %w", rel, err)
	}
	return nil
}

// URL implements Storage.
func (l *Local) URL(rel, _ string) string {
	return l.prefix + "/" + rel
}

// abs returns the filesystem path of rel, which must stay inside root.
func (l *Local) abs(rel string) (string, error) {
	rel = filepath.FromSlash(strings.TrimPrefix(rel, "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: invalid path %q", rel)
	}
	return filepath.Join(l.root, rel), nil
}

var _ Storage = (*Local)(nil)
