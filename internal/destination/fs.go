package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	KindLocal  = "local"
	KindMemory = "memory"
)

func init() {
	Register(KindLocal, func(_ context.Context, cfg Config) (Factory, error) {
		return NewLocal(cfg.Root, cfg.Create)
	})
	Register(KindMemory, func(_ context.Context, cfg Config) (Factory, error) {
		return NewMemory(cfg.Create), nil
	})
}

// FS is a Factory backed by an afero filesystem.
type FS struct {
	fs     afero.Fs
	create bool
	url    func(name string) string
}

var _ Factory = (*FS)(nil)

// NewLocal returns a Factory writing below root on the OS filesystem. With
// create set, root itself is created when missing.
func NewLocal(root string, create bool) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("destination: resolve root %q: %w", root, err)
	}
	if create {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("destination: create root %q: %w", abs, err)
		}
	}
	return &FS{
		fs:     afero.NewBasePathFs(afero.NewOsFs(), abs),
		create: create,
		url: func(name string) string {
			return "file://" + filepath.ToSlash(filepath.Join(abs, filepath.FromSlash(name)))
		},
	}, nil
}

// NewMemory returns a Factory backed by an in-memory filesystem.
func NewMemory(create bool) *FS {
	return &FS{
		fs:     afero.NewMemMapFs(),
		create: create,
		url: func(name string) string {
			return "mem://" + path.Clean("/"+name)
		},
	}
}

// Fs exposes the underlying filesystem, e.g. to read batches back.
func (f *FS) Fs() afero.Fs { return f.fs }

// Open implements Factory.
func (f *FS) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.create {
		if dir := path.Dir(name); dir != "." && dir != "/" {
			if err := f.fs.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create directory %q: %w", dir, err)
			}
		}
	}
	file, err := f.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// URL implements Factory.
func (f *FS) URL(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty filename")
	}
	return f.url(name), nil
}
