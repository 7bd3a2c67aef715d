// Package local provides afero-backed engines: "local" for a directory on
// disk and "memory" for an in-process filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nuln/fsbox"
)

const dirPerm os.FileMode = 0o750

func init() {
	fsbox.Register("local", func(cfg *fsbox.Config) (fsbox.StorageEngine, error) {
		if cfg.BasePath == "" {
			return nil, fmt.Errorf("fsbox/local: base path is required")
		}
		e, err := New(cfg.BasePath)
		if err != nil {
			return nil, err
		}
		if ro, _ := cfg.OptionBool("read_only"); ro {
			e = e.ReadOnly()
		}
		return e, nil
	})
	fsbox.Register("memory", func(cfg *fsbox.Config) (fsbox.StorageEngine, error) {
		return NewWithFs(afero.NewMemMapFs()), nil
	})
}

// Engine implements fsbox.StorageEngine on an afero filesystem.
type Engine struct {
	fs   afero.Fs
	root string
}

// New returns an Engine confined to root, creating the directory if
// needed. Paths that climb above root are clamped to it.
func New(root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("fsbox/local: prepare root: %w", err)
	}
	return &Engine{fs: afero.NewBasePathFs(afero.NewOsFs(), abs), root: abs}, nil
}

// NewWithFs returns an Engine on an arbitrary afero.Fs, typically a
// MemMapFs.
func NewWithFs(fs afero.Fs) *Engine {
	return &Engine{fs: fs, root: "."}
}

// ReadOnly returns a view of the engine that rejects every mutation.
func (e *Engine) ReadOnly() *Engine {
	return &Engine{fs: afero.NewReadOnlyFs(e.fs), root: e.root}
}

// Root returns the absolute directory the engine is confined to.
func (e *Engine) Root() string { return e.root }

func entryInfo(p string, fi os.FileInfo) *fsbox.EntryInfo {
	return &fsbox.EntryInfo{
		Name:    fi.Name(),
		Path:    p,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode(),
		IsDir:   fi.IsDir(),
	}
}

// parent creates the directory p will live in.
func (e *Engine) parent(p string) error {
	return e.fs.MkdirAll(filepath.Dir(p), dirPerm)
}

func (e *Engine) Stat(ctx context.Context, p string) (*fsbox.EntryInfo, error) {
	fi, err := e.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	return entryInfo(p, fi), nil
}

func (e *Engine) Open(ctx context.Context, p string) (fsbox.ReadSeekCloser, error) {
	return e.fs.Open(p)
}

func (e *Engine) Create(ctx context.Context, p string) (fsbox.WriteCloser, error) {
	return e.OpenFile(ctx, p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
}

func (e *Engine) OpenFile(ctx context.Context, p string, flag int, perm os.FileMode) (fsbox.WriteSeekCloser, error) {
	if err := e.parent(p); err != nil {
		return nil, err
	}
	return e.fs.OpenFile(p, flag, perm)
}

// Remove deletes a file or a whole directory tree. A missing path is
// reported as os.ErrNotExist, unlike afero's RemoveAll.
func (e *Engine) Remove(ctx context.Context, p string) error {
	if _, err := e.fs.Stat(p); err != nil {
		return err
	}
	return e.fs.RemoveAll(p)
}

func (e *Engine) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := e.parent(newPath); err != nil {
		return err
	}
	return e.fs.Rename(oldPath, newPath)
}

func (e *Engine) MkdirAll(ctx context.Context, p string) error {
	return e.fs.MkdirAll(p, dirPerm)
}

func (e *Engine) ReadDir(ctx context.Context, p string) ([]*fsbox.EntryInfo, error) {
	infos, err := afero.ReadDir(e.fs, p)
	if err != nil {
		return nil, err
	}
	result := make([]*fsbox.EntryInfo, 0, len(infos))
	for _, fi := range infos {
		result = append(result, entryInfo(filepath.Join(p, fi.Name()), fi))
	}
	return result, nil
}

func (e *Engine) Chmod(ctx context.Context, p string, mode os.FileMode) error {
	return e.fs.Chmod(p, mode)
}

// Copy copies a file, or a directory tree file by file.
func (e *Engine) Copy(ctx context.Context, src, dst string) error {
	return afero.Walk(e.fs, src, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return e.fs.MkdirAll(target, dirPerm)
		}
		in, err := e.fs.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		return e.Put(ctx, target, in)
	})
}

func (e *Engine) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	return e.fs.Open(p)
}

func (e *Engine) Put(ctx context.Context, p string, r io.Reader) error {
	w, err := e.Create(ctx, p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

var (
	_ fsbox.StorageEngine = (*Engine)(nil)
	_ fsbox.Chmoder       = (*Engine)(nil)
	_ fsbox.Copier        = (*Engine)(nil)
	_ fsbox.StreamReader  = (*Engine)(nil)
	_ fsbox.StreamWriter  = (*Engine)(nil)
)
