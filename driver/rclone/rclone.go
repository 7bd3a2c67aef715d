// Package rclone exposes any rclone remote (S3, WebDAV, Google Drive, ...)
// as an fsbox engine.
package rclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/operations"

	"github.com/nuln/fsbox"
)

// Auto-register rclone storage driver.
func init() {
	fsbox.Register("rclone", func(cfg *fsbox.Config) (fsbox.StorageEngine, error) {
		remote, ok := cfg.OptionString("remote")
		if !ok {
			remote = cfg.BasePath
		}
		if remote == "" {
			return nil, fmt.Errorf("fsbox/rclone: remote path is required (set options.remote or base_path)")
		}
		return New(remote)
	})
}

// Engine implements fsbox.StorageEngine using rclone's fs.Fs.
type Engine struct {
	remote fs.Fs
}

// New creates a new rclone Engine from a remote path (e.g., "gdrive:backup").
func New(remotePath string) (*Engine, error) {
	remote, err := fs.NewFs(context.Background(), remotePath)
	if err != nil {
		return nil, err
	}
	return &Engine{remote: remote}, nil
}

// remotePath maps the engine root "." to rclone's root "".
func remotePath(p string) string {
	if p == "." || p == "/" {
		return ""
	}
	return p
}

func (e *Engine) Stat(ctx context.Context, p string) (*fsbox.EntryInfo, error) {
	p = remotePath(p)
	if p == "" {
		return &fsbox.EntryInfo{Name: "/", Path: ".", IsDir: true}, nil
	}

	obj, err := e.remote.NewObject(ctx, p)
	if err == nil {
		return &fsbox.EntryInfo{
			Name:    path.Base(obj.Remote()),
			Path:    p,
			Size:    obj.Size(),
			ModTime: obj.ModTime(ctx),
		}, nil
	}

	// Might be a directory. Bucket-style remotes list unknown prefixes as
	// empty, so an empty listing only counts where empty dirs can exist.
	entries, errDir := e.remote.List(ctx, p)
	if errDir == nil && (len(entries) > 0 || e.remote.Features().CanHaveEmptyDirectories) {
		return &fsbox.EntryInfo{
			Name:  path.Base(p),
			Path:  p,
			IsDir: true,
		}, nil
	}
	return nil, convertError(err)
}

func (e *Engine) Open(ctx context.Context, p string) (fsbox.ReadSeekCloser, error) {
	obj, err := e.remote.NewObject(ctx, remotePath(p))
	if err != nil {
		return nil, convertError(err)
	}

	// Rclone objects don't natively support Seek. Download to a temp file.
	tmp, err := os.CreateTemp("", "fsbox-rclone-*")
	if err != nil {
		return nil, err
	}
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	rc, err := obj.Open(ctx)
	if err != nil {
		discard()
		return nil, err
	}
	_, err = io.Copy(tmp, rc)
	_ = rc.Close()
	if err != nil {
		discard()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		discard()
		return nil, err
	}

	return &tempFileReader{File: tmp}, nil
}

// tempFileReader wraps an os.File and deletes it on Close.
type tempFileReader struct {
	*os.File
}

func (t *tempFileReader) Close() error {
	name := t.File.Name()
	err := t.File.Close()
	_ = os.Remove(name)
	return err
}

func (e *Engine) Create(ctx context.Context, p string) (fsbox.WriteCloser, error) {
	return &bufferedUpload{engine: e, path: remotePath(p), ctx: ctx}, nil
}

func (e *Engine) OpenFile(ctx context.Context, p string, flag int, perm os.FileMode) (fsbox.WriteSeekCloser, error) {
	w := &bufferedUpload{engine: e, path: remotePath(p), ctx: ctx}

	// If appending, download existing content first
	if flag&os.O_APPEND != 0 {
		if obj, err := e.remote.NewObject(ctx, w.path); err == nil {
			if rc, err := obj.Open(ctx); err == nil {
				_, _ = w.buf.ReadFrom(rc)
				_ = rc.Close()
			}
		}
	}
	w.offset = int64(w.buf.Len())
	return w, nil
}

// bufferedUpload collects writes in memory and uploads them on Close.
type bufferedUpload struct {
	engine *Engine
	path   string
	ctx    context.Context
	buf    bytes.Buffer
	offset int64
}

func (w *bufferedUpload) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.offset += int64(n)
	return n, err
}

func (w *bufferedUpload) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		w.offset = offset
	case io.SeekCurrent:
		w.offset += offset
	case io.SeekEnd:
		w.offset = int64(w.buf.Len()) + offset
	}
	return w.offset, nil
}

func (w *bufferedUpload) Close() error {
	_, err := operations.Rcat(w.ctx, w.engine.remote, w.path, io.NopCloser(&w.buf), time.Now(), nil)
	return err
}

func (e *Engine) Remove(ctx context.Context, p string) error {
	p = remotePath(p)
	obj, err := e.remote.NewObject(ctx, p)
	if err != nil {
		// Try as directory
		return convertError(operations.Purge(ctx, e.remote, p))
	}
	return obj.Remove(ctx)
}

func (e *Engine) Rename(ctx context.Context, oldPath, newPath string) error {
	return operations.MoveFile(ctx, e.remote, e.remote, remotePath(newPath), remotePath(oldPath))
}

func (e *Engine) MkdirAll(ctx context.Context, p string) error {
	return e.remote.Mkdir(ctx, remotePath(p))
}

func (e *Engine) ReadDir(ctx context.Context, dirPath string) ([]*fsbox.EntryInfo, error) {
	entries, err := e.remote.List(ctx, remotePath(dirPath))
	if err != nil {
		return nil, convertError(err)
	}

	result := make([]*fsbox.EntryInfo, 0, len(entries))
	for _, entry := range entries {
		info := &fsbox.EntryInfo{
			Name: path.Base(entry.Remote()),
			Path: entry.Remote(),
		}
		if obj, ok := entry.(fs.Object); ok {
			info.Size = obj.Size()
			info.ModTime = obj.ModTime(ctx)
		} else {
			info.IsDir = true
		}
		result = append(result, info)
	}
	return result, nil
}

// === Extension: StreamReader ===

func (e *Engine) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	obj, err := e.remote.NewObject(ctx, remotePath(p))
	if err != nil {
		return nil, convertError(err)
	}
	return obj.Open(ctx)
}

// === Extension: StreamWriter ===

func (e *Engine) Put(ctx context.Context, p string, reader io.Reader) error {
	rc, ok := reader.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(reader)
	}
	_, err := operations.Rcat(ctx, e.remote, remotePath(p), rc, time.Now(), nil)
	return err
}

// === Extension: Copier ===

func (e *Engine) Copy(ctx context.Context, src, dst string) error {
	return operations.CopyFile(ctx, e.remote, e.remote, remotePath(dst), remotePath(src))
}

// === Extension: SignedURLGenerator ===

func (e *Engine) SignedURL(ctx context.Context, p string, expiry time.Duration) (string, error) {
	do, ok := e.remote.(fs.PublicLinker)
	if !ok {
		return "", fsbox.ErrNotSupported
	}
	return do.PublicLink(ctx, remotePath(p), fs.Duration(expiry), false)
}

func convertError(err error) error {
	if errors.Is(err, fs.ErrorObjectNotFound) || errors.Is(err, fs.ErrorDirNotFound) {
		return os.ErrNotExist
	}
	return err
}

// Compile-time interface checks.
var (
	_ fsbox.StorageEngine      = (*Engine)(nil)
	_ fsbox.StreamReader       = (*Engine)(nil)
	_ fsbox.StreamWriter       = (*Engine)(nil)
	_ fsbox.Copier             = (*Engine)(nil)
	_ fsbox.SignedURLGenerator = (*Engine)(nil)
)
