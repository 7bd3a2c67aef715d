// Package sharded stores objects as content-addressed chunks. Each logical
// path maps to a JSON manifest listing chunk hashes, and identical chunks
// are stored once even across engines sharing a shard store.
package sharded

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nuln/fsbox"
)

// DefaultChunkSize is the default chunk size (4MB).
const DefaultChunkSize = 4 * 1024 * 1024

const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o640
)

func init() {
	fsbox.Register("sharded", func(cfg *fsbox.Config) (fsbox.StorageEngine, error) {
		base := cfg.BasePath
		if base == "" {
			base = filepath.Join("data", "sharded")
		}
		manifests, ok := cfg.OptionString("manifest_dir")
		if !ok {
			manifests = filepath.Join(base, "manifests")
		}
		shards, ok := cfg.OptionString("shards_dir")
		if !ok {
			shards = filepath.Join(base, "shards")
		}
		for _, dir := range []string{manifests, shards} {
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return nil, err
			}
		}

		chunkSize := int64(DefaultChunkSize)
		if n, ok := cfg.OptionInt64("chunk_size"); ok {
			chunkSize = n
		}
		osFs := afero.NewOsFs()
		return New(afero.NewBasePathFs(osFs, manifests), afero.NewBasePathFs(osFs, shards), chunkSize), nil
	})
}

// Engine implements fsbox.StorageEngine on two afero filesystems: one
// holding manifests laid out like the logical tree, one holding chunks.
type Engine struct {
	manifests afero.Fs
	shards    afero.Fs
	chunkSize int64
	buffers   sync.Pool
	log       logrus.FieldLogger

	// sweeping is held shared by open writers and copies, exclusively by
	// Sweep, so no manifest can pick up a chunk Sweep is about to remove.
	sweeping sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a sharded Engine. Manifests and shards need distinct
// filesystems. Engines sharing one shard filesystem deduplicate chunks
// across each other.
func New(manifests, shards afero.Fs, chunkSize int64, opts ...Option) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	e := &Engine{
		manifests: manifests,
		shards:    shards,
		chunkSize: chunkSize,
		log:       logrus.StandardLogger(),
	}
	e.buffers.New = func() any {
		b := make([]byte, 0, e.chunkSize)
		return &b
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ChunkSize returns the size chunks are cut at.
func (e *Engine) ChunkSize() int64 { return e.chunkSize }

func (e *Engine) Stat(ctx context.Context, p string) (*fsbox.EntryInfo, error) {
	name := logical(p)
	if name == "" {
		return &fsbox.EntryInfo{Name: "/", Path: p, IsDir: true}, nil
	}
	m, err := readManifest(e.manifests, manifestFile(name))
	switch {
	case err == nil:
		return &fsbox.EntryInfo{Name: path.Base(name), Path: p, Size: m.Size, ModTime: m.ModTime}, nil
	case !os.IsNotExist(err):
		return nil, err
	}
	info, err := e.manifests.Stat(manifestDir(name))
	if err != nil || !info.IsDir() {
		return nil, os.ErrNotExist
	}
	return &fsbox.EntryInfo{Name: path.Base(name), Path: p, ModTime: info.ModTime(), IsDir: true}, nil
}

// Open returns a reader that stitches the object's chunks together.
func (e *Engine) Open(ctx context.Context, p string) (fsbox.ReadSeekCloser, error) {
	m, err := readManifest(e.manifests, manifestFile(p))
	if err != nil {
		return nil, err
	}
	return &chunkReader{engine: e, manifest: m}, nil
}

func (e *Engine) Create(ctx context.Context, p string) (fsbox.WriteCloser, error) {
	return e.OpenFile(ctx, p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
}

// OpenFile supports O_APPEND by continuing the existing chunk list; any
// other flag combination starts a fresh object that replaces the old one
// on Close.
func (e *Engine) OpenFile(ctx context.Context, p string, flag int, perm os.FileMode) (fsbox.WriteSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.sweeping.RLock()
	w := &chunkWriter{ctx: ctx, engine: e, name: manifestFile(p)}
	w.pooled = e.buffers.Get().(*[]byte)
	w.buf = (*w.pooled)[:0]

	if flag&os.O_APPEND != 0 && flag&os.O_TRUNC == 0 {
		m, err := readManifest(e.manifests, w.name)
		switch {
		case err == nil:
			w.hashes = m.Chunks
			w.size = m.Size
			for i := range m.Chunks {
				w.sizes = append(w.sizes, m.sizeOf(i, e.chunkSize))
			}
		case !os.IsNotExist(err):
			w.release()
			return nil, err
		}
	}
	return w, nil
}

// Remove drops a manifest or a manifest directory. Chunks stay behind since
// other manifests may reference them; Sweep reclaims the unreferenced ones.
func (e *Engine) Remove(ctx context.Context, p string) error {
	if ok, _ := afero.Exists(e.manifests, manifestFile(p)); ok {
		return e.manifests.Remove(manifestFile(p))
	}
	dir := manifestDir(p)
	if ok, _ := afero.DirExists(e.manifests, dir); !ok || dir == "." {
		return os.ErrNotExist
	}
	return e.manifests.RemoveAll(dir)
}

func (e *Engine) Rename(ctx context.Context, oldPath, newPath string) error {
	from, to := manifestFile(oldPath), manifestFile(newPath)
	if ok, _ := afero.Exists(e.manifests, from); !ok {
		from, to = manifestDir(oldPath), manifestDir(newPath)
	}
	if err := e.manifests.MkdirAll(path.Dir(to), dirPerm); err != nil {
		return err
	}
	return e.manifests.Rename(from, to)
}

func (e *Engine) MkdirAll(ctx context.Context, p string) error {
	return e.manifests.MkdirAll(manifestDir(p), dirPerm)
}

func (e *Engine) ReadDir(ctx context.Context, p string) ([]*fsbox.EntryInfo, error) {
	dir := logical(p)
	entries, err := afero.ReadDir(e.manifests, manifestDir(dir))
	if err != nil {
		if os.IsNotExist(err) && dir == "" {
			return []*fsbox.EntryInfo{}, nil
		}
		return nil, err
	}

	result := make([]*fsbox.EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			result = append(result, &fsbox.EntryInfo{
				Name:    entry.Name(),
				Path:    path.Join(dir, entry.Name()),
				ModTime: entry.ModTime(),
				IsDir:   true,
			})
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), manifestExt)
		if !ok {
			continue
		}
		info := &fsbox.EntryInfo{Name: name, Path: path.Join(dir, name)}
		if m, err := readManifest(e.manifests, manifestFile(info.Path)); err == nil {
			info.Size, info.ModTime = m.Size, m.ModTime
		} else {
			e.log.WithError(err).WithField("path", info.Path).Warn("Unreadable manifest")
		}
		result = append(result, info)
	}
	return result, nil
}

// Copy duplicates the manifest only; both objects share the same chunks.
func (e *Engine) Copy(ctx context.Context, src, dst string) error {
	e.sweeping.RLock()
	defer e.sweeping.RUnlock()
	m, err := readManifest(e.manifests, manifestFile(src))
	if err != nil {
		return err
	}
	return writeManifest(e.manifests, manifestFile(dst), m)
}

var (
	_ fsbox.StorageEngine = (*Engine)(nil)
	_ fsbox.Copier        = (*Engine)(nil)
	_ fsbox.Sweeper       = (*Engine)(nil)
)
