package sharded

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// chunkWriter cuts the incoming stream into chunkSize pieces, stores each
// piece under its SHA-256 and publishes the manifest on Close. Nothing is
// visible under the logical path until Close succeeds.
type chunkWriter struct {
	ctx    context.Context
	engine *Engine
	name   string
	hashes []string
	sizes  []int64
	size   int64
	buf    []byte
	pooled *[]byte
	closed bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("fsbox/sharded: write on closed writer")
	}
	written := 0
	for len(p) > 0 {
		n := min(int(w.engine.chunkSize)-len(w.buf), len(p))
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n
		w.size += int64(n)
		if int64(len(w.buf)) == w.engine.chunkSize {
			if err := w.storeChunk(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// storeChunk writes the buffered chunk unless a chunk with the same hash
// is already stored.
func (w *chunkWriter) storeChunk() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.ctx.Err(); err != nil {
		return err
	}
	sum := sha256.Sum256(w.buf)
	hash := hex.EncodeToString(sum[:])
	file := shardFile(hash)

	if ok, _ := afero.Exists(w.engine.shards, file); !ok {
		if err := w.engine.shards.MkdirAll(path.Dir(file), dirPerm); err != nil {
			return err
		}
		if err := afero.WriteFile(w.engine.shards, file, w.buf, filePerm); err != nil {
			return err
		}
	}

	w.hashes = append(w.hashes, hash)
	w.sizes = append(w.sizes, int64(len(w.buf)))
	w.buf = w.buf[:0]
	return nil
}

// Seek only reports the current end, which is all appenders need.
func (w *chunkWriter) Seek(offset int64, whence int) (int64, error) {
	switch {
	case whence == io.SeekStart && offset == w.size,
		whence == io.SeekCurrent && offset == 0,
		whence == io.SeekEnd && offset == 0:
		return w.size, nil
	}
	return 0, errors.New("fsbox/sharded: seek only supported to current end")
}

func (w *chunkWriter) Close() error {
	if w.closed {
		return nil
	}
	defer w.release()
	if err := w.storeChunk(); err != nil {
		return err
	}
	if err := w.ctx.Err(); err != nil {
		return err
	}
	m := &Manifest{Chunks: w.hashes, ChunkSizes: w.sizes, Size: w.size, ModTime: time.Now().UTC()}
	if m.Chunks == nil {
		m.Chunks = []string{}
	}
	if err := writeManifest(w.engine.manifests, w.name, m); err != nil {
		return err
	}
	w.engine.log.WithFields(logrus.Fields{
		"manifest": w.name,
		"chunks":   len(m.Chunks),
		"size":     m.Size,
	}).Debug("Stored sharded object")
	return nil
}

// release returns the buffer and lets a pending Sweep proceed. It runs
// once per writer.
func (w *chunkWriter) release() {
	if w.closed {
		return
	}
	w.closed = true
	w.engine.sweeping.RUnlock()
	if w.pooled != nil {
		*w.pooled = w.buf[:0]
		w.engine.buffers.Put(w.pooled)
		w.pooled, w.buf = nil, nil
	}
}
