package sharded

import (
	"errors"
	"io"
)

// chunkReader presents the chunks of a manifest as one seekable stream.
type chunkReader struct {
	engine   *Engine
	manifest *Manifest
	offset   int64
}

// locate maps a logical offset to a chunk index and the offset inside it.
func (r *chunkReader) locate(off int64) (int, int64, bool) {
	var start int64
	for i := range r.manifest.Chunks {
		size := r.manifest.sizeOf(i, r.engine.chunkSize)
		if off < start+size {
			return i, off - start, true
		}
		start += size
	}
	return 0, 0, false
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.offset >= r.manifest.Size {
		return 0, io.EOF
	}
	total := 0
	for len(p) > 0 && r.offset < r.manifest.Size {
		idx, within, ok := r.locate(r.offset)
		if !ok {
			return total, io.ErrUnexpectedEOF
		}
		n, err := r.readChunk(idx, within, p)
		total += n
		r.offset += int64(n)
		p = p[n:]
		if err != nil && !errors.Is(err, io.EOF) {
			return total, err
		}
		if n == 0 {
			return total, io.ErrUnexpectedEOF
		}
	}
	return total, nil
}

// readChunk fills p from chunk idx starting at off, never past the chunk's
// end.
func (r *chunkReader) readChunk(idx int, off int64, p []byte) (int, error) {
	f, err := r.engine.shards.Open(shardFile(r.manifest.Chunks[idx]))
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	if rest := r.manifest.sizeOf(idx, r.engine.chunkSize) - off; int64(len(p)) > rest {
		p = p[:rest]
	}
	return io.ReadFull(f, p)
}

func (r *chunkReader) Seek(offset int64, whence int) (int64, error) {
	next := offset
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		next += r.offset
	case io.SeekEnd:
		next += r.manifest.Size
	default:
		return 0, errors.New("fsbox/sharded: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("fsbox/sharded: negative seek offset")
	}
	r.offset = next
	return next, nil
}

func (r *chunkReader) Close() error { return nil }
