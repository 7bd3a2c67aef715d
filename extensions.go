package fsbox

import (
	"context"
	"io"
	"os"
	"time"
)

// StreamReader supports streaming read without Seek (suitable for remote backends).
// Use type assertion to check: if sr, ok := engine.(fsbox.StreamReader); ok { ... }
type StreamReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// StreamWriter supports streaming write from a reader.
type StreamWriter interface {
	Put(ctx context.Context, path string, reader io.Reader) error
}

// Copier supports file/directory copy. Some backends can implement this
// as a zero-copy or server-side operation.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// SignedURLGenerator generates temporary access URLs (e.g., S3 presigned URLs).
type SignedURLGenerator interface {
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// Chmoder supports changing the permission bits of a file or directory.
type Chmoder interface {
	Chmod(ctx context.Context, path string, mode os.FileMode) error
}

// Sweeper reclaims storage that no object references any more, such as
// chunks left behind by deleted sharded objects.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
