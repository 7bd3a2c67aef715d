package fsbox

import (
	"context"
	"os"
)

// StorageEngine is the low-level, filesystem-like contract every driver
// implements. A [Backend] for a scheme is normally an [EngineBackend]
// wrapping one of these.
type StorageEngine interface {
	// Stat returns metadata about a file or directory.
	Stat(ctx context.Context, path string) (*EntryInfo, error)

	// Open opens a file for reading.
	Open(ctx context.Context, path string) (ReadSeekCloser, error)

	// Create creates or overwrites a file for writing. Parent directories
	// are created as needed.
	Create(ctx context.Context, path string) (WriteCloser, error)

	// OpenFile opens a file with specific flags (e.g. os.O_APPEND).
	OpenFile(ctx context.Context, path string, flag int, perm os.FileMode) (WriteSeekCloser, error)

	// Remove deletes a file or directory (and all children).
	Remove(ctx context.Context, path string) error

	// Rename moves or renames a file or directory.
	Rename(ctx context.Context, oldPath, newPath string) error

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(ctx context.Context, path string) error

	// ReadDir returns the contents of a directory.
	ReadDir(ctx context.Context, path string) ([]*EntryInfo, error)
}
