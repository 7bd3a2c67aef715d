package fsbox

import (
	"context"
	"io"
)

// ConflictPolicy selects what a write does when the target already exists.
type ConflictPolicy int

const (
	// Rename writes to the first free "name-N.ext" variant of the path.
	Rename ConflictPolicy = iota
	// Replace overwrites the existing object.
	Replace
	// Fail returns ErrConflict.
	Fail
)

func (p ConflictPolicy) String() string {
	switch p {
	case Rename:
		return "rename"
	case Replace:
		return "replace"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// DirOptions controls CreateDirectory.
type DirOptions struct {
	// CreateParents creates missing parent directories. Without it a
	// missing parent fails with ErrBackendUnavailable.
	CreateParents bool
	// SetPermissions applies the backend's default directory mode.
	SetPermissions bool
}

// Backend implements raw object storage for one scheme. Paths are the part
// of an [Address] after "scheme://".
type Backend interface {
	// Write stores data at path and returns the path actually used, which
	// differs from path only under the Rename policy.
	Write(ctx context.Context, path string, data []byte, policy ConflictPolicy) (string, error)

	// Read returns the object's bytes, ErrNotFound if absent or
	// ErrBackendUnavailable on I/O failure.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes an object. It returns ErrNotFound if nothing is there.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is present. Ambiguity yields false.
	Exists(ctx context.Context, path string) bool

	// ExternalURL returns a publicly dereferenceable URL for path, if the
	// backend has one.
	ExternalURL(ctx context.Context, path string) (string, bool)

	CreateDirectory(ctx context.Context, path string, opts DirOptions) error
	DeleteDirectoryRecursive(ctx context.Context, path string) error
	DirectoryExists(ctx context.Context, path string) bool
}

// StreamBackend is implemented by backends that accept streamed writes.
type StreamBackend interface {
	WriteStream(ctx context.Context, path string, r io.Reader, policy ConflictPolicy) (string, error)
}

// Walker is implemented by backends that can enumerate objects under a
// directory. fn receives backend paths of regular objects only.
type Walker interface {
	WalkObjects(ctx context.Context, dir string, fn func(path string, info *EntryInfo) error) error
}
