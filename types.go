package fsbox

import (
	"io"
	"os"
	"time"
)

// EntryInfo describes a file or directory in a storage engine.
type EntryInfo struct {
	Name    string      `json:"name"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"modTime"`
	Mode    os.FileMode `json:"mode"`
	IsDir   bool        `json:"isDir"`
	Path    string      `json:"path"`
}

// ReadSeekCloser groups Read, Seek, and Close.
type ReadSeekCloser = io.ReadSeekCloser

// WriteCloser groups Write and Close.
type WriteCloser = io.WriteCloser

// WriteSeekCloser groups Write, Seek, and Close.
type WriteSeekCloser interface {
	io.Writer
	io.Seeker
	io.Closer
}
