package sharded

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// manifestExt marks manifest files in the manifest tree. A logical object
// "docs/a.txt" is described by "docs/a.txt.json".
const manifestExt = ".json"

// Manifest lists the chunks a logical object is stitched from.
type Manifest struct {
	Chunks     []string  `json:"chunks"`
	ChunkSizes []int64   `json:"chunkSizes,omitempty"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"modTime"`
}

// sizeOf returns the length of chunk i. Manifests without ChunkSizes were
// written with fixed-size chunks of fixed bytes.
func (m *Manifest) sizeOf(i int, fixed int64) int64 {
	if len(m.ChunkSizes) > 0 {
		return m.ChunkSizes[i]
	}
	if i == len(m.Chunks)-1 {
		return m.Size - int64(i)*fixed
	}
	return fixed
}

// logical normalizes an engine path. The root is "".
func logical(p string) string {
	c := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if c == "." {
		return ""
	}
	return c
}

func manifestFile(p string) string { return logical(p) + manifestExt }

func manifestDir(p string) string {
	if l := logical(p); l != "" {
		return l
	}
	return "."
}

// shardFile spreads chunk blobs over a three-level directory tree:
// "abc123def456" lands on "ab/c1/23/abc123def456".
func shardFile(hash string) string {
	if len(hash) < 6 {
		return hash
	}
	return path.Join(hash[0:2], hash[2:4], hash[4:6], hash)
}

func readManifest(fs afero.Fs, name string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("fsbox/sharded: corrupt manifest %s: %w", name, err)
	}
	return &m, nil
}

func writeManifest(fs afero.Fs, name string, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(path.Dir(name), dirPerm); err != nil {
		return err
	}
	return afero.WriteFile(fs, name, data, filePerm)
}
