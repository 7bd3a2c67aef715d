package sharded

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Sweep deletes chunks that no manifest of this engine references and
// reports how many were removed. It must not run while other engines share
// the shard filesystem, since their references are invisible here. Sweep
// waits for open writers to close and holds new ones off until it is done.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	e.sweeping.Lock()
	defer e.sweeping.Unlock()

	live := make(map[string]struct{})
	err := afero.Walk(e.manifests, ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, manifestExt) {
			return ctx.Err()
		}
		m, err := readManifest(e.manifests, p)
		if err != nil {
			return err
		}
		for _, h := range m.Chunks {
			live[h] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var orphans []string
	err = afero.Walk(e.shards, ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return ctx.Err()
		}
		if _, ok := live[path.Base(p)]; !ok {
			orphans = append(orphans, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, p := range orphans {
		if err := e.shards.Remove(p); err != nil {
			return i, err
		}
	}
	e.log.WithField("removed", len(orphans)).Debug("Swept orphan chunks")
	return len(orphans), nil
}
