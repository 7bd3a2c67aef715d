// Package fsboxtest holds conformance suites for fsbox drivers and
// backends. Driver packages call them from their own tests.
package fsboxtest

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/nuln/fsbox"
)

// put writes content to p through engine.Create.
func put(t *testing.T, engine fsbox.StorageEngine, p, content string) {
	t.Helper()
	w, err := engine.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create %s: %v", p, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		_ = w.Close()
		t.Fatalf("Write %s: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close %s: %v", p, err)
	}
}

// get reads p back, optionally after seeking to offset.
func get(t *testing.T, engine fsbox.StorageEngine, p string, offset int64) string {
	t.Helper()
	r, err := engine.Open(context.Background(), p)
	if err != nil {
		t.Fatalf("Open %s: %v", p, err)
	}
	defer func() { _ = r.Close() }()
	if offset > 0 {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			t.Fatalf("Seek %s: %v", p, err)
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll %s: %v", p, err)
	}
	return string(data)
}

func gone(t *testing.T, engine fsbox.StorageEngine, p string) {
	t.Helper()
	if _, err := engine.Stat(context.Background(), p); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat %s = %v, want os.ErrNotExist", p, err)
	}
}

// StorageTestSuite checks a StorageEngine, including whichever extension
// interfaces it implements, then runs BackendTestSuite on an EngineBackend
// wrapping it. The engine must start out empty:
//
//	func TestMyEngine(t *testing.T) {
//	    fsboxtest.StorageTestSuite(t, myengine.New(t.TempDir()))
//	}
func StorageTestSuite(t *testing.T, engine fsbox.StorageEngine) { //nolint:gocyclo
	t.Helper()
	ctx := context.Background()

	t.Run("Create_Stat_Open_Remove", func(t *testing.T) {
		const p, content = "obj/hello.txt", "hello world"
		put(t, engine, p, content)

		info, err := engine.Stat(ctx, p)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if info.Name != "hello.txt" || info.Size != int64(len(content)) || info.IsDir {
			t.Errorf("Stat = {Name:%q Size:%d IsDir:%v}", info.Name, info.Size, info.IsDir)
		}
		if dir, err := engine.Stat(ctx, "obj"); err != nil || !dir.IsDir {
			t.Errorf("Stat of parent = %+v, %v, want a directory", dir, err)
		}

		if got := get(t, engine, p, 0); got != content {
			t.Errorf("content = %q, want %q", got, content)
		}
		if got := get(t, engine, p, 6); got != "world" {
			t.Errorf("after seek = %q, want %q", got, "world")
		}

		if err := engine.Remove(ctx, p); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		gone(t, engine, p)
		_ = engine.Remove(ctx, "obj")
	})

	t.Run("Create_Truncates", func(t *testing.T) {
		put(t, engine, "trunc.txt", "a much longer first version")
		put(t, engine, "trunc.txt", "short")
		if got := get(t, engine, "trunc.txt", 0); got != "short" {
			t.Errorf("content = %q, want %q", got, "short")
		}
		_ = engine.Remove(ctx, "trunc.txt")
	})

	t.Run("MkdirAll_ReadDir", func(t *testing.T) {
		if err := engine.MkdirAll(ctx, "tree/empty"); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		put(t, engine, "tree/a.txt", "a")
		put(t, engine, "tree/b.txt", "bb")

		entries, err := engine.ReadDir(ctx, "tree")
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		var names []string
		for _, e := range entries {
			names = append(names, e.Name)
			if e.Name == "b.txt" && e.Size != 2 {
				t.Errorf("b.txt size = %d, want 2", e.Size)
			}
		}
		sort.Strings(names)
		if strings.Join(names, ",") != "a.txt,b.txt,empty" {
			t.Errorf("ReadDir = %v", names)
		}

		if err := engine.Remove(ctx, "tree"); err != nil {
			t.Fatalf("Remove directory: %v", err)
		}
		gone(t, engine, "tree/a.txt")
	})

	t.Run("Rename", func(t *testing.T) {
		put(t, engine, "rename_src.txt", "data")
		if err := engine.Rename(ctx, "rename_src.txt", "moved/rename_dst.txt"); err != nil {
			t.Fatalf("Rename: %v", err)
		}
		gone(t, engine, "rename_src.txt")
		if got := get(t, engine, "moved/rename_dst.txt", 0); got != "data" {
			t.Errorf("renamed content = %q", got)
		}
		_ = engine.Remove(ctx, "moved")
	})

	t.Run("OpenFile_Append", func(t *testing.T) {
		put(t, engine, "append.txt", "hello")
		w, err := engine.OpenFile(ctx, "append.txt", os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		_, _ = io.WriteString(w, " world")
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if got := get(t, engine, "append.txt", 0); got != "hello world" {
			t.Errorf("after append = %q, want %q", got, "hello world")
		}
		_ = engine.Remove(ctx, "append.txt")
	})

	t.Run("Walk", func(t *testing.T) {
		put(t, engine, "walk/f1.txt", "1")
		put(t, engine, "walk/sub/f2.txt", "2")

		var files []string
		err := fsbox.Walk(ctx, engine, "walk", func(p string, info *fsbox.EntryInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir {
				files = append(files, info.Name)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Walk: %v", err)
		}
		sort.Strings(files)
		if strings.Join(files, ",") != "f1.txt,f2.txt" {
			t.Errorf("Walk found %v", files)
		}
		_ = engine.Remove(ctx, "walk")
	})

	t.Run("Missing", func(t *testing.T) {
		gone(t, engine, "no/such/file.txt")
		if err := engine.Remove(ctx, "no/such/file.txt"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Remove = %v, want os.ErrNotExist", err)
		}
		if _, err := engine.Open(ctx, "no/such/file.txt"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Open = %v, want os.ErrNotExist", err)
		}
	})

	if cp, ok := engine.(fsbox.Copier); ok {
		t.Run("Copier", func(t *testing.T) {
			put(t, engine, "copy_src.txt", "copy me")
			if err := cp.Copy(ctx, "copy_src.txt", "copies/dst.txt"); err != nil {
				t.Fatalf("Copy: %v", err)
			}
			if got := get(t, engine, "copies/dst.txt", 0); got != "copy me" {
				t.Errorf("copy = %q", got)
			}
			_ = engine.Remove(ctx, "copy_src.txt")
			if got := get(t, engine, "copies/dst.txt", 0); got != "copy me" {
				t.Errorf("copy after source removal = %q", got)
			}
			_ = engine.Remove(ctx, "copies")
		})
	}

	if sr, ok := engine.(fsbox.StreamReader); ok {
		t.Run("StreamReader", func(t *testing.T) {
			put(t, engine, "stream.txt", "stream data")
			rc, err := sr.Get(ctx, "stream.txt")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "stream data" {
				t.Errorf("Get = %q", data)
			}
			_ = engine.Remove(ctx, "stream.txt")
		})
	}

	if sw, ok := engine.(fsbox.StreamWriter); ok {
		t.Run("StreamWriter", func(t *testing.T) {
			if err := sw.Put(ctx, "put/stream.txt", strings.NewReader("streamed")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if got := get(t, engine, "put/stream.txt", 0); got != "streamed" {
				t.Errorf("Put stored %q", got)
			}
			_ = engine.Remove(ctx, "put")
		})
	}

	if sw, ok := engine.(fsbox.Sweeper); ok {
		t.Run("Sweeper", func(t *testing.T) {
			if _, err := sw.Sweep(ctx); err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			if n, err := sw.Sweep(ctx); err != nil || n != 0 {
				t.Errorf("second Sweep = %d, %v, want nothing left to reclaim", n, err)
			}
		})
	}

	t.Run("Backend", func(t *testing.T) {
		BackendTestSuite(t, fsbox.NewEngineBackend("test", engine))
	})
}
