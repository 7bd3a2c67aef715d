package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/nuln/fsbox"
	"github.com/nuln/fsbox/driver/local"
	"github.com/nuln/fsbox/fsboxtest"
)

func TestLocalEngine(t *testing.T) {
	engine := local.NewWithFs(afero.NewMemMapFs())
	fsboxtest.StorageTestSuite(t, engine)
}

func TestLocalEngine_Disk(t *testing.T) {
	engine, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fsboxtest.StorageTestSuite(t, engine)
}

func TestMemoryDriver(t *testing.T) {
	engine, err := fsbox.Open(&fsbox.Config{Type: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fsboxtest.StorageTestSuite(t, engine)
}

func TestLocalDriver_RequiresBasePath(t *testing.T) {
	if _, err := fsbox.Open(&fsbox.Config{Type: "local"}); err == nil {
		t.Fatal("Open without base path: expected error")
	}
}

func TestLocalEngine_ConfinedToRoot(t *testing.T) {
	root := t.TempDir()
	engine, err := local.New(filepath.Join(root, "inner"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backend := fsbox.NewEngineBackend("public", engine)
	ctx := context.Background()

	used, err := backend.Write(ctx, "../../escape.txt", []byte("x"), fsbox.Replace)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if used != "escape.txt" {
		t.Errorf("used = %q, want %q", used, "escape.txt")
	}
	if _, err := os.Stat(filepath.Join(root, "inner", "escape.txt")); err != nil {
		t.Errorf("object not inside root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("object escaped the root")
	}
}

func TestLocalEngine_DirectoryPermissions(t *testing.T) {
	engine, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backend := fsbox.NewEngineBackend("private", engine, fsbox.WithDirMode(0o700))
	ctx := context.Background()

	if err := backend.CreateDirectory(ctx, "a/b", fsbox.DirOptions{CreateParents: true, SetPermissions: true}); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	info, err := os.Stat(filepath.Join(engine.Root(), "a", "b"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("mode = %o, want 700", perm)
	}
}

func TestLocalDriver_ReadOnly(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "seed.txt"), []byte("seed"), 0o600); err != nil {
		t.Fatal(err)
	}
	engine, err := fsbox.Open(&fsbox.Config{
		Type:     "local",
		BasePath: root,
		Options:  map[string]any{"read_only": "true"},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	backend := fsbox.NewEngineBackend("archive", engine)
	ctx := context.Background()

	data, err := backend.Read(ctx, "seed.txt")
	if err != nil || string(data) != "seed" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := backend.Write(ctx, "new.txt", []byte("x"), fsbox.Replace); err == nil {
		t.Error("Write on a read-only scheme succeeded")
	}
	if err := backend.Delete(ctx, "seed.txt"); err == nil {
		t.Error("Delete on a read-only scheme succeeded")
	}
	if _, err := os.Stat(filepath.Join(root, "new.txt")); !os.IsNotExist(err) {
		t.Errorf("read-only write reached disk: %v", err)
	}
}
