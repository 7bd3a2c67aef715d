package fsboxtest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/nuln/fsbox"
)

// BackendTestSuite checks a Backend against the fsbox backend contract:
// conflict policies, error kinds and directory handling. The backend must
// start out empty.
func BackendTestSuite(t *testing.T, b fsbox.Backend) { //nolint:gocyclo
	t.Helper()
	ctx := context.Background()

	write := func(t *testing.T, path, content string, policy fsbox.ConflictPolicy) string {
		t.Helper()
		used, err := b.Write(ctx, path, []byte(content), policy)
		if err != nil {
			t.Fatalf("Write %s (%s): %v", path, policy, err)
		}
		return used
	}

	t.Run("Write_Read_RoundTrip", func(t *testing.T) {
		payloads := [][]byte{nil, []byte("x"), []byte("hello\x00world\n"), make([]byte, 70000)}
		for i, data := range payloads {
			used, err := b.Write(ctx, "roundtrip/obj.bin", data, fsbox.Replace)
			if err != nil {
				t.Fatalf("payload %d: Write: %v", i, err)
			}
			got, err := b.Read(ctx, used)
			if err != nil {
				t.Fatalf("payload %d: Read: %v", i, err)
			}
			if string(got) != string(data) {
				t.Errorf("payload %d: read %d bytes, want %d", i, len(got), len(data))
			}
		}
		_ = b.DeleteDirectoryRecursive(ctx, "roundtrip")
	})

	t.Run("Rename_Policy", func(t *testing.T) {
		cases := []struct {
			path string
			want []string
		}{
			{"ren/a.txt", []string{"ren/a.txt", "ren/a-1.txt", "ren/a-2.txt"}},
			{"ren/noext", []string{"ren/noext", "ren/noext-1"}},
			{"ren/.hidden", []string{"ren/.hidden", "ren/.hidden-1"}},
			{"ren/a.tar.gz", []string{"ren/a.tar.gz", "ren/a.tar-1.gz"}},
		}
		for _, tc := range cases {
			for i, want := range tc.want {
				if got := write(t, tc.path, want, fsbox.Rename); got != want {
					t.Errorf("write #%d of %s landed on %q, want %q", i+1, tc.path, got, want)
				}
			}
		}
		data, err := b.Read(ctx, "ren/a.txt")
		if err != nil || string(data) != "ren/a.txt" {
			t.Errorf("original object changed: %q, %v", data, err)
		}
		_ = b.DeleteDirectoryRecursive(ctx, "ren")
	})

	t.Run("Replace_Policy", func(t *testing.T) {
		write(t, "rep.txt", "one", fsbox.Replace)
		if got := write(t, "rep.txt", "two", fsbox.Replace); got != "rep.txt" {
			t.Errorf("Replace landed on %q", got)
		}
		data, _ := b.Read(ctx, "rep.txt")
		if string(data) != "two" {
			t.Errorf("content = %q, want %q", data, "two")
		}
		_ = b.Delete(ctx, "rep.txt")
	})

	t.Run("Fail_Policy", func(t *testing.T) {
		write(t, "fail.txt", "one", fsbox.Fail)
		_, err := b.Write(ctx, "fail.txt", []byte("two"), fsbox.Fail)
		if !errors.Is(err, fsbox.ErrConflict) {
			t.Errorf("second Fail write = %v, want ErrConflict", err)
		}
		data, _ := b.Read(ctx, "fail.txt")
		if string(data) != "one" {
			t.Errorf("content = %q, want %q", data, "one")
		}
		_ = b.Delete(ctx, "fail.txt")
	})

	t.Run("Missing_Object", func(t *testing.T) {
		if _, err := b.Read(ctx, "missing.txt"); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("Read = %v, want ErrNotFound", err)
		}
		if err := b.Delete(ctx, "missing.txt"); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("Delete = %v, want ErrNotFound", err)
		}
		if b.Exists(ctx, "missing.txt") {
			t.Error("Exists = true for missing object")
		}
	})

	t.Run("Delete_Exists", func(t *testing.T) {
		write(t, "del/x.txt", "x", fsbox.Replace)
		first, second := b.Exists(ctx, "del/x.txt"), b.Exists(ctx, "del/x.txt")
		if !first || !second {
			t.Fatalf("Exists = %v, %v before delete", first, second)
		}
		if err := b.Delete(ctx, "del/x.txt"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if b.Exists(ctx, "del/x.txt") {
			t.Error("Exists = true after delete")
		}
		if err := b.Delete(ctx, "del/x.txt"); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
		_ = b.DeleteDirectoryRecursive(ctx, "del")
	})

	t.Run("Directories", func(t *testing.T) {
		err := b.CreateDirectory(ctx, "d1/d2", fsbox.DirOptions{})
		if !errors.Is(err, fsbox.ErrBackendUnavailable) {
			t.Errorf("CreateDirectory without parents = %v, want ErrBackendUnavailable", err)
		}
		if err := b.CreateDirectory(ctx, "d1/d2", fsbox.DirOptions{CreateParents: true, SetPermissions: true}); err != nil {
			t.Fatalf("CreateDirectory: %v", err)
		}
		if !b.DirectoryExists(ctx, "d1") || !b.DirectoryExists(ctx, "d1/d2") {
			t.Fatal("DirectoryExists = false after CreateDirectory")
		}
		if err := b.CreateDirectory(ctx, "d1/d2/d3", fsbox.DirOptions{}); err != nil {
			t.Errorf("CreateDirectory with existing parent: %v", err)
		}
		if b.Exists(ctx, "d1") {
			t.Error("Exists = true for a directory")
		}

		write(t, "d1/d2/f.txt", "f", fsbox.Replace)
		if err := b.DeleteDirectoryRecursive(ctx, "d1"); err != nil {
			t.Fatalf("DeleteDirectoryRecursive: %v", err)
		}
		if b.DirectoryExists(ctx, "d1") || b.Exists(ctx, "d1/d2/f.txt") {
			t.Error("directory contents survived DeleteDirectoryRecursive")
		}
		if err := b.DeleteDirectoryRecursive(ctx, "d1"); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("second DeleteDirectoryRecursive = %v, want ErrNotFound", err)
		}
	})

	t.Run("Cancelled_Write", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := b.Write(cctx, "cancelled.txt", []byte("x"), fsbox.Replace); err == nil {
			t.Error("Write with cancelled context succeeded")
		}
		if b.Exists(ctx, "cancelled.txt") {
			t.Error("cancelled write left an object behind")
		}
	})

	if w, ok := b.(fsbox.Walker); ok {
		t.Run("WalkObjects", func(t *testing.T) {
			write(t, "tree/a.txt", "a", fsbox.Replace)
			write(t, "tree/sub/b.txt", "b", fsbox.Replace)

			var got []string
			err := w.WalkObjects(ctx, "tree", func(path string, info *fsbox.EntryInfo) error {
				got = append(got, path)
				return nil
			})
			if err != nil {
				t.Fatalf("WalkObjects: %v", err)
			}
			sort.Strings(got)
			if len(got) != 2 || got[0] != "tree/a.txt" || got[1] != "tree/sub/b.txt" {
				t.Errorf("WalkObjects = %v", got)
			}
			_ = b.DeleteDirectoryRecursive(ctx, "tree")
		})
	}
}
