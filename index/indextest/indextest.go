// Package indextest provides a conformance suite for fsbox.Index
// implementations.
package indextest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nuln/fsbox"
)

// IndexTestSuite runs the fsbox.Index contract against x. The index must
// start out empty and is not closed by the suite.
func IndexTestSuite(t *testing.T, x fsbox.Index) {
	t.Helper()
	ctx := context.Background()

	t.Run("Create_Find", func(t *testing.T) {
		rec, err := x.Create(ctx, fsbox.Record{Address: "mem://a.txt", Filename: "a.txt", Size: 5})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.ID == "" || rec.CreatedAt.IsZero() {
			t.Errorf("Create did not assign ID/CreatedAt: %+v", rec)
		}

		got, err := x.FindByAddress(ctx, "mem://a.txt")
		if err != nil {
			t.Fatalf("FindByAddress: %v", err)
		}
		if got.ID != rec.ID || got.Filename != "a.txt" || got.Size != 5 {
			t.Errorf("FindByAddress = %+v, want %+v", got, rec)
		}
		if !got.CreatedAt.Equal(rec.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
		}
		if err := x.Delete(ctx, got); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})

	t.Run("Keeps_Given_ID", func(t *testing.T) {
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		rec, err := x.Create(ctx, fsbox.Record{ID: "fixed-id", Address: "mem://fixed", CreatedAt: created})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.ID != "fixed-id" || !rec.CreatedAt.Equal(created) {
			t.Errorf("Create overwrote caller fields: %+v", rec)
		}
		_ = x.Delete(ctx, rec)
	})

	t.Run("Duplicate_Address", func(t *testing.T) {
		first, err := x.Create(ctx, fsbox.Record{Address: "mem://dup"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := x.Create(ctx, fsbox.Record{Address: "mem://dup"}); !errors.Is(err, fsbox.ErrConflict) {
			t.Errorf("second Create = %v, want ErrConflict", err)
		}
		_ = x.Delete(ctx, first)
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := x.FindByAddress(ctx, "mem://none"); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("FindByAddress = %v, want ErrNotFound", err)
		}
		rec, err := x.Create(ctx, fsbox.Record{Address: "mem://once"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := x.Delete(ctx, rec); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := x.Delete(ctx, rec); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("Stale_Delete", func(t *testing.T) {
		old, err := x.Create(ctx, fsbox.Record{Address: "mem://stale"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := x.Delete(ctx, old); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		cur, err := x.Create(ctx, fsbox.Record{Address: "mem://stale"})
		if err != nil {
			t.Fatalf("re-Create: %v", err)
		}
		// A handle to the removed record must not delete its successor.
		if err := x.Delete(ctx, old); !errors.Is(err, fsbox.ErrNotFound) {
			t.Errorf("Delete(stale) = %v, want ErrNotFound", err)
		}
		if _, err := x.FindByAddress(ctx, "mem://stale"); err != nil {
			t.Errorf("successor lost: %v", err)
		}
		_ = x.Delete(ctx, cur)
	})

	t.Run("List", func(t *testing.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var made []*fsbox.Record
		for i := 0; i < 3; i++ {
			rec, err := x.Create(ctx, fsbox.Record{
				Address:   fmt.Sprintf("mem://list/%d", i),
				CreatedAt: base.Add(time.Duration(2-i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("Create %d: %v", i, err)
			}
			made = append(made, rec)
		}
		list, err := x.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("List returned %d records, want 3", len(list))
		}
		want := []string{"mem://list/2", "mem://list/1", "mem://list/0"}
		for i, rec := range list {
			if rec.Address != want[i] {
				t.Errorf("List[%d] = %s, want %s", i, rec.Address, want[i])
			}
		}
		for _, rec := range made {
			_ = x.Delete(ctx, rec)
		}
	})

	t.Run("Concurrent_Create", func(t *testing.T) {
		const n = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []*fsbox.Record
			others  int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := x.Create(ctx, fsbox.Record{Address: "mem://race"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, rec)
				case errors.Is(err, fsbox.ErrConflict):
					others++
				default:
					t.Errorf("Create: %v", err)
				}
			}()
		}
		wg.Wait()
		if len(winners) != 1 || others != n-1 {
			t.Fatalf("%d creates succeeded, %d conflicted; want 1 and %d", len(winners), others, n-1)
		}
		_ = x.Delete(ctx, winners[0])
	})
}
