// Package memindex keeps managed records in process memory.
package memindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nuln/fsbox"
)

// Index is an in-memory fsbox.Index. The zero value is not usable; call New.
type Index struct {
	mu     sync.RWMutex
	byAddr map[string]*fsbox.Record
	closed bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{byAddr: make(map[string]*fsbox.Record)}
}

func (x *Index) Create(ctx context.Context, rec fsbox.Record) (*fsbox.Record, error) {
	rec = fsbox.PrepareRecord(rec)

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, fsbox.ErrClosed
	}
	if _, exists := x.byAddr[rec.Address]; exists {
		return nil, fmt.Errorf("%w: record for %q", fsbox.ErrConflict, rec.Address)
	}
	stored := rec
	x.byAddr[rec.Address] = &stored

	out := rec
	return &out, nil
}

func (x *Index) FindByAddress(ctx context.Context, address string) (*fsbox.Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fsbox.ErrClosed
	}
	rec, ok := x.byAddr[address]
	if !ok {
		return nil, fsbox.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (x *Index) Delete(ctx context.Context, rec *fsbox.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fsbox.ErrClosed
	}
	cur, ok := x.byAddr[rec.Address]
	if !ok || cur.ID != rec.ID {
		return fsbox.ErrNotFound
	}
	delete(x.byAddr, rec.Address)
	return nil
}

func (x *Index) List(ctx context.Context) ([]*fsbox.Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fsbox.ErrClosed
	}
	out := make([]*fsbox.Record, 0, len(x.byAddr))
	for _, rec := range x.byAddr {
		r := *rec
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

var _ fsbox.Index = (*Index)(nil)
