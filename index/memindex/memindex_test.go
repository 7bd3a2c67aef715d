package memindex_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nuln/fsbox"
	"github.com/nuln/fsbox/index/indextest"
	"github.com/nuln/fsbox/index/memindex"
)

func TestMemIndex(t *testing.T) {
	indextest.IndexTestSuite(t, memindex.New())
}

func TestMemIndex_Closed(t *testing.T) {
	x := memindex.New()
	if err := x.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := x.Create(context.Background(), fsbox.Record{Address: "mem://a"}); !errors.Is(err, fsbox.ErrClosed) {
		t.Errorf("Create after Close = %v, want ErrClosed", err)
	}
}
