package badgerindex_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
	"github.com/nuln/fsbox/index/badgerindex"
	"github.com/nuln/fsbox/index/indextest"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func TestBadgerIndex_InMemory(t *testing.T) {
	x, err := badgerindex.Open(badgerindex.Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	indextest.IndexTestSuite(t, x)
}

func TestBadgerIndex_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	x, err := badgerindex.Open(badgerindex.Options{Dir: dir, SyncWrites: true, Logger: quietLogger()})
	require.NoError(t, err)
	rec, err := x.Create(ctx, fsbox.Record{Address: "private://notes.txt", Filename: "notes.txt", Size: 11})
	require.NoError(t, err)
	require.NoError(t, x.Close())

	reopened, err := badgerindex.Open(badgerindex.Options{Dir: dir, Logger: quietLogger()})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.FindByAddress(ctx, "private://notes.txt")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "notes.txt", got.Filename)

	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
