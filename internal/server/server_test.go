package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
	"github.com/nuln/fsbox/driver/local"
	"github.com/nuln/fsbox/index/memindex"
	"github.com/nuln/fsbox/internal/metrics"
)

func newTestServer(t *testing.T) (*fsbox.Store, http.Handler) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := fsbox.NewRegistry()
	for _, scheme := range []string{"public", "private"} {
		b := fsbox.NewEngineBackend(scheme, local.NewWithFs(afero.NewMemMapFs()))
		require.NoError(t, r.Register(scheme, b))
	}
	collector := metrics.New()
	store := fsbox.New(r, memindex.New(), fsbox.WithLogger(log), fsbox.WithObserver(collector))

	srv := New(store, Options{Schemes: []string{"public"}, Metrics: collector.Handler(), Logger: log})
	t.Cleanup(func() { _ = srv.Close() })
	return store, srv.Handler()
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServeFile(t *testing.T) {
	store, h := newTestServer(t)
	_, err := store.WriteUnmanaged(context.Background(), "public://docs/hello.txt", []byte("hello world"))
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/files/public/docs/hello.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = do(h, http.MethodHead, "/files/public/docs/hello.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}

func TestServeFile_NotServable(t *testing.T) {
	store, h := newTestServer(t)
	_, err := store.WriteUnmanaged(context.Background(), "private://secret.txt", []byte("s"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/files/private/secret.txt").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/files/ftp/x").Code)
}

func TestServeFile_Missing(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/files/public/nope.txt").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/files/public/nope.txt").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	store, h := newTestServer(t)
	_, err := store.WriteManaged(context.Background(), "public://m.txt", []byte("m"))
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fsbox_operations_total{op="write_managed",result="success",scheme="public"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&fsbox.OpError{Op: "read", Err: fsbox.ErrNotFound}))
	assert.Equal(t, http.StatusBadRequest, statusFor(fsbox.ErrInvalidAddress))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fsbox.ErrBackendUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestServer_StartReleasesAccessLog(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := New(fsbox.New(fsbox.NewRegistry(), nil, fsbox.WithLogger(log)), Options{Addr: "127.0.0.1:0", Logger: log})

	first, second := srv.Handler(), srv.Handler()
	assert.Equal(t, http.StatusOK, do(first, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(second, http.MethodGet, "/healthz").Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.Start(ctx))

	_, err := srv.access.Write([]byte("late line\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
