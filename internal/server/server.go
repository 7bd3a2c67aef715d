// Package server exposes objects of publicly addressable schemes over HTTP,
// together with health and metrics endpoints.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/nuln/fsbox"
)

// Server serves GET/HEAD /files/{scheme}/{path}.
type Server struct {
	store    *fsbox.Store
	servable map[string]bool
	metrics  http.Handler
	log      *logrus.Logger
	access   *io.PipeWriter
	http     *http.Server
}

// Options configures New.
type Options struct {
	Addr string
	// Schemes lists the schemes whose objects may be served.
	Schemes []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *logrus.Logger
}

// New creates a Server for store.
func New(store *fsbox.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Server{
		store:    store,
		servable: make(map[string]bool, len(opts.Schemes)),
		metrics:  opts.Metrics,
		log:      opts.Logger,
		access:   opts.Logger.WriterLevel(logrus.DebugLevel),
	}
	for _, scheme := range opts.Schemes {
		s.servable[scheme] = true
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with recovery and access logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	router.HandleFunc("/files/{scheme}/{path:.+}", s.handleFile).Methods(http.MethodGet, http.MethodHead)

	return handlers.RecoveryHandler(handlers.RecoveryLogger(s.log))(
		handlers.CombinedLoggingHandler(s.access, router),
	)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("File server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	_ = s.Close()
	return err
}

// Close releases the access log writer. Handlers obtained earlier must no
// longer serve requests.
func (s *Server) Close() error {
	return s.access.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scheme, name := vars["scheme"], vars["path"]

	// Schemes without a base URL (private, session) are never served.
	if !s.servable[scheme] {
		http.NotFound(w, r)
		return
	}

	address := fsbox.Address{Scheme: scheme, Path: name}.Canonical()
	data, err := s.store.Read(r.Context(), address.String())
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.WithError(err).WithField("address", address.String()).Warn("Failed to serve object")
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(address.Path))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, address.Base(), time.Time{}, bytes.NewReader(data))
}

func statusFor(err error) int {
	switch fsbox.Kind(err) {
	case fsbox.ErrNotFound, fsbox.ErrUnknownScheme, fsbox.ErrIsDir:
		return http.StatusNotFound
	case fsbox.ErrInvalidAddress:
		return http.StatusBadRequest
	case fsbox.ErrBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
