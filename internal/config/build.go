package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nuln/fsbox"
	_ "github.com/nuln/fsbox/drivers" // register all storage drivers
	"github.com/nuln/fsbox/index/badgerindex"
	"github.com/nuln/fsbox/index/memindex"
	"github.com/nuln/fsbox/index/sqlindex"
)

// Stack is a store assembled from a Config.
type Stack struct {
	Store    *fsbox.Store
	Registry *fsbox.Registry
	Index    fsbox.Index
	// Servable lists the schemes that have a base URL.
	Servable []string
}

// Close releases the record index.
func (s *Stack) Close() error {
	return s.Index.Close()
}

// Build opens every configured engine and the record index and wires them
// into a Store. observer may be nil.
func Build(cfg *Config, log *logrus.Logger, observer fsbox.Observer) (*Stack, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	registry, servable, err := BuildRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	sanitizer, err := fsbox.NewSanitizer(cfg.Mirror.UnsafePattern)
	if err != nil {
		return nil, err
	}

	index, err := OpenIndex(cfg.Index, log)
	if err != nil {
		return nil, err
	}

	opts := []fsbox.Option{
		fsbox.WithDefaultScheme(cfg.DefaultScheme),
		fsbox.WithLogger(log),
		fsbox.WithSanitizer(sanitizer),
		fsbox.WithDeleteManagedObjects(cfg.DeleteManagedObjects),
	}
	if observer != nil {
		opts = append(opts, fsbox.WithObserver(observer))
	}

	return &Stack{
		Store:    fsbox.New(registry, index, opts...),
		Registry: registry,
		Index:    index,
		Servable: servable,
	}, nil
}

// BuildRegistry opens one engine per configured scheme and registers its
// backend. It also returns the schemes that have a base URL.
func BuildRegistry(cfg *Config, log *logrus.Logger) (*fsbox.Registry, []string, error) {
	registry := fsbox.NewRegistry()
	var servable []string

	for _, sc := range cfg.Schemes {
		engine, err := fsbox.Open(sc.EngineConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("scheme %q: %w", sc.Scheme, err)
		}

		opts := []fsbox.BackendOption{fsbox.WithBackendLogger(log)}
		if sc.BaseURL != "" {
			opts = append(opts, fsbox.WithBaseURL(sc.BaseURL))
		}
		if sc.PublicLinks {
			opts = append(opts, fsbox.WithPublicLinks(sc.LinkExpiry))
		}

		if err := registry.Register(sc.Scheme, fsbox.NewEngineBackend(sc.Scheme, engine, opts...)); err != nil {
			return nil, nil, err
		}
		if sc.Servable() {
			servable = append(servable, sc.Scheme)
		}

		log.WithFields(logrus.Fields{
			"scheme": sc.Scheme,
			"driver": sc.Driver,
		}).Debug("Registered storage scheme")
	}

	return registry, servable, nil
}

// OpenIndex opens the record index described by cfg.
func OpenIndex(cfg IndexConfig, log *logrus.Logger) (fsbox.Index, error) {
	switch cfg.Type {
	case IndexMemory:
		return memindex.New(), nil
	case IndexSQLite:
		return sqlindex.Open(cfg.Path, log)
	case IndexBadger:
		return badgerindex.Open(badgerindex.Options{Dir: cfg.Path, Logger: log})
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Type)
	}
}
