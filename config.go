package fsbox

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Config holds the storage engine configuration for one driver instance.
type Config struct {
	// Type is the driver name: "local", "memory", "sharded", "rclone", etc.
	Type string `json:"type" yaml:"type" mapstructure:"driver"`

	// BasePath is the root directory for file-based storage engines.
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty" mapstructure:"base_path"`

	// Options holds driver-specific configuration.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

// OptionString returns Options[key] if it is a non-empty string.
func (c *Config) OptionString(key string) (string, bool) {
	v, ok := c.Options[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// OptionInt64 returns Options[key] converted to int64. Config decoders
// deliver numbers as int, int64 or float64 depending on the source format.
func (c *Config) OptionInt64(key string) (int64, bool) {
	switch n := c.Options[key].(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// OptionBool returns Options[key] if it holds a bool or a parseable string.
func (c *Config) OptionBool(key string) (bool, bool) {
	switch v := c.Options[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

// Factory is a function that creates a [StorageEngine] from a [Config].
type Factory func(cfg *Config) (StorageEngine, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a storage driver available by the provided name.
// This is typically called from the driver package's init() function.
// It panics if called twice with the same name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("fsbox: driver %q already registered", name))
	}
	factories[name] = factory
}

// Drivers returns a sorted list of all registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a new [StorageEngine] using the registered driver specified in cfg.Type.
func Open(cfg *Config) (StorageEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("fsbox: config must not be nil")
	}

	mu.RLock()
	factory, ok := factories[cfg.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("fsbox: unknown driver %q (forgotten import?)", cfg.Type)
	}

	return factory(cfg)
}

// MustOpen is like [Open] but panics on error.
func MustOpen(cfg *Config) StorageEngine {
	engine, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return engine
}
