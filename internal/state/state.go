// Package state remembers the last file and directory addresses used by
// the fsbox command so later invocations can omit them.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Initial values used until something else is remembered.
const (
	DefaultFile      = "session://drupal.txt"
	DefaultDirectory = "session://directory1"
)

const (
	keyFile      = "default_file"
	keyDirectory = "default_directory"
)

// State is a small YAML-backed key store. The zero path keeps values in
// memory only.
type State struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Load reads the state file at path. A missing file is not an error.
func Load(path string) (*State, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault(keyFile, DefaultFile)
	v.SetDefault(keyDirectory, DefaultDirectory)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read state file: %w", err)
			}
		}
	}
	return &State{v: v, path: path}, nil
}

// File returns the remembered default file address.
func (s *State) File() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(keyFile)
}

// Directory returns the remembered default directory address.
func (s *State) Directory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(keyDirectory)
}

// RememberFile stores address as the default file.
func (s *State) RememberFile(address string) error {
	return s.set(keyFile, address)
}

// RememberDirectory stores address as the default directory.
func (s *State) RememberDirectory(address string) error {
	return s.set(keyDirectory, address)
}

func (s *State) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.v.GetString(key) == value {
		return nil
	}
	s.v.Set(key, value)
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
