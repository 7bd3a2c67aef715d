package fsbox

import (
	"errors"
	"fmt"
	"os"
)

// Common storage errors. Where possible, these alias os package errors
// for compatibility with os.IsNotExist, os.IsExist, etc.
var (
	ErrNotFound           = os.ErrNotExist
	ErrConflict           = os.ErrExist
	ErrPermission         = os.ErrPermission
	ErrInvalid            = os.ErrInvalid
	ErrUnknownScheme      = errors.New("fsbox: unknown scheme")
	ErrDuplicateScheme    = errors.New("fsbox: scheme already registered")
	ErrInvalidAddress     = errors.New("fsbox: invalid address")
	ErrBackendUnavailable = errors.New("fsbox: backend unavailable")
	ErrIsDir              = errors.New("fsbox: is a directory")
	ErrNotDir             = errors.New("fsbox: not a directory")
	ErrClosed             = errors.New("fsbox: already closed")
	ErrNotSupported       = errors.New("fsbox: feature not supported by this backend")
)

// OpError records a failed Store operation together with the address the
// caller supplied. It never carries engine-internal paths.
type OpError struct {
	Op      string
	Address string
	Err     error
}

func (e *OpError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("fsbox: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fsbox: %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Kind returns the sentinel the error maps to, or nil if it is not one of
// the package errors.
func Kind(err error) error {
	for _, k := range []error{
		ErrUnknownScheme, ErrDuplicateScheme, ErrInvalidAddress,
		ErrNotFound, ErrConflict, ErrBackendUnavailable,
		ErrIsDir, ErrNotDir, ErrNotSupported,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsRetryable reports whether err is transient. Only backend availability
// failures qualify; conflicts and missing objects are logic conditions.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// classifyError maps an engine error onto the package taxonomy.
// The original error text is dropped since it may contain engine paths.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, os.ErrExist):
		return ErrConflict
	case errors.Is(err, ErrIsDir), errors.Is(err, ErrNotDir),
		errors.Is(err, ErrNotSupported), errors.Is(err, ErrBackendUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, errorClass(err))
	}
}

// errorClass yields a path-free description of an engine error.
func errorClass(err error) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Op + ": " + pe.Err.Error()
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Op + ": " + le.Err.Error()
	}
	return err.Error()
}
