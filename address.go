package fsbox

import (
	"fmt"
	"path"
	"strings"
)

const schemeSep = "://"

// Address identifies an object as "scheme://path". The path is opaque to the
// Store and interpreted by the backend registered for Scheme.
type Address struct {
	Scheme string
	Path   string
}

// ParseAddress splits s into scheme and path. The scheme is lower-cased and
// must match [a-z][a-z0-9+.-]*. The path may be empty (the scheme root).
func ParseAddress(s string) (Address, error) {
	i := strings.Index(s, schemeSep)
	if i < 0 {
		return Address{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidAddress, s)
	}
	scheme := strings.ToLower(s[:i])
	if !ValidScheme(scheme) {
		return Address{}, fmt.Errorf("%w: bad scheme %q", ErrInvalidAddress, s[:i])
	}
	return Address{Scheme: scheme, Path: s[i+len(schemeSep):]}, nil
}

// MustParseAddress is like [ParseAddress] but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ValidScheme reports whether s is a usable scheme token.
func ValidScheme(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func (a Address) String() string {
	return a.Scheme + schemeSep + a.Path
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a.Scheme == "" && a.Path == ""
}

// Base returns the last element of the path.
// e.g. "public://docs/a.txt" → "a.txt"
func (a Address) Base() string {
	p := strings.TrimSuffix(a.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Dir returns the address of the parent directory.
// e.g. "public://docs/a.txt" → "public://docs"
func (a Address) Dir() Address {
	p := strings.TrimSuffix(a.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return Address{Scheme: a.Scheme, Path: p[:i]}
	}
	return Address{Scheme: a.Scheme}
}

// Join appends elem to the path.
func (a Address) Join(elem ...string) Address {
	parts := append([]string{a.Path}, elem...)
	p := path.Join(parts...)
	if p == "." {
		p = ""
	}
	return Address{Scheme: a.Scheme, Path: strings.TrimPrefix(p, "/")}
}

// WithPath returns a copy of a with its path replaced.
func (a Address) WithPath(p string) Address {
	return Address{Scheme: a.Scheme, Path: p}
}

// Canonical returns a with its path normalized the way backends store it:
// no leading slash, no "." or ".." elements.
// e.g. "mem:///docs/../a.txt" → "mem://a.txt"
func (a Address) Canonical() Address {
	p := cleanPath(a.Path)
	if p == "." {
		p = ""
	}
	return Address{Scheme: a.Scheme, Path: p}
}
