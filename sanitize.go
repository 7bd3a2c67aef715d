package fsbox

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultUnsafePattern matches runs of bytes that are not safe in a file name.
const DefaultUnsafePattern = `[^A-Za-z0-9._-]+`

// Sanitizer turns an arbitrary path or name into a safe local file name.
type Sanitizer interface {
	SafeName(name string) string
}

// PatternSanitizer strips directory components and replaces every match of
// its pattern with "_".
type PatternSanitizer struct {
	unsafe *regexp.Regexp
}

// NewSanitizer compiles pattern. An empty pattern selects DefaultUnsafePattern.
func NewSanitizer(pattern string) (*PatternSanitizer, error) {
	if pattern == "" {
		pattern = DefaultUnsafePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("fsbox: unsafe pattern: %w", err)
	}
	return &PatternSanitizer{unsafe: re}, nil
}

// DefaultSanitizer uses DefaultUnsafePattern.
var DefaultSanitizer Sanitizer = &PatternSanitizer{unsafe: regexp.MustCompile(DefaultUnsafePattern)}

// SafeName implements Sanitizer.
// e.g. "public://a/b/my file?.txt" → "my_file_.txt"
func (s *PatternSanitizer) SafeName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = s.unsafe.ReplaceAllString(name, "_")
	// No hidden files and no "." / ".." names.
	if strings.HasPrefix(name, ".") {
		name = "_" + strings.TrimLeft(name, ".")
	}
	if name == "" || name == "_" {
		return "file"
	}
	return name
}
