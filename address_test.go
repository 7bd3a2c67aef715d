package fsbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in         string
		wantScheme string
		wantPath   string
		wantErr    bool
	}{
		{"public://a.txt", "public", "a.txt", false},
		{"Session://drupal.txt", "session", "drupal.txt", false},
		{"mem://", "mem", "", false},
		{"s3+v2://bucket/key", "s3+v2", "bucket/key", false},
		{"public://dir/sub/", "public", "dir/sub/", false},
		{"no-scheme.txt", "", "", true},
		{"://a", "", "", true},
		{"9p://a", "", "", true},
		{"a b://x", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			addr, err := fsbox.ParseAddress(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, fsbox.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, addr.Scheme)
			assert.Equal(t, tt.wantPath, addr.Path)
		})
	}
}

func TestAddress_Helpers(t *testing.T) {
	a := fsbox.MustParseAddress("public://docs/report.pdf")

	assert.Equal(t, "report.pdf", a.Base())
	assert.Equal(t, "public://docs", a.Dir().String())
	assert.Equal(t, "public://", a.Dir().Dir().String())
	assert.Equal(t, "public://docs/old/report.pdf", a.Dir().Join("old", "report.pdf").String())
	assert.Equal(t, "public://x.txt", a.WithPath("x.txt").String())
	assert.False(t, a.IsZero())
	assert.True(t, fsbox.Address{}.IsZero())
}

func TestAddress_Canonical(t *testing.T) {
	tests := map[string]string{
		"mem://a.txt":            "mem://a.txt",
		"mem:///a.txt":           "mem://a.txt",
		"mem://docs/../a.txt":    "mem://a.txt",
		"mem://./docs//b.txt":    "mem://docs/b.txt",
		"mem://../../escape.txt": "mem://escape.txt",
		"mem://":                 "mem://",
	}
	for in, want := range tests {
		assert.Equal(t, want, fsbox.MustParseAddress(in).Canonical().String(), in)
	}
}

func TestMustParseAddress_Panics(t *testing.T) {
	assert.Panics(t, func() { fsbox.MustParseAddress("nope") })
}
