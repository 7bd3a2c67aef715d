package fsbox_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
	"github.com/nuln/fsbox/driver/local"
)

func memBackend(scheme string, opts ...fsbox.BackendOption) *fsbox.EngineBackend {
	return fsbox.NewEngineBackend(scheme, local.NewWithFs(afero.NewMemMapFs()), opts...)
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r := fsbox.NewRegistry()
	mem := memBackend("mem")
	require.NoError(t, r.Register("mem", mem))
	require.NoError(t, r.Register("public", memBackend("public")))

	b, addr, err := r.Resolve("mem://dir/a.txt")
	require.NoError(t, err)
	assert.Same(t, mem, b)
	assert.Equal(t, "dir/a.txt", addr.Path)

	assert.Equal(t, []string{"mem", "public"}, r.Schemes())
}

func TestRegistry_Duplicate(t *testing.T) {
	r := fsbox.NewRegistry()
	require.NoError(t, r.Register("mem", memBackend("mem")))
	assert.ErrorIs(t, r.Register("mem", memBackend("mem")), fsbox.ErrDuplicateScheme)
}

func TestRegistry_Invalid(t *testing.T) {
	r := fsbox.NewRegistry()
	assert.ErrorIs(t, r.Register("Bad Scheme", memBackend("x")), fsbox.ErrInvalidAddress)
	assert.Error(t, r.Register("nil", nil))
}

func TestRegistry_UnknownScheme(t *testing.T) {
	r := fsbox.NewRegistry()
	require.NoError(t, r.Register("mem", memBackend("mem")))

	_, addr, err := r.Resolve("ftp://x")
	assert.ErrorIs(t, err, fsbox.ErrUnknownScheme)
	assert.Equal(t, "ftp", addr.Scheme)

	_, _, err = r.Resolve("not an address")
	assert.ErrorIs(t, err, fsbox.ErrInvalidAddress)
}
