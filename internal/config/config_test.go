package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "public", cfg.DefaultScheme)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, IndexSQLite, cfg.Index.Type)
	assert.True(t, cfg.DeleteManagedObjects)
	assert.Equal(t, fsbox.DefaultUnsafePattern, cfg.Mirror.UnsafePattern)

	require.Len(t, cfg.Schemes, 3)
	assert.Equal(t, "public", cfg.Schemes[0].Scheme)
	assert.True(t, cfg.Schemes[0].Servable())
	assert.Equal(t, "private", cfg.Schemes[1].Scheme)
	assert.False(t, cfg.Schemes[1].Servable())
	assert.Equal(t, "memory", cfg.Schemes[2].Driver)
}

func TestLoadFile_Schemes(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
default_scheme: mem
index:
  type: memory
schemes:
  - scheme: mem
    driver: memory
  - scheme: remote
    driver: rclone
    public_links: true
    link_expiry: 1h
    options:
      remote: ":memory:"
`))
	require.NoError(t, err)

	require.Len(t, cfg.Schemes, 2)
	remote := cfg.Schemes[1]
	assert.Equal(t, "rclone", remote.Driver)
	assert.True(t, remote.PublicLinks)
	assert.Equal(t, "1h0m0s", remote.LinkExpiry.String())
	v, ok := remote.EngineConfig().OptionString("remote")
	assert.True(t, ok)
	assert.Equal(t, ":memory:", v)
}

func TestLoadFile_Env(t *testing.T) {
	t.Setenv("FSBOX_LOG_LEVEL", "error")
	t.Setenv("FSBOX_INDEX_TYPE", "memory")

	cfg, err := LoadFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, IndexMemory, cfg.Index.Type)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown index":      "index:\n  type: redis\n",
		"unknown default":    "default_scheme: nope\n",
		"duplicate scheme":   "default_scheme: a\nschemes:\n  - {scheme: a, driver: memory}\n  - {scheme: a, driver: memory}\n",
		"missing driver":     "default_scheme: a\nschemes:\n  - {scheme: a}\n",
		"bad scheme":         "default_scheme: a\nschemes:\n  - {scheme: a, driver: memory}\n  - {scheme: 'B C', driver: memory}\n",
		"index without path": "index:\n  type: badger\n  path: ''\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "info", "")
	cmd.Flags().String("index-type", "", "")
	require.NoError(t, cmd.Flags().Set("config", writeConfig(t, "log:\n  level: debug\n")))
	require.NoError(t, cmd.Flags().Set("log-level", "warn"))
	require.NoError(t, cmd.Flags().Set("index-type", "memory"))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, IndexMemory, cfg.Index.Type)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(writeConfig(t, `
default_scheme: public
index:
  type: sqlite
  path: `+filepath.Join(dir, "records.db")+`
schemes:
  - scheme: public
    driver: local
    base_path: `+filepath.Join(dir, "public")+`
    base_url: http://files.test/public
  - scheme: session
    driver: memory
`))
	require.NoError(t, err)

	stack, err := Build(cfg, quietLogger(), nil)
	require.NoError(t, err)
	defer func() { _ = stack.Close() }()

	assert.Equal(t, []string{"public", "session"}, stack.Registry.Schemes())
	assert.Equal(t, []string{"public"}, stack.Servable)

	ctx := context.Background()
	res, err := stack.Store.WriteManaged(ctx, "", []byte("hello"))
	require.NoError(t, err)
	assert.Contains(t, res.Address, "public://file-")

	u, ok := stack.Store.ExternalURL(ctx, res.Address)
	require.True(t, ok)
	assert.Contains(t, u, "http://files.test/public/file-")

	_, err = os.Stat(filepath.Join(dir, "public", fsbox.MustParseAddress(res.Address).Path))
	assert.NoError(t, err)
}

func TestOpenIndex(t *testing.T) {
	for _, typ := range []string{IndexMemory, IndexSQLite, IndexBadger} {
		t.Run(typ, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "idx")
			x, err := OpenIndex(IndexConfig{Type: typ, Path: path}, quietLogger())
			require.NoError(t, err)
			_, err = x.Create(context.Background(), fsbox.Record{Address: "public://a"})
			assert.NoError(t, err)
			assert.NoError(t, x.Close())
		})
	}

	_, err := OpenIndex(IndexConfig{Type: "redis"}, quietLogger())
	assert.Error(t, err)
}
