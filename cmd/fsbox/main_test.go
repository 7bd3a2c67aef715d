package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/fsbox"
)

// writeTestConfig lays out a config with on-disk schemes and index so state
// survives across command invocations.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := `
default_scheme: public
log:
  level: error
index:
  type: sqlite
  path: ` + filepath.Join(dir, "records.db") + `
state_file: ` + filepath.Join(dir, "state.yaml") + `
schemes:
  - scheme: public
    driver: local
    base_path: ` + filepath.Join(dir, "public") + `
    base_url: http://localhost:8080/files/public
  - scheme: private
    driver: local
    base_path: ` + filepath.Join(dir, "private") + `
  - scheme: session
    driver: memory
  - scheme: archive
    driver: sharded
    base_path: ` + filepath.Join(dir, "archive") + `
    options:
      chunk_size: 4
`
	path := filepath.Join(dir, "fsbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, cfg string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_ManagedScenario(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, nil, "write", "--managed", "public://a.txt", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved managed file public://a.txt")
	assert.Contains(t, out, "accessible at http://localhost:8080/files/public/a.txt")

	out, err = run(t, cfg, nil, "write", "--managed", "public://a.txt", "world")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved managed file public://a-1.txt")

	out, err = run(t, cfg, nil, "records")
	require.NoError(t, err)
	assert.Contains(t, out, "public://a.txt")
	assert.Contains(t, out, "public://a-1.txt")

	out, err = run(t, cfg, nil, "rm", "public://a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Deleted managed file public://a.txt\n", out)

	out, err = run(t, cfg, nil, "exists", "public://a.txt")
	require.NoError(t, err)
	assert.Equal(t, "File public://a.txt does not exist\n", out)

	// The last managed write is remembered as the default file.
	out, err = run(t, cfg, nil, "read")
	require.NoError(t, err)
	assert.Equal(t, "world", out)
}

func TestCLI_UnmanagedAndDelete(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, nil, "write", "private://notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "Saved file as private://notes.txt\n", out)

	out, err = run(t, cfg, nil, "read", "private://notes.txt")
	require.NoError(t, err)
	assert.Equal(t, defaultText, out)

	_, err = run(t, cfg, nil, "url", "private://notes.txt")
	assert.Error(t, err)

	out, err = run(t, cfg, nil, "rm")
	require.NoError(t, err)
	assert.Equal(t, "Deleted unmanaged file private://notes.txt\n", out)

	_, err = run(t, cfg, nil, "rm", "private://notes.txt")
	assert.ErrorIs(t, err, fsbox.ErrNotFound)
}

func TestCLI_GeneratedName(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, nil, "write", "", "anonymous")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Saved file as public://file-"), out)
}

func TestCLI_Stream(t *testing.T) {
	cfg := writeTestConfig(t)
	content := strings.Repeat("0123456789", 2000)

	out, err := run(t, cfg, strings.NewReader(content), "write", "--stream", "public://big.txt", "-")
	require.NoError(t, err)
	assert.Equal(t, "Streamed file to public://big.txt\n", out)

	out, err = run(t, cfg, nil, "read", "public://big.txt")
	require.NoError(t, err)
	assert.Equal(t, content, out)

	_, err = run(t, cfg, nil, "write", "--stream", "--managed", "public://x.txt")
	assert.Error(t, err)
}

func TestCLI_Mirror(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, cfg, nil, "write", "private://dir/my file.txt", "copy me")
	require.NoError(t, err)

	out, err := run(t, cfg, nil, "mirror", "--to", "public")
	require.NoError(t, err)
	assert.Equal(t, "Copied private://dir/my file.txt to public://my_file.txt\n", out)

	out, err = run(t, cfg, nil, "read", "public://my_file.txt")
	require.NoError(t, err)
	assert.Equal(t, "copy me", out)
}

func TestCLI_Directories(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, nil, "mkdir", "private://reports/2024")
	require.NoError(t, err)
	assert.Equal(t, "Directory private://reports/2024 is ready for use\n", out)

	out, err = run(t, cfg, nil, "dir-exists")
	require.NoError(t, err)
	assert.Equal(t, "Directory private://reports/2024 exists\n", out)

	_, err = run(t, cfg, nil, "write", "private://reports/2024/q1.txt", "q1")
	require.NoError(t, err)

	out, err = run(t, cfg, nil, "ls", "private://reports")
	require.NoError(t, err)
	assert.Contains(t, out, "private://reports/2024/q1.txt")

	_, err = run(t, cfg, nil, "rmdir", "private://reports")
	require.NoError(t, err)

	out, err = run(t, cfg, nil, "dir-exists", "private://reports")
	require.NoError(t, err)
	assert.Equal(t, "Directory private://reports does not exist\n", out)
}

func TestCLI_UnknownScheme(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, cfg, nil, "read", "ftp://x")
	assert.ErrorIs(t, err, fsbox.ErrUnknownScheme)
}

func TestCLI_Info(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, cfg, nil, "schemes")
	require.NoError(t, err)
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "session")

	out, err = run(t, cfg, nil, "drivers")
	require.NoError(t, err)
	for _, name := range []string{"local", "memory", "rclone", "sharded"} {
		assert.Contains(t, out, name)
	}
}

func TestCLI_Sweep(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, cfg, nil, "write", "archive://keep.txt", "abcdefgh")
	require.NoError(t, err)
	_, err = run(t, cfg, nil, "write", "archive://drop.txt", "abcdXYZW")
	require.NoError(t, err)
	_, err = run(t, cfg, nil, "rm", "archive://drop.txt")
	require.NoError(t, err)

	out, err := run(t, cfg, nil, "sweep", "archive")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 unreferenced chunks from archive\n", out)

	out, err = run(t, cfg, nil, "read", "archive://keep.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "abcdefgh")

	_, err = run(t, cfg, nil, "gc", "public")
	assert.ErrorIs(t, err, fsbox.ErrNotSupported)
}
