package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/genesisforge/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
	assert.Equal(t, cli.ExitUsage, cli.ExitCode(err))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "genesisforge.hcl")
	require.NoError(t, os.WriteFile(path, []byte("types {\n  modules = [\n"), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, []string{"-config", path, "types"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConfigError")
	assert.Equal(t, cli.ExitUsage, cli.ExitCode(err))
}

func TestRun_Types(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "pallets", "posts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "pallets", "posts", "types.json"), []byte(`{"PostId": "u64"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "genesisforge.hcl"), []byte(`
types {
  modules   = ["posts"]
  output    = "types.json"
  overrides = { Address = "AccountId" }
}
`), 0o600))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-config", filepath.Join(ws, "genesisforge.hcl"), "-log-format", "json", "types"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ws, "types.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"Address\": \"AccountId\",\n  \"PostId\": \"u64\"\n}\n", string(data))
	assert.Contains(t, out.String(), `"msg":"✅ Type registry written."`)
}

func TestRun_FragmentMissingExitsOne(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "genesisforge.hcl"), []byte(`
types {
  modules = ["posts"]
  output  = "types.json"
}
`), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, []string{"-c", filepath.Join(ws, "genesisforge.hcl"), "types"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FragmentMissing")
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(err))
	assert.NoFileExists(t, filepath.Join(ws, "types.json"))
}
