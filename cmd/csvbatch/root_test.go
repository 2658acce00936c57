package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const memoryConfig = `
target:
  tap_name: tap
batch:
  size: 2
destination:
  kind: memory
compression:
  type: zstd
`

func TestValidateCommand(t *testing.T) {
	valid := writeFile(t, "ok.yaml", memoryConfig)
	stdout, stderr, err := execute(t, "", "validate", "--config", valid)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration is valid")
	assert.Contains(t, stderr, "warning: destination.kind")

	invalid := writeFile(t, "bad.json", `{"batch":{"size":-1},"destination":{"kind":"ftp"}}`)
	_, stderr, err = execute(t, "", "validate", "-c", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
	assert.Contains(t, stderr, "error: target.tap_name:")
	assert.Contains(t, stderr, "error: batch.size:")
	assert.Contains(t, stderr, `error: destination.kind: unknown destination kind "ftp"`)

	_, _, err = execute(t, "", "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	cfg := writeFile(t, "pipeline.yaml", memoryConfig)

	stdout, stderr, err := execute(t, singerInput, "run", "--config", cfg)
	require.NoError(t, err, stderr)

	got := decodeManifests(t, stdout)
	require.Len(t, got, 3)
	for _, m := range got {
		assert.True(t, strings.HasSuffix(m.Files[0].Name, ".csv.zstd"), m.Files[0].Name)
		assert.Positive(t, m.Files[0].CompressedBytes)
	}
	assert.Contains(t, stderr, `"msg":"run complete"`)

	input := writeFile(t, "messages.jsonl", singerInput)
	stdout, _, err = execute(t, "", "run", "-c", cfg, "--input", input, "-v")
	require.NoError(t, err)
	assert.Len(t, decodeManifests(t, stdout), 3)

	_, _, err = execute(t, "", "run", "-c", cfg, "--input", filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")
}
