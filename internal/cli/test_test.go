package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renameScenario = `
name: rename
description: a renamed user fires the name handler
cycle_token: cycle-rename
rules:
  name: record
document:
  name: Adam
steps:
  - set: {name: Bert}
    save: true
    expect:
      calls:
        - {path: name, kind: set, value: Bert}
`

const renameGolden = `{"cycle_token":"cycle-rename","scenario_name":"rename","trace":[{"cycle":"cycle-rename","kind":"set","path":"name","seq":1,"step":0,"type":"call","value":"Bert"}]}`

const failingScenario = `
name: failing
description: expects a call that never happens
rules:
  name: record
document:
  name: Adam
steps:
  - save: true
    expect:
      calls:
        - {path: name, kind: set}
`

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rename.yaml", renameScenario)

	out, _, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ rename (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "rename.golden"))
	require.NoError(t, err)
	assert.Equal(t, renameGolden, string(golden))

	out, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ rename\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rename.yaml", renameScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	writeFile(t, filepath.Join(dir, "golden"), "rename.golden", `{"scenario_name":"rename","trace":[]}`)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingScenario)
	writeFile(t, dir, "rename.yaml", renameScenario)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "expected 1 calls, got 0")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingScenario)
	writeFile(t, dir, "rename.yaml", renameScenario)

	out, _, err := execute(t, "test", "--filter", "ren*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "failing")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)

	status, _, cliErr := decodeResponse(t, out)
	assert.Equal(t, "error", status)
	require.NotNil(t, cliErr)
	assert.Equal(t, "E_TEST_FAILED", cliErr.Code)
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	out, _, err := execute(t, "test", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ All scenarios passed")
}
