package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const passingScenario = `name: pair
description: "Two callbacks combined"
receivers: [x, y]
callbacks:
  A: { receiver: x, method: OnClick }
  B: { receiver: y, method: OnClick }
steps:
  - let: h
    combine: [A, B]
    expect: { order: [x.OnClick, y.OnClick] }
`

const failingScenario = `name: wrong
description: "Expects the wrong order"
receivers: [x, y]
callbacks:
  A: { receiver: x, method: OnClick }
  B: { receiver: y, method: OnClick }
steps:
  - let: h
    combine: [A, B]
    expect: { order: [y.OnClick, x.OnClick] }
`

// scenarioDir lays out root/scenarios/<name>.yaml and returns the
// scenarios directory.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommand_HarnessScenariosMatchGoldens(t *testing.T) {
	stdout, _, err := execute(t, "test", harnessScenarios)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "PASS onclick\n")
	assert.Contains(t, stdout, "PASS failures\n")
	assert.Contains(t, stdout, "PASS inline_empty\n")
	assert.Contains(t, stdout, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, stdout, "PASS All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	stdout, _, err := execute(t, "test", harnessScenarios, "--filter", "on*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "PASS onclick\n")
	assert.NotContains(t, stdout, "failures")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_NoMatches(t *testing.T) {
	stdout, _, err := execute(t, "test", harnessScenarios, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "test", harnessScenarios, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 3, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 3)
	assert.Equal(t, "failures", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"pair.yaml":  passingScenario,
		"wrong.yaml": failingScenario,
	})

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "PASS pair\n")
	assert.Contains(t, stdout, "FAIL wrong\n")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"wrong.yaml": failingScenario})

	stdout, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"pair.yaml": passingScenario})
	golden := filepath.Join(filepath.Dir(dir), "golden", "pair.golden")

	stdout, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "PASS pair (golden updated)")
	require.FileExists(t, golden)

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"pair","trace":[]}`), 0644))
	stdout, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTestCommand_InvalidScenarioFile(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: broken\n"})

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "FAIL broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}
