package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multicast/internal/ir"
	"github.com/roach88/multicast/internal/persist"
)

// unusedSlotRecord passes the schema but carries a side-table slot that
// no entry refers to.
func unusedSlotRecord() ir.ChainRecord {
	rec := clickRecord()
	rec.Targets["target1"] = ir.Object{Scope: "ui", Type: "Button", Value: ir.Obj(ir.O("label", ir.IRString("y")))}
	return rec
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.yaml", clickRecord())

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "PASS Record valid (2 entries, 1 targets)\n", stdout)
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.json", clickRecord())

	stdout, _, err := execute(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Entries)
	assert.Equal(t, 1, resp.Data.Targets)
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.yaml", unusedSlotRecord())

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "FAIL Validation failed")
	assert.Contains(t, stdout, "targets.target1")
	assert.Contains(t, stdout, persist.ErrUnusedSlot)
}

func TestValidateCommand_InvalidJSON(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.json", unusedSlotRecord())

	stdout, _, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, persist.ErrUnusedSlot, resp.Error.Code)
}

func TestValidateCommand_FileNotFound(t *testing.T) {
	stdout, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]: record file not found")
}

func TestValidateCommand_DecodeFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1","head":0,"entries":[],"bogus":1}`), 0644))

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E008]: failed to decode record")
}

func TestConvertCommand_Stdout(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.yaml", clickRecord())

	stdout, _, err := execute(t, "convert", path, "--to", "json")
	require.NoError(t, err)

	want, err := persist.EncodeJSON(clickRecord())
	require.NoError(t, err)
	assert.Equal(t, string(want)+"\n", stdout)
}

func TestConvertCommand_OutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeRecord(t, dir, "chain.json", clickRecord())
	out := filepath.Join(dir, "converted.yaml")

	stdout, _, err := execute(t, "convert", path, "--to", "yaml", "-o", out)
	require.NoError(t, err)
	assert.Equal(t, "PASS Wrote "+out+" (yaml, 2 entries)\n", stdout)

	rec, err := persist.DecodeFile(out)
	require.NoError(t, err)
	assert.Equal(t, ir.MustRecordID(clickRecord()), ir.MustRecordID(rec))
}

func TestConvertCommand_InvalidTarget(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.yaml", clickRecord())

	stdout, _, err := execute(t, "convert", path, "--to", "toml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, `invalid document format "toml"`)
}

func TestHashCommand_SameAcrossFormats(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeRecord(t, dir, "chain.yaml", clickRecord())
	jsonPath := writeRecord(t, dir, "chain.json", clickRecord())

	fromYAML, _, err := execute(t, "hash", yamlPath)
	require.NoError(t, err)
	fromJSON, _, err := execute(t, "hash", jsonPath)
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, ir.MustRecordID(clickRecord()), strings.TrimSpace(fromYAML))
}

func TestHashCommand_JSON(t *testing.T) {
	path := writeRecord(t, t.TempDir(), "chain.yaml", clickRecord())

	stdout, _, err := execute(t, "hash", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data HashResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ir.MustRecordID(clickRecord()), resp.Data.RecordHash)
	assert.Equal(t, 2, resp.Data.Entries)
}
