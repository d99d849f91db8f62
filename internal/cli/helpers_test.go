package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/multicast/internal/ir"
	"github.com/roach88/multicast/internal/persist"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// clickRecord is a valid two-entry record: a button callback stored in the
// side table followed by a static reset.
func clickRecord() ir.ChainRecord {
	return ir.ChainRecord{
		Version: ir.RecordVersion,
		Head:    0,
		Entries: []ir.Entry{
			{
				CallbackType:  "ClickHandler",
				CallbackScope: "ui",
				Target:        ir.SideTableTarget("target0"),
				ReceiverScope: "ui",
				ReceiverType:  "Button",
				Method:        "OnClick",
				Next:          ir.IntPtr(1),
			},
			{
				CallbackType:  "ClickHandler",
				CallbackScope: "ui",
				Target:        ir.AbsentTarget(),
				ReceiverScope: "ui",
				ReceiverType:  "Buttons",
				Method:        "Reset",
			},
		},
		Targets: map[string]ir.Object{
			"target0": {Scope: "ui", Type: "Button", Value: ir.Obj(ir.O("label", ir.IRString("x")))},
		},
	}
}

// writeRecord encodes rec into dir/name, picking the format by extension.
func writeRecord(t *testing.T, dir, name string, rec ir.ChainRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	format, err := persist.FormatForPath(path)
	require.NoError(t, err)
	data, err := persist.Encode(rec, format)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
