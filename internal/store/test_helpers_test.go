package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/multicast/internal/ir"
	"github.com/roach88/multicast/internal/testutil"
)

// createTestStore opens a fresh database in a temp dir with sequential ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.SequentialIDs("chain")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRecord builds a two-entry record: an instance callback on a
// side-table target followed (in invocation order) by nothing, and an
// inline one at the head.
func testRecord(label string) ir.ChainRecord {
	return ir.ChainRecord{
		Version: ir.RecordVersion,
		Head:    0,
		Entries: []ir.Entry{
			{
				CallbackType:  "ClickHandler",
				CallbackScope: "ui",
				Target:        ir.InlineTarget(ir.Object{Scope: "ui", Type: "Button", Value: ir.Obj(ir.O("label", ir.IRString("inline")))}),
				ReceiverScope: "ui",
				ReceiverType:  "Button",
				Method:        "OnClick",
				Next:          ir.IntPtr(1),
			},
			{
				CallbackType:  "ClickHandler",
				CallbackScope: "ui",
				Target:        ir.SideTableTarget("target0"),
				ReceiverScope: "ui",
				ReceiverType:  "Button",
				Method:        "OnClick",
			},
		},
		Targets: map[string]ir.Object{
			"target0": {Scope: "ui", Type: "Button", Value: ir.Obj(ir.O("label", ir.IRString(label)))},
		},
	}
}
