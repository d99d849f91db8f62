package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/multicast/internal/ir"
)

func TestSaveChain_LoadChain(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := testRecord("x")

	info, err := s.SaveChain(ctx, "clicks", rec)
	if err != nil {
		t.Fatalf("SaveChain() failed: %v", err)
	}
	if info.ID != "chain-1" || info.Seq != 1 || info.Entries != 2 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.RecordHash != ir.MustRecordID(rec) {
		t.Errorf("record hash = %s, want %s", info.RecordHash, ir.MustRecordID(rec))
	}

	got, loaded, err := s.LoadChain(ctx, "clicks")
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}
	if loaded != info {
		t.Errorf("loaded info %+v, saved %+v", loaded, info)
	}
	if ir.MustRecordID(got) != ir.MustRecordID(rec) {
		t.Errorf("loaded record differs from saved record")
	}
	if got.Entries[0].Target.Inline == nil || got.Entries[0].Target.Kind != ir.TargetInline {
		t.Errorf("inline target lost: %+v", got.Entries[0].Target)
	}
	if got.Entries[1].Next != nil {
		t.Errorf("oldest entry has next %d", *got.Entries[1].Next)
	}
}

func TestSaveChain_EmptyRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := ir.ChainRecord{Version: ir.RecordVersion, Entries: []ir.Entry{}}

	if _, err := s.SaveChain(ctx, "empty", rec); err != nil {
		t.Fatalf("SaveChain() failed: %v", err)
	}
	got, _, err := s.LoadChain(ctx, "empty")
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}
	if len(got.Entries) != 0 || got.Targets != nil {
		t.Errorf("expected empty record, got %+v", got)
	}
	if ir.MustRecordID(got) != ir.MustRecordID(rec) {
		t.Error("empty record hash changed")
	}
}

func TestSaveChain_ReplacesByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.SaveChain(ctx, "clicks", testRecord("x"))
	if err != nil {
		t.Fatalf("first SaveChain() failed: %v", err)
	}
	second, err := s.SaveChain(ctx, "clicks", testRecord("y"))
	if err != nil {
		t.Fatalf("second SaveChain() failed: %v", err)
	}

	if first.ID != second.ID || first.Seq != second.Seq {
		t.Errorf("replace changed identity: %+v -> %+v", first, second)
	}
	if first.RecordHash == second.RecordHash {
		t.Error("replace kept the old hash")
	}

	got, _, err := s.LoadChain(ctx, "clicks")
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}
	if v := got.Targets["target0"].Value; v.(ir.IRObject)["label"] != ir.IRString("y") {
		t.Errorf("target not replaced: %v", v)
	}

	var rows int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM chain_entries`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Errorf("chain_entries has %d rows, want 2", rows)
	}
}

func TestSaveChain_RejectsEmptyName(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.SaveChain(context.Background(), "", testRecord("x")); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestLoadChain_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.LoadChain(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadChain() error = %v, want ErrNotFound", err)
	}
}

func TestListChains_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.SaveChain(ctx, name, testRecord(name)); err != nil {
			t.Fatalf("SaveChain(%s) failed: %v", name, err)
		}
	}

	infos, err := s.ListChains(ctx)
	if err != nil {
		t.Fatalf("ListChains() failed: %v", err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestListChains_Empty(t *testing.T) {
	s := createTestStore(t)
	infos, err := s.ListChains(context.Background())
	if err != nil {
		t.Fatalf("ListChains() failed: %v", err)
	}
	if infos == nil || len(infos) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", infos)
	}
}

func TestFindByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if _, err := s.SaveChain(ctx, name, testRecord("same")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.SaveChain(ctx, "c", testRecord("other")); err != nil {
		t.Fatal(err)
	}

	infos, err := s.FindByHash(ctx, ir.MustRecordID(testRecord("same")))
	if err != nil {
		t.Fatalf("FindByHash() failed: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "a" || infos[1].Name != "b" {
		t.Errorf("FindByHash() = %+v", infos)
	}
}

func TestFindTarget(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveChain(ctx, "one", testRecord("shared")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveChain(ctx, "two", testRecord("shared")); err != nil {
		t.Fatal(err)
	}

	hash, err := ir.ObjectHash(testRecord("shared").Targets["target0"])
	if err != nil {
		t.Fatal(err)
	}
	uses, err := s.FindTarget(ctx, hash)
	if err != nil {
		t.Fatalf("FindTarget() failed: %v", err)
	}
	want := []TargetUse{{Chain: "one", Slot: "target0"}, {Chain: "two", Slot: "target0"}}
	if len(uses) != len(want) || uses[0] != want[0] || uses[1] != want[1] {
		t.Errorf("FindTarget() = %+v, want %+v", uses, want)
	}
}

func TestDeleteChain(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveChain(ctx, "clicks", testRecord("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteChain(ctx, "clicks"); err != nil {
		t.Fatalf("DeleteChain() failed: %v", err)
	}

	// Foreign keys cascade to entries and targets.
	for _, table := range []string{"chains", "chain_entries", "chain_targets"} {
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after delete", table, n)
		}
	}

	if err := s.DeleteChain(ctx, "clicks"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteChain() error = %v, want ErrNotFound", err)
	}
}
