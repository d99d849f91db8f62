package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/multicast/internal/ir"
)

// ErrNotFound is returned when no chain has the requested name.
var ErrNotFound = errors.New("chain not found")

// ChainInfo describes a stored chain without its entries.
type ChainInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RecordHash string `json:"record_hash"`
	Version    string `json:"version"`
	Entries    int    `json:"entries"`
	Seq        int64  `json:"seq"`
}

// TargetUse locates a side-table slot inside a stored chain.
type TargetUse struct {
	Chain string `json:"chain"`
	Slot  string `json:"slot"`
}

// SaveChain stores rec under name in one transaction. Saving over an
// existing name replaces its record but keeps the chain's id and seq.
func (s *Store) SaveChain(ctx context.Context, name string, rec ir.ChainRecord) (ChainInfo, error) {
	if name == "" {
		return ChainInfo{}, fmt.Errorf("save chain: empty name")
	}
	hash, err := ir.RecordID(rec)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %q: begin: %w", name, err)
	}
	defer tx.Rollback()

	info := ChainInfo{Name: name, RecordHash: hash, Version: rec.Version, Entries: len(rec.Entries)}
	err = tx.QueryRowContext(ctx, `SELECT id, seq FROM chains WHERE name = ?`, name).Scan(&info.ID, &info.Seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		info.ID = s.ids.Generate()
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM chains`).Scan(&info.Seq); err != nil {
			return ChainInfo{}, fmt.Errorf("save chain %q: next seq: %w", name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chains (id, name, record_hash, version, head, seq)
			VALUES (?, ?, ?, ?, ?, ?)
		`, info.ID, name, hash, rec.Version, rec.Head, info.Seq)
		if err != nil {
			return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)
		}

	case err != nil:
		return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)

	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE chains SET record_hash = ?, version = ?, head = ? WHERE id = ?
		`, hash, rec.Version, rec.Head, info.ID)
		if err != nil {
			return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)
		}
		for _, table := range []string{"chain_entries", "chain_targets"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE chain_id = ?`, info.ID); err != nil {
				return ChainInfo{}, fmt.Errorf("save chain %q: clear %s: %w", name, table, err)
			}
		}
	}

	if err := insertEntries(ctx, tx, info.ID, rec.Entries); err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)
	}
	if err := insertTargets(ctx, tx, info.ID, rec.Targets); err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %q: commit: %w", name, err)
	}

	s.logger.Debug("chain saved", "name", name, "id", info.ID, "entries", info.Entries, "hash", hash)
	return info, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, chainID string, entries []ir.Entry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chain_entries
		(chain_id, idx, callback_type, callback_scope, target_kind, target_name, target_inline,
		 receiver_scope, receiver_type, method, next_idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare entries: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		var name, inline, next any
		if e.Target.Name != "" {
			name = e.Target.Name
		}
		if e.Target.Inline != nil {
			data, err := ir.MarshalCanonical(e.Target.Inline.CanonicalMap())
			if err != nil {
				return fmt.Errorf("entry %d inline target: %w", i, err)
			}
			inline = string(data)
		}
		if e.Next != nil {
			next = *e.Next
		}

		_, err := stmt.ExecContext(ctx, chainID, i, e.CallbackType, e.CallbackScope,
			string(e.Target.Kind), name, inline, e.ReceiverScope, e.ReceiverType, e.Method, next)
		if err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	return nil
}

func insertTargets(ctx context.Context, tx *sql.Tx, chainID string, targets map[string]ir.Object) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chain_targets (chain_id, name, scope, type, value, value_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare targets: %w", err)
	}
	defer stmt.Close()

	for name, obj := range targets {
		var value ir.IRValue = ir.IRNull{}
		if obj.Value != nil {
			value = obj.Value
		}
		data, err := ir.MarshalCanonical(value)
		if err != nil {
			return fmt.Errorf("target %s: %w", name, err)
		}
		hash, err := ir.ObjectHash(obj)
		if err != nil {
			return fmt.Errorf("target %s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, chainID, name, obj.Scope, obj.Type, string(data), hash); err != nil {
			return fmt.Errorf("insert target %s: %w", name, err)
		}
	}
	return nil
}

// LoadChain returns the record stored under name.
// Returns ErrNotFound if there is none.
func (s *Store) LoadChain(ctx context.Context, name string) (ir.ChainRecord, ChainInfo, error) {
	var (
		info ChainInfo
		rec  ir.ChainRecord
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, record_hash, version, head, seq,
		       (SELECT COUNT(*) FROM chain_entries WHERE chain_id = chains.id)
		FROM chains WHERE name = ?
	`, name).Scan(&info.ID, &info.Name, &info.RecordHash, &info.Version, &rec.Head, &info.Seq, &info.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ChainRecord{}, ChainInfo{}, fmt.Errorf("load chain %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return ir.ChainRecord{}, ChainInfo{}, fmt.Errorf("load chain %q: %w", name, err)
	}
	rec.Version = info.Version

	rec.Entries, err = s.loadEntries(ctx, info.ID)
	if err != nil {
		return ir.ChainRecord{}, ChainInfo{}, fmt.Errorf("load chain %q: %w", name, err)
	}
	rec.Targets, err = s.loadTargets(ctx, info.ID)
	if err != nil {
		return ir.ChainRecord{}, ChainInfo{}, fmt.Errorf("load chain %q: %w", name, err)
	}
	return rec, info, nil
}

func (s *Store) loadEntries(ctx context.Context, chainID string) ([]ir.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, callback_type, callback_scope, target_kind, target_name, target_inline,
		       receiver_scope, receiver_type, method, next_idx
		FROM chain_entries
		WHERE chain_id = ?
		ORDER BY idx ASC
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.Entry{}
	for rows.Next() {
		var (
			idx          int
			e            ir.Entry
			kind         string
			name, inline sql.NullString
			next         sql.NullInt64
		)
		if err := rows.Scan(&idx, &e.CallbackType, &e.CallbackScope, &kind, &name, &inline,
			&e.ReceiverScope, &e.ReceiverType, &e.Method, &next); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if idx != len(entries) {
			return nil, fmt.Errorf("entry index %d out of sequence", idx)
		}

		e.Target.Kind = ir.TargetKind(kind)
		e.Target.Name = name.String
		if inline.Valid {
			var obj ir.Object
			if err := json.Unmarshal([]byte(inline.String), &obj); err != nil {
				return nil, fmt.Errorf("entry %d inline target: %w", idx, err)
			}
			e.Target.Inline = &obj
		}
		if next.Valid {
			e.Next = ir.IntPtr(int(next.Int64))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (s *Store) loadTargets(ctx context.Context, chainID string) (map[string]ir.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, scope, type, value
		FROM chain_targets
		WHERE chain_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets map[string]ir.Object
	for rows.Next() {
		var name, scope, typ, value string
		if err := rows.Scan(&name, &scope, &typ, &value); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		v, err := ir.UnmarshalIRValue([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", name, err)
		}
		if targets == nil {
			targets = make(map[string]ir.Object)
		}
		targets[name] = ir.Object{Scope: scope, Type: typ, Value: v}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return targets, nil
}

// ListChains returns every stored chain in seq order.
func (s *Store) ListChains(ctx context.Context) ([]ChainInfo, error) {
	return s.queryInfos(ctx, `
		SELECT id, name, record_hash, version, seq,
		       (SELECT COUNT(*) FROM chain_entries WHERE chain_id = chains.id)
		FROM chains
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// FindByHash returns the chains whose record hashes to hash, in seq order.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]ChainInfo, error) {
	return s.queryInfos(ctx, `
		SELECT id, name, record_hash, version, seq,
		       (SELECT COUNT(*) FROM chain_entries WHERE chain_id = chains.id)
		FROM chains
		WHERE record_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
}

func (s *Store) queryInfos(ctx context.Context, query string, args ...any) ([]ChainInfo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer rows.Close()

	infos := []ChainInfo{}
	for rows.Next() {
		var info ChainInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.RecordHash, &info.Version, &info.Seq, &info.Entries); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	return infos, nil
}

// FindTarget returns every side-table slot holding an object with the
// given ir.ObjectHash, ordered by chain seq and slot name.
func (s *Store) FindTarget(ctx context.Context, objectHash string) ([]TargetUse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, t.name
		FROM chain_targets t
		JOIN chains c ON c.id = t.chain_id
		WHERE t.value_hash = ?
		ORDER BY c.seq ASC, t.name COLLATE BINARY ASC
	`, objectHash)
	if err != nil {
		return nil, fmt.Errorf("find target: %w", err)
	}
	defer rows.Close()

	uses := []TargetUse{}
	for rows.Next() {
		var u TargetUse
		if err := rows.Scan(&u.Chain, &u.Slot); err != nil {
			return nil, fmt.Errorf("scan target use: %w", err)
		}
		uses = append(uses, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate target uses: %w", err)
	}
	return uses, nil
}

// DeleteChain removes the chain stored under name along with its entries
// and targets. Returns ErrNotFound if there is none.
func (s *Store) DeleteChain(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chains WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete chain %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chain %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete chain %q: %w", name, ErrNotFound)
	}
	s.logger.Debug("chain deleted", "name", name)
	return nil
}
