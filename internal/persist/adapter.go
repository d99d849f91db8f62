package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/ir"
)

// MethodResolver resolves persisted names into methods and callback types.
type MethodResolver interface {
	ResolveMethod(scope, typeName, name string) (*callback.Method, error)
	ResolveCallbackType(scope, name string) (callback.TypeID, error)
}

// TypeResolver resolves receiver types and checks receivers against them.
type TypeResolver interface {
	ResolveReceiverType(scope, name string) (callback.TypeID, error)
	IsInstanceOf(obj any, t callback.TypeID) bool
}

// TargetCodec saves live receivers and restores them at load time.
type TargetCodec interface {
	SaveTarget(obj any) (ir.Object, error)
	RestoreTarget(o ir.Object) (any, error)
}

// Platform is everything the adapter needs from its host.
// *catalog.Catalog implements it.
type Platform interface {
	MethodResolver
	TypeResolver
	TargetCodec
}

// TargetMode selects how Serialize stores receivers.
type TargetMode int

const (
	// SideTable stores each distinct receiver once in the record's targets
	// table and refers to it by name.
	SideTable TargetMode = iota

	// Inline embeds the receiver in every entry that uses it.
	Inline
)

// String returns the mode name used by the CLI.
func (m TargetMode) String() string {
	if m == Inline {
		return "inline"
	}
	return "side-table"
}

// Adapter converts callback chains to and from ChainRecords.
// An Adapter holds no per-call state and is safe for concurrent use.
type Adapter struct {
	platform Platform
	mode     TargetMode
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTargetMode selects how receivers are stored. The default is SideTable.
func WithTargetMode(m TargetMode) Option {
	return func(a *Adapter) {
		a.mode = m
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Adapter over platform.
func New(platform Platform, opts ...Option) *Adapter {
	a := &Adapter{
		platform: platform,
		mode:     SideTable,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Serialize flattens h into a record. Entries are emitted head first, so
// Entries[0] is the last callback to run and entry i links to i+1.
//
// The empty chain serializes to a record with no entries. A chain whose
// callbacks come from different callback types fails with CHAIN_MISMATCH,
// since it could not be loaded back as one chain.
func (a *Adapter) Serialize(h *callback.Handle) (ir.ChainRecord, error) {
	rec := ir.ChainRecord{
		Version: ir.RecordVersion,
		Head:    0,
		Entries: make([]ir.Entry, 0, h.Len()),
	}

	var kind callback.TypeID
	if h != nil {
		kind = h.Callback().Method.Kind
	}

	st := newSideTable()
	i := 0
	for cb := range h.Backward() {
		m := cb.Method
		if m.Kind != kind {
			return ir.ChainRecord{}, callback.NewError(callback.ErrCodeChainMismatch,
				"callback type %s differs from head callback type %s", m.Kind, kind).WithMethod(m.ID).AtEntry(i)
		}

		target, err := a.saveTarget(cb.Receiver, st)
		if err != nil {
			return ir.ChainRecord{}, fmt.Errorf("serialize entry %d (%s): %w", i, m.ID, err)
		}

		e := ir.Entry{
			CallbackType:  m.Kind.Name,
			CallbackScope: m.Kind.Scope,
			Target:        target,
			ReceiverScope: m.ID.Scope,
			ReceiverType:  m.ID.Type,
			Method:        m.ID.Name,
		}
		if i+1 < h.Len() {
			e.Next = ir.IntPtr(i + 1)
		}
		rec.Entries = append(rec.Entries, e)
		i++
	}

	if len(st.slots) > 0 {
		rec.Targets = st.slots
	}

	a.logger.Debug("chain serialized",
		"entries", len(rec.Entries),
		"targets", len(rec.Targets),
		"mode", a.mode.String())
	return rec, nil
}

func (a *Adapter) saveTarget(receiver any, st *sideTable) (ir.Target, error) {
	if receiver == nil {
		return ir.AbsentTarget(), nil
	}

	if a.mode == SideTable {
		if name, ok := st.lookup(receiver); ok {
			return ir.SideTableTarget(name), nil
		}
	}

	obj, err := a.platform.SaveTarget(receiver)
	if err != nil {
		return ir.Target{}, err
	}

	if a.mode == Inline {
		return ir.InlineTarget(obj), nil
	}
	return ir.SideTableTarget(st.add(receiver, obj)), nil
}

// Deserialize rebuilds a chain from rec. Entries are visited from
// rec.Head along Next links; the chain is rebuilt oldest first so its
// invocation order matches the recorded one.
//
// Each side-table slot is restored once, so entries sharing a slot share
// a receiver. A record with no entries yields the empty chain.
func (a *Adapter) Deserialize(rec ir.ChainRecord) (*callback.Handle, error) {
	if rec.Version != ir.RecordVersion {
		return nil, callback.NewError(callback.ErrCodeMalformedRecord,
			"unsupported record version %q (want %q)", rec.Version, ir.RecordVersion)
	}

	order, err := walkLinks(rec)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	head := rec.Entries[order[0]]
	kind, err := a.platform.ResolveCallbackType(head.CallbackScope, head.CallbackType)
	if err != nil {
		return nil, entryError(err, order[0], callback.MethodID{})
	}

	restored := make(map[string]any)
	parts := make([]*callback.Handle, len(order))
	for pos, idx := range order {
		h, err := a.restoreEntry(rec, idx, kind, restored)
		if err != nil {
			return nil, err
		}
		// order is head first; parts is invocation order.
		parts[len(order)-1-pos] = h
	}

	a.logger.Debug("chain deserialized",
		"entries", len(order),
		"targets", len(restored))
	return callback.CombineAll(parts...), nil
}

func (a *Adapter) restoreEntry(rec ir.ChainRecord, idx int, kind callback.TypeID, restored map[string]any) (*callback.Handle, error) {
	e := rec.Entries[idx]
	id := callback.MethodID{Scope: e.ReceiverScope, Type: e.ReceiverType, Name: e.Method}

	entryKind, err := a.platform.ResolveCallbackType(e.CallbackScope, e.CallbackType)
	if err != nil {
		return nil, entryError(err, idx, id)
	}
	if entryKind != kind {
		return nil, callback.NewError(callback.ErrCodeChainMismatch,
			"callback type %s differs from head callback type %s", entryKind, kind).WithMethod(id).AtEntry(idx)
	}

	m, err := a.platform.ResolveMethod(e.ReceiverScope, e.ReceiverType, e.Method)
	if err != nil {
		return nil, entryError(err, idx, id)
	}
	if !m.Public {
		return nil, callback.NewError(callback.ErrCodeNonPublicCallback, "method is not public").WithMethod(id).AtEntry(idx)
	}
	if m.Kind != kind {
		return nil, callback.NewError(callback.ErrCodeChainMismatch,
			"method is exposed as %s, entry declares %s", m.Kind, kind).WithMethod(id).AtEntry(idx)
	}

	target, err := a.restoreTarget(rec, e.Target, restored)
	if err != nil {
		return nil, entryError(err, idx, id)
	}

	if m.Static {
		if target != nil {
			return nil, callback.NewError(callback.ErrCodeTargetTypeMismatch, "static method has a target").WithMethod(id).AtEntry(idx)
		}
	} else {
		if target == nil {
			return nil, callback.NewError(callback.ErrCodeTargetTypeMismatch, "instance method has no target").WithMethod(id).AtEntry(idx)
		}
		rt, err := a.platform.ResolveReceiverType(e.ReceiverScope, e.ReceiverType)
		if err != nil {
			return nil, entryError(err, idx, id)
		}
		if !a.platform.IsInstanceOf(target, rt) {
			return nil, callback.NewError(callback.ErrCodeTargetTypeMismatch,
				"restored %s is not an instance of %s", reflect.TypeOf(target), rt).WithMethod(id).AtEntry(idx)
		}
	}

	h, err := callback.Construct(target, m)
	if err != nil {
		return nil, entryError(err, idx, id)
	}
	return h, nil
}

func (a *Adapter) restoreTarget(rec ir.ChainRecord, t ir.Target, restored map[string]any) (any, error) {
	switch t.Kind {
	case ir.TargetAbsent:
		return nil, nil

	case ir.TargetInline:
		if t.Inline == nil {
			return nil, callback.NewError(callback.ErrCodeMalformedRecord, "inline target has no object")
		}
		return a.platform.RestoreTarget(*t.Inline)

	case ir.TargetRef:
		if obj, ok := restored[t.Name]; ok {
			return obj, nil
		}
		slot, ok := rec.Targets[t.Name]
		if !ok {
			return nil, callback.NewError(callback.ErrCodeMalformedRecord, "side-table slot %q does not exist", t.Name)
		}
		obj, err := a.platform.RestoreTarget(slot)
		if err != nil {
			return nil, err
		}
		restored[t.Name] = obj
		return obj, nil

	default:
		return nil, callback.NewError(callback.ErrCodeMalformedRecord, "unknown target kind %q", t.Kind)
	}
}

// walkLinks returns entry indexes from rec.Head along Next links.
// Every entry must be visited exactly once.
func walkLinks(rec ir.ChainRecord) ([]int, error) {
	n := len(rec.Entries)
	if n == 0 {
		if rec.Head != 0 {
			return nil, callback.NewError(callback.ErrCodeMalformedRecord, "head %d set on a record without entries", rec.Head)
		}
		return nil, nil
	}
	if rec.Head < 0 || rec.Head >= n {
		return nil, callback.NewError(callback.ErrCodeMalformedRecord, "head %d out of range [0,%d)", rec.Head, n)
	}

	order := make([]int, 0, n)
	seen := make([]bool, n)
	for idx := rec.Head; ; {
		if seen[idx] {
			return nil, callback.NewError(callback.ErrCodeMalformedRecord, "cycle through entry %d", idx).AtEntry(idx)
		}
		seen[idx] = true
		order = append(order, idx)

		next := rec.Entries[idx].Next
		if next == nil {
			break
		}
		if *next < 0 || *next >= n {
			return nil, callback.NewError(callback.ErrCodeMalformedRecord, "next %d out of range [0,%d)", *next, n).AtEntry(idx)
		}
		idx = *next
	}

	if len(order) != n {
		for i, ok := range seen {
			if !ok {
				return nil, callback.NewError(callback.ErrCodeMalformedRecord, "entry is not reachable from head").AtEntry(i)
			}
		}
	}
	return order, nil
}

// entryError attaches entry context to err. Coded errors keep their code;
// anything else is reported as a malformed record.
func entryError(err error, idx int, id callback.MethodID) error {
	var ce *callback.Error
	if errors.As(err, &ce) {
		if ce.Entry < 0 {
			ce.Entry = idx
		}
		if ce.Scope == "" && ce.Type == "" && ce.Method == "" && id.Name != "" {
			ce.WithMethod(id)
		}
		return err
	}
	e := callback.NewError(callback.ErrCodeMalformedRecord, "cannot restore entry").AtEntry(idx).Wrap(err)
	if id.Name != "" {
		e.WithMethod(id)
	}
	return e
}
