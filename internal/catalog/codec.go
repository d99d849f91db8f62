package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/ir"
)

// Codec saves a receiver's state as an IR value and restores a receiver
// from it.
type Codec interface {
	Save(obj any) (ir.IRValue, error)
	Restore(v ir.IRValue) (any, error)
}

// JSONCodec stores receivers of type *T by value through encoding/json.
// Restored receivers are new objects: reference identity is not kept.
//
// Saved state must fit the IR value model, which has no floats. A float
// field holding a fractional value makes Save fail, and Serialize with it;
// integral values such as 2.0 encode as integers. Give such types their
// own Codec, or keep the value as a string or scaled integer.
type JSONCodec[T any] struct{}

// Save implements Codec.
func (JSONCodec[T]) Save(obj any) (ir.IRValue, error) {
	var v *T
	switch o := obj.(type) {
	case *T:
		v = o
	case T:
		v = &o
	default:
		return nil, fmt.Errorf("json codec: unexpected receiver type %T", obj)
	}
	if v == nil {
		return nil, fmt.Errorf("json codec: nil receiver")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var native any
	if err := dec.Decode(&native); err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return ir.FromNative(native)
}

// Restore implements Codec. It returns a *T.
func (JSONCodec[T]) Restore(v ir.IRValue) (any, error) {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return out, nil
}

// ObjectTable is a symbolic codec: receivers are saved as names bound with
// Bind, and restoring a name yields the very object that was bound. Use it
// for receivers that outlive a save/restore cycle, such as long-lived
// services.
type ObjectTable struct {
	mu     sync.RWMutex
	byName map[string]any
	byObj  map[any]string // keyed by callback.ReceiverKey
}

// NewObjectTable creates an empty table.
func NewObjectTable() *ObjectTable {
	return &ObjectTable{
		byName: make(map[string]any),
		byObj:  make(map[any]string),
	}
}

// Bind associates name with obj. obj must have an identity in the sense of
// callback.ReceiverKey, normally a pointer. Rebinding a name or an object
// replaces the old association.
func (t *ObjectTable) Bind(name string, obj any) error {
	if name == "" {
		return fmt.Errorf("object table: empty name")
	}
	if obj == nil {
		return fmt.Errorf("object table: nil object for %q", name)
	}
	key, ok := callback.ReceiverKey(obj)
	if !ok {
		return fmt.Errorf("object table: %T is not comparable", obj)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byName[name]; ok {
		oldKey, _ := callback.ReceiverKey(old)
		delete(t.byObj, oldKey)
	}
	if old, ok := t.byObj[key]; ok {
		delete(t.byName, old)
	}
	t.byName[name] = obj
	t.byObj[key] = name
	return nil
}

// Lookup returns the object bound to name.
func (t *ObjectTable) Lookup(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.byName[name]
	return obj, ok
}

// Save implements Codec.
func (t *ObjectTable) Save(obj any) (ir.IRValue, error) {
	key, ok := callback.ReceiverKey(obj)
	if obj == nil || !ok {
		return nil, fmt.Errorf("object table: %T cannot be bound", obj)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.byObj[key]
	if !ok {
		return nil, fmt.Errorf("object table: %T receiver is not bound", obj)
	}
	return ir.IRString(name), nil
}

// Restore implements Codec.
func (t *ObjectTable) Restore(v ir.IRValue) (any, error) {
	name, ok := v.(ir.IRString)
	if !ok {
		return nil, fmt.Errorf("object table: expected a string name, got %T", v)
	}
	obj, ok := t.Lookup(string(name))
	if !ok {
		return nil, fmt.Errorf("object table: no object named %q", string(name))
	}
	return obj, nil
}
