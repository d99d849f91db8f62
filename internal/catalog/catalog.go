package catalog

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/ir"
)

// Catalog is a registry of scopes, receiver types, callback types and
// methods. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	scopes map[string]*scope

	// byGoType finds the registered receiver type of a live object.
	byGoType map[reflect.Type]*receiverType
}

type scope struct {
	types     map[string]*receiverType
	callbacks map[string]callback.TypeID
	methods   map[string]map[string]*callback.Method // type -> name -> method
}

type receiverType struct {
	id     callback.TypeID
	goType reflect.Type
	codec  Codec
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		scopes:   make(map[string]*scope),
		byGoType: make(map[reflect.Type]*receiverType),
	}
}

// AddScope registers a scope. Adding an existing scope is a no-op.
func (c *Catalog) AddScope(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scopes[name]; ok {
		return
	}
	c.scopes[name] = &scope{
		types:     make(map[string]*receiverType),
		callbacks: make(map[string]callback.TypeID),
		methods:   make(map[string]map[string]*callback.Method),
	}
}

// Scopes returns the registered scope names in sorted order.
func (c *Catalog) Scopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.scopes))
	for name := range c.scopes {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// RegisterType registers a receiver type. goType is the Go type live
// receivers have (usually a pointer type); codec saves and restores them.
func (c *Catalog) RegisterType(scopeName, name string, goType reflect.Type, codec Codec) (callback.TypeID, error) {
	id := callback.TypeID{Scope: scopeName, Name: name}
	if name == "" || goType == nil || codec == nil {
		return id, fmt.Errorf("register type %s: name, Go type and codec are required", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.scopeLocked(scopeName)
	if err != nil {
		return id, err
	}
	if _, dup := s.types[name]; dup {
		return id, fmt.Errorf("register type %s: already registered", id)
	}
	if other, dup := c.byGoType[goType]; dup {
		return id, fmt.Errorf("register type %s: %s already registered as %s", id, goType, other.id)
	}

	rt := &receiverType{id: id, goType: goType, codec: codec}
	s.types[name] = rt
	c.byGoType[goType] = rt
	return id, nil
}

// RegisterCallbackType registers a callback type, the category that all
// callbacks of one chain share.
func (c *Catalog) RegisterCallbackType(scopeName, name string) (callback.TypeID, error) {
	id := callback.TypeID{Scope: scopeName, Name: name}
	if name == "" {
		return id, fmt.Errorf("register callback type: empty name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.scopeLocked(scopeName)
	if err != nil {
		return id, err
	}
	s.callbacks[name] = id
	return id, nil
}

// RegisterMethod registers m under m.ID. The method's scope and callback
// type must already be registered. An instance method without a
// ReceiverType takes the Go type of its registered declaring type.
func (c *Catalog) RegisterMethod(m *callback.Method) error {
	if m == nil || m.ID.Name == "" || m.ID.Type == "" {
		return fmt.Errorf("register method: method id is incomplete")
	}
	if m.Fn == nil {
		return fmt.Errorf("register method %s: no implementation", m.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.scopeLocked(m.ID.Scope)
	if err != nil {
		return err
	}

	ks, err := c.scopeLocked(m.Kind.Scope)
	if err != nil {
		return fmt.Errorf("register method %s: %w", m.ID, err)
	}
	if _, ok := ks.callbacks[m.Kind.Name]; !ok {
		return callback.NewError(callback.ErrCodeMissingCallback, "callback type %s is not registered", m.Kind).WithMethod(m.ID)
	}

	reg := *m
	if !reg.Static && reg.ReceiverType == nil {
		if rt, ok := s.types[m.ID.Type]; ok {
			reg.ReceiverType = rt.goType
		}
	}

	byName := s.methods[m.ID.Type]
	if byName == nil {
		byName = make(map[string]*callback.Method)
		s.methods[m.ID.Type] = byName
	}
	if _, dup := byName[m.ID.Name]; dup {
		return fmt.Errorf("register method %s: already registered", m.ID)
	}
	byName[m.ID.Name] = &reg
	return nil
}

// Method returns the registered method for id, or nil.
func (c *Catalog) Method(id callback.MethodID) *callback.Method {
	m, err := c.ResolveMethod(id.Scope, id.Type, id.Name)
	if err != nil {
		return nil
	}
	return m
}

// ResolveMethod finds a method by scope, declaring type and name.
// Returns UNKNOWN_SCOPE or MISSING_CALLBACK errors.
func (c *Catalog) ResolveMethod(scopeName, typeName, name string) (*callback.Method, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, err := c.scopeLocked(scopeName)
	if err != nil {
		return nil, err
	}
	m, ok := s.methods[typeName][name]
	if !ok {
		return nil, callback.NewError(callback.ErrCodeMissingCallback, "method not found").
			WithMethod(callback.MethodID{Scope: scopeName, Type: typeName, Name: name})
	}
	return m, nil
}

// ResolveCallbackType finds a registered callback type.
func (c *Catalog) ResolveCallbackType(scopeName, name string) (callback.TypeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, err := c.scopeLocked(scopeName)
	if err != nil {
		return callback.TypeID{}, err
	}
	id, ok := s.callbacks[name]
	if !ok {
		e := callback.NewError(callback.ErrCodeMissingCallback, "callback type not found")
		e.Scope, e.Type = scopeName, name
		return callback.TypeID{}, e
	}
	return id, nil
}

// ResolveReceiverType finds a registered receiver type.
func (c *Catalog) ResolveReceiverType(scopeName, name string) (callback.TypeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rt, err := c.typeLocked(scopeName, name)
	if err != nil {
		return callback.TypeID{}, err
	}
	return rt.id, nil
}

// IsInstanceOf reports whether obj is a receiver of the registered type t.
func (c *Catalog) IsInstanceOf(obj any, t callback.TypeID) bool {
	if obj == nil {
		return false
	}
	c.mu.RLock()
	rt, err := c.typeLocked(t.Scope, t.Name)
	c.mu.RUnlock()
	if err != nil {
		return false
	}

	ot := reflect.TypeOf(obj)
	if rt.goType.Kind() == reflect.Interface {
		return ot.Implements(rt.goType)
	}
	return ot.AssignableTo(rt.goType)
}

// SaveTarget encodes a live receiver with the codec of its registered type.
func (c *Catalog) SaveTarget(obj any) (ir.Object, error) {
	if obj == nil {
		return ir.Object{}, fmt.Errorf("save target: nil receiver")
	}
	c.mu.RLock()
	rt, ok := c.byGoType[reflect.TypeOf(obj)]
	c.mu.RUnlock()
	if !ok {
		return ir.Object{}, callback.NewError(callback.ErrCodeTargetTypeMismatch, "no registered receiver type for %T", obj)
	}

	v, err := rt.codec.Save(obj)
	if err != nil {
		return ir.Object{}, fmt.Errorf("save target %s: %w", rt.id, err)
	}
	return ir.Object{Scope: rt.id.Scope, Type: rt.id.Name, Value: v}, nil
}

// RestoreTarget decodes a persisted receiver with the codec of its type.
func (c *Catalog) RestoreTarget(o ir.Object) (any, error) {
	c.mu.RLock()
	rt, err := c.typeLocked(o.Scope, o.Type)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	v := o.Value
	if v == nil {
		v = ir.IRNull{}
	}
	obj, err := rt.codec.Restore(v)
	if err != nil {
		return nil, fmt.Errorf("restore target %s: %w", rt.id, err)
	}
	return obj, nil
}

func (c *Catalog) scopeLocked(name string) (*scope, error) {
	s, ok := c.scopes[name]
	if !ok {
		e := callback.NewError(callback.ErrCodeUnknownScope, "scope %q is not registered", name)
		e.Scope = name
		return nil, e
	}
	return s, nil
}

func (c *Catalog) typeLocked(scopeName, name string) (*receiverType, error) {
	s, err := c.scopeLocked(scopeName)
	if err != nil {
		return nil, err
	}
	rt, ok := s.types[name]
	if !ok {
		e := callback.NewError(callback.ErrCodeMissingCallback, "receiver type not found")
		e.Scope, e.Type = scopeName, name
		return nil, e
	}
	return rt, nil
}

// Instance adapts a typed handler into a callback.Func for methods whose
// receivers are of type R.
func Instance[R any](fn func(ctx context.Context, receiver R, args ...any) (any, error)) callback.Func {
	return func(ctx context.Context, receiver any, args ...any) (any, error) {
		r, ok := receiver.(R)
		if !ok {
			return nil, fmt.Errorf("receiver %T is not %s", receiver, reflect.TypeFor[R]())
		}
		return fn(ctx, r, args...)
	}
}

// Static adapts a receiver-less handler into a callback.Func.
func Static(fn func(ctx context.Context, args ...any) (any, error)) callback.Func {
	return func(ctx context.Context, _ any, args ...any) (any, error) {
		return fn(ctx, args...)
	}
}
