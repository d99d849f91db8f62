package callback

import (
	"context"
	"fmt"
	"hash/maphash"
	"reflect"
)

// MethodID identifies the function a callback invokes.
// Comparable and hashable; two bound callbacks with equal receivers and
// equal MethodIDs are the same callback.
type MethodID struct {
	Scope string `json:"scope"`
	Type  string `json:"type"`
	Name  string `json:"name"`
}

// String renders the id as scope:Type.Name.
func (id MethodID) String() string {
	return fmt.Sprintf("%s:%s.%s", id.Scope, id.Type, id.Name)
}

// DeclaringType returns the receiver type that declares the method.
func (id MethodID) DeclaringType() TypeID {
	return TypeID{Scope: id.Scope, Name: id.Type}
}

// TypeID identifies a receiver type or a callback type within a scope.
type TypeID struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

// String renders the id as scope:Name.
func (id TypeID) String() string {
	return fmt.Sprintf("%s:%s", id.Scope, id.Name)
}

// Func is the platform-supplied call capability behind a method.
// receiver is nil for static methods.
type Func func(ctx context.Context, receiver any, args ...any) (any, error)

// Method is a resolved, callable method.
type Method struct {
	// ID is the method's identity.
	ID MethodID

	// Kind is the callback type the method is exposed through. Chains mixing
	// kinds cannot be persisted as one record.
	Kind TypeID

	// Public reports whether the method is externally callable.
	Public bool

	// Static methods bind without a receiver.
	Static bool

	// ReceiverType is the Go type an instance receiver must be assignable
	// to. Nil accepts any non-nil receiver.
	ReceiverType reflect.Type

	// Fn performs the call.
	Fn Func
}

// accepts reports whether receiver provides m.
func (m *Method) accepts(receiver any) bool {
	if m.ReceiverType == nil {
		return true
	}
	t := reflect.TypeOf(receiver)
	if m.ReceiverType.Kind() == reflect.Interface {
		return t.Implements(m.ReceiverType)
	}
	return t.AssignableTo(m.ReceiverType)
}

// BoundCallback is one link of a chain: a receiver plus a method.
type BoundCallback struct {
	Receiver any
	Method   *Method
}

// Equal reports whether b and other bind the same method to the same
// receiver. Receivers compare by reference.
func (b BoundCallback) Equal(other BoundCallback) bool {
	if !sameReceiver(b.Receiver, other.Receiver) {
		return false
	}
	if b.Method == nil || other.Method == nil {
		return b.Method == other.Method
	}
	return b.Method.ID == other.Method.ID
}

// Hash returns a hash consistent with Equal.
func (b BoundCallback) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	if b.Method != nil {
		maphash.WriteComparable(&h, b.Method.ID)
	}
	if k, ok := ReceiverKey(b.Receiver); ok && k != nil {
		maphash.WriteComparable(&h, k)
	}
	return h.Sum64()
}

// Call invokes the bound method.
func (b BoundCallback) Call(ctx context.Context, args ...any) (any, error) {
	return b.Method.Fn(ctx, b.Receiver, args...)
}

// String renders the callback for logs and CLI output.
func (b BoundCallback) String() string {
	name := "<nil>"
	if b.Method != nil {
		name = b.Method.ID.String()
	}
	if b.Receiver == nil {
		return name
	}
	if reflect.TypeOf(b.Receiver).Kind() == reflect.Pointer {
		return fmt.Sprintf("%s@%p", name, b.Receiver)
	}
	return fmt.Sprintf("%s@%v", name, b.Receiver)
}

var hashSeed = maphash.MakeSeed()

// sameReceiver compares receivers by identity.
func sameReceiver(a, b any) bool {
	ka, okA := ReceiverKey(a)
	kb, okB := ReceiverKey(b)
	return okA && okB && ka == kb
}

// receiverRef identifies a map or func receiver by its type and the
// address it refers to.
type receiverRef struct {
	typ reflect.Type
	ptr uintptr
}

// ReceiverKey returns a comparable key identifying receiver. Pointers and
// other comparable values are their own key; maps and funcs are keyed by
// reference. The second result is false for receivers with no identity,
// such as slices or structs holding them.
//
// Func receivers are keyed by code pointer, so two closures over the same
// function literal share a key.
func ReceiverKey(receiver any) (any, bool) {
	if receiver == nil {
		return nil, true
	}
	v := reflect.ValueOf(receiver)
	switch v.Kind() {
	case reflect.Map, reflect.Func:
		return receiverRef{typ: v.Type(), ptr: v.Pointer()}, true
	}
	if !v.Comparable() {
		return nil, false
	}
	return receiver, true
}
