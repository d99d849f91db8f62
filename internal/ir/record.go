package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TargetKind tags the variant held by a Target.
type TargetKind string

const (
	// TargetAbsent marks an entry bound to a type rather than an instance.
	TargetAbsent TargetKind = "absent"

	// TargetInline marks a target embedded directly in the entry.
	TargetInline TargetKind = "inline"

	// TargetRef marks a target stored in the record's side table.
	TargetRef TargetKind = "ref"
)

// ValidTargetKinds lists the allowed Target kinds.
var ValidTargetKinds = map[TargetKind]bool{
	TargetAbsent: true,
	TargetInline: true,
	TargetRef:    true,
}

// ChainRecord is the flat, order-preserving persisted form of an
// invocation chain. Entries[Head] is the most recently added callback;
// following Next links walks toward the oldest one.
type ChainRecord struct {
	Version string            `json:"version" yaml:"version"`
	Head    int               `json:"head" yaml:"head"`
	Entries []Entry           `json:"entries" yaml:"entries"`
	Targets map[string]Object `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// Entry is one bound callback of a persisted chain.
type Entry struct {
	CallbackType  string `json:"callback_type" yaml:"callback_type"`
	CallbackScope string `json:"callback_scope" yaml:"callback_scope"`

	Target Target `json:"target" yaml:"target"`

	ReceiverScope string `json:"receiver_scope" yaml:"receiver_scope"`
	ReceiverType  string `json:"receiver_type" yaml:"receiver_type"`
	Method        string `json:"method" yaml:"method"`

	// Next is the index of the entry invoked before this one.
	// Nil on the oldest entry.
	Next *int `json:"next,omitempty" yaml:"next,omitempty"`
}

// Target is the tagged union Inline(Object) | SideTableRef(name) | Absent.
type Target struct {
	Kind   TargetKind `json:"kind" yaml:"kind"`
	Inline *Object    `json:"inline,omitempty" yaml:"inline,omitempty"`
	Name   string     `json:"name,omitempty" yaml:"name,omitempty"`
}

// AbsentTarget returns the target of a type-bound entry.
func AbsentTarget() Target {
	return Target{Kind: TargetAbsent}
}

// InlineTarget returns a target embedding obj.
func InlineTarget(obj Object) Target {
	return Target{Kind: TargetInline, Inline: &obj}
}

// SideTableTarget returns a target referring to the named side-table slot.
func SideTableTarget(name string) Target {
	return Target{Kind: TargetRef, Name: name}
}

// TargetName returns the side-table slot name for the i-th allocated target.
func TargetName(i int) string {
	return fmt.Sprintf("target%d", i)
}

// Object is a persisted receiver: the scope and type used to restore it,
// plus the state saved by the type's codec.
type Object struct {
	Scope string  `json:"scope" yaml:"scope"`
	Type  string  `json:"type" yaml:"type"`
	Value IRValue `json:"value" yaml:"value"`
}

// UnmarshalJSON implements json.Unmarshaler for Object.
// Value is decoded through the IR rules (no floats).
func (o *Object) UnmarshalJSON(data []byte) error {
	var raw struct {
		Scope string          `json:"scope"`
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.Scope = raw.Scope
	o.Type = raw.Type
	o.Value = IRNull{}
	if len(raw.Value) > 0 {
		v, err := unmarshalIRValue(raw.Value)
		if err != nil {
			return fmt.Errorf("object %s/%s value: %w", raw.Scope, raw.Type, err)
		}
		o.Value = v
	}
	return nil
}

type yamlObject struct {
	Scope string `yaml:"scope"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// MarshalYAML implements yaml.Marshaler for Object.
func (o Object) MarshalYAML() (any, error) {
	return yamlObject{Scope: o.Scope, Type: o.Type, Value: ToNative(o.Value)}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Object.
func (o *Object) UnmarshalYAML(node *yaml.Node) error {
	var raw yamlObject
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := FromNative(raw.Value)
	if err != nil {
		return fmt.Errorf("line %d: object %s/%s value: %w", node.Line, raw.Scope, raw.Type, err)
	}
	o.Scope = raw.Scope
	o.Type = raw.Type
	o.Value = v
	return nil
}

// CanonicalMap converts the record into plain maps for MarshalCanonical.
// Keys match the JSON tags so canonical output decodes back into a
// ChainRecord with encoding/json.
func (r ChainRecord) CanonicalMap() map[string]any {
	entries := make([]any, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = e.canonicalMap()
	}

	m := map[string]any{
		"version": r.Version,
		"head":    r.Head,
		"entries": entries,
	}
	if len(r.Targets) > 0 {
		targets := make(map[string]any, len(r.Targets))
		for name, obj := range r.Targets {
			targets[name] = obj.CanonicalMap()
		}
		m["targets"] = targets
	}
	return m
}

func (e Entry) canonicalMap() map[string]any {
	target := map[string]any{"kind": string(e.Target.Kind)}
	if e.Target.Inline != nil {
		target["inline"] = e.Target.Inline.CanonicalMap()
	}
	if e.Target.Name != "" {
		target["name"] = e.Target.Name
	}

	m := map[string]any{
		"callback_type":  e.CallbackType,
		"callback_scope": e.CallbackScope,
		"target":         target,
		"receiver_scope": e.ReceiverScope,
		"receiver_type":  e.ReceiverType,
		"method":         e.Method,
	}
	if e.Next != nil {
		m["next"] = *e.Next
	}
	return m
}

// CanonicalMap converts the object into plain maps for MarshalCanonical.
func (o Object) CanonicalMap() map[string]any {
	var value IRValue = IRNull{}
	if o.Value != nil {
		value = o.Value
	}
	return map[string]any{
		"scope": o.Scope,
		"type":  o.Type,
		"value": value,
	}
}

// IntPtr returns a pointer to i, for building Entry.Next literals.
func IntPtr(i int) *int {
	return &i
}
