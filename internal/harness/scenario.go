package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EmptyChain is the reserved chain name that always refers to the empty
// chain.
const EmptyChain = "empty"

// Scenario defines a conformance scenario: a set of named receivers and
// callbacks, then a sequence of chain operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TargetMode selects how roundtrip steps store receivers:
	// "side_table" (default) or "inline".
	TargetMode string `yaml:"target_mode,omitempty"`

	// Receivers lists the widget receivers, by name.
	Receivers []string `yaml:"receivers"`

	// Callbacks maps a name to a single bound callback. Each becomes a
	// length-1 chain usable in steps.
	Callbacks map[string]CallbackDecl `yaml:"callbacks"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// CallbackDecl binds a method to a receiver. A declaration without a
// receiver binds a static method.
type CallbackDecl struct {
	Receiver string `yaml:"receiver,omitempty"`
	Method   string `yaml:"method"`

	// Kind is the callback type the method is exposed through.
	// Defaults to "Handler".
	Kind string `yaml:"kind,omitempty"`

	// Private marks the method as not externally callable.
	Private bool `yaml:"private,omitempty"`

	// Fails makes every call of the method return an error.
	Fails bool `yaml:"fails,omitempty"`
}

// Static reports whether the declaration binds a static method.
func (d CallbackDecl) Static() bool {
	return d.Receiver == ""
}

// Step is one chain operation. Exactly one of Combine, Remove, RemoveAll,
// Roundtrip and Invoke is set.
type Step struct {
	// Let binds the step's resulting chain to a name.
	Let string `yaml:"let,omitempty"`

	Combine   []string  `yaml:"combine,omitempty"`
	Remove    *RemoveOp `yaml:"remove,omitempty"`
	RemoveAll *RemoveOp `yaml:"remove_all,omitempty"`
	Roundtrip string    `yaml:"roundtrip,omitempty"`
	Invoke    string    `yaml:"invoke,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// RemoveOp names the chain to remove from and the sequence to remove.
type RemoveOp struct {
	From   string `yaml:"from"`
	Target string `yaml:"target"`
}

// Expect lists the checks for one step. Unset fields are not checked.
type Expect struct {
	// Order is the expected invocation order of the resulting chain, or
	// for invoke steps, the calls actually made. Entries are
	// "receiver.Method" or "Method" for static callbacks.
	Order []string `yaml:"order,omitempty"`

	// Empty expects the resulting chain to be empty.
	Empty *bool `yaml:"empty,omitempty"`

	// Changed expects remove and remove_all to report a change.
	Changed *bool `yaml:"changed,omitempty"`

	// Equals names a chain the result must equal.
	Equals string `yaml:"equals,omitempty"`

	// Error is an error code, or a substring of the error message, the
	// step must fail with.
	Error string `yaml:"error,omitempty"`

	// Result is the value an invoke step must return.
	Result string `yaml:"result,omitempty"`
}

// Op returns the step's operation name.
func (s Step) Op() string {
	switch {
	case len(s.Combine) > 0:
		return OpCombine
	case s.Remove != nil:
		return OpRemove
	case s.RemoveAll != nil:
		return OpRemoveAll
	case s.Roundtrip != "":
		return OpRoundtrip
	case s.Invoke != "":
		return OpInvoke
	}
	return ""
}

// Step operations.
const (
	OpCombine   = "combine"
	OpRemove    = "remove"
	OpRemoveAll = "remove_all"
	OpRoundtrip = "roundtrip"
	OpInvoke    = "invoke"
)

// Target modes.
const (
	TargetModeSideTable = "side_table"
	TargetModeInline    = "inline"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "step:" vs "steps:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the *.yaml and *.yml files under dir in lexical
// order. filter, when non-empty, is a filepath.Match pattern applied to
// the file name without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// validateScenario checks required fields and that every name a step uses
// is defined before the step runs.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	switch s.TargetMode {
	case "", TargetModeSideTable, TargetModeInline:
	default:
		return fmt.Errorf("unknown target_mode %q", s.TargetMode)
	}

	receivers := make(map[string]bool, len(s.Receivers))
	for _, r := range s.Receivers {
		if r == "" {
			return fmt.Errorf("receivers: empty name")
		}
		if receivers[r] {
			return fmt.Errorf("receivers: duplicate %q", r)
		}
		receivers[r] = true
	}

	defined := map[string]bool{EmptyChain: true}
	methods := make(map[string]CallbackDecl)
	for _, name := range sortedNames(s.Callbacks) {
		d := s.Callbacks[name]
		if name == EmptyChain {
			return fmt.Errorf("callbacks: %q is reserved", EmptyChain)
		}
		if d.Method == "" {
			return fmt.Errorf("callbacks[%s]: method is required", name)
		}
		if !d.Static() && !receivers[d.Receiver] {
			return fmt.Errorf("callbacks[%s]: unknown receiver %q", name, d.Receiver)
		}

		// One method per name and binding style, so declarations that share
		// a method must agree on its attributes.
		key := methodKey(d)
		if prev, ok := methods[key]; ok && (prev.kind() != d.kind() || prev.Private != d.Private || prev.Fails != d.Fails) {
			return fmt.Errorf("callbacks[%s]: method %s declared with conflicting attributes", name, d.Method)
		}
		methods[key] = d
		defined[name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, defined); err != nil {
			return err
		}
		if step.Let != "" {
			if step.Let == EmptyChain {
				return fmt.Errorf("steps[%d]: %q is reserved", i, EmptyChain)
			}
			defined[step.Let] = true
		}
	}
	return nil
}

func validateStep(i int, step Step, defined map[string]bool) error {
	ops := 0
	for _, set := range []bool{len(step.Combine) > 0, step.Remove != nil, step.RemoveAll != nil, step.Roundtrip != "", step.Invoke != ""} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one operation is required, got %d", i, ops)
	}

	var refs []string
	switch step.Op() {
	case OpCombine:
		refs = step.Combine
	case OpRemove:
		refs = []string{step.Remove.From, step.Remove.Target}
	case OpRemoveAll:
		refs = []string{step.RemoveAll.From, step.RemoveAll.Target}
	case OpRoundtrip:
		refs = []string{step.Roundtrip}
	case OpInvoke:
		refs = []string{step.Invoke}
		if step.Let != "" {
			return fmt.Errorf("steps[%d]: invoke does not produce a chain to bind", i)
		}
	}
	if step.Expect != nil && step.Expect.Equals != "" {
		refs = append(refs, step.Expect.Equals)
	}

	for _, ref := range refs {
		if !defined[ref] {
			return fmt.Errorf("steps[%d]: %q is not defined", i, ref)
		}
	}
	return nil
}

func (d CallbackDecl) kind() string {
	if d.Kind == "" {
		return "Handler"
	}
	return d.Kind
}

func methodKey(d CallbackDecl) string {
	if d.Static() {
		return staticType + "." + d.Method
	}
	return widgetType + "." + d.Method
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
