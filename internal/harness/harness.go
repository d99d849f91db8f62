package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/catalog"
	"github.com/roach88/multicast/internal/persist"
	"github.com/roach88/multicast/internal/testutil"
)

const (
	harnessScope = "harness"
	widgetType   = "Widget"
	staticType   = "Static"
)

// Widget is the receiver type scenarios bind callbacks to. Widgets are
// persisted by name, so a roundtrip restores the very same widgets.
type Widget struct {
	Name string
}

// Harness executes one scenario against a fresh catalog.
type Harness struct {
	catalog *catalog.Catalog
	widgets *catalog.ObjectTable
	adapter *persist.Adapter
	clock   *testutil.DeterministicClock
	logger  *slog.Logger

	// chains holds callbacks and let-bound step results by name.
	chains map[string]*callback.Handle

	// calls collects the labels of callbacks run by the current invoke step.
	calls []string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. By default the harness logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own catalog, widgets and logical clock, so runs
// are isolated and produce identical traces. Expectation failures are
// reported in the result; the returned error is reserved for scenarios
// that cannot be executed at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := newHarness(scenario, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up scenario %s: %w", scenario.Name, err)
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass)
	return result, nil
}

func newHarness(s *Scenario, opts ...Option) (*Harness, error) {
	h := &Harness{
		catalog: catalog.New(),
		widgets: catalog.NewObjectTable(),
		clock:   testutil.NewDeterministicClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		chains:  map[string]*callback.Handle{EmptyChain: nil},
	}
	for _, opt := range opts {
		opt(h)
	}

	mode := persist.SideTable
	if s.TargetMode == TargetModeInline {
		mode = persist.Inline
	}
	h.adapter = persist.New(h.catalog, persist.WithTargetMode(mode), persist.WithLogger(h.logger))

	h.catalog.AddScope(harnessScope)
	if _, err := h.catalog.RegisterType(harnessScope, widgetType, reflect.TypeFor[*Widget](), h.widgets); err != nil {
		return nil, err
	}

	widgets := make(map[string]*Widget, len(s.Receivers))
	for _, name := range s.Receivers {
		w := &Widget{Name: name}
		if err := h.widgets.Bind(name, w); err != nil {
			return nil, err
		}
		widgets[name] = w
	}

	for _, name := range sortedNames(s.Callbacks) {
		d := s.Callbacks[name]
		m, err := h.method(d)
		if err != nil {
			return nil, fmt.Errorf("callback %s: %w", name, err)
		}

		var receiver any
		if !d.Static() {
			receiver = widgets[d.Receiver]
		}
		cb, err := callback.Construct(receiver, m)
		if err != nil {
			return nil, fmt.Errorf("callback %s: %w", name, err)
		}
		h.chains[name] = cb
	}
	return h, nil
}

// method returns the registered method for d, registering it and its
// callback type on first use.
func (h *Harness) method(d CallbackDecl) (*callback.Method, error) {
	typeName := widgetType
	if d.Static() {
		typeName = staticType
	}
	id := callback.MethodID{Scope: harnessScope, Type: typeName, Name: d.Method}
	if m := h.catalog.Method(id); m != nil {
		return m, nil
	}

	kind, err := h.catalog.RegisterCallbackType(harnessScope, d.kind())
	if err != nil {
		return nil, err
	}

	fails := d.Fails
	m := &callback.Method{
		ID:     id,
		Kind:   kind,
		Public: !d.Private,
		Static: d.Static(),
		Fn: func(_ context.Context, receiver any, _ ...any) (any, error) {
			label := callLabel(receiver, d.Method)
			h.calls = append(h.calls, label)
			if fails {
				return nil, fmt.Errorf("%s failed", label)
			}
			return label, nil
		},
	}
	if err := h.catalog.RegisterMethod(m); err != nil {
		return nil, err
	}
	return h.catalog.Method(id), nil
}

func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) error {
	ev := TraceEvent{
		Seq:  h.clock.Next(),
		Step: i,
		Op:   step.Op(),
		Let:  step.Let,
	}

	var (
		out    *callback.Handle
		opErr  error
		bindOK = true
	)
	switch ev.Op {
	case OpCombine:
		parts := make([]*callback.Handle, len(step.Combine))
		for j, name := range step.Combine {
			c, err := h.lookup(name)
			if err != nil {
				return err
			}
			parts[j] = c
		}
		out = callback.CombineAll(parts...)

	case OpRemove, OpRemoveAll:
		op := step.Remove
		remove := callback.Remove
		if ev.Op == OpRemoveAll {
			op = step.RemoveAll
			remove = callback.RemoveAll
		}
		from, err := h.lookup(op.From)
		if err != nil {
			return err
		}
		target, err := h.lookup(op.Target)
		if err != nil {
			return err
		}
		var changed bool
		out, changed = remove(from, target)
		ev.Changed = &changed

	case OpRoundtrip:
		in, err := h.lookup(step.Roundtrip)
		if err != nil {
			return err
		}
		out, opErr = h.roundtrip(in)
		bindOK = opErr == nil

	case OpInvoke:
		in, err := h.lookup(step.Invoke)
		if err != nil {
			return err
		}
		h.calls = []string{}
		r, err := in.Invoke(ctx)
		opErr = err
		if s, ok := r.(string); ok {
			ev.Result = s
		}
		ev.Chain = h.calls
		bindOK = false

	default:
		return fmt.Errorf("no operation")
	}

	if ev.Op != OpInvoke {
		ev.Chain = chainLabels(out)
	}
	if opErr != nil {
		ev.Error = errorLabel(opErr)
	}
	if step.Let != "" && bindOK {
		h.chains[step.Let] = out
	}

	h.logger.Debug("step completed",
		"step", i,
		"op", ev.Op,
		"let", step.Let,
		"chain", ev.Chain,
		"error", ev.Error)

	result.addEvent(ev)
	for _, err := range h.checkExpect(i, step, ev, out, opErr, result.Trace) {
		result.AddError(err.Error())
	}
	return nil
}

// roundtrip persists c as a canonical JSON document and loads it back.
func (h *Harness) roundtrip(c *callback.Handle) (*callback.Handle, error) {
	rec, err := h.adapter.Serialize(c)
	if err != nil {
		return nil, err
	}
	data, err := persist.EncodeJSON(rec)
	if err != nil {
		return nil, err
	}
	decoded, err := persist.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	if verrs := persist.Validate(decoded); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return h.adapter.Deserialize(decoded)
}

func (h *Harness) lookup(name string) (*callback.Handle, error) {
	c, ok := h.chains[name]
	if !ok {
		return nil, fmt.Errorf("chain %q is not bound (did its step fail?)", name)
	}
	return c, nil
}

// chainLabels renders c in invocation order.
func chainLabels(c *callback.Handle) []string {
	out := []string{}
	for _, cb := range c.All() {
		out = append(out, callLabel(cb.Receiver, cb.Method.ID.Name))
	}
	return out
}

func callLabel(receiver any, method string) string {
	if w, ok := receiver.(*Widget); ok {
		return w.Name + "." + method
	}
	return method
}

// errorLabel is the error code for coded errors and the message otherwise.
func errorLabel(err error) string {
	var cbErr *callback.Error
	if errors.As(err, &cbErr) {
		return string(cbErr.Code)
	}
	return err.Error()
}
