package harness

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Step int    `json:"step"`
	Op   string `json:"op"`
	Let  string `json:"let,omitempty"`

	// Chain is the resulting chain in invocation order for structural
	// steps, or the calls made for invoke steps.
	Chain []string `json:"chain"`

	Changed *bool  `json:"changed,omitempty"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
