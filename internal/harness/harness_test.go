package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestRun_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRun_OnClickTrace(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/onclick.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	invoke := result.Trace[1]
	assert.Equal(t, OpInvoke, invoke.Op)
	assert.Equal(t, []string{"x.OnClick", "y.OnClick"}, invoke.Chain)
	assert.Equal(t, "y.OnClick", invoke.Result)

	removeAll := result.Trace[4]
	assert.Equal(t, []string{"y.OnClick", "y.OnClick"}, removeAll.Chain)
	require.NotNil(t, removeAll.Changed)
	assert.True(t, *removeAll.Changed)

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, i, ev.Step)
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/failures.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := CanonicalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := CanonicalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectations(t *testing.T) {
	s := mustParse(t, `
name: wrong
description: "Every expectation here is wrong"
receivers: [x, y]
callbacks:
  A: { receiver: x, method: OnClick }
  B: { receiver: y, method: OnClick }
steps:
  - let: AB
    combine: [A, B]
    expect: { order: [y.OnClick, x.OnClick], empty: true, equals: A }
  - let: same
    remove: { from: AB, target: AB }
    expect: { changed: false }
  - invoke: AB
    expect: { result: x.OnClick, error: BOOM }
  - roundtrip: AB
    expect: { error: CHAIN_MISMATCH }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	checks := []string{
		"step 0 order",
		"step 0 empty",
		"step 0 equals",
		"step 1 changed",
		"step 2 error",
		"step 2 result",
		"step 3 error",
	}
	require.Len(t, result.Errors, len(checks))
	for i, check := range checks {
		assert.Contains(t, result.Errors[i], check)
	}
}

func TestRun_UnexpectedError(t *testing.T) {
	s := mustParse(t, `
name: unexpected
description: "A failing callback without an error expectation"
receivers: [x]
callbacks:
  A: { receiver: x, method: Explode, fails: true }
steps:
  - invoke: A
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "x.Explode failed")
	assert.Equal(t, "x.Explode failed", result.Trace[0].Error)
}

func TestRun_FailedStepLeavesNameUnbound(t *testing.T) {
	s := mustParse(t, `
name: unbound
description: "A roundtrip that fails does not bind its name"
receivers: [x]
callbacks:
  A: { receiver: x, method: OnClick }
  H: { receiver: x, method: hidden, private: true }
steps:
  - let: bad
    roundtrip: H
    expect: { error: NON_PUBLIC_CALLBACK }
  - invoke: bad
`)

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `chain "bad" is not bound`)
}

func TestRun_StaticCallbacks(t *testing.T) {
	s := mustParse(t, `
name: static
description: "Static callbacks have no receiver"
callbacks:
  R: { method: Reset }
steps:
  - let: RR
    combine: [R, R]
  - invoke: RR
    expect: { order: [Reset, Reset], result: Reset }
  - let: back
    roundtrip: RR
    expect: { equals: RR }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithLogger(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/onclick.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err = Run(s, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "chain serialized")
	assert.Contains(t, buf.String(), "scenario completed")
}
