package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thermlab/thermctl/internal/testutil/testlog"
)

const (
	testStackBytes = 16 * 1024
	testHeapBytes  = 64 * 1024
)

func newTestEngine(t *testing.T, caps Capabilities) *Engine {
	t.Helper()
	e := New(caps, testlog.Logger(t))
	t.Cleanup(e.Close)
	return e
}

func mustRun(t *testing.T, e *Engine, module []byte, entry string) Report {
	t.Helper()
	require.NoError(t, e.Load(module))
	require.NoError(t, e.Instantiate(testStackBytes, testHeapBytes))
	return e.Run(entry)
}

func TestLoadRejectsMalformedModule(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	err := e.Load([]byte("not a wasm module"))
	require.ErrorIs(t, err, ErrLoad)

	// A failed load is fatal to that attempt only.
	rep := mustRun(t, e, moduleCompletes(), "main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
}

func TestRunCompletes(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	rep := mustRun(t, e, moduleCompletes(), "main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
	require.NoError(t, rep.Err)
}

func TestRunEntryPointNotFound(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	rep := mustRun(t, e, moduleNoMain(), "main")
	require.Equal(t, OutcomeNotFound, rep.Outcome)
}

func TestRunTrapReported(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	rep := mustRun(t, e, moduleTraps(), "main")
	require.Equal(t, OutcomeTrapped, rep.Outcome)
	require.Error(t, rep.Err)
	require.NotEmpty(t, rep.Detail)
}

func TestHostCallsReachCapabilities(t *testing.T) {
	var captured float64
	caps := Capabilities{
		ProcessVariable: func() float64 { return 42.5 },
		SetActuator:     func(v float64) { captured = v },
	}
	e := newTestEngine(t, caps)
	rep := mustRun(t, e, moduleHostRoundTrip(), "main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
	require.Equal(t, float64(float32(42.5)), captured)
}

func TestGuestLogDelivered(t *testing.T) {
	var got string
	caps := Capabilities{Log: func(msg string) { got = msg }}
	e := newTestEngine(t, caps)
	rep := mustRun(t, e, moduleLogs("hello from guest"), "main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
	require.Equal(t, "hello from guest", got)
}

func TestStopTerminatesSleepingGuest(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	require.NoError(t, e.Load(moduleSleepLoop()))
	require.NoError(t, e.Instantiate(testStackBytes, testHeapBytes))

	done := make(chan Report, 1)
	go func() { done <- e.Run("main") }()

	time.Sleep(50 * time.Millisecond)
	e.Stop()

	select {
	case rep := <-done:
		require.Equal(t, OutcomeTerminated, rep.Outcome)
		require.NoError(t, rep.Err)
	case <-time.After(5 * time.Second):
		t.Fatalf("guest did not unwind after stop")
	}
}

func TestHeapBudgetEnforced(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	require.NoError(t, e.Load(moduleWideMemory()))

	err := e.Instantiate(testStackBytes, 64*1024)
	require.ErrorIs(t, err, ErrBudget)

	// The same module fits a two-page budget.
	require.NoError(t, e.Load(moduleWideMemory()))
	require.NoError(t, e.Instantiate(testStackBytes, 128*1024))
	rep := e.Run("main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
}

func TestInstantiateRequiresModuleAndBudgets(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	require.ErrorIs(t, e.Instantiate(testStackBytes, testHeapBytes), ErrNoModule)

	require.NoError(t, e.Load(moduleCompletes()))
	require.ErrorIs(t, e.Instantiate(0, testHeapBytes), ErrInstantiate)
	require.ErrorIs(t, e.Instantiate(testStackBytes, -1), ErrInstantiate)
}

func TestRunWithoutInstance(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	rep := e.Run("main")
	require.Equal(t, OutcomeException, rep.Outcome)
	require.ErrorIs(t, rep.Err, ErrNoInstance)
}

// After any run outcome a fresh load must succeed: teardown leaks would
// surface here as instantiation failures.
func TestTeardownAllowsReloadAfterEveryOutcome(t *testing.T) {
	cases := []struct {
		name    string
		module  []byte
		entry   string
		outcome Outcome
	}{
		{"completed", moduleCompletes(), "main", OutcomeCompleted},
		{"not found", moduleNoMain(), "main", OutcomeNotFound},
		{"trapped", moduleTraps(), "main", OutcomeTrapped},
	}

	e := newTestEngine(t, Capabilities{})
	for _, tc := range cases {
		rep := mustRun(t, e, tc.module, tc.entry)
		require.Equal(t, tc.outcome, rep.Outcome, tc.name)

		rep = mustRun(t, e, moduleCompletes(), "main")
		require.Equal(t, OutcomeCompleted, rep.Outcome, "reload after %s", tc.name)
	}
}

func TestStopScopeResetsOnLoad(t *testing.T) {
	e := newTestEngine(t, Capabilities{})
	require.NoError(t, e.Load(moduleSleepLoop()))
	require.NoError(t, e.Instantiate(testStackBytes, testHeapBytes))

	done := make(chan Report, 1)
	go func() { done <- e.Run("main") }()
	time.Sleep(20 * time.Millisecond)
	e.Stop()
	<-done

	// A stale stop must not bleed into the next program.
	rep := mustRun(t, e, moduleCompletes(), "main")
	require.Equal(t, OutcomeCompleted, rep.Outcome)
}
