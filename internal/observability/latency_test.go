package observability

import (
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.observe("generate_fast", 500*time.Millisecond)
	w.observe("generate_fast", 700*time.Millisecond)
	w.observe("generate_fast", 900*time.Millisecond)
	w.observe("generate_deep", 7*time.Second)

	snap := w.snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 2 || snap.Stages[0].Stage != "generate_deep" || snap.Stages[1].Stage != "generate_fast" {
		t.Fatalf("Stages = %+v, want generate_deep then generate_fast", snap.Stages)
	}
	fast := snap.Stages[1]
	if fast.Samples != 3 || fast.LastMS != 900 || fast.MeanMS != 700 || fast.MaxMS != 900 {
		t.Fatalf("fast stats = %+v", fast)
	}
	if fast.P50MS != 700 || fast.P95MS != 900 {
		t.Fatalf("fast percentiles p50=%.2f p95=%.2f, want 700 and 900", fast.P50MS, fast.P95MS)
	}
	if fast.BudgetMS != 1500 || fast.OverBudget {
		t.Fatalf("fast budget = %.0f over=%v, want 1500 and within", fast.BudgetMS, fast.OverBudget)
	}
	if deep := snap.Stages[0]; !deep.OverBudget {
		t.Fatalf("deep stage %+v should be over its budget", deep)
	}
}

func TestLatencyWindowKeepsMostRecent(t *testing.T) {
	w := newLatencyWindow(2)
	w.observe("turn_total", 1*time.Millisecond)
	w.observe("turn_total", 2*time.Millisecond)
	w.observe("turn_total", 3*time.Millisecond)

	st := w.snapshot().Stages[0]
	if st.Samples != 2 || st.MeanMS != 2.5 || st.LastMS != 3 {
		t.Fatalf("stats = %+v, want the last two samples", st)
	}
}

func TestLatencyWindowIgnoresUnnamedAndNegative(t *testing.T) {
	w := newLatencyWindow(4)
	w.observe("", time.Millisecond)
	w.observe("turn_total", -time.Millisecond)
	if snap := w.snapshot(); len(snap.Stages) != 0 {
		t.Fatalf("Stages = %+v, want none", snap.Stages)
	}
}

func TestRouteBreakdown(t *testing.T) {
	m := NewMetrics("jarvis_test")
	m.ObserveTurn("deep", "recall_cue", 2)
	m.ObserveTurn("deep", "recall_cue", 4)
	m.ObserveTurn("fast", "default", 6)

	routes := m.StageSnapshot().Routes
	want := []RouteCount{
		{Backend: "deep", Rule: "recall_cue", Turns: 2},
		{Backend: "fast", Rule: "default", Turns: 1},
	}
	if len(routes) != len(want) {
		t.Fatalf("Routes = %+v, want %+v", routes, want)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Fatalf("Routes[%d] = %+v, want %+v", i, routes[i], want[i])
		}
	}

	m.ResetStages()
	if snap := m.StageSnapshot(); len(snap.Routes) != 0 || len(snap.Stages) != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
}

func TestBackendCallDoesNotFeedLatencyWindow(t *testing.T) {
	m := NewMetrics("jarvis_test")
	m.ObserveBackendCall("fast", "ok", 20*time.Millisecond)
	if snap := m.StageSnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("Stages = %+v, want none from ObserveBackendCall", snap.Stages)
	}
	m.ObserveStage("generate_fast", 20*time.Millisecond)
	if snap := m.StageSnapshot(); len(snap.Stages) != 1 || snap.Stages[0].Samples != 1 {
		t.Fatalf("Stages = %+v, want one sample", snap.Stages)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("fast", "default", 2)
	m.ObserveBackendCall("fast", "ok", time.Millisecond)
	m.ObserveStage("turn_total", time.Millisecond)
	m.ObserveMemoryError("add")
	m.ObserveWakeEvent("detected")
	m.ResetStages()
	if snap := m.StageSnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("nil metrics snapshot has stages: %+v", snap)
	}
}

func TestMetricsInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics("jarvis_test")
	b := NewMetrics("jarvis_test")
	a.ObserveStage("turn_total", time.Millisecond)
	b.ObserveStage("generate_deep", 20*time.Millisecond)

	snap := b.StageSnapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].Stage != "generate_deep" {
		t.Fatalf("stages = %+v, want generate_deep only", snap.Stages)
	}
}
