package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencySnapshot is the body served by /v1/perf/latency.
type LatencySnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Routes      []RouteCount `json:"routes,omitempty"`
}

// StageStats summarizes the most recent samples of one turn stage.
type StageStats struct {
	Stage      string  `json:"stage"`
	Samples    int     `json:"samples"`
	LastMS     float64 `json:"last_ms"`
	MeanMS     float64 `json:"mean_ms"`
	P50MS      float64 `json:"p50_ms"`
	P95MS      float64 `json:"p95_ms"`
	MaxMS      float64 `json:"max_ms"`
	BudgetMS   float64 `json:"budget_p95_ms,omitempty"`
	OverBudget bool    `json:"over_budget,omitempty"`
}

// RouteCount is how many turns took one backend for one routing rule.
type RouteCount struct {
	Backend string `json:"backend"`
	Rule    string `json:"rule"`
	Turns   int    `json:"turns"`
}

// p95 budgets per stage; stages without one are reported without a verdict.
var stageBudgetsMS = map[string]float64{
	"memory_query":   150,
	"memory_persist": 200,
	"generate_fast":  1500,
	"generate_deep":  6000,
	"turn_total":     8000,
}

type routeKey struct{ backend, rule string }

// ring keeps the last len(samples) values in milliseconds.
type ring struct {
	samples []float64
	head    int
	size    int
	last    float64
}

func (r *ring) push(ms float64) {
	r.samples[r.head] = ms
	r.head = (r.head + 1) % len(r.samples)
	if r.size < len(r.samples) {
		r.size++
	}
	r.last = ms
}

func (r *ring) sorted() []float64 {
	out := append([]float64(nil), r.samples[:r.size]...)
	sort.Float64s(out)
	return out
}

// latencyWindow holds per-stage rings and the route breakdown of handled turns.
type latencyWindow struct {
	mu       sync.Mutex
	capacity int
	stages   map[string]*ring
	routes   map[routeKey]int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = 256
	}
	return &latencyWindow{
		capacity: capacity,
		stages:   make(map[string]*ring),
		routes:   make(map[routeKey]int),
	}
}

func (w *latencyWindow) observe(stage string, d time.Duration) {
	if stage == "" || d < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.stages[stage]
	if !ok {
		r = &ring{samples: make([]float64, w.capacity)}
		w.stages[stage] = r
	}
	r.push(float64(d.Microseconds()) / 1000)
}

func (w *latencyWindow) countRoute(backend, rule string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.routes[routeKey{backend, rule}]++
}

func (w *latencyWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages = make(map[string]*ring)
	w.routes = make(map[routeKey]int)
}

func (w *latencyWindow) snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]StageStats, 0, len(w.stages)),
	}
	for name, r := range w.stages {
		if r.size == 0 {
			continue
		}
		sorted := r.sorted()
		sum := 0.0
		for _, v := range sorted {
			sum += v
		}
		st := StageStats{
			Stage:   name,
			Samples: len(sorted),
			LastMS:  round2(r.last),
			MeanMS:  round2(sum / float64(len(sorted))),
			P50MS:   round2(nearestRank(sorted, 0.50)),
			P95MS:   round2(nearestRank(sorted, 0.95)),
			MaxMS:   round2(sorted[len(sorted)-1]),
		}
		if budget, ok := stageBudgetsMS[name]; ok {
			st.BudgetMS = budget
			st.OverBudget = st.P95MS > budget
		}
		snap.Stages = append(snap.Stages, st)
	}
	sort.Slice(snap.Stages, func(i, j int) bool { return snap.Stages[i].Stage < snap.Stages[j].Stage })

	for k, n := range w.routes {
		snap.Routes = append(snap.Routes, RouteCount{Backend: k.backend, Rule: k.rule, Turns: n})
	}
	sort.Slice(snap.Routes, func(i, j int) bool {
		if snap.Routes[i].Backend != snap.Routes[j].Backend {
			return snap.Routes[i].Backend < snap.Routes[j].Backend
		}
		return snap.Routes[i].Rule < snap.Routes[j].Rule
	})
	return snap
}

// nearestRank returns the q-th percentile of sorted, which must be non-empty.
func nearestRank(sorted []float64, q float64) float64 {
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
