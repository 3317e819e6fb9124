package recall

import (
	"sync"
	"unicode/utf8"
)

// Telemetry accumulates recall counters since process start. The
// coordinator reads it through Engine.Telemetry for the status
// surfaces; nothing here is persisted.
type Telemetry struct {
	mu      sync.Mutex
	recalls int64
	skipped int64
	docs    int64
	tokens  int64
	gates   map[string]int64
	paths   map[string]int64
}

// TelemetrySnapshot is the wire shape of the counters.
type TelemetrySnapshot struct {
	Recalls        int64            `json:"recalls"`
	Skipped        int64            `json:"skipped"`
	DocsReturned   int64            `json:"docsReturned"`
	EstTokens      int64            `json:"estTokens"`
	GateReasons    map[string]int64 `json:"gateReasons,omitempty"`
	PathCandidates map[string]int64 `json:"pathCandidates,omitempty"`
}

func newTelemetry() *Telemetry {
	return &Telemetry{
		gates: make(map[string]int64),
		paths: make(map[string]int64),
	}
}

// gate records a prompt that recall declined to serve.
func (t *Telemetry) gate(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped++
	if reason != "" {
		t.gates[reason]++
	}
}

// path records how many candidate blocks one search path produced.
func (t *Telemetry) path(name string, candidates int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths[name] += int64(candidates)
}

// done records a completed recall. Token cost is estimated from the
// context length, four runes per token.
func (t *Telemetry) done(docs int, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recalls++
	t.docs += int64(docs)
	t.tokens += int64(utf8.RuneCountInString(context) / 4)
}

// Snapshot copies the counters for serialization.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := TelemetrySnapshot{
		Recalls:      t.recalls,
		Skipped:      t.skipped,
		DocsReturned: t.docs,
		EstTokens:    t.tokens,
	}
	if len(t.gates) > 0 {
		snap.GateReasons = make(map[string]int64, len(t.gates))
		for k, v := range t.gates {
			snap.GateReasons[k] = v
		}
	}
	if len(t.paths) > 0 {
		snap.PathCandidates = make(map[string]int64, len(t.paths))
		for k, v := range t.paths {
			snap.PathCandidates[k] = v
		}
	}
	return snap
}
