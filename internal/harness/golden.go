package harness

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pcd/internal/canon"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Capacity     int          `json:"capacity"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map for canonical JSON.
// Zero-valued optional fields are omitted per op so the golden output
// only carries what the op produced.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"op":      ev.Op,
			"session": ev.Session,
		}
		switch ev.Op {
		case OpSeek:
			m["offset"] = ev.Offset
			m["whence"] = ev.Whence
		case OpRead, OpWrite:
			m["count"] = ev.Count
			m["n"] = ev.N
		}
		if ev.Pos != nil {
			m["pos"] = *ev.Pos
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if len(ev.Data) > 0 {
			m["hex"] = hex.EncodeToString(ev.Data)
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"capacity":      s.Capacity,
		"trace":         traceList,
	}
}

// MarshalTrace returns the canonical JSON form of a trace.
func MarshalTrace(name string, capacity int, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Capacity: capacity, Trace: trace}
	return canon.Marshal(snapshot.toCanonicalMap())
}

// TraceJSON returns the canonical trace of a scenario run, the form
// golden files store.
func (s *Scenario) TraceJSON(result *Result) ([]byte, error) {
	return MarshalTrace(s.Name, capacityOf(s), result.Trace)
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	traceJSON, err := scenario.TraceJSON(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
