package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mpalmer/goalplan/internal/stages"
)

// Pipeline step names as they appear in traces and logs.
const (
	StepGoalAnalysis  = "goal_analysis"
	StepDecomposition = "task_decomposition"
	StepScoring       = "priority_scoring"
	StepSchedule      = "schedule_construction"
	StepReflection    = "reflection"
	StepReplanning    = "replanning"
	StepAssembled     = "plan_assembled"
)

// TraceEntry records one pipeline step: which path produced its artifact and
// a short human-readable detail.
type TraceEntry struct {
	Step      string        `json:"step"`
	Source    stages.Source `json:"source"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Trace is the ordered record of one pipeline run. It is returned alongside
// the plan so callers can tell which parts were generated and which degraded
// to fallbacks.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
}

func (t *Trace) record(step string, source stages.Source, detail string) {
	t.Entries = append(t.Entries, TraceEntry{
		Step:      step,
		Source:    source,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// FallbackSteps lists the steps that ran on the deterministic path.
func (t *Trace) FallbackSteps() []string {
	var steps []string
	for _, e := range t.Entries {
		if e.Source == stages.SourceFallback {
			steps = append(steps, e.Step)
		}
	}
	return steps
}

// TraceLogger appends trace entries to a JSONL file, one object per line.
// Safe for concurrent use.
type TraceLogger struct {
	mu   sync.Mutex
	path string
}

// NewTraceLogger creates a logger that appends to the given path. The file
// is created on first write.
func NewTraceLogger(path string) *TraceLogger {
	return &TraceLogger{path: path}
}

// Log appends one entry.
func (l *TraceLogger) Log(e TraceEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening trace log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding trace entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing trace entry: %w", err)
	}
	return nil
}
