package portal

import (
	"context"
	"sync"
	"time"

	"github.com/chazuruo/tavernaplayer/internal/bundle"
	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// RunID is the portal identifier of a run.
type RunID string

func (id RunID) String() string { return string(id) }

// State is the lifecycle state of a run.
type State string

const (
	StatePending   State = "pending"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// resultCollector drives a run to a terminal state and populates it.
type resultCollector interface {
	WaitForResults(ctx context.Context, run *Run) error
}

// Run is one submitted execution of a workflow.
type Run struct {
	ID         RunID
	WorkflowID int
	Name       string
	// Inputs is the effective input map: caller values plus defaults used.
	Inputs     map[string]any
	State      State
	StartTime  time.Time
	FinishTime time.Time
	Log        string

	collector resultCollector

	mu         sync.Mutex
	outputs    bundle.Outputs
	hasOutputs bool
}

func newRun(c resultCollector, id RunID, workflowID int, name string, inputs map[string]any) *Run {
	return &Run{
		ID:         id,
		WorkflowID: workflowID,
		Name:       name,
		Inputs:     inputs,
		State:      StatePending,
		collector:  c,
	}
}

// Outputs returns the decoded result tree, waiting for the run to finish on
// the first call. Later calls return the stored tree without contacting the
// portal.
func (r *Run) Outputs(ctx context.Context) (bundle.Outputs, error) {
	if out, ok := r.storedOutputs(); ok {
		return out, nil
	}
	if r.collector == nil {
		return nil, tperrors.Precondition("run %s is not attached to a client", r.ID)
	}
	if err := r.collector.WaitForResults(ctx, r); err != nil {
		return nil, err
	}
	out, _ := r.storedOutputs()
	return out, nil
}

// HasOutputs reports whether outputs have been retrieved.
func (r *Run) HasOutputs() bool {
	_, ok := r.storedOutputs()
	return ok
}

func (r *Run) storedOutputs() (bundle.Outputs, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs, r.hasOutputs
}

func (r *Run) setOutputs(out bundle.Outputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = out
	r.hasOutputs = true
}
