package portal

import (
	"context"
	"fmt"
	"sync"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// Descriptor describes a workflow registered with the portal.
type Descriptor struct {
	ID          int    `json:"id" yaml:"id"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	Title       string `json:"title" yaml:"title"`
}

// catalogEntry is one element of GET /workflows. Pointers mark keys the
// portal must send.
type catalogEntry struct {
	ID          *int    `json:"id"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	Title       *string `json:"title"`
}

func (e catalogEntry) descriptor() (Descriptor, error) {
	if e.ID == nil || e.Category == nil {
		return Descriptor{}, fmt.Errorf("%w: %w", tperrors.ErrMalformed, tperrors.Precondition("workflow identifier and category must be specified"))
	}
	d := Descriptor{ID: *e.ID, Category: *e.Category}
	if e.Description != nil {
		d.Description = *e.Description
	}
	if e.Title != nil {
		d.Title = *e.Title
	}
	return d, nil
}

// templateSource is what a Workflow needs from its client.
type templateSource interface {
	RunTemplate(ctx context.Context, workflowID int) (*RunTemplate, error)
	RunWorkflow(ctx context.Context, workflowID int, name string, inputs map[string]any) (*Run, error)
}

// Workflow is a handle on a registered workflow.
type Workflow struct {
	Descriptor

	source templateSource

	mu       sync.Mutex
	template *RunTemplate
}

func newWorkflow(src templateSource, d Descriptor) *Workflow {
	return &Workflow{Descriptor: d, source: src}
}

// RunTemplate returns the workflow's run template, fetching it once.
func (w *Workflow) RunTemplate(ctx context.Context) (*RunTemplate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.template != nil {
		return w.template, nil
	}
	t, err := w.source.RunTemplate(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w.template = t
	return t, nil
}

// Run submits a run of this workflow and waits for its results.
func (w *Workflow) Run(ctx context.Context, name string, inputs map[string]any) (*Run, error) {
	return w.source.RunWorkflow(ctx, w.ID, name, inputs)
}
