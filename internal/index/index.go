// Package index keeps a local record of the runs started from this machine,
// so their results can be collected later without remembering run ids.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// CurrentVersion is the index schema version
	CurrentVersion = 1

	// DefaultLimit bounds how many runs are kept per index file.
	DefaultLimit = 200
)

// Index is the list of recorded runs.
type Index struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      []Entry   `json:"runs"`
}

// Entry is one recorded run. A run is identified by its portal and run id.
type Entry struct {
	RunID         string    `json:"run_id"`
	Portal        string    `json:"portal"`
	WorkflowID    int       `json:"workflow_id"`
	WorkflowTitle string    `json:"workflow_title,omitempty"`
	Name          string    `json:"name"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New returns an empty index.
func New() *Index {
	return &Index{Version: CurrentVersion, Runs: []Entry{}}
}

// DefaultPath returns the index location under XDG_STATE_HOME, falling
// back to ~/.local/state.
func DefaultPath() string {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "tavernaplayer", "runs.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "runs.json")
	}
	return filepath.Join(home, ".local", "state", "tavernaplayer", "runs.json")
}

// Load reads the index at path. A missing file is an empty index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	idx := New()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", path, err)
	}
	if idx.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported index version %d in %s", idx.Version, path)
	}
	return idx, nil
}

// Save writes the index to path, replacing the file atomically.
func (i *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	i.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Add records e, replacing an entry for the same run.
func (i *Index) Add(e Entry) {
	e.Portal = normalizePortal(e.Portal)
	if existing := i.Find(e.Portal, e.RunID); existing != nil {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = existing.CreatedAt
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
		*existing = e
		return
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	i.Runs = append(i.Runs, e)
}

// SetState records the last known state of a run. It reports whether the
// run was found.
func (i *Index) SetState(portal, runID, state string, at time.Time) bool {
	e := i.Find(portal, runID)
	if e == nil {
		return false
	}
	e.State = state
	e.UpdatedAt = at
	return true
}

// Find returns the entry for a run, or nil.
func (i *Index) Find(portal, runID string) *Entry {
	portal = normalizePortal(portal)
	for n := range i.Runs {
		if i.Runs[n].Portal == portal && i.Runs[n].RunID == runID {
			return &i.Runs[n]
		}
	}
	return nil
}

// List returns runs newest first. An empty portal lists every portal; a
// limit of zero or less returns all matches.
func (i *Index) List(portal string, limit int) []Entry {
	portal = normalizePortal(portal)

	var runs []Entry
	for _, e := range i.Runs {
		if portal == "" || e.Portal == portal {
			runs = append(runs, e)
		}
	}
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].CreatedAt.After(runs[b].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// Latest returns the most recently created run on portal, or nil.
func (i *Index) Latest(portal string) *Entry {
	runs := i.List(portal, 1)
	if len(runs) == 0 {
		return nil
	}
	return i.Find(runs[0].Portal, runs[0].RunID)
}

// Prune keeps only the newest limit runs.
func (i *Index) Prune(limit int) {
	if limit <= 0 || len(i.Runs) <= limit {
		return
	}
	i.Runs = i.List("", limit)
}

// Len returns the number of recorded runs.
func (i *Index) Len() int {
	return len(i.Runs)
}

func normalizePortal(portal string) string {
	return strings.TrimRight(portal, "/")
}
