package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	RunRunning   = "running"
	RunFinalized = "finalized"
	RunFailed    = "failed"
)

// RunState tracks one submitted pipeline run.
type RunState struct {
	RunID       string
	Pipeline    string
	UserID      string
	Broadcaster *Broadcaster
	Cancel      context.CancelCauseFunc
	StartedAt   time.Time

	mu    sync.Mutex
	final string
	err   error
	done  bool
}

// SetResult records the run's terminal outcome.
func (rs *RunState) SetResult(final string, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.final = final
	rs.err = err
	rs.done = true
}

func (rs *RunState) Status() RunStatus {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	status := RunStatus{
		RunID:     rs.RunID,
		Pipeline:  rs.Pipeline,
		UserID:    rs.UserID,
		State:     RunRunning,
		StartedAt: rs.StartedAt,
	}
	if rs.done {
		if rs.err != nil {
			status.State = RunFailed
			status.FailureReason = rs.err.Error()
		} else {
			status.State = RunFinalized
			status.Final = rs.final
		}
	}
	if rs.Broadcaster != nil {
		if history := rs.Broadcaster.History(); len(history) > 0 {
			last := history[len(history)-1]
			status.LastAuthor = last.Author
			t := last.Time
			status.LastEventAt = &t
		}
	}
	return status
}

// RunRegistry tracks the runs submitted to this server instance.
type RunRegistry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*RunState)}
}

// Register adds a run. Returns an error if the ID is already taken.
func (r *RunRegistry) Register(rs *RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[rs.RunID]; exists {
		return fmt.Errorf("run %s already exists", rs.RunID)
	}
	r.runs[rs.RunID] = rs
	return nil
}

func (r *RunRegistry) Get(runID string) (*RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.runs[runID]
	return rs, ok
}

// List returns all run IDs in sorted order.
func (r *RunRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelAll cancels every run with the given reason.
func (r *RunRegistry) CancelAll(reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.runs {
		if rs.Cancel != nil {
			rs.Cancel(fmt.Errorf("%s", reason))
		}
	}
}
