// Package timeline accumulates the stages a task goes through into a list of
// labeled time intervals.
//
// An Accumulator tracks a single subject (task) at a time: observing a different
// subject discards the previous timeline. While the subject is not terminal a clock
// refreshes the current time so open stages can show their elapsed time.
package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/model"
)

// DefaultRecentEntries is the number of entries usually rendered.
const DefaultRecentEntries = 8

// State is a point in time copy of the accumulator state.
type State struct {
	SubjectID string
	Timeline  []model.TimelineEntry
	Now       time.Time
	Terminal  bool
}

// Recent returns the last n entries of the timeline.
func (s State) Recent(n int) []model.TimelineEntry {
	if n <= 0 || n >= len(s.Timeline) {
		return s.Timeline
	}
	return s.Timeline[len(s.Timeline)-n:]
}

// AccumulatorConfig is the configuration of the accumulator.
type AccumulatorConfig struct {
	// TickInterval is the refresh interval of the clock.
	TickInterval time.Duration
	// NowFunc returns the wall clock time.
	NowFunc func() time.Time
	// OnUpdate is called with the new state after every timeline change and clock tick.
	// Calls are serialized, and none happens after the terminal update or after Close.
	// It can call State but not Observe or Close.
	OnUpdate func(State)
	Logger   log.Logger
}

func (c *AccumulatorConfig) defaults() error {
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval can't be negative")
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "timeline.Accumulator"})
	return nil
}

// Accumulator builds the phase timeline of a subject from a stream of observations.
// It is safe for concurrent use.
type Accumulator struct {
	tickInterval time.Duration
	nowFunc      func() time.Time
	onUpdate     func(State)
	logger       log.Logger

	// deliverMu serializes OnUpdate calls and is always taken before mu.
	deliverMu  sync.Mutex
	mu         sync.Mutex
	subjectID  string
	hasSubject bool
	entries    []model.TimelineEntry
	now        time.Time
	terminal   bool
	closed     bool
	stopClock  context.CancelFunc
}

// NewAccumulator returns a new accumulator.
func NewAccumulator(cfg AccumulatorConfig) (*Accumulator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Accumulator{
		tickInterval: cfg.TickInterval,
		nowFunc:      cfg.NowFunc,
		onUpdate:     cfg.OnUpdate,
		logger:       cfg.Logger,
		now:          cfg.NowFunc(),
	}, nil
}

// Observe applies an observation to the timeline.
func (a *Accumulator) Observe(obs model.Observation) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	changed := false
	if !a.hasSubject || obs.SubjectID != a.subjectID {
		if a.hasSubject {
			a.logger.Debugf("Subject changed from %q to %q, resetting timeline", a.subjectID, obs.SubjectID)
		}
		changed = a.hasSubject
		a.subjectID = obs.SubjectID
		a.hasSubject = true
		a.entries = nil
		a.terminal = false
	}

	// Termination is final for the subject.
	if a.terminal {
		a.mu.Unlock()
		return
	}

	eventAt := obs.EventAt
	if eventAt.IsZero() {
		eventAt = a.nowFunc()
	}

	if obs.Terminal {
		terminalAt := eventAt
		if obs.TerminalAt != nil && !obs.TerminalAt.IsZero() {
			terminalAt = *obs.TerminalAt
		}
		a.closeOpenEntry(terminalAt)
		a.terminal = true
		a.now = terminalAt
		a.stopClockLocked()
		changed = true
	} else {
		if a.appendStage(obs.StageID, obs.StageLabel, eventAt) {
			changed = true
		}
		a.startClockLocked()
	}

	state := a.stateLocked()
	a.mu.Unlock()

	if changed && a.onUpdate != nil {
		a.onUpdate(state)
	}
}

// State returns a copy of the current state.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// ClockRunning returns true while the periodic clock refresh is active.
func (a *Accumulator) ClockRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopClock != nil
}

// Close stops the clock. Once it returns OnUpdate is not called anymore and observations
// are ignored. It must not be called from OnUpdate.
func (a *Accumulator) Close() {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.stopClockLocked()
}

// appendStage opens a new entry unless the stage is the one already open.
func (a *Accumulator) appendStage(id, label string, at time.Time) bool {
	if id == "" || label == "" {
		return false
	}

	if n := len(a.entries); n > 0 {
		last := a.entries[n-1]
		if last.ID == id && last.EndedAt == nil {
			return false
		}
		// Start times never go back.
		if at.Before(last.StartedAt) {
			at = last.StartedAt
		}
	}

	a.closeOpenEntry(at)
	a.entries = append(a.entries, model.TimelineEntry{
		ID:        id,
		Label:     label,
		StartedAt: at,
	})

	return true
}

func (a *Accumulator) closeOpenEntry(at time.Time) {
	n := len(a.entries)
	if n == 0 || a.entries[n-1].EndedAt != nil {
		return
	}

	if at.Before(a.entries[n-1].StartedAt) {
		at = a.entries[n-1].StartedAt
	}
	a.entries[n-1].EndedAt = &at
}

func (a *Accumulator) startClockLocked() {
	if a.stopClock != nil {
		return
	}

	a.now = a.nowFunc()
	ctx, cancel := context.WithCancel(context.Background())
	a.stopClock = cancel
	go a.runClock(ctx)
}

func (a *Accumulator) stopClockLocked() {
	if a.stopClock == nil {
		return
	}
	a.stopClock()
	a.stopClock = nil
}

func (a *Accumulator) runClock(ctx context.Context) {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Accumulator) tick(ctx context.Context) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	// The clock may have been stopped while waiting for the locks.
	if ctx.Err() != nil || a.closed || a.terminal {
		a.mu.Unlock()
		return
	}
	a.now = a.nowFunc()
	state := a.stateLocked()
	a.mu.Unlock()

	if a.onUpdate != nil {
		a.onUpdate(state)
	}
}

func (a *Accumulator) stateLocked() State {
	entries := make([]model.TimelineEntry, len(a.entries))
	for i, e := range a.entries {
		if e.EndedAt != nil {
			endedAt := *e.EndedAt
			e.EndedAt = &endedAt
		}
		entries[i] = e
	}

	return State{
		SubjectID: a.subjectID,
		Timeline:  entries,
		Now:       a.now,
		Terminal:  a.terminal,
	}
}
