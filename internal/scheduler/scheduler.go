// Package scheduler drives sync cycles: fetch the roster, merge it into the
// entity store, and draw the reconciled set on the render sink.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/entities"
	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/internal/render"
	"github.com/sells-group/rostermap/internal/roster"
	"github.com/sells-group/rostermap/internal/store"
)

// ErrCycleInProgress is returned by RunOnce while another cycle is running.
var ErrCycleInProgress = eris.New("scheduler: cycle already in progress")

// State is the phase of the current cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateResolving
	StateReconciled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateResolving:
		return "resolving"
	case StateReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// EntityStore is the part of entities.Store the scheduler uses.
type EntityStore interface {
	Merge(ctx context.Context, records []model.Record) (entities.MergeResult, error)
}

// Report describes one finished cycle.
type Report struct {
	CycleID    string         `json:"cycle_id" yaml:"cycle_id"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Records    int            `json:"records" yaml:"records"`
	Created    int            `json:"created" yaml:"created"`
	Updated    int            `json:"updated" yaml:"updated"`
	Resolved   int            `json:"resolved" yaml:"resolved"`
	Unresolved int            `json:"unresolved" yaml:"unresolved"`
	Requests   int            `json:"requests" yaml:"requests"`
	Pauses     int            `json:"pauses" yaml:"pauses"`
	Upserted   int            `json:"upserted" yaml:"upserted"`
	Removed    int            `json:"removed" yaml:"removed"`
	// Stale is set when the roster could not be fetched and Entities is the
	// previous reconciled set.
	Stale    bool           `json:"stale,omitempty" yaml:"stale,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Entities []model.Entity `json:"entities" yaml:"entities"`
}

func (r Report) stats() store.CycleStats {
	return store.CycleStats{
		Records:    r.Records,
		Entities:   len(r.Entities),
		Created:    r.Created,
		Updated:    r.Updated,
		Resolved:   r.Resolved,
		Unresolved: r.Unresolved,
		Requests:   r.Requests,
		Pauses:     r.Pauses,
		Upserted:   r.Upserted,
		Removed:    r.Removed,
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCycleLog records every cycle's outcome.
func WithCycleLog(l store.CycleLog) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.history = l
		}
	}
}

// Scheduler runs at most one cycle at a time.
type Scheduler struct {
	source  roster.Source
	store   EntityStore
	sink    render.Sink
	history store.CycleLog

	running atomic.Bool
	state   atomic.Int32
	skipped atomic.Int64
	wg      sync.WaitGroup

	mu         sync.RWMutex
	last       *Report
	reconciled []model.Entity
	rendered   map[string]bool
}

// New creates a Scheduler.
func New(source roster.Source, es EntityStore, sink render.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		store:    es,
		sink:     sink,
		history:  store.NopLog{},
		rendered: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the phase of the running cycle, or StateIdle.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Skipped returns how many ticks were dropped because a cycle was running.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// LastReport returns the most recent cycle report.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// RunOnce runs one full cycle. If the roster cannot be fetched the returned
// report carries the set reconciled by the last successful cycle, the sink is left alone and the
// error wraps the source error.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrCycleInProgress
	}
	defer s.running.Store(false)
	defer s.setState(StateIdle)

	rep := Report{CycleID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := zap.L().With(zap.String("cycle_id", rep.CycleID))
	if err := s.history.Start(ctx, rep.CycleID); err != nil {
		log.Warn("scheduler: record cycle start", zap.Error(err))
	}

	s.setState(StateFetching)
	records, err := s.source.Fetch(ctx)
	if err != nil {
		rep.Stale = true
		rep.Entities = s.lastReconciled()
		return s.fail(ctx, log, rep, eris.Wrap(err, "scheduler: fetch roster"))
	}
	rep.Records = len(records)

	s.setState(StateResolving)
	mr, err := s.store.Merge(ctx, records)
	rep.Entities = mr.Entities
	rep.Created, rep.Updated = mr.Created, mr.Updated
	rep.Resolved, rep.Unresolved = mr.Resolved, mr.Unresolved
	rep.Requests, rep.Pauses = mr.Requests, mr.Pauses
	if err != nil {
		return s.fail(ctx, log, rep, eris.Wrap(err, "scheduler: merge"))
	}

	s.setState(StateReconciled)
	rep.Upserted, rep.Removed = s.render(mr.Entities)
	rep.FinishedAt = time.Now().UTC()

	if err := s.history.Complete(ctx, rep.CycleID, rep.stats()); err != nil {
		log.Warn("scheduler: record cycle completion", zap.Error(err))
	}
	s.remember(rep)
	s.mu.Lock()
	s.reconciled = cloneAll(mr.Entities)
	s.mu.Unlock()

	log.Info("scheduler: cycle complete",
		zap.Int("records", rep.Records),
		zap.Int("entities", len(rep.Entities)),
		zap.Int("upserted", rep.Upserted),
		zap.Int("removed", rep.Removed),
		zap.Int("unresolved", rep.Unresolved),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

func (s *Scheduler) fail(ctx context.Context, log *zap.Logger, rep Report, err error) (Report, error) {
	rep.FinishedAt = time.Now().UTC()
	rep.Error = err.Error()
	if herr := s.history.Fail(context.WithoutCancel(ctx), rep.CycleID, err); herr != nil {
		log.Warn("scheduler: record cycle failure", zap.Error(herr))
	}
	s.remember(rep)
	log.Error("scheduler: cycle failed",
		zap.Bool("source_unavailable", roster.IsUnavailable(err)),
		zap.Error(err),
	)
	return rep, err
}

// lastReconciled copies the set from the last successful cycle. Later
// invalidations do not show in it.
func (s *Scheduler) lastReconciled() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.reconciled)
}

func cloneAll(set []model.Entity) []model.Entity {
	out := make([]model.Entity, 0, len(set))
	for _, e := range set {
		out = append(out, e.Clone())
	}
	return out
}

func (s *Scheduler) remember(rep Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &rep
}

// render upserts every renderable entity and removes markers drawn by the
// previous cycle that are no longer renderable.
func (s *Scheduler) render(set []model.Entity) (upserted, removed int) {
	current := make(map[string]bool, len(set))
	for _, e := range set {
		if !e.Renderable() {
			continue
		}
		current[e.ID] = true
		s.sink.UpsertMarker(e.ID, *e.Coordinates, render.MarkerFor(e))
		upserted++
	}

	for _, e := range set {
		if s.rendered[e.ID] && !current[e.ID] {
			s.sink.RemoveMarker(e.ID)
			removed++
		}
	}
	s.rendered = current
	return upserted, removed
}

// Start runs a cycle immediately, then one per interval until ctx is done.
// A tick that fires while a cycle is still running is skipped. Start waits
// for the in-flight cycle before returning.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return eris.Errorf("scheduler: interval must be positive, got %s", interval)
	}

	zap.L().Info("scheduler: starting", zap.Duration("interval", interval))
	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			zap.L().Info("scheduler: stopped")
			return nil
		case <-ticker.C:
			if s.running.Load() {
				s.skipTick()
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	if eris.Is(err, ErrCycleInProgress) {
		s.skipTick()
	}
}

func (s *Scheduler) skipTick() {
	n := s.skipped.Add(1)
	zap.L().Warn("scheduler: previous cycle still running, skipping tick",
		zap.String("state", s.State().String()),
		zap.Int64("skipped", n),
	)
}
