// Package entities holds the canonical entity set and merges roster snapshots
// into it, resolving addresses for entities that lack coordinates.
package entities

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/pkg/geocode"
)

// Forgetter is implemented by resolvers that can drop a cached resolution.
type Forgetter interface {
	Forget(address string) bool
}

// MergeResult summarizes one Merge call.
type MergeResult struct {
	// Entities is the reconciled set: snapshot row order first, then entities
	// missing from the snapshot in their previous order.
	Entities   []model.Entity
	Created    int
	Updated    int
	Resolved   int
	Unresolved int
	Requests   int
	Pauses     int
}

// Option configures a Store.
type Option func(*Store)

// WithStatusLabels replaces the roster label table.
func WithStatusLabels(labels map[string]model.Status) Option {
	return func(s *Store) {
		if len(labels) > 0 {
			s.labels = labels
		}
	}
}

// WithCooldown sets the pacing: pause after every `every` geocoding requests.
func WithCooldown(every int, pause time.Duration) Option {
	return func(s *Store) {
		s.cooldownEvery = every
		s.cooldown = pause
	}
}

// WithSleep replaces the cooldown sleeper.
func WithSleep(fn SleepFunc) Option {
	return func(s *Store) {
		s.sleep = fn
	}
}

// Store is the canonical set of entities keyed by id. Merge calls are
// serialized; readers may run concurrently with a merge.
type Store struct {
	resolver geocode.Resolver

	labels        map[string]model.Status
	cooldownEvery int
	cooldown      time.Duration
	sleep         SleepFunc

	mergeMu sync.Mutex

	mu    sync.RWMutex
	byID  map[string]*model.Entity
	order []string
}

// New creates an empty Store resolving through resolver.
func New(resolver geocode.Resolver, opts ...Option) *Store {
	s := &Store{
		resolver:      resolver,
		labels:        model.DefaultStatusLabels,
		cooldownEvery: 10,
		cooldown:      100 * time.Millisecond,
		sleep:         sleepCtx,
		byID:          make(map[string]*model.Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type pending struct {
	id      string
	address string
}

// Merge folds a roster snapshot into the store. New ids become entities;
// existing ids only take the new status, plus any field that was empty
// before. Entities still lacking coordinates are then resolved, pausing per
// the cooldown. Resolution failures are recorded on the entity and do not
// fail the merge; only ctx cancellation does.
func (s *Store) Merge(ctx context.Context, records []model.Record) (MergeResult, error) {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	var res MergeResult
	queue := s.apply(records, &res)

	pacer := NewPacer(s.cooldownEvery, s.cooldown, s.sleep)
	var err error
	for _, p := range queue {
		if err = ctx.Err(); err != nil {
			break
		}

		r, rerr := s.resolver.Resolve(ctx, p.address)
		s.record(p, r, rerr, &res)

		if r.Requested {
			if err = pacer.Observe(ctx); err != nil {
				break
			}
		}
	}
	res.Requests = pacer.Requests()
	res.Pauses = pacer.Pauses()

	s.mu.RLock()
	res.Entities = s.snapshotLocked()
	for _, e := range res.Entities {
		if !e.Renderable() {
			res.Unresolved++
		}
	}
	s.mu.RUnlock()

	zap.L().Info("entities: merge complete",
		zap.Int("records", len(records)),
		zap.Int("entities", len(res.Entities)),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("resolved", res.Resolved),
		zap.Int("unresolved", res.Unresolved),
		zap.Int("requests", res.Requests),
		zap.Int("pauses", res.Pauses),
	)
	return res, err
}

// apply updates the entity table from records under the write lock and
// returns the entities to resolve, in row order.
func (s *Store) apply(records []model.Record, res *MergeResult) []pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(records))
	order := make([]string, 0, len(s.order)+len(records))
	var queue []pending

	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			zap.L().Warn("entities: skipping record", zap.Int("row", rec.Row), zap.String("id", rec.ID))
			continue
		}
		seen[rec.ID] = true
		order = append(order, rec.ID)

		e, ok := s.byID[rec.ID]
		if !ok {
			e = s.create(rec)
			s.byID[rec.ID] = e
			res.Created++
		} else if s.update(e, rec) {
			res.Updated++
		}

		if e.Coordinates == nil && e.Address != "" {
			queue = append(queue, pending{id: e.ID, address: e.Address})
		}
	}

	for _, id := range s.order {
		if !seen[id] {
			order = append(order, id)
		}
	}
	s.order = order
	return queue
}

func (s *Store) create(rec model.Record) *model.Entity {
	e := &model.Entity{
		ID:          rec.ID,
		Name:        rec.Name,
		Address:     rec.Address,
		Status:      model.ParseStatus(rec.Status, s.labels),
		StatusLabel: rec.Status,
	}
	if rec.Coordinates != nil {
		c := *rec.Coordinates
		e.Coordinates = &c
	} else if e.Address == "" {
		e.LastError = string(geocode.NotApplicable)
	}
	return e
}

// update applies the mutable fields of rec to e and reports whether the
// status changed.
func (s *Store) update(e *model.Entity, rec model.Record) bool {
	changed := false
	status := model.ParseStatus(rec.Status, s.labels)
	if status != e.Status || rec.Status != e.StatusLabel {
		e.Status = status
		e.StatusLabel = rec.Status
		changed = true
	}

	if e.Name == "" && rec.Name != "" {
		e.Name = rec.Name
	}

	switch {
	case rec.Address == "" || rec.Address == e.Address:
	case e.Address == "":
		e.Address = rec.Address
		if e.LastError == string(geocode.NotApplicable) {
			e.LastError = ""
		}
	default:
		zap.L().Warn("entities: ignoring address change",
			zap.String("id", e.ID),
			zap.String("address", e.Address),
			zap.String("incoming", rec.Address),
		)
	}

	if e.Coordinates == nil && rec.Coordinates != nil {
		c := *rec.Coordinates
		e.Coordinates = &c
		e.LastError = ""
	}
	return changed
}

// record stores one resolution outcome. The entity may have been
// invalidated or filled in meanwhile; coordinates are only set on an entity
// that still lacks them and still holds the resolved address.
func (s *Store) record(p pending, r geocode.Resolution, err error, res *MergeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[p.id]
	if !ok || e.Coordinates != nil || e.Address != p.address {
		return
	}
	if err != nil {
		e.LastError = string(geocode.KindOf(err))
		if e.LastError == "" {
			e.LastError = err.Error()
		}
		if r.Requested {
			zap.L().Warn("entities: resolution failed",
				zap.String("id", e.ID),
				zap.String("address", p.address),
				zap.Error(err),
			)
		}
		return
	}
	e.Coordinates = &model.Coordinates{Lat: r.Latitude, Lon: r.Longitude}
	e.LastError = ""
	res.Resolved++
}

func (s *Store) snapshotLocked() []model.Entity {
	out := make([]model.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Snapshot returns a copy of every entity in output order.
func (s *Store) Snapshot() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns a copy of the entity with id.
func (s *Store) Get(id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Entity{}, false
	}
	return e.Clone(), true
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Invalidate clears the coordinates of entity id and drops the resolver's
// cached answer for its address, so the next merge resolves it afresh. It
// reports whether the entity exists.
func (s *Store) Invalidate(id string) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	e.Coordinates = nil
	e.LastError = ""
	addr := e.Address
	s.mu.Unlock()

	if f, ok := s.resolver.(Forgetter); ok && addr != "" {
		f.Forget(addr)
	}
	zap.L().Info("entities: invalidated", zap.String("id", id), zap.String("address", addr))
	return true
}
