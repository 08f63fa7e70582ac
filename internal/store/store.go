// Package store records the outcome of sync cycles. It never holds entity
// state; a restart always begins from an empty entity set.
package store

import (
	"context"
	"time"
)

// CycleStatus is the outcome of a sync cycle.
type CycleStatus string

const (
	CycleRunning  CycleStatus = "running"
	CycleComplete CycleStatus = "complete"
	CycleFailed   CycleStatus = "failed"
)

// CycleStats are the counters of a completed cycle.
type CycleStats struct {
	Records    int `json:"records"`
	Entities   int `json:"entities"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Requests   int `json:"requests"`
	Pauses     int `json:"pauses"`
	Upserted   int `json:"upserted"`
	Removed    int `json:"removed"`
}

// Cycle is one row of cycle history.
type Cycle struct {
	ID         string      `json:"id" yaml:"id"`
	Status     CycleStatus `json:"status" yaml:"status"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Stats      *CycleStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// CycleLog persists cycle outcomes.
type CycleLog interface {
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, stats CycleStats) error
	Fail(ctx context.Context, id string, cause error) error
	// List returns the most recent cycles first.
	List(ctx context.Context, limit int) ([]Cycle, error)
	Close() error
}

// Open returns a SQLite cycle log for dsn, or a NopLog when dsn is empty.
func Open(ctx context.Context, dsn string) (CycleLog, error) {
	if dsn == "" {
		return NopLog{}, nil
	}
	st, err := NewSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// NopLog discards everything.
type NopLog struct{}

func (NopLog) Start(context.Context, string) error                { return nil }
func (NopLog) Complete(context.Context, string, CycleStats) error { return nil }
func (NopLog) Fail(context.Context, string, error) error          { return nil }
func (NopLog) List(context.Context, int) ([]Cycle, error)         { return nil, nil }
func (NopLog) Close() error                                       { return nil }
