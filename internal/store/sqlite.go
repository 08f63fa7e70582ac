package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteLog implements CycleLog using modernc.org/sqlite.
type SQLiteLog struct {
	db *sql.DB
}

var _ CycleLog = (*SQLiteLog)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sync_cycles (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);
`

// Migrate creates the schema.
func (s *SQLiteLog) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

func (s *SQLiteLog) Start(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_cycles (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(CycleRunning), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert cycle %s", id)
}

func (s *SQLiteLog) Complete(ctx context.Context, id string, stats CycleStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_cycles SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(CycleComplete), string(statsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete cycle %s", id)
	}
	return checkRowsAffected(res, "cycle", id)
}

func (s *SQLiteLog) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_cycles SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(CycleFailed), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail cycle %s", id)
	}
	return checkRowsAffected(res, "cycle", id)
}

func (s *SQLiteLog) List(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, stats, error, started_at, finished_at
		 FROM sync_cycles ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cycles")
	}
	defer rows.Close() //nolint:errcheck

	var cycles []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *c)
	}
	return cycles, eris.Wrap(rows.Err(), "sqlite: list cycles iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCycle(row scannable) (*Cycle, error) {
	var c Cycle
	var statsJSON, errMsg sql.NullString
	var finished sql.NullTime

	if err := row.Scan(&c.ID, &c.Status, &statsJSON, &errMsg, &c.StartedAt, &finished); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan cycle")
	}
	if statsJSON.Valid {
		c.Stats = &CycleStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), c.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	if finished.Valid {
		t := finished.Time
		c.FinishedAt = &t
	}
	c.Error = errMsg.String
	return &c, nil
}
