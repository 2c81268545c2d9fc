// Package store manages SQLite persistence for playspace.
//
// The database is the shared remote log: every replica appends the events
// it minted and reads back what the others wrote. SQLite in WAL mode lets
// several processes on one machine do that concurrently. Events are keyed
// by their snowport id, so pushing an event twice is a no-op and the table
// only ever grows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"

	_ "modernc.org/sqlite"
)

var (
	// ErrReplicaNotFound is returned when no replica has the given name.
	ErrReplicaNotFound = errors.New("replica not found")
	// ErrNoFreeSource is returned when all 256 source ids are taken.
	ErrNoFreeSource = errors.New("no free source id")
)

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func retryOnContention(ctx context.Context, fn func() error) error {
	return retryOp(ctx, defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		stamp      INTEGER PRIMARY KEY,
		actor      INTEGER NOT NULL,
		component  INTEGER NOT NULL,
		pointer    INTEGER,
		x          REAL,
		y          REAL,
		kind       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_component ON events(component, stamp);

	CREATE TABLE IF NOT EXISTS replicas (
		source     INTEGER PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		clock      INTEGER NOT NULL DEFAULT -1,
		registered TEXT NOT NULL,
		last_seen  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// PushNew inserts records whose stamps the log does not hold yet and
// returns how many were new. Re-pushing a record already present is a
// no-op; a different record under a present stamp fails the whole batch
// with event.ErrStampCollision. The batch is written in one transaction.
func (s *Store) PushNew(ctx context.Context, recs []event.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var inserted int
	err := retryOnContention(ctx, func() error {
		inserted = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (stamp, actor, component, pointer, x, y, kind, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(stamp) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range recs {
			res, err := stmt.ExecContext(ctx,
				int64(r.Stamp), r.Actor, r.Component,
				nullInt(r.Pointer), nullFloat(r.X), nullFloat(r.Y),
				string(r.Kind), now,
			)
			if err != nil {
				return fmt.Errorf("insert %s: %w", r.Stamp, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				if err := checkExisting(ctx, tx, r); err != nil {
					return err
				}
			}
			inserted += int(n)
		}
		return tx.Commit()
	})
	return inserted, err
}

// FetchAll returns every record in stamp order.
func (s *Store) FetchAll(ctx context.Context) ([]event.Record, error) {
	return s.FetchSince(ctx, clock.None)
}

// FetchSince returns records with stamps strictly greater than after, in
// stamp order.
func (s *Store) FetchSince(ctx context.Context, after clock.ID) ([]event.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stamp, actor, component, pointer, x, y, kind
		 FROM events WHERE stamp > ? ORDER BY stamp ASC`,
		int64(after),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stamps returns every stamp in the log, ascending.
func (s *Store) Stamps(ctx context.Context) ([]clock.ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stamp FROM events ORDER BY stamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clock.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, clock.ID(id))
	}
	return out, rows.Err()
}

// CountEvents returns the total number of events in the log.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// MaxStamp returns the largest stamp in the log, or clock.None when empty.
func (s *Store) MaxStamp(ctx context.Context) (clock.ID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(stamp), -1) FROM events`).Scan(&id)
	if err != nil {
		return clock.None, err
	}
	return clock.ID(id), nil
}

// checkExisting compares rec with the row already stored under its stamp.
func checkExisting(ctx context.Context, tx *sql.Tx, rec event.Record) error {
	row := tx.QueryRowContext(ctx,
		`SELECT stamp, actor, component, pointer, x, y, kind FROM events WHERE stamp = ?`,
		int64(rec.Stamp),
	)
	have, err := scanRecord(row)
	if err != nil {
		return fmt.Errorf("read %s: %w", rec.Stamp, err)
	}
	if !event.SameRecord(have, rec) {
		return fmt.Errorf("push %s: %w: log holds %s of component %d, offered %s of component %d",
			rec.Stamp, event.ErrStampCollision, have.Kind, have.Component, rec.Kind, rec.Component)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]event.Record, error) {
	var recs []event.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func scanRecord(row scanner) (event.Record, error) {
	var (
		r       event.Record
		stamp   int64
		pointer sql.NullInt64
		x, y    sql.NullFloat64
		kind    string
	)
	if err := row.Scan(&stamp, &r.Actor, &r.Component, &pointer, &x, &y, &kind); err != nil {
		return event.Record{}, err
	}
	r.Stamp = clock.ID(stamp)
	r.Kind = event.Kind(kind)
	if pointer.Valid {
		r.Pointer = &pointer.Int64
	}
	if x.Valid {
		r.X = &x.Float64
	}
	if y.Valid {
		r.Y = &y.Float64
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Replicas
// ---------------------------------------------------------------------------

// RegisterReplica returns the replica called name, allocating the smallest
// free source id on first registration. Re-registering refreshes last_seen
// and keeps the source id.
func (s *Store) RegisterReplica(ctx context.Context, name string) (*model.Replica, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		res, err := tx.ExecContext(ctx,
			`UPDATE replicas SET last_seen = ? WHERE name = ?`, now, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return tx.Commit()
		}

		source, err := freeSource(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO replicas (source, name, clock, registered, last_seen)
			 VALUES (?, ?, -1, ?, ?)`,
			source, name, now, now,
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return s.GetReplica(ctx, name)
}

// freeSource returns the smallest source id no replica holds.
func freeSource(ctx context.Context, tx *sql.Tx) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT source FROM replicas ORDER BY source ASC`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	next := 0
	for rows.Next() {
		var src int
		if err := rows.Scan(&src); err != nil {
			return 0, err
		}
		if src != next {
			break
		}
		next++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if next > clock.MaxSource {
		return 0, ErrNoFreeSource
	}
	return next, nil
}

// GetReplica retrieves a replica by name.
func (s *Store) GetReplica(ctx context.Context, name string) (*model.Replica, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, name, clock, registered, last_seen FROM replicas WHERE name = ?`, name,
	)
	r, err := scanReplica(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrReplicaNotFound, name)
	}
	return r, err
}

// UpdateReplicaClock persists the last id the replica minted or observed.
func (s *Store) UpdateReplicaClock(ctx context.Context, name string, last clock.ID) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE replicas SET clock = MAX(clock, ?), last_seen = ? WHERE name = ?`,
			int64(last), now, name,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %q", ErrReplicaNotFound, name)
		}
		return nil
	})
}

// ListReplicas returns all registered replicas ordered by source.
func (s *Store) ListReplicas(ctx context.Context) ([]model.Replica, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, name, clock, registered, last_seen FROM replicas ORDER BY source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var replicas []model.Replica
	for rows.Next() {
		r, err := scanReplica(rows)
		if err != nil {
			return nil, err
		}
		replicas = append(replicas, *r)
	}
	return replicas, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReplica(row scanner) (*model.Replica, error) {
	var (
		r             model.Replica
		clk           int64
		regStr, lsStr string
	)
	if err := row.Scan(&r.Source, &r.Name, &clk, &regStr, &lsStr); err != nil {
		return nil, err
	}
	r.Clock = clock.ID(clk)
	var parseErr error
	r.Registered, parseErr = time.Parse(time.RFC3339Nano, regStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse registered time for replica %s: %w", r.Name, parseErr)
	}
	r.LastSeen, parseErr = time.Parse(time.RFC3339Nano, lsStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse last_seen time for replica %s: %w", r.Name, parseErr)
	}
	return &r, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
