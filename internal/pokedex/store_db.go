package pokedex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the "sqlite" database/sql driver
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const createStateTable = `
	CREATE TABLE IF NOT EXISTS pokedex_state (
		state_key  TEXT PRIMARY KEY,
		body       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

type sqlDialect struct {
	selectState string
	upsertState string
}

var dialects = map[string]sqlDialect{
	DriverPostgres: {
		selectState: `SELECT body FROM pokedex_state WHERE state_key = $1`,
		upsertState: `
			INSERT INTO pokedex_state (state_key, body, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (state_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
		`,
	},
	DriverSQLite: {
		selectState: `SELECT body FROM pokedex_state WHERE state_key = ?`,
		upsertState: `
			INSERT INTO pokedex_state (state_key, body, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (state_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
		`,
	},
}

// SQLStore keeps the record as one row of pokedex_state, keyed by key.
type SQLStore struct {
	db  *sql.DB
	key string
	d   sqlDialect
}

// OpenSQLStore opens dsn with driver (DriverPostgres or DriverSQLite) and
// creates the state table if it does not exist.
func OpenSQLStore(ctx context.Context, driver, dsn, key string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every ":memory:" connection is its own database
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, key: key, d: d}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, createStateTable)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *SQLStore) Load(ctx context.Context) (*State, bool, error) {
	var body string

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, s.d.selectState, s.key).Scan(&body)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	st, err := decodeState([]byte(body))
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *SQLStore) Save(ctx context.Context, st *State) error {
	b, err := encodeState(st)
	if err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.d.upsertState, s.key, string(b), time.Now().UTC())
		return err
	})
}
