package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// Statements of the postgres adapter. One row
// per replica holds its complete state.
const (
	createStatesTable = `CREATE TABLE IF NOT EXISTS lwwgraph_states (
	replica    TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	selectState = `SELECT state FROM lwwgraph_states WHERE replica = $1`

	upsertState = `INSERT INTO lwwgraph_states (replica, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (replica) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
)

// postgresTimeout bounds every single statement.
const postgresTimeout = 10 * time.Second

// PostgresStore keeps the state of a replica
// in a row of a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresStore connects to the database at dsn and
// creates the states table if needed. key names the row
// of this replica.
func NewPostgresStore(ctx context.Context, dsn string, key string) (*PostgresStore, error) {

	if key == "" {
		return nil, errors.New("postgres store needs a key")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to specified PostgreSQL database")
	}

	ctx, cancel := context.WithTimeout(ctx, postgresTimeout)
	defer cancel()

	_, err = pool.Exec(ctx, createStatesTable)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to create states table")
	}

	return &PostgresStore{
		pool: pool,
		key:  key,
	}, nil
}

// Load reads the row of this replica.
func (s *PostgresStore) Load() (*crdt.ReplicaState, error) {

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	var data []byte

	err := s.pool.QueryRow(ctx, selectState, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return decode(nil)
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading state of '%s' from postgres failed", s.key)
	}

	return decode(data)
}

// Save replaces the row of this replica.
func (s *PostgresStore) Save(state *crdt.ReplicaState) error {

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal replica state")
	}

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx, upsertState, s.key, data)
	if err != nil {
		return errors.Wrapf(err, "writing state of '%s' to postgres failed", s.key)
	}

	return nil
}

// Close closes all pooled connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
