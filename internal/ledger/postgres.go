package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the backend needs. pgxmock satisfies it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresBackend is the analytical projection of the ledger. It is derived
// from the authoritative SQLite store and fully rebuildable via Reconcile.
type PostgresBackend struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresBackend with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresBackend, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresBackend{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entity_records (
	entity_id  TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	crimes     JSONB NOT NULL DEFAULT '[]',
	comments   TEXT NOT NULL DEFAULT '',
	flagged    BOOLEAN NOT NULL DEFAULT FALSE,
	session_id TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_entity_records_session ON entity_records(session_id);
CREATE INDEX IF NOT EXISTS idx_entity_records_entity_ts ON entity_records(entity_id, ts DESC);
`

func (p *PostgresBackend) Name() string { return "postgres" }

func (p *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresBackend) Insert(ctx context.Context, rec model.EntityRecord) error {
	crimesJSON, err := json.Marshal(rec.Crimes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal crimes")
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO entity_records (entity_id, summary, crimes, comments, flagged, session_id, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(rec.EntityID), rec.Summary, string(crimesJSON), rec.Comments,
		rec.Flagged, rec.SessionID, rec.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert record for %s", rec.EntityID)
}

func (p *PostgresBackend) Latest(ctx context.Context, id model.EntityKey) (*model.EntityRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records WHERE entity_id = $1 ORDER BY ts DESC LIMIT 1`,
		string(id),
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest record for %s", id)
	}
	return rec, nil
}

func (p *PostgresBackend) History(ctx context.Context, id model.EntityKey) ([]model.EntityRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records WHERE entity_id = $1 ORDER BY ts DESC`,
		string(id),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history for %s", id)
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (p *PostgresBackend) All(ctx context.Context) ([]model.EntityRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records ORDER BY entity_id, ts`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all records")
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (p *PostgresBackend) Has(ctx context.Context, id model.EntityKey, ts time.Time) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entity_records WHERE entity_id = $1 AND ts = $2`,
		string(id), ts.UTC(),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has record for %s", id)
	}
	return n > 0, nil
}

func scanPgRecord(row pgx.Row) (*model.EntityRecord, error) {
	var rec model.EntityRecord
	var id string
	var crimesJSON []byte
	if err := row.Scan(&id, &rec.Summary, &crimesJSON, &rec.Comments, &rec.Flagged, &rec.SessionID, &rec.Timestamp); err != nil {
		return nil, err
	}
	rec.EntityID = model.EntityKey(id)
	if err := json.Unmarshal(crimesJSON, &rec.Crimes); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal crimes")
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

func collectPgRecords(rows pgx.Rows) ([]model.EntityRecord, error) {
	var recs []model.EntityRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate records")
}
