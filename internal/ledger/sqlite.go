package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// SQLiteBackend is the authoritative row-oriented store, implemented with
// modernc.org/sqlite.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteBackend, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

// One fixed table keyed by an explicit session_id column; sessions never get
// their own tables.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entity_records (
	entity_id  TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	crimes     TEXT NOT NULL DEFAULT '[]',
	comments   TEXT NOT NULL DEFAULT '',
	flagged    INTEGER NOT NULL DEFAULT 0,
	session_id TEXT NOT NULL,
	ts         DATETIME NOT NULL,
	PRIMARY KEY (entity_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_entity_records_session ON entity_records(session_id);
CREATE INDEX IF NOT EXISTS idx_entity_records_entity_ts ON entity_records(entity_id, ts DESC);
`

func (s *SQLiteBackend) Name() string { return "sqlite" }

func (s *SQLiteBackend) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Insert(ctx context.Context, rec model.EntityRecord) error {
	crimesJSON, err := json.Marshal(rec.Crimes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal crimes")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_records (entity_id, summary, crimes, comments, flagged, session_id, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.EntityID), rec.Summary, string(crimesJSON), rec.Comments,
		rec.Flagged, rec.SessionID, rec.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert record for %s", rec.EntityID)
}

func (s *SQLiteBackend) Latest(ctx context.Context, id model.EntityKey) (*model.EntityRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records WHERE entity_id = ? ORDER BY ts DESC LIMIT 1`,
		string(id),
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest record for %s", id)
	}
	return rec, nil
}

func (s *SQLiteBackend) History(ctx context.Context, id model.EntityKey) ([]model.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records WHERE entity_id = ? ORDER BY ts DESC`,
		string(id),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history for %s", id)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteBackend) All(ctx context.Context) ([]model.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, summary, crimes, comments, flagged, session_id, ts
		 FROM entity_records ORDER BY entity_id, ts`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all records")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteBackend) Has(ctx context.Context, id model.EntityKey, ts time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entity_records WHERE entity_id = ? AND ts = ?`,
		string(id), ts.UTC(),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has record for %s", id)
	}
	return n > 0, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.EntityRecord, error) {
	var rec model.EntityRecord
	var id, crimesJSON string
	if err := row.Scan(&id, &rec.Summary, &crimesJSON, &rec.Comments, &rec.Flagged, &rec.SessionID, &rec.Timestamp); err != nil {
		return nil, err
	}
	rec.EntityID = model.EntityKey(id)
	if err := json.Unmarshal([]byte(crimesJSON), &rec.Crimes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal crimes")
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.EntityRecord, error) {
	var recs []model.EntityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate records")
}
