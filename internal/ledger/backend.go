// Package ledger persists successive versions of entity risk assessments
// across two backends: an authoritative row-oriented SQLite store and a
// derived, rebuildable Postgres projection used for analytical queries.
// Records are append-only; writes happen only when an assessment differs
// materially from the entity's latest stored record.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// Backend is one physical store for entity records.
type Backend interface {
	// Name identifies the backend in logs and errors ("sqlite", "postgres").
	Name() string

	Migrate(ctx context.Context) error

	// Insert appends one record. (entity_id, ts) must be unique.
	Insert(ctx context.Context, rec model.EntityRecord) error

	// Latest returns the most recent record for the entity, or nil if the
	// entity has never been recorded.
	Latest(ctx context.Context, id model.EntityKey) (*model.EntityRecord, error)

	// History returns the entity's full audit trail, newest first.
	History(ctx context.Context, id model.EntityKey) ([]model.EntityRecord, error)

	// All returns every record in the store, ordered by entity then timestamp.
	All(ctx context.Context) ([]model.EntityRecord, error)

	// Has reports whether the exact (entity_id, ts) row exists.
	Has(ctx context.Context, id model.EntityKey, ts time.Time) (bool, error)

	Close() error
}

// InconsistencyError reports a dual-backend divergence: the authoritative
// write succeeded but the projection write did not. Reads remain available;
// the divergence is repaired by Reconcile.
type InconsistencyError struct {
	Backend  string
	EntityID model.EntityKey
	Err      error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger: backend %s lagging for entity %s: %v", e.Backend, e.EntityID, e.Err)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

// UpsertResult describes the outcome of one change-detecting write.
type UpsertResult struct {
	Written bool   `json:"written"`
	Reason  string `json:"reason"`
}
