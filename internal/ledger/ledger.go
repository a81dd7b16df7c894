package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/resilience"
)

// Ledger coordinates the change-detecting, dual-backend write path. The
// authoritative backend must acknowledge a write before the projection is
// attempted; projection failure degrades to a surfaced InconsistencyError
// instead of aborting the operation.
type Ledger struct {
	authoritative Backend
	projection    Backend // nil when no projection is configured
	retry         resilience.RetryConfig
	now           func() time.Time

	mu    sync.Mutex
	locks map[model.EntityKey]*sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRetry overrides the backend-write retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(l *Ledger) { l.retry = cfg }
}

// New creates a Ledger. projection may be nil.
func New(authoritative Backend, projection Backend, opts ...Option) *Ledger {
	l := &Ledger{
		authoritative: authoritative,
		projection:    projection,
		retry:         resilience.DefaultRetryConfig(),
		now:           time.Now,
		locks:         make(map[model.EntityKey]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Migrate prepares the schema on both backends.
func (l *Ledger) Migrate(ctx context.Context) error {
	if err := l.authoritative.Migrate(ctx); err != nil {
		return err
	}
	if l.projection != nil {
		return l.projection.Migrate(ctx)
	}
	return nil
}

// Close releases both backends.
func (l *Ledger) Close() error {
	err := l.authoritative.Close()
	if l.projection != nil {
		if perr := l.projection.Close(); err == nil {
			err = perr
		}
	}
	return err
}

// entityLock returns the mutex serializing writes for one entity. Writes to
// different entities proceed in parallel.
func (l *Ledger) entityLock(id model.EntityKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// UpsertIfChanged writes the candidate record only if it differs materially
// (crime flags, flagged determination, or comments) from the entity's latest
// stored record, or if no prior record exists. The assigned timestamp is
// strictly greater than the previous record's.
//
// When the authoritative write succeeds but the projection write fails, the
// returned error is an *InconsistencyError and Written is still true: the
// record is durable and reads stay correct, but a Reconcile is owed.
func (l *Ledger) UpsertIfChanged(ctx context.Context, rec model.EntityRecord) (UpsertResult, error) {
	if rec.EntityID == "" {
		return UpsertResult{}, eris.New("ledger: record has empty entity id")
	}
	rec.NormalizeCrimes()

	lock := l.entityLock(rec.EntityID)
	lock.Lock()
	defer lock.Unlock()

	prev, err := l.authoritative.Latest(ctx, rec.EntityID)
	if err != nil {
		return UpsertResult{}, err
	}

	if !rec.ChangedFrom(prev) {
		return UpsertResult{Written: false, Reason: "unchanged"}, nil
	}

	ts := l.now().UTC().Truncate(time.Microsecond)
	if prev != nil && !ts.After(prev.Timestamp) {
		ts = prev.Timestamp.Add(time.Microsecond)
	}
	rec.Timestamp = ts

	// The authoritative write must succeed before the projection is touched.
	err = resilience.Do(ctx, l.retry, func(ctx context.Context) error {
		return l.authoritative.Insert(ctx, rec)
	})
	if err != nil {
		return UpsertResult{}, eris.Wrapf(err, "ledger: authoritative write for %s", rec.EntityID)
	}

	reason := "changed"
	if prev == nil {
		reason = "new entity"
	}

	if l.projection != nil {
		err = resilience.Do(ctx, l.retry, func(ctx context.Context) error {
			return l.projection.Insert(ctx, rec)
		})
		if err != nil {
			zap.L().Warn("ledger: projection write failed, reconcile required",
				zap.String("entity", string(rec.EntityID)),
				zap.Error(err),
			)
			return UpsertResult{Written: true, Reason: reason},
				&InconsistencyError{Backend: l.projection.Name(), EntityID: rec.EntityID, Err: err}
		}
	}

	return UpsertResult{Written: true, Reason: reason}, nil
}

// Latest returns the entity's most recent record from the authoritative
// backend, or nil if none exists.
func (l *Ledger) Latest(ctx context.Context, id model.EntityKey) (*model.EntityRecord, error) {
	return l.authoritative.Latest(ctx, id)
}

// History returns the entity's full audit trail, newest first.
func (l *Ledger) History(ctx context.Context, id model.EntityKey) ([]model.EntityRecord, error) {
	return l.authoritative.History(ctx, id)
}

// Reconcile re-derives the projection from the authoritative backend: every
// authoritative row missing from the projection is inserted, nothing is ever
// duplicated or deleted. Returns the number of rows copied. Run on demand
// after an InconsistencyError, not on every write.
func (l *Ledger) Reconcile(ctx context.Context) (int, error) {
	if l.projection == nil {
		return 0, eris.New("ledger: no projection configured")
	}

	rows, err := l.authoritative.All(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: reconcile read")
	}

	copied := 0
	for _, rec := range rows {
		if err := ctx.Err(); err != nil {
			return copied, eris.Wrap(err, "ledger: reconcile cancelled")
		}
		ok, err := l.projection.Has(ctx, rec.EntityID, rec.Timestamp)
		if err != nil {
			return copied, eris.Wrapf(err, "ledger: reconcile probe for %s", rec.EntityID)
		}
		if ok {
			continue
		}
		rec := rec
		err = resilience.Do(ctx, l.retry, func(ctx context.Context) error {
			return l.projection.Insert(ctx, rec)
		})
		if err != nil {
			return copied, eris.Wrapf(err, "ledger: reconcile insert for %s", rec.EntityID)
		}
		copied++
	}

	if copied > 0 {
		zap.L().Info("ledger: reconciled projection",
			zap.String("backend", l.projection.Name()),
			zap.Int("rows_copied", copied),
		)
	}
	return copied, nil
}
