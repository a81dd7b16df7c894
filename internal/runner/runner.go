// Package runner drives one scheduled invocation per window kind. The core
// exposes a single Invoke(now) entry point so any external scheduler (cron,
// systemd timer, the built-in schedule daemon) can drive it, and tests can
// call it directly with synthetic timestamps.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-aml/riskwatch/internal/config"
	"github.com/meridian-aml/riskwatch/internal/ledger"
	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/report"
	"github.com/meridian-aml/riskwatch/internal/similarity"
	"github.com/meridian-aml/riskwatch/internal/window"
)

// maxParallelArticles bounds the concurrent comparisons within one
// invocation. The similarity engine is pure, so articles only contend on
// file reads.
const maxParallelArticles = 4

var validate = validator.New(validator.WithRequiredStructEnabled())

// Runner wires the similarity engine, ledger, aggregator, and dispatcher
// into the per-cadence invocation flow.
type Runner struct {
	cfg    *config.Config
	ledger *ledger.Ledger // nil disables risk-state persistence
	agg    *window.Aggregator
	disp   *report.Dispatcher
}

// New creates a Runner. ld may be nil when no ledger is configured.
func New(cfg *config.Config, ld *ledger.Ledger, agg *window.Aggregator, disp *report.Dispatcher) *Runner {
	return &Runner{cfg: cfg, ledger: ld, agg: agg, disp: disp}
}

// Invoke runs one invocation of the given window kind at the given time.
// Invoking twice within the same period is idempotent at the window level:
// the period's point file is replaced, never counted twice. The verdict log
// keeps every invocation as an audit trail.
func (r *Runner) Invoke(ctx context.Context, now time.Time, kind model.WindowKind) (*model.WindowVerdict, error) {
	if !kind.Valid() {
		return nil, eris.Errorf("runner: unknown window kind %q", kind)
	}

	period := kind.PeriodKey(now)
	zap.L().Info("invocation started",
		zap.String("kind", string(kind)),
		zap.String("period", period),
	)

	var verdict *model.WindowVerdict
	var err error
	switch kind {
	case model.WindowMonthly:
		verdict, err = r.runMonthly(ctx, now, period)
	case model.WindowBiannual:
		verdict, err = r.runBiannual(ctx, period)
	default:
		verdict, err = r.agg.Evaluate(kind, period, r.cfg.ThresholdsFor(kind))
	}
	if err != nil {
		return nil, err
	}

	// A cancelled invocation must not leave a partial verdict behind.
	if cerr := ctx.Err(); cerr != nil {
		return nil, eris.Wrap(cerr, "runner: invocation cancelled before verdict emit")
	}

	if err := r.disp.Emit(ctx, verdict.Record(now)); err != nil {
		return nil, err
	}

	zap.L().Info("invocation finished",
		zap.String("kind", string(kind)),
		zap.String("period", period),
		zap.Bool("passed", verdict.Passed),
		zap.String("status", string(verdict.Status)),
	)
	return verdict, nil
}

// runMonthly scores every configured test article against its golden
// reference, persists entity risk state, records the period point, and
// evaluates it.
func (r *Runner) runMonthly(ctx context.Context, now time.Time, period string) (*model.WindowVerdict, error) {
	sessionID := uuid.New().String()
	critical := r.cfg.CriticalCrimes()

	results := make([]model.ArticleResult, len(r.cfg.Articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelArticles)
	for i, article := range r.cfg.Articles {
		i, article := i, article
		g.Go(func() error {
			results[i] = r.scoreArticle(gctx, article, critical)
			return nil
		})
	}
	// Per-article failures are isolated into ArticleResult.Error; the group
	// only fails on context cancellation.
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "runner: article evaluation")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "runner: invocation cancelled")
	}

	point, ok := buildPoint(period, now, sessionID, results)
	for _, ar := range results {
		if ar.Error != "" {
			zap.L().Warn("article skipped",
				zap.String("article", ar.Article),
				zap.String("reason", ar.Error),
			)
		}
	}
	if !ok {
		return nil, eris.Wrap(model.ErrInsufficientData, "runner: no article produced a result")
	}

	if r.ledger != nil {
		if err := r.persistRiskState(ctx, sessionID, results); err != nil {
			return nil, err
		}
	}

	if err := r.agg.RecordPoint(point); err != nil {
		return nil, err
	}
	return r.agg.Evaluate(model.WindowMonthly, period, r.cfg.ThresholdsFor(model.WindowMonthly))
}

// scoreArticle loads the reference and current assessments for one article
// and compares them. All failures are captured in the result; one bad
// article never aborts the run.
func (r *Runner) scoreArticle(ctx context.Context, article string, critical map[model.CrimeCategory]bool) model.ArticleResult {
	ar := model.ArticleResult{Article: article}

	if err := ctx.Err(); err != nil {
		ar.Error = err.Error()
		return ar
	}

	ref, err := loadAssessment(filepath.Join(r.cfg.Data.ReferenceDir(), article+".json"))
	if err != nil {
		ar.Error = classifyLoadError(err, "reference")
		return ar
	}
	cur, err := loadAssessment(filepath.Join(r.cfg.Data.CurrentDir(), article+".json"))
	if err != nil {
		ar.Error = classifyLoadError(err, "current output")
		return ar
	}

	res := similarity.Compare(ref, cur, critical)
	ar.Result = &res

	zap.L().Info("article scored",
		zap.String("article", article),
		zap.Float64("entity_similarity", res.EntitySimilarity),
		zap.Float64("crime_similarity", res.CrimeSimilarity),
		zap.Int("matched", len(res.Matched)),
		zap.Int("missing", len(res.Missing)),
		zap.Int("extra", len(res.Extra)),
		zap.Int("critical_misses", len(res.CriticalMisses)),
	)
	return ar
}

// loadAssessment reads and validates one assessment document.
func loadAssessment(path string) (model.Assessment, error) {
	var a model.Assessment

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return a, eris.Wrapf(model.ErrReferenceNotFound, "%s", path)
	}
	if err != nil {
		return a, eris.Wrapf(err, "runner: read %s", path)
	}

	if err := json.Unmarshal(data, &a); err != nil {
		return a, eris.Wrapf(model.ErrMalformedInput, "%s: %v", filepath.Base(path), err)
	}
	for i, e := range a.FlaggedEntities {
		if err := validate.Struct(e); err != nil {
			return a, eris.Wrapf(model.ErrMalformedInput, "%s: entity %d: %v", filepath.Base(path), i, err)
		}
	}
	return a, nil
}

func classifyLoadError(err error, side string) string {
	switch {
	case errors.Is(err, model.ErrReferenceNotFound):
		return side + " not found"
	case errors.Is(err, model.ErrMalformedInput):
		return side + " malformed: " + err.Error()
	default:
		return side + ": " + err.Error()
	}
}

// buildPoint aggregates per-article results into the period's measurement
// point. ok is false when no article produced a result.
func buildPoint(period string, now time.Time, sessionID string, results []model.ArticleResult) (model.PeriodPoint, bool) {
	var sumEntity, sumCrime, sumRecall float64
	misses := 0
	scored := 0
	for _, ar := range results {
		if ar.Result == nil {
			continue
		}
		sumEntity += ar.Result.EntitySimilarity
		sumCrime += ar.Result.CrimeSimilarity
		sumRecall += ar.Result.CrimeRecall
		misses += len(ar.Result.CriticalMisses)
		scored++
	}

	point := model.PeriodPoint{
		Period:    period,
		Timestamp: now.UTC(),
		SessionID: sessionID,
		Articles:  results,
	}
	if scored == 0 {
		return point, false
	}
	point.Metrics = map[string]float64{
		model.MetricEntitySimilarity: sumEntity / float64(scored),
		model.MetricCrimeSimilarity:  sumCrime / float64(scored),
		model.MetricCrimeRecall:      sumRecall / float64(scored),
		model.MetricCriticalMisses:   float64(misses),
	}
	return point, true
}

// persistRiskState writes the flagged entities of every scored article's
// current output through the change-detecting ledger. A lagging projection
// is surfaced as a warning and does not abort the invocation; any other
// ledger failure does, after bounded retries inside the ledger.
func (r *Runner) persistRiskState(ctx context.Context, sessionID string, results []model.ArticleResult) error {
	written := 0
	for _, ar := range results {
		if ar.Result == nil {
			continue
		}
		cur, err := loadAssessment(filepath.Join(r.cfg.Data.CurrentDir(), ar.Article+".json"))
		if err != nil {
			continue
		}
		for _, fe := range cur.FlaggedEntities {
			rec := model.EntityRecord{
				EntityID:  fe.Key(),
				Summary:   fe.Summary,
				Crimes:    crimesOf(fe),
				Comments:  fe.Comments,
				Flagged:   len(fe.Crimes) > 0,
				SessionID: sessionID,
			}
			res, err := r.ledger.UpsertIfChanged(ctx, rec)
			var inconsistency *ledger.InconsistencyError
			if errors.As(err, &inconsistency) {
				zap.L().Warn("ledger projection lagging",
					zap.String("entity", string(inconsistency.EntityID)),
					zap.String("backend", inconsistency.Backend),
				)
			} else if err != nil {
				return eris.Wrapf(err, "runner: persist entity %s", rec.EntityID)
			}
			if res.Written {
				written++
			}
		}
	}
	zap.L().Info("risk state persisted",
		zap.String("session", sessionID),
		zap.Int("records_written", written),
	)
	return nil
}

func crimesOf(fe model.FlaggedEntity) []model.CrimeCategory {
	set := fe.CrimeSet()
	out := make([]model.CrimeCategory, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// runBiannual evaluates the productivity window from the external feed.
func (r *Runner) runBiannual(ctx context.Context, period string) (*model.WindowVerdict, error) {
	samples, err := window.LoadProductivity(r.cfg.Data.ProductivityFeed())
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(model.ErrInsufficientData, "runner: productivity feed missing")
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "runner: invocation cancelled")
	}
	return r.agg.EvaluateProductivity(model.WindowBiannual, period, samples, r.cfg.ThresholdsFor(model.WindowBiannual))
}
