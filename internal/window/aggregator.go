// Package window collects point-in-time test results into rolling windows
// and applies the strict pass/fail policy: one bad period fails the whole
// window, no averaging overrides it.
package window

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/threshold"
)

// Aggregator owns the point-in-time result log: one JSON file per monthly
// period under logsDir. It is the sole composer of window verdicts.
type Aggregator struct {
	logsDir string
}

// New creates an Aggregator writing to and reading from logsDir.
func New(logsDir string) *Aggregator {
	return &Aggregator{logsDir: logsDir}
}

func (a *Aggregator) pointPath(period string) string {
	// "2025-03" -> monthly_202503.json
	return filepath.Join(a.logsDir, "monthly_"+strings.ReplaceAll(period, "-", "")+".json")
}

// RecordPoint persists one monthly measurement point. A point for the same
// period replaces the previous file, which is what makes re-invocation
// within one period idempotent: a window never counts a period twice.
func (a *Aggregator) RecordPoint(p model.PeriodPoint) error {
	if p.Period == "" {
		return eris.New("window: point has empty period")
	}
	if err := os.MkdirAll(a.logsDir, 0o755); err != nil {
		return eris.Wrap(err, "window: create logs dir")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return eris.Wrap(err, "window: marshal point")
	}

	// Write-then-rename so readers never see a half-written point.
	path := a.pointPath(p.Period)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "window: write point")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "window: rename point")
	}
	return nil
}

// LastPoints returns the n most recent monthly points in chronological
// order. Fewer than n available is ErrInsufficientData, not a failure.
func (a *Aggregator) LastPoints(n int) ([]model.PeriodPoint, error) {
	matches, err := filepath.Glob(filepath.Join(a.logsDir, "monthly_*.json"))
	if err != nil {
		return nil, eris.Wrap(err, "window: list points")
	}
	// Filenames embed YYYYMM, so lexicographic order is chronological.
	sort.Strings(matches)

	if len(matches) < n {
		return nil, eris.Wrapf(model.ErrInsufficientData, "window: need %d monthly points, found %d", n, len(matches))
	}
	matches = matches[len(matches)-n:]

	points := make([]model.PeriodPoint, 0, n)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "window: read point %s", filepath.Base(path))
		}
		var p model.PeriodPoint
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrapf(model.ErrMalformedInput, "window: parse point %s: %v", filepath.Base(path), err)
		}
		points = append(points, p)
	}
	return points, nil
}

// Evaluate composes the verdict for one window of the given kind ending at
// period. The window passes only when every point clears every critical
// bound configured for the kind.
func (a *Aggregator) Evaluate(kind model.WindowKind, period string, cfg threshold.Config) (*model.WindowVerdict, error) {
	points, err := a.LastPoints(kind.Size())
	if err != nil {
		return nil, err
	}
	return evaluatePoints(kind, period, points, cfg), nil
}

// evaluatePoints applies the strict AND policy across points. Means are
// computed for visibility only and never influence the verdict.
func evaluatePoints(kind model.WindowKind, period string, points []model.PeriodPoint, cfg threshold.Config) *model.WindowVerdict {
	verdict := &model.WindowVerdict{
		Kind:   kind,
		Period: period,
		Passed: true,
		Status: model.StatusOK,
		Means:  map[string]float64{},
	}

	sums := map[string]float64{}
	counts := map[string]int{}

	for _, p := range points {
		status, violations := threshold.Evaluate(p.Metrics, cfg)

		// Warnings are early-trend signals; only a critical breach fails
		// the point.
		pointPassed := status != model.StatusCritical
		if !pointPassed {
			verdict.Passed = false
		}
		verdict.Status = verdict.Status.Worse(status)

		for _, v := range violations {
			v.Period = p.Period
			verdict.Violations = append(verdict.Violations, v)
		}
		verdict.Points = append(verdict.Points, model.PointSummary{
			Period:  p.Period,
			Metrics: p.Metrics,
			Passed:  pointPassed,
		})

		for name, value := range p.Metrics {
			if _, configured := cfg[name]; !configured {
				continue
			}
			sums[name] += value
			counts[name]++
		}
	}

	for name, sum := range sums {
		verdict.Means[name] = sum / float64(counts[name])
	}
	return verdict
}
