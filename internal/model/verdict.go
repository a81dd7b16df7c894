package model

import (
	"fmt"
	"time"
)

// WindowKind identifies one monitoring cadence.
type WindowKind string

const (
	WindowMonthly   WindowKind = "monthly"
	WindowQuarterly WindowKind = "quarterly"
	WindowBiannual  WindowKind = "biannual"
)

// WindowKinds lists all supported cadences.
var WindowKinds = []WindowKind{WindowMonthly, WindowQuarterly, WindowBiannual}

// Valid reports whether k is a known window kind.
func (k WindowKind) Valid() bool {
	switch k {
	case WindowMonthly, WindowQuarterly, WindowBiannual:
		return true
	}
	return false
}

// Size returns the number of monthly points that make up one window of
// this kind.
func (k WindowKind) Size() int {
	switch k {
	case WindowQuarterly:
		return 3
	case WindowBiannual:
		return 6
	default:
		return 1
	}
}

// PeriodKey returns the canonical period identifier containing t, e.g.
// "2025-03", "2025-Q1", "2025-H1". Invocations within the same period share
// a key, which is what makes re-invocation idempotent.
func (k WindowKind) PeriodKey(t time.Time) string {
	t = t.UTC()
	switch k {
	case WindowQuarterly:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case WindowBiannual:
		half := 1
		if t.Month() > 6 {
			half = 2
		}
		return fmt.Sprintf("%d-H%d", t.Year(), half)
	default:
		return t.Format("2006-01")
	}
}

// Status is the three-tier classification of a metric value or verdict.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if s.rank() >= other.rank() {
		return s
	}
	return other
}

func (s Status) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Violation records one metric value on the failing side of a threshold.
type Violation struct {
	Period   string  `json:"period,omitempty"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	Bound    float64 `json:"bound"`
	Severity Status  `json:"severity"`
}

// ArticleResult is the outcome of evaluating one test article within a
// monthly invocation. Exactly one of Result and Error is set.
type ArticleResult struct {
	Article string            `json:"article"`
	Result  *ComparisonResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// PeriodPoint is one point-in-time measurement: the aggregate metrics of one
// monthly test run, persisted as one JSON file per period.
type PeriodPoint struct {
	Period    string             `json:"period"`
	Timestamp time.Time          `json:"timestamp"`
	SessionID string             `json:"session_id,omitempty"`
	Articles  []ArticleResult    `json:"articles,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
}

// PointSummary is the per-point breakdown carried inside a window verdict.
type PointSummary struct {
	Period  string             `json:"period"`
	Metrics map[string]float64 `json:"metrics"`
	Passed  bool               `json:"passed"`
}

// WindowVerdict is the outcome of evaluating one rolling window. The window
// passes only if every point satisfies every critical bound; Means are
// reported for trend visibility and never influence Passed.
type WindowVerdict struct {
	Kind       WindowKind         `json:"kind"`
	Period     string             `json:"period"`
	Passed     bool               `json:"passed"`
	Status     Status             `json:"status"`
	Means      map[string]float64 `json:"means"`
	Points     []PointSummary     `json:"points"`
	Violations []Violation        `json:"violations,omitempty"`
}

// VerdictRecord is one append-only entry in the verdict log.
type VerdictRecord struct {
	Timestamp  time.Time          `json:"timestamp"`
	Kind       WindowKind         `json:"kind"`
	Period     string             `json:"period"`
	Passed     bool               `json:"passed"`
	Status     Status             `json:"status"`
	Means      map[string]float64 `json:"metrics"`
	Points     []PointSummary     `json:"points"`
	Violations []Violation        `json:"violations,omitempty"`
}

// Record converts a verdict into its persisted log form.
func (v *WindowVerdict) Record(at time.Time) VerdictRecord {
	return VerdictRecord{
		Timestamp:  at.UTC(),
		Kind:       v.Kind,
		Period:     v.Period,
		Passed:     v.Passed,
		Status:     v.Status,
		Means:      v.Means,
		Points:     v.Points,
		Violations: v.Violations,
	}
}
