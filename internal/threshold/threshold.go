// Package threshold classifies metric values against two-tier bounds.
package threshold

import (
	"sort"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// Bound holds the critical and warning limits for one metric. Directionality
// is declared, never inferred: when HigherIsBetter a value below a bound
// breaches it, otherwise a value above does.
type Bound struct {
	Critical       float64
	Warning        float64
	HigherIsBetter bool
}

// Config maps metric names to their bounds for one window kind.
type Config map[string]Bound

// Classify returns the status of a single value against b.
func Classify(value float64, b Bound) model.Status {
	if b.HigherIsBetter {
		switch {
		case value < b.Critical:
			return model.StatusCritical
		case value < b.Warning:
			return model.StatusWarning
		}
		return model.StatusOK
	}
	switch {
	case value > b.Critical:
		return model.StatusCritical
	case value > b.Warning:
		return model.StatusWarning
	}
	return model.StatusOK
}

// Evaluate classifies every configured metric present in metrics and returns
// the worst status plus the list of violations, ordered by metric name.
// Metrics absent from the config are ignored; configured metrics absent from
// the value map are ignored too, since not every window kind reports every
// metric.
func Evaluate(metrics map[string]float64, cfg Config) (model.Status, []model.Violation) {
	status := model.StatusOK
	var violations []model.Violation

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := metrics[name]
		if !ok {
			continue
		}
		b := cfg[name]
		s := Classify(value, b)
		if s == model.StatusOK {
			continue
		}
		bound := b.Warning
		if s == model.StatusCritical {
			bound = b.Critical
		}
		violations = append(violations, model.Violation{
			Metric:   name,
			Value:    value,
			Bound:    bound,
			Severity: s,
		})
		status = status.Worse(s)
	}
	return status, violations
}
