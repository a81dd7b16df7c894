package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aml/riskwatch/internal/model"
)

func TestClassify_HigherIsBetter(t *testing.T) {
	b := Bound{Critical: 0.85, Warning: 0.90, HigherIsBetter: true}

	tests := []struct {
		name  string
		value float64
		want  model.Status
	}{
		{"above warning", 0.95, model.StatusOK},
		{"exactly warning", 0.90, model.StatusOK},
		{"between bounds", 0.87, model.StatusWarning},
		{"exactly critical", 0.85, model.StatusWarning},
		{"below critical", 0.82, model.StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, b))
		})
	}
}

func TestClassify_LowerIsBetter(t *testing.T) {
	b := Bound{Critical: 400, Warning: 360, HigherIsBetter: false}

	tests := []struct {
		name  string
		value float64
		want  model.Status
	}{
		{"well under", 300, model.StatusOK},
		{"exactly warning", 360, model.StatusOK},
		{"between bounds", 380, model.StatusWarning},
		{"exactly critical", 400, model.StatusWarning},
		{"over critical", 401, model.StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, b))
		})
	}
}

func TestClassify_ZeroToleranceCounter(t *testing.T) {
	// A zero/zero lower-is-better bound turns any positive count critical.
	b := Bound{Critical: 0, Warning: 0, HigherIsBetter: false}
	assert.Equal(t, model.StatusOK, Classify(0, b))
	assert.Equal(t, model.StatusCritical, Classify(1, b))
}

func TestEvaluate(t *testing.T) {
	cfg := Config{
		model.MetricEntitySimilarity: {Critical: 0.85, Warning: 0.90, HigherIsBetter: true},
		model.MetricCrimeSimilarity:  {Critical: 0.85, Warning: 0.90, HigherIsBetter: true},
		model.MetricCriticalMisses:   {Critical: 0, Warning: 0, HigherIsBetter: false},
	}

	metrics := map[string]float64{
		model.MetricEntitySimilarity: 0.80, // critical
		model.MetricCrimeSimilarity:  0.88, // warning
		model.MetricCriticalMisses:   0,    // ok
		model.MetricCrimeRecall:      0.50, // unconfigured, ignored
	}

	status, violations := Evaluate(metrics, cfg)
	assert.Equal(t, model.StatusCritical, status)
	require.Len(t, violations, 2)

	// Violations are ordered by metric name.
	assert.Equal(t, model.MetricCrimeSimilarity, violations[0].Metric)
	assert.Equal(t, model.StatusWarning, violations[0].Severity)
	assert.Equal(t, 0.90, violations[0].Bound)

	assert.Equal(t, model.MetricEntitySimilarity, violations[1].Metric)
	assert.Equal(t, model.StatusCritical, violations[1].Severity)
	assert.Equal(t, 0.85, violations[1].Bound)
}

func TestEvaluate_AllClear(t *testing.T) {
	cfg := Config{
		model.MetricEntitySimilarity: {Critical: 0.85, Warning: 0.90, HigherIsBetter: true},
	}
	status, violations := Evaluate(map[string]float64{model.MetricEntitySimilarity: 0.97}, cfg)
	assert.Equal(t, model.StatusOK, status)
	assert.Empty(t, violations)
}

func TestEvaluate_ConfiguredMetricAbsent(t *testing.T) {
	cfg := Config{
		model.MetricArticlesPerPerson: {Critical: 400, Warning: 360, HigherIsBetter: false},
	}
	status, violations := Evaluate(map[string]float64{model.MetricEntitySimilarity: 0.10}, cfg)
	assert.Equal(t, model.StatusOK, status)
	assert.Empty(t, violations)
}
