package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowKind_PeriodKey(t *testing.T) {
	march := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	august := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	december := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		kind WindowKind
		at   time.Time
		want string
	}{
		{WindowMonthly, march, "2025-03"},
		{WindowMonthly, december, "2025-12"},
		{WindowQuarterly, march, "2025-Q1"},
		{WindowQuarterly, august, "2025-Q3"},
		{WindowQuarterly, december, "2025-Q4"},
		{WindowBiannual, march, "2025-H1"},
		{WindowBiannual, august, "2025-H2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.PeriodKey(tt.at))
		})
	}
}

func TestWindowKind_PeriodKey_StableWithinPeriod(t *testing.T) {
	first := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, WindowMonthly.PeriodKey(first), WindowMonthly.PeriodKey(last))
}

func TestWindowKind_Size(t *testing.T) {
	assert.Equal(t, 1, WindowMonthly.Size())
	assert.Equal(t, 3, WindowQuarterly.Size())
	assert.Equal(t, 6, WindowBiannual.Size())
}

func TestWindowKind_Valid(t *testing.T) {
	assert.True(t, WindowMonthly.Valid())
	assert.True(t, WindowQuarterly.Valid())
	assert.True(t, WindowBiannual.Valid())
	assert.False(t, WindowKind("weekly").Valid())
}

func TestStatus_Worse(t *testing.T) {
	assert.Equal(t, StatusCritical, StatusOK.Worse(StatusCritical))
	assert.Equal(t, StatusCritical, StatusCritical.Worse(StatusWarning))
	assert.Equal(t, StatusWarning, StatusOK.Worse(StatusWarning))
	assert.Equal(t, StatusOK, StatusOK.Worse(StatusOK))
}

func TestWindowVerdict_Record(t *testing.T) {
	v := &WindowVerdict{
		Kind:   WindowQuarterly,
		Period: "2025-Q2",
		Passed: false,
		Status: StatusCritical,
		Means:  map[string]float64{MetricEntitySimilarity: 0.82},
		Violations: []Violation{
			{Period: "2025-05", Metric: MetricEntitySimilarity, Value: 0.80, Bound: 0.85, Severity: StatusCritical},
		},
	}

	at := time.Date(2025, 7, 1, 6, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := v.Record(at)

	assert.Equal(t, at.UTC(), rec.Timestamp)
	assert.Equal(t, WindowQuarterly, rec.Kind)
	assert.Equal(t, "2025-Q2", rec.Period)
	assert.False(t, rec.Passed)
	assert.Equal(t, StatusCritical, rec.Status)
	assert.Len(t, rec.Violations, 1)
}
