package report

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/meridian-aml/riskwatch/internal/model"
)

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(ctx context.Context, summary string, details map[string]any) error {
	r.calls = append(r.calls, summary)
	return nil
}

func verdictRecord(status model.Status) model.VerdictRecord {
	return model.VerdictRecord{
		Timestamp: time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC),
		Kind:      model.WindowMonthly,
		Period:    "2025-03",
		Passed:    status != model.StatusCritical,
		Status:    status,
		Means:     map[string]float64{model.MetricEntitySimilarity: 0.80},
	}
}

func readLines(t *testing.T, path string) []model.VerdictRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []model.VerdictRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec model.VerdictRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		recs = append(recs, rec)
	}
	require.NoError(t, scanner.Err())
	return recs
}

func TestEmit_AppendsEveryVerdict(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "verdicts.jsonl")
	d := New(logPath)
	ctx := context.Background()

	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusOK)))
	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusCritical)))
	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusWarning)))

	recs := readLines(t, logPath)
	require.Len(t, recs, 3)
	assert.Equal(t, model.StatusOK, recs[0].Status)
	assert.Equal(t, model.StatusCritical, recs[1].Status)
	assert.Equal(t, model.StatusWarning, recs[2].Status)
}

func TestEmit_NotifiesOnCriticalOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "verdicts.jsonl")
	sink := &recordingNotifier{}
	d := New(logPath, WithNotifier(sink))
	ctx := context.Background()

	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusOK)))
	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusWarning)))
	assert.Empty(t, sink.calls)

	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusCritical)))
	require.Len(t, sink.calls, 1)
	assert.Contains(t, sink.calls[0], "2025-03")
	assert.Contains(t, sink.calls[0], "FAILED")
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, summary string, details map[string]any) error {
	return os.ErrDeadlineExceeded
}

func TestEmit_NotifierFailureDoesNotFailEmit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "verdicts.jsonl")
	d := New(logPath, WithNotifier(failingNotifier{}))

	require.NoError(t, d.Emit(context.Background(), verdictRecord(model.StatusCritical)))
	assert.Len(t, readLines(t, logPath), 1)
}

func TestEmit_RateLimitSkipsNotification(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "verdicts.jsonl")
	sink := &recordingNotifier{}
	// One token, no refill within the test.
	d := New(logPath,
		WithNotifier(sink),
		WithNotifyLimit(rate.NewLimiter(rate.Limit(0.001), 1)),
	)
	ctx := context.Background()

	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusCritical)))
	require.NoError(t, d.Emit(ctx, verdictRecord(model.StatusCritical)))

	// The second critical is logged but not re-broadcast.
	assert.Len(t, sink.calls, 1)
	assert.Len(t, readLines(t, logPath), 2)
}
