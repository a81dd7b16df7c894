// Package report serializes verdicts to a durable append-only log and fans
// critical verdicts out to pluggable notification sinks.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-aml/riskwatch/internal/model"
)

// Notifier delivers a critical-verdict notification. Transport is a swappable
// capability: webhook, Slack, anything else.
type Notifier interface {
	Notify(ctx context.Context, summary string, details map[string]any) error
}

// Dispatcher appends verdict records to a line-delimited JSON log that is
// never rewritten or truncated, and notifies on CRITICAL verdicts.
type Dispatcher struct {
	logPath   string
	notifiers []Notifier
	limiter   *rate.Limiter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNotifier adds a notification sink.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifiers = append(d.notifiers, n) }
}

// WithNotifyLimit caps notification sends; excess criticals are still logged
// in the verdict log, just not re-broadcast.
func WithNotifyLimit(l *rate.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// New creates a Dispatcher writing to logPath.
func New(logPath string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logPath: logPath,
		// Default: at most 1 notification a minute, bursts of 3.
		limiter: rate.NewLimiter(rate.Limit(1.0/60.0), 3),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit appends one verdict line to the log and, for CRITICAL verdicts,
// invokes the notification sinks. Notification failures are logged and do
// not fail the emit: the log line is the durable record.
func (d *Dispatcher) Emit(ctx context.Context, rec model.VerdictRecord) error {
	if err := d.appendLine(rec); err != nil {
		return err
	}

	if rec.Status != model.StatusCritical {
		return nil
	}

	summary := fmt.Sprintf("%s window %s FAILED: %d violation(s)", rec.Kind, rec.Period, len(rec.Violations))
	details := map[string]any{
		"kind":       rec.Kind,
		"period":     rec.Period,
		"metrics":    rec.Means,
		"violations": rec.Violations,
	}

	for _, n := range d.notifiers {
		if d.limiter != nil && !d.limiter.Allow() {
			zap.L().Warn("report: notification rate limit reached, skipping sink")
			break
		}
		if err := n.Notify(ctx, summary, details); err != nil {
			zap.L().Error("report: notification failed", zap.Error(err))
			continue
		}
		zap.L().Info("report: critical verdict notified",
			zap.String("kind", string(rec.Kind)),
			zap.String("period", rec.Period),
		)
	}
	return nil
}

// appendLine writes one JSON line with O_APPEND and fsync. The file is only
// ever opened for append.
func (d *Dispatcher) appendLine(rec model.VerdictRecord) error {
	if err := os.MkdirAll(filepath.Dir(d.logPath), 0o755); err != nil {
		return eris.Wrap(err, "report: create log dir")
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "report: marshal verdict")
	}

	f, err := os.OpenFile(d.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "report: open verdict log")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "report: append verdict")
	}
	if err := f.Sync(); err != nil {
		return eris.Wrap(err, "report: sync verdict log")
	}
	return nil
}
