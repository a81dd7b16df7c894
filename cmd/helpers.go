package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-aml/riskwatch/internal/ledger"
	"github.com/meridian-aml/riskwatch/internal/report"
)

// initLedger opens the authoritative SQLite backend and, when configured,
// the Postgres projection, and prepares schemas on both.
func initLedger(ctx context.Context) (*ledger.Ledger, error) {
	sqlite, err := ledger.NewSQLite(cfg.Ledger.SQLitePath)
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite backend")
	}

	var projection ledger.Backend
	if cfg.Ledger.PostgresURL != "" {
		pg, err := ledger.NewPostgres(ctx, cfg.Ledger.PostgresURL, &cfg.Ledger.Pool)
		if err != nil {
			sqlite.Close()
			return nil, eris.Wrap(err, "open postgres projection")
		}
		projection = pg
	} else {
		zap.L().Warn("no postgres projection configured, ledger runs on sqlite only")
	}

	ld := ledger.New(sqlite, projection)
	if err := ld.Migrate(ctx); err != nil {
		ld.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return ld, nil
}

// dispatcherOptions assembles the configured notification sinks.
func dispatcherOptions() []report.Option {
	var opts []report.Option
	if cfg.Alerts.WebhookURL != "" {
		opts = append(opts, report.WithNotifier(report.NewWebhookNotifier(cfg.Alerts.WebhookURL)))
	}
	if cfg.Alerts.SlackToken != "" && cfg.Alerts.SlackChannel != "" {
		opts = append(opts, report.WithNotifier(report.NewSlackNotifier(cfg.Alerts.SlackToken, cfg.Alerts.SlackChannel)))
	}
	return opts
}
