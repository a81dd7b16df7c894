package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/report"
	"github.com/meridian-aml/riskwatch/internal/runner"
	"github.com/meridian-aml/riskwatch/internal/window"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the built-in scheduler daemon",
	Long:  "Drives monthly, quarterly, and bi-annual invocations from cron expressions in the config. A platform scheduler calling `riskwatch run` works just as well; this is for hosts without one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ld, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ld.Close()

		r := runner.New(cfg, ld, window.New(cfg.Data.LogsDir()), report.New(cfg.Data.VerdictLog(), dispatcherOptions()...))

		c := cron.New()
		entries := map[model.WindowKind]string{
			model.WindowMonthly:   cfg.Schedule.Monthly,
			model.WindowQuarterly: cfg.Schedule.Quarterly,
			model.WindowBiannual:  cfg.Schedule.Biannual,
		}

		registered := 0
		for kind, expr := range entries {
			if expr == "" {
				continue
			}
			if _, err := c.AddFunc(expr, func() { invokeScheduled(ctx, r, kind) }); err != nil {
				return eris.Wrapf(err, "invalid cron expression for %s: %q", kind, expr)
			}
			zap.L().Info("cadence scheduled",
				zap.String("kind", string(kind)),
				zap.String("cron", expr),
			)
			registered++
		}
		if registered == 0 {
			return eris.New("no cadences configured (schedule.monthly/quarterly/biannual are all empty)")
		}

		c.Start()
		defer c.Stop()

		<-ctx.Done()
		return nil
	},
}

// invokeScheduled runs one cadence tick. Failures are logged, never fatal to
// the daemon: the next tick gets another chance and the verdict log keeps
// the record.
func invokeScheduled(ctx context.Context, r *runner.Runner, kind model.WindowKind) {
	verdict, err := r.Invoke(ctx, time.Now(), kind)
	if err != nil {
		zap.L().Error("scheduled invocation failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("scheduled invocation complete",
		zap.String("kind", string(kind)),
		zap.String("period", verdict.Period),
		zap.Bool("passed", verdict.Passed),
	)
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
