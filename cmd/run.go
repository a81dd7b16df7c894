package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridian-aml/riskwatch/internal/model"
	"github.com/meridian-aml/riskwatch/internal/report"
	"github.com/meridian-aml/riskwatch/internal/runner"
	"github.com/meridian-aml/riskwatch/internal/window"
)

// errVerdictFailed signals a FAIL verdict so main can exit 1 without
// treating it as an operational error.
var errVerdictFailed = eris.New("window verdict failed")

var runCmd = &cobra.Command{
	Use:   "run <window-kind>",
	Short: "Run one monitoring invocation (monthly, quarterly, biannual)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind := model.WindowKind(args[0])
		if !kind.Valid() {
			return eris.Errorf("unknown window kind %q (want monthly, quarterly, or biannual)", args[0])
		}

		r, closeFn, err := buildRunner(cmd, kind)
		if err != nil {
			return err
		}
		defer closeFn()

		verdict, err := r.Invoke(ctx, time.Now(), kind)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			return eris.Wrap(err, "encode verdict")
		}

		if !verdict.Passed {
			return errVerdictFailed
		}
		return nil
	},
}

// buildRunner assembles the runner for one invocation. The ledger is only
// opened for monthly runs, the single kind that persists entity state.
func buildRunner(cmd *cobra.Command, kind model.WindowKind) (*runner.Runner, func(), error) {
	closeFn := func() {}

	r := runner.New(cfg, nil, window.New(cfg.Data.LogsDir()), report.New(cfg.Data.VerdictLog(), dispatcherOptions()...))
	if kind != model.WindowMonthly {
		return r, closeFn, nil
	}

	ld, err := initLedger(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	closeFn = func() { _ = ld.Close() }
	return runner.New(cfg, ld, window.New(cfg.Data.LogsDir()), report.New(cfg.Data.VerdictLog(), dispatcherOptions()...)), closeFn, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
