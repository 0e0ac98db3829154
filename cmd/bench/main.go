// README: Benchmark CLI; runs a YAML scenario against the configured providers and validates itinerary files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "bench",
		Short:        "Benchmark AI providers on travel itinerary scenarios",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newValidateCmd())
	return root
}

type runFlags struct {
	Scenario   string
	DSN        string
	Zip        string
	Logs       bool
	Migrations string
	Timeout    time.Duration
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark scenario and print one PASS/FAIL line per run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := loadScenario(f.Scenario)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if f.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.Timeout)
				defer cancel()
			}
			r, err := newRunner(ctx, f)
			if err != nil {
				return err
			}
			defer r.Close()

			failed, err := r.Run(ctx, sc, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d run(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Scenario, "scenario", "", "Scenario YAML path")
	cmd.Flags().StringVar(&f.DSN, "dsn", os.Getenv("TRIPBENCH_DB_DSN"), "Postgres DSN; empty keeps results in memory")
	cmd.Flags().StringVar(&f.Zip, "zip", "", "Write the session export ZIP to this path")
	cmd.Flags().BoolVar(&f.Logs, "logs", true, "Include prompt and logs in the export ZIP")
	cmd.Flags().StringVar(&f.Migrations, "migrations", "", "Apply the *.sql files of this directory before running")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 10*time.Minute, "Total timeout")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var startDate string
	cmd := &cobra.Command{
		Use:   "validate <itinerary.json>",
		Short: "Print the validation report of an itinerary file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := validateFile(args[0], startDate, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s failed validation", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "Lay the normalized trip out from this date (YYYY-MM-DD)")
	return cmd
}
