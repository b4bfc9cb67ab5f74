package main

import (
	"fmt"
	"time"

	"tradeline/internal/config"
	"tradeline/internal/jobs"
	"tradeline/pkg/logger"
	"tradeline/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run the processing queue",
	}
	cmd.AddCommand(newJobsDrainCmd())
	cmd.AddCommand(newJobsListCmd())
	return cmd
}

func newJobsDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Claim and run one batch of due jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, closer := logger.New(cfg.App.Env, logger.Options{File: cfg.Log.File})
			defer closer.Close()

			ctx := cmd.Context()
			db, err := utils.OpenPostgresWithRetry(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{}, cfg.DB.ConnectAttempts, log)
			if err != nil {
				return err
			}
			defer db.Close()

			transcriber, err := jobs.NewTranscriptionDispatcher(cfg.Jobs.TranscriptionEndpoint, cfg.Jobs.TranscriptionTimeout)
			if err != nil {
				return err
			}
			w, err := jobs.NewWorker(jobs.NewPostgresQueue(db), jobs.WorkerConfig{
				BatchSize:   cfg.Jobs.BatchSize,
				MaxAttempts: cfg.Jobs.MaxAttempts,
				PoolSize:    cfg.Jobs.PoolSize,
				JobTimeout:  cfg.Jobs.TranscriptionTimeout + 5*time.Second,
			}, log)
			if err != nil {
				return err
			}
			defer w.Close()
			w.Register(jobs.OpTranscribeRecording, transcriber)

			stats, err := w.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d done=%d retried=%d failed=%d\n",
				stats.Claimed, stats.Done, stats.Retried, stats.Failed)
			return nil
		},
	}
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list CALL_SID",
		Short: "List the jobs recorded for a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := utils.OpenPostgres(cmd.Context(), "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := jobs.NewPostgresQueue(db).ListByCall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no jobs")
				return nil
			}
			for _, j := range list {
				fmt.Fprintf(out, "%s  %-20s  %-10s  attempts=%d  next_run_at=%s  %s\n",
					j.ID, j.Operation, j.Status, j.Attempts, j.NextRunAt.Format(time.RFC3339), j.LastError)
			}
			return nil
		},
	}
}
