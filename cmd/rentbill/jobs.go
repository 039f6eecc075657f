package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/rentbill/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run scheduler jobs on demand",
	}
	cmd.AddCommand(jobsRunCmd(), jobsListCmd())
	return cmd
}

func jobsRunCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job immediately, bypassing the scheduler lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched *scheduler.Scheduler
				log   *zap.Logger
			)
			app := fx.New(
				infrastructure(),
				domains(),
				fx.Provide(scheduler.ProvideConfig, scheduler.NewLocker, scheduler.New),
				fx.Populate(&sched, &log),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = app.Stop(context.Background())
			}()

			if err := sched.RunJob(ctx, args[0]); err != nil {
				return err
			}
			log.Info("job finished", zap.String("job", args[0]))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the run")
	return cmd
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job names",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range []string{scheduler.JobMarkOverdue, scheduler.JobApplyLateFees} {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
