package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stylekeep/wardrobe-pipeline/internal/reconcile"
)

var reconcileOnce bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair wardrobe items whose feature extraction never completed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if reconcileOnce {
			return env.Reconciler.Sweep(ctx)
		}

		scheduler := reconcile.NewScheduler(env.Reconciler, cfg.Reconcile.TickInterval())
		scheduler.Run(ctx)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single sweep and exit")
	rootCmd.AddCommand(reconcileCmd)
}
