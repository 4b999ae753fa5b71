/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/skilltracker/apiserver/config"
	"github.com/skilltracker/apiserver/internal/db"
	"github.com/skilltracker/apiserver/internal/metrics"
	"github.com/skilltracker/apiserver/internal/mq"
	"github.com/skilltracker/apiserver/internal/reconcile"
	"github.com/skilltracker/apiserver/internal/storage"
	"github.com/skilltracker/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// reconcilerCmd represents the reconciler command.
var reconcilerCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Runs the partial-write reconciler",
	Long: `Consumes reconcile events published by the API server and repairs
skill records that diverged from their owner's embedded cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		queue, err := mq.FromConfig(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("init mq failed: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_PROVIDER is required for the reconciler")
		}
		defer queue.Close()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		archive, err := storage.FromConfig(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage failed: %w", err)
		}
		if archive != nil {
			if err := archive.EnsureBucket(ctx); err != nil {
				return fmt.Errorf("ensure bucket failed: %w", err)
			}
		}

		collector := metrics.NewCollector(prometheus.NewRegistry())
		reconciler := reconcile.NewReconciler(
			store.NewUserRepository(dbConn),
			store.NewSkillRepository(dbConn),
			archive,
			collector,
		)

		fmt.Fprintf(os.Stderr, "reconciler consuming %q\n", cfg.MQ.Channel)
		if err := reconciler.Run(ctx, queue, cfg.MQ.Channel); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcilerCmd)
}
