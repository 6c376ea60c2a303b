package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/storage/sqlite"
	"github.com/fitlocker/fitlocker/syncer"
	"github.com/fitlocker/fitlocker/transport/httpremote"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass against the cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.CloudConfigured() {
				return fmt.Errorf("no remote base URL configured, nothing to sync against")
			}

			local, err := sqlite.NewWithDataSource(cfg.DBPath)
			if err != nil {
				return err
			}
			defer local.Close()

			remote := httpremote.NewClient(cfg.Remote.BaseURL,
				httpremote.WithToken(cfg.Remote.Token))
			defer remote.Close()

			adapter := syncer.New(local, remote,
				syncer.WithMetrics(syncer.NewPrometheusCollector(prometheus.DefaultRegisterer)))

			ctx := cmd.Context()
			if err := local.InitWithTimeout(ctx, cfg.InitTimeout); err != nil {
				return err
			}
			if err := adapter.EnableCloud(ctx); err != nil {
				return err
			}
			if !adapter.IsCloudEnabled() {
				return fmt.Errorf("cloud handshake failed, see log for details")
			}

			result, err := adapter.SyncToCloud(ctx)
			if err != nil {
				return err
			}

			logging.Info("sync finished",
				slog.Int("records_uploaded", result.RecordsUploaded),
				slog.Int("collections_failed", len(result.CollectionsFailed)),
				slog.Duration("duration", result.Duration),
			)
			for i, collection := range result.CollectionsFailed {
				fmt.Printf("collection %s failed: %v\n", collection, result.Errors[i])
			}
			fmt.Printf("uploaded %d records in %s\n", result.RecordsUploaded, result.Duration.Round(0))
			if n := adapter.UnconfirmedUploads(); n > 0 {
				fmt.Printf("warning: %d uploads lack a confirmed local rewrite and may duplicate on the next pass\n", n)
			}
			return nil
		},
	}
}
