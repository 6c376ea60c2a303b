package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/storage/sqlite"
	"github.com/fitlocker/fitlocker/syncer"
	"github.com/fitlocker/fitlocker/transport/httpremote"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report local store and cloud connectivity status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			local, err := sqlite.NewWithDataSource(cfg.DBPath)
			if err != nil {
				return err
			}
			defer local.Close()

			if err := local.InitWithTimeout(ctx, cfg.InitTimeout); err != nil {
				fmt.Printf("local store: init failed (%v)\n", err)
			} else if !local.Ready() {
				fmt.Println("local store: not ready (degraded mode)")
			} else {
				fmt.Printf("local store: ready (%s)\n", cfg.DBPath)
			}

			unsynced := 0
			for _, collection := range record.Collections {
				recs, err := local.GetAll(ctx, collection)
				if err != nil {
					continue
				}
				pending := 0
				for _, rec := range recs {
					if !rec.Synced() {
						pending++
					}
				}
				unsynced += pending
				fmt.Printf("  %-12s %4d records, %d pending upload\n", collection, len(recs), pending)
			}

			if !cfg.CloudConfigured() {
				fmt.Println("cloud: not configured")
				return nil
			}

			remote := httpremote.NewClient(cfg.Remote.BaseURL,
				httpremote.WithToken(cfg.Remote.Token))
			defer remote.Close()

			adapter := syncer.New(local, remote)
			if err := adapter.EnableCloud(ctx); err != nil {
				return err
			}
			if adapter.IsCloudEnabled() {
				fmt.Printf("cloud: reachable at %s (%d records pending upload)\n",
					cfg.Remote.BaseURL, unsynced)
			} else {
				fmt.Printf("cloud: unreachable at %s, running local-only\n", cfg.Remote.BaseURL)
			}
			return nil
		},
	}
}
