package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var (
		full    bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the local index from the note store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncCmd(full, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Rebuild every document instead of only changed ones")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runSyncCmd(full, jsonOut bool) error {
	p, err := registerPlugin(zerolog.WarnLevel, false)
	if err != nil {
		return err
	}
	defer p.Close()

	// Initial syncs of large stores take a while.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stats, err := p.TrySync(ctx, full)
	if err != nil {
		return err
	}

	if jsonOut {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	took := time.Duration(stats.DurationMs) * time.Millisecond
	fmt.Printf("Sync (%s): %d docs seen, %d indexed, %d deleted, %d skipped, %d errors in %s\n",
		stats.Mode, stats.Docs, stats.Indexed, stats.Deleted, stats.Skipped, stats.Errors, took.Round(time.Millisecond))
	return nil
}
