package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/cli"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/recall"
)

func statusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show note-store, index and bridge state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCmd(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// bridgeStatus is what a running serve process reports about itself.
type bridgeStatus struct {
	Addr    string                   `json:"addr"`
	Syncing bool                     `json:"syncing"`
	Recall  recall.TelemetrySnapshot `json:"recall"`
}

func runStatusCmd(jsonOut bool) error {
	p, err := registerPlugin(zerolog.WarnLevel, false)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health := p.Health(ctx)
	bridge := probeBridge(p.Config().Web.Addr)

	if jsonOut {
		out := struct {
			plugin.Health
			Bridge     *bridgeStatus `json:"bridge,omitempty"`
			ConfigFile string        `json:"configFile,omitempty"`
		}{Health: health, Bridge: bridge, ConfigFile: loadedConfigFile()}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	cli.Header("openclaw-siyuan status")

	cli.Section("Note store")
	fmt.Printf("  URL:     %s\n", p.Config().Siyuan.APIURL)
	if health.Remote.Available {
		fmt.Printf("  Status:  %sreachable%s (v%s)\n", cli.Green, cli.Reset, health.Remote.Version)
	} else {
		fmt.Printf("  Status:  %sunreachable%s\n", cli.Red, cli.Reset)
		if health.Remote.Err != "" {
			fmt.Printf("  %s%s%s\n", cli.Dim, health.Remote.Err, cli.Reset)
		}
	}

	cli.Section("Index")
	if !p.Config().Index.Enabled {
		fmt.Printf("  %sdisabled%s\n", cli.Dim, cli.Reset)
	} else {
		st := health.Index
		fmt.Printf("  Docs:    %s (%s blocks)\n",
			cli.FormatNumber(int(st.TotalDocs)), cli.FormatNumber(int(st.TotalBlocks)))
		if st.SkippedDocs > 0 {
			fmt.Printf("  Skipped: %s (excluded notebooks)\n", cli.FormatNumber(int(st.SkippedDocs)))
		}
		if st.LastSync == "" {
			fmt.Printf("  Synced:  %snever — run 'openclaw-siyuan sync'%s\n", cli.Yellow, cli.Reset)
		} else if ts, err := time.Parse(time.RFC3339, st.LastSync); err == nil {
			fmt.Printf("  Synced:  %s ago\n", formatDuration(time.Since(ts)))
		}
		fmt.Printf("  DB:      %s", cli.ShortenHome(st.DBPath))
		if info, err := os.Stat(st.DBPath); err == nil {
			fmt.Printf(" %s(%.1f MB)%s", cli.Dim, float64(info.Size())/(1024*1024), cli.Reset)
		}
		fmt.Println()
	}

	cli.Section("Bridge")
	if bridge == nil {
		fmt.Printf("  %snot running%s (start with: openclaw-siyuan serve)\n", cli.Dim, cli.Reset)
	} else {
		fmt.Printf("  Status:  %srunning%s on %s\n", cli.Green, cli.Reset, bridge.Addr)
		if bridge.Syncing {
			fmt.Printf("  Sync:    %sin progress%s\n", cli.Yellow, cli.Reset)
		}
		fmt.Printf("  Recalls: %d served, %d skipped, %d docs, ~%d tokens\n",
			bridge.Recall.Recalls, bridge.Recall.Skipped, bridge.Recall.DocsReturned, bridge.Recall.EstTokens)
	}

	cli.Section("Config")
	if cf := loadedConfigFile(); cf != "" {
		fmt.Printf("  Loaded:  %s\n", cli.ShortenHome(cf))
	} else {
		fmt.Printf("  %sno config file%s (using defaults)\n", cli.Dim, cli.Reset)
	}

	cli.Footer()
	return nil
}

// probeBridge asks a running serve process for its live counters.
// Returns nil when no bridge answers on addr.
func probeBridge(addr string) *bridgeStatus {
	if addr == "" {
		return nil
	}
	client := &http.Client{Timeout: time.Second}

	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	var hz struct {
		Syncing bool `json:"syncing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hz); err != nil {
		return nil
	}

	b := &bridgeStatus{Addr: addr, Syncing: hz.Syncing}
	if resp, err := client.Get("http://" + addr + "/api/stats"); err == nil {
		defer resp.Body.Close()
		var stats struct {
			Recall recall.TelemetrySnapshot `json:"recall"`
		}
		if json.NewDecoder(resp.Body).Decode(&stats) == nil {
			b.Recall = stats.Recall
		}
	}
	return b
}

func loadedConfigFile() string {
	if configPath != "" {
		return configPath
	}
	return config.FindConfigFile()
}
