package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/cli"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

func doctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the setup and diagnose issues",
		Long:  "Runs health checks: config parses, the note store answers, the API token works, the local index opens and full-text search runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctorCmd(jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// doctorCheck is a single health check result.
type doctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "skip", "fail"
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// doctorReport is the complete health check report.
type doctorReport struct {
	Checks  []doctorCheck `json:"checks"`
	Summary struct {
		Total   int `json:"total"`
		Passed  int `json:"passed"`
		Skipped int `json:"skipped"`
		Failed  int `json:"failed"`
	} `json:"summary"`
}

func runDoctorCmd(jsonOut bool) error {
	var report doctorReport

	check := func(name, hint string, fn func() (string, error)) {
		detail, err := fn()
		if err != nil {
			report.Checks = append(report.Checks, doctorCheck{Name: name, Status: "fail", Message: err.Error(), Hint: hint})
			report.Summary.Failed++
			if !jsonOut {
				cli.Fail(name, err, hint)
			}
			return
		}
		report.Checks = append(report.Checks, doctorCheck{Name: name, Status: "pass", Message: detail})
		report.Summary.Passed++
		if !jsonOut {
			cli.Pass(name, detail)
		}
	}
	skip := func(name, reason string) {
		report.Checks = append(report.Checks, doctorCheck{Name: name, Status: "skip", Message: reason})
		report.Summary.Skipped++
		if !jsonOut {
			cli.Skip(name, reason)
		}
	}

	if !jsonOut {
		cli.Header("openclaw-siyuan doctor")
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var cfg *config.Config
	check("config", "fix the file or delete it to fall back to defaults", func() (string, error) {
		c, err := config.Load(configPath, nil)
		if err != nil {
			return "", err
		}
		cfg = c
		if cf := loadedConfigFile(); cf != "" {
			return cli.ShortenHome(cf), nil
		}
		return "built-in defaults", nil
	})

	remoteUp := false
	if cfg == nil {
		skip("note store", "config did not load")
		skip("api token", "config did not load")
	} else {
		client := siyuan.NewClient(cfg.Siyuan.APIURL, cfg.Siyuan.APIToken, cfg.Siyuan.Timeout(), zerolog.Nop())

		check("note store", "is SiYuan running? check siyuan.apiUrl", func() (string, error) {
			hs := client.HealthCheck(ctx)
			if !hs.Available {
				return "", fmt.Errorf("%s", hs.Err)
			}
			remoteUp = true
			return "v" + hs.Version, nil
		})

		if !remoteUp {
			skip("api token", "note store unreachable")
		} else {
			check("api token", "check siyuan.apiToken (Settings → About → API token)", func() (string, error) {
				if _, err := client.SQL(ctx, "SELECT id FROM blocks LIMIT 1"); err != nil {
					return "", err
				}
				return "", nil
			})
		}
	}

	if cfg == nil {
		skip("index db", "config did not load")
		skip("full-text search", "config did not load")
		skip("index freshness", "config did not load")
	} else if !cfg.Index.Enabled {
		skip("index db", "indexing disabled")
		skip("full-text search", "indexing disabled")
		skip("index freshness", "indexing disabled")
	} else {
		var db *store.DB
		var stats store.Stats
		check("index db", "check index.dbPath and directory permissions", func() (string, error) {
			path, err := cfg.Index.ResolveDBPath()
			if err != nil {
				return "", err
			}
			db, err = store.Open(path, cfg.Index.ExcludedNotebookList(), zerolog.Nop())
			if err != nil {
				return "", err
			}
			stats, err = db.Stats()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s docs, %s blocks", cli.FormatNumber(int(stats.TotalDocs)), cli.FormatNumber(int(stats.TotalBlocks))), nil
		})
		if db != nil {
			defer db.Close()

			check("full-text search", "the index may be corrupt; delete the db file and resync", func() (string, error) {
				if _, err := db.Search(`"doctor"`, 1); err != nil {
					return "", err
				}
				return "", nil
			})

			check("index freshness", "run: openclaw-siyuan sync", func() (string, error) {
				if stats.LastSync == "" {
					return "", fmt.Errorf("never synced")
				}
				ts, err := time.Parse(time.RFC3339, stats.LastSync)
				if err != nil {
					return "", fmt.Errorf("bad last-sync timestamp %q", stats.LastSync)
				}
				age := time.Since(ts)
				if age > 3*cfg.Index.SyncInterval() && age > time.Hour {
					return "", fmt.Errorf("last sync %s ago", formatDuration(age))
				}
				return fmt.Sprintf("last sync %s ago", formatDuration(age)), nil
			})
		} else {
			skip("full-text search", "index db unavailable")
			skip("index freshness", "index db unavailable")
		}
	}

	report.Summary.Total = report.Summary.Passed + report.Summary.Skipped + report.Summary.Failed

	if jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		fmt.Println()
		if report.Summary.Failed == 0 {
			fmt.Printf("  %s%d checks passed%s", cli.Green, report.Summary.Passed, cli.Reset)
		} else {
			fmt.Printf("  %s%d of %d checks failed%s", cli.Red, report.Summary.Failed, report.Summary.Total, cli.Reset)
		}
		if report.Summary.Skipped > 0 {
			fmt.Printf(" %s(%d skipped)%s", cli.Dim, report.Summary.Skipped, cli.Reset)
		}
		fmt.Println()
		cli.Footer()
	}

	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d check(s) failed", report.Summary.Failed)
	}
	return nil
}
