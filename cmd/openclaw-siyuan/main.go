// Package main is the entrypoint for the openclaw-siyuan CLI.
package main

import (
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "openclaw-siyuan",
		Short: "SiYuan note recall for OpenClaw",
		Long: "openclaw-siyuan bridges a chat gateway to a SiYuan note store: it keeps\n" +
			"a local full-text index of your notes and recalls the relevant ones into\n" +
			"the prompt context before the agent runs.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./openclaw-siyuan.toml, then ~/.config/openclaw-siyuan/config.toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")

	root.AddCommand(hookCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(recallCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the openclaw-siyuan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("openclaw-siyuan %s\n", Version)
		},
	}
}

// newLogger builds the stderr console logger. Every mode logs to
// stderr; hook and mcp need stdout clean for their wire protocols.
func newLogger(base zerolog.Level) zerolog.Logger {
	if verbose {
		base = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(base).With().Timestamp().Logger()
}

// newServerLogger emits JSON lines on stderr for log collectors.
// Interactive commands use the console writer instead.
func newServerLogger(base zerolog.Level) zerolog.Logger {
	if verbose {
		base = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(base).With().Timestamp().Logger()
}

// registerPlugin boots the coordinator with the global flags applied.
func registerPlugin(level zerolog.Level, watch bool) (*plugin.Plugin, error) {
	return plugin.Register(plugin.Options{
		ConfigPath:  configPath,
		Logger:      newLogger(level),
		WatchConfig: watch,
	})
}

// formatDuration renders an age like "5 minutes" or "1 day" for the
// status and doctor output.
func formatDuration(d time.Duration) string {
	n, unit := int(d.Seconds()), "second"
	switch {
	case d >= 24*time.Hour:
		n, unit = int(d.Hours())/24, "day"
	case d >= time.Hour:
		n, unit = int(d.Hours()), "hour"
	case d >= time.Minute:
		n, unit = int(d.Minutes()), "minute"
	}
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
