package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP bridge and keep the index synced",
		Long: `Runs the long-lived sidecar: the HTTP bridge for gateway hooks plus the
periodic index sync. Config file edits to the excluded notebooks apply
without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newServerLogger(zerolog.InfoLevel)

			p, err := plugin.Register(plugin.Options{
				ConfigPath:  configPath,
				Logger:      log,
				WatchConfig: true,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			if addr != "" {
				p.Config().Web.Addr = addr
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				log.Info().Str("signal", sig.String()).Msg("shutting down")
				cancel()
			}()

			return web.Serve(ctx, p, Version, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:18765)")
	return cmd
}
