package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	mcpserver "github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the recall tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := registerPlugin(zerolog.ErrorLevel, false)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			mcpserver.Version = Version
			return mcpserver.Serve(ctx, p)
		},
	}
}
