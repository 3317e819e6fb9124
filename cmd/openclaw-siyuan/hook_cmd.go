package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/hooks"
)

func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "hook <event>",
		Short:     "Run one gateway hook: event JSON on stdin, response JSON on stdout",
		Long: `Runs a single gateway lifecycle hook. The gateway pipes the event payload
to stdin and reads the JSON response from stdout.

Events:
  before_agent_start   recall notes for the prompt, respond with context
  agent_end            no-op acknowledgement
  command:new          no-op acknowledgement`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"before_agent_start", "agent_end", "command:new"},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The hook runner derives its per-event logger from the global.
			log.Logger = newServerLogger(zerolog.WarnLevel)

			p, err := registerPlugin(zerolog.ErrorLevel, false)
			if err != nil {
				// The gateway must always get a response; a broken
				// setup degrades to an empty one.
				fmt.Println("{}")
				fmt.Fprintf(os.Stderr, "hook setup failed: %v\n", err)
				return nil
			}
			defer p.Close()

			hooks.Run(p, args[0])
			return nil
		},
	}
}
