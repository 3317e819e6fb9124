package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/cli"
)

func recallCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "recall <prompt>",
		Short: "Preview what recall would inject for a prompt",
		Long: `Runs the full recall pipeline for a prompt and prints the result without
touching the gateway: the gate decision, the recalled documents, and the
context block exactly as it would be prepended.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecallCmd(strings.Join(args, " "), jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runRecallCmd(prompt string, jsonOut bool) error {
	p, err := registerPlugin(zerolog.WarnLevel, false)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res := p.Recall(ctx, prompt)

	if jsonOut {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if res.Skipped {
		fmt.Printf("Skipped (%s)\n", res.Reason)
		return nil
	}
	if len(res.Docs) == 0 {
		fmt.Printf("No documents recalled (%s)\n", res.Reason)
		if res.Err != "" {
			fmt.Printf("%s%s%s\n", cli.Dim, res.Err, cli.Reset)
		}
		return nil
	}

	fmt.Printf("Recalled %d document(s), reason %s:\n", len(res.Docs), res.Reason)
	for _, d := range res.Docs {
		title := d.Title
		if title == "" {
			title = d.DocID
		}
		fmt.Printf("  %s%.2f%s  %s  %s%s%s\n", cli.Dim, d.Score, cli.Reset, title, cli.Dim, d.HPath, cli.Reset)
	}
	fmt.Printf("\n%s\n", res.Context)
	return nil
}
