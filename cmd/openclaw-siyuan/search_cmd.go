package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/cli"
)

func searchCmd() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the local index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchCmd(strings.Join(args, " "), limit, jsonOut)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runSearchCmd(query string, limit int, jsonOut bool) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("empty search query")
	}

	p, err := registerPlugin(zerolog.WarnLevel, false)
	if err != nil {
		return err
	}
	defer p.Close()

	blocks, err := p.Engine().SearchLocal(query, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonOut {
		data, _ := json.MarshalIndent(blocks, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(blocks) == 0 {
		fmt.Println("\n  No results found.")
		fmt.Printf("  %sIf the index is new, run: openclaw-siyuan sync%s\n\n", cli.Dim, cli.Reset)
		return nil
	}

	for i, b := range blocks {
		title := b.Title
		if title == "" {
			title = b.DocID
		}
		fmt.Printf("\n%d. %s %s(%.2f)%s\n", i+1, title, cli.Dim, b.Score, cli.Reset)
		if b.HPath != "" {
			fmt.Printf("   %s\n", b.HPath)
		}
		fmt.Printf("   %s\n", compactExcerpt(b.Content, 150))
	}
	fmt.Println()
	return nil
}

// compactExcerpt folds the text onto one line and truncates it to max
// runes.
func compactExcerpt(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
