// Package mcp exposes the recall subsystem as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
)

// Version is stamped by the caller before Serve.
var Version = "dev"

type tools struct {
	p *plugin.Plugin
}

// Serve runs the MCP server on stdio until the transport closes.
func Serve(ctx context.Context, p *plugin.Plugin) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "openclaw-siyuan",
		Version: Version,
	}, nil)

	registerTools(server, &tools{p: p})

	return server.Run(ctx, &mcp.StdioTransport{})
}

func registerTools(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the user's note index for matching blocks. Use this when you need background from their notes on a topic.\n\nArgs:\n  query: Natural language or keyword query\n  limit: Number of results (default 10, max 100)\n\nReturns ranked blocks with doc ids, paths, and content.",
	}, t.handleSearchNotes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall_preview",
		Description: "Run the full recall pipeline on a prompt and show what context would be injected, including gate decisions and the detected intent. Use this to explain or debug why a prompt did or did not pull notes.\n\nArgs:\n  prompt: The user prompt to analyze\n\nReturns the recall result: gate reason, intent, recalled docs, and the rendered context block.",
	}, t.handleRecallPreview)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_now",
		Description: "Sync the local note index with the note store. Use this if the user added or changed notes and search results look stale.\n\nArgs:\n  full: Rebuild the whole index instead of an incremental pass (default false)\n\nReturns sync statistics.",
	}, t.handleSyncNow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Check the size and freshness of the local note index. Use this to verify the index is up to date or to report its state to the user.\n\nReturns document and block counts plus the last sync time.",
	}, t.handleIndexStats)
}

// Tool input types

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language or keyword query"`
	Limit int    `json:"limit" jsonschema:"Number of results (default 10, max 100)"`
}

type recallInput struct {
	Prompt string `json:"prompt" jsonschema:"The user prompt to run recall for"`
}

type syncInput struct {
	Full bool `json:"full" jsonschema:"Rebuild the whole index instead of an incremental pass"`
}

type emptyInput struct{}

// Tool handlers. Failures come back as text so the model can relay them;
// a Go error would abort the whole call.

func (t *tools) handleSearchNotes(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return textResult("Error: query is required."), nil, nil
	}
	limit := clampLimit(input.Limit, 10)

	blocks, err := t.p.Engine().SearchLocal(input.Query, limit)
	if err != nil {
		return textResult(fmt.Sprintf("Search error: %v", err)), nil, nil
	}
	if len(blocks) == 0 {
		return textResult("No results found. The index may be empty; try sync_now() first."), nil, nil
	}

	data, _ := json.MarshalIndent(blocks, "", "  ")
	return textResult(string(data)), nil, nil
}

func (t *tools) handleRecallPreview(ctx context.Context, req *mcp.CallToolRequest, input recallInput) (*mcp.CallToolResult, any, error) {
	if input.Prompt == "" {
		return textResult("Error: prompt is required."), nil, nil
	}

	res := t.p.Recall(ctx, input.Prompt)
	data, _ := json.MarshalIndent(res, "", "  ")
	return textResult(string(data)), nil, nil
}

func (t *tools) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input syncInput) (*mcp.CallToolResult, any, error) {
	stats, err := t.p.TrySync(ctx, input.Full)
	switch {
	case errors.Is(err, plugin.ErrSyncRunning):
		return textResult("A sync is already running; try again shortly."), nil, nil
	case err != nil:
		return textResult(fmt.Sprintf("Sync error: %v", err)), nil, nil
	}

	data, _ := json.MarshalIndent(stats, "", "  ")
	return textResult(string(data)), nil, nil
}

func (t *tools) handleIndexStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	report, err := t.p.Status()
	if err != nil {
		return textResult(fmt.Sprintf("Stats error: %v", err)), nil, nil
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	return textResult(string(data)), nil, nil
}

// Helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
