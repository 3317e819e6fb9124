// Package siyuan is a typed client for the note-store HTTP API. Every call is
// a JSON POST carrying the API token; every response uses the
// {code, msg, data} envelope, where a non-zero code is a *RemoteError.
package siyuan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxResponseBytes = 32 * 1024 * 1024

// Client talks to a note-store kernel over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        zerolog.Logger
}

// NewClient creates a client for the given base URL and API token. timeout
// bounds each request end to end.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		log:        logger.With().Str("component", "siyuan").Logger(),
	}
}

// post sends one envelope request and returns the raw data payload.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrTransport, endpoint, resp.StatusCode, string(snippet))
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrProtocol, endpoint, err)
	}

	c.log.Debug().
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Int("code", env.Code).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if env.Code != 0 {
		return nil, &RemoteError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// HealthCheck probes /api/system/version. It never returns an error; failures
// come back as Available=false with a display string.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	data, err := c.post(ctx, "/api/system/version", nil)
	if err != nil {
		return HealthStatus{Available: false, Err: err.Error()}
	}
	var version string
	if err := json.Unmarshal(data, &version); err != nil {
		// Some kernels wrap the version in an object.
		var obj struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &obj); err != nil || obj.Version == "" {
			return HealthStatus{Available: true}
		}
		version = obj.Version
	}
	return HealthStatus{Available: true, Version: version}
}

// SQL forwards a read-only SQL statement and returns the raw rows.
func (c *Client) SQL(ctx context.Context, stmt string) ([]map[string]any, error) {
	data, err := c.post(ctx, "/api/query/sql", map[string]string{"stmt": stmt})
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: sql rows: %v", ErrProtocol, err)
	}
	return rows, nil
}

// SearchFullText runs the kernel's full-text search and returns data.blocks.
func (c *Client) SearchFullText(ctx context.Context, query string, opts FulltextOptions) ([]Block, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Size <= 0 {
		opts.Size = 20
	}
	payload := map[string]any{
		"query": query,
		"page":  opts.Page,
		"size":  opts.Size,
	}
	for k, v := range opts.Extra {
		payload[k] = v
	}

	data, err := c.post(ctx, "/api/search/fullTextSearchBlock", payload)
	if err != nil {
		return nil, err
	}
	var result struct {
		Blocks []Block `json:"blocks"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: fulltext blocks: %v", ErrProtocol, err)
	}
	return result.Blocks, nil
}

// GetBlockInfo returns hpath/updated metadata for a block id.
func (c *Client) GetBlockInfo(ctx context.Context, id string) (*BlockInfo, error) {
	data, err := c.post(ctx, "/api/block/getBlockInfo", map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	var info BlockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: block info: %v", ErrProtocol, err)
	}
	return &info, nil
}

// GetBlockKramdown returns the canonical markdown-with-attributes source of a
// block (for a document id, the whole document).
func (c *Client) GetBlockKramdown(ctx context.Context, id string) (*BlockKramdown, error) {
	data, err := c.post(ctx, "/api/block/getBlockKramdown", map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	var kd BlockKramdown
	if err := json.Unmarshal(data, &kd); err != nil {
		return nil, fmt.Errorf("%w: kramdown: %v", ErrProtocol, err)
	}
	if kd.ID == "" {
		kd.ID = id
	}
	return &kd, nil
}

// ListNotebooks returns all notebooks, including closed ones.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	data, err := c.post(ctx, "/api/notebook/lsNotebooks", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Notebooks []Notebook `json:"notebooks"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: notebooks: %v", ErrProtocol, err)
	}
	return result.Notebooks, nil
}

// Write-side operations. The conversation writer consumes these; recall never
// mutates the store.

// AppendBlock appends markdown under a parent block and returns the new id.
func (c *Client) AppendBlock(ctx context.Context, parentID, markdown string) (string, error) {
	data, err := c.post(ctx, "/api/block/appendBlock", map[string]string{
		"dataType": "markdown",
		"parentID": parentID,
		"data":     markdown,
	})
	if err != nil {
		return "", err
	}
	return normalizeTransactionResult(data)
}

// UpdateBlock replaces a block's markdown in place.
func (c *Client) UpdateBlock(ctx context.Context, id, markdown string) error {
	_, err := c.post(ctx, "/api/block/updateBlock", map[string]string{
		"dataType": "markdown",
		"id":       id,
		"data":     markdown,
	})
	return err
}

// CreateDocWithMarkdown creates a document at hpath inside a notebook and
// returns the new document id.
func (c *Client) CreateDocWithMarkdown(ctx context.Context, notebookID, hpath, markdown string) (string, error) {
	data, err := c.post(ctx, "/api/filetree/createDocWithMd", map[string]string{
		"notebook": notebookID,
		"path":     hpath,
		"markdown": markdown,
	})
	if err != nil {
		return "", err
	}
	return normalizeTransactionResult(data)
}

// SetBlockAttrs sets custom attributes on a block.
func (c *Client) SetBlockAttrs(ctx context.Context, id string, attrs map[string]string) error {
	_, err := c.post(ctx, "/api/attr/setBlockAttrs", map[string]any{
		"id":    id,
		"attrs": attrs,
	})
	return err
}

// GetDocByPath resolves a notebook-relative hpath to document ids.
func (c *Client) GetDocByPath(ctx context.Context, notebookID, hpath string) ([]string, error) {
	data, err := c.post(ctx, "/api/filetree/getIDsByHPath", map[string]string{
		"notebook": notebookID,
		"path":     hpath,
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: doc ids: %v", ErrProtocol, err)
	}
	return ids, nil
}
