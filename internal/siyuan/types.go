package siyuan

import "encoding/json"

// envelope is the response wrapper used by every note-store endpoint.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Block is a search hit as returned by the full-text endpoint. Field spellings
// differ between endpoints and server versions; the retrieval layer coalesces
// them after the fact, this struct only covers the full-text shape.
type Block struct {
	ID       string `json:"id"`
	RootID   string `json:"rootID"`
	Box      string `json:"box"`
	Path     string `json:"path"`
	HPath    string `json:"hPath"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Markdown string `json:"markdown"`
	Updated  string `json:"updated"`
}

// BlockInfo is the getBlockInfo response.
type BlockInfo struct {
	Box       string `json:"box"`
	Path      string `json:"path"`
	HPath     string `json:"hPath"`
	RootID    string `json:"rootID"`
	RootTitle string `json:"rootTitle"`
	Updated   string `json:"updated"`
}

// BlockKramdown is the getBlockKramdown response.
type BlockKramdown struct {
	ID       string `json:"id"`
	Kramdown string `json:"kramdown"`
}

// Notebook is one entry of the lsNotebooks response.
type Notebook struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// HealthStatus is the result of a health check. Err is a display string, not
// an error value: health checks never fail the caller.
type HealthStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version"`
	Err       string `json:"error,omitempty"`
}

// FulltextOptions tunes a full-text search call. Extra is merged verbatim into
// the request payload so version-specific knobs (method, orderBy, …) pass
// through without client changes.
type FulltextOptions struct {
	Page  int
	Size  int
	Extra map[string]any
}
