package hooks

import (
	"context"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
)

// RecallOutput is the before_agent_start response. An all-zero value
// marshals to {} and injects nothing.
type RecallOutput struct {
	PrependContext string   `json:"prependContext,omitempty"`
	RecalledDocs   []DocRef `json:"recalledDocs,omitempty"`
	Skipped        bool     `json:"skipped,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// DocRef identifies one recalled document for gateway-side display.
type DocRef struct {
	DocID  string  `json:"docId"`
	Title  string  `json:"title,omitempty"`
	HPath  string  `json:"hpath,omitempty"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// BeforeAgentStart runs recall on the prompt and shapes the result for the
// gateway. No useful result means no injected context, same as recall
// being disabled.
func BeforeAgentStart(ctx context.Context, p *plugin.Plugin, ev Event) RecallOutput {
	if ev.Prompt == "" {
		return RecallOutput{Skipped: true, Reason: "empty_prompt"}
	}

	res := p.Recall(ctx, ev.Prompt)
	out := RecallOutput{
		Skipped: res.Skipped,
		Reason:  res.Reason,
	}
	if res.Skipped {
		return out
	}

	out.PrependContext = res.Context
	for _, d := range res.Docs {
		out.RecalledDocs = append(out.RecalledDocs, DocRef{
			DocID:  d.DocID,
			Title:  d.Title,
			HPath:  d.HPath,
			Score:  d.Score,
			Source: d.Source,
		})
	}
	return out
}

// AgentEnd is the write-side entrypoint. Conversation capture is handled
// by the gateway itself for now, so this acknowledges and does nothing.
func AgentEnd(ctx context.Context, p *plugin.Plugin, ev Event) any {
	return struct{}{}
}

// NewSession is a session-reset placeholder. Recall holds no per-session
// state, so there is nothing to clear.
func NewSession(ctx context.Context, p *plugin.Plugin, ev Event) any {
	return struct{}{}
}
