// Package hooks adapts gateway lifecycle events to the recall pipeline.
// Handlers never fail into the gateway: every problem degrades to an
// empty JSON object on stdout.
package hooks

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/plugin"
)

// maxEventSize bounds the JSON event read from stdin (4 MB).
const maxEventSize = 4 * 1024 * 1024

// eventTimeout is the soft deadline for handling one event.
const eventTimeout = 20 * time.Second

// Event is the JSON payload the gateway delivers with each hook call.
type Event struct {
	Prompt    string          `json:"prompt,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	Messages  json.RawMessage `json:"messages,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// Run reads one event from stdin, dispatches it, and writes the response
// JSON to stdout.
func Run(p *plugin.Plugin, eventName string) {
	runIO(p, eventName, os.Stdin, os.Stdout, os.Stderr)
}

func runIO(p *plugin.Plugin, eventName string, in io.Reader, out, errw io.Writer) {
	logger := log.Output(errw).With().
		Str("hook", eventName).
		Str("event_id", uuid.New().String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("hook handler panicked")
			io.WriteString(out, "{}\n")
		}
	}()

	var ev Event
	data, err := io.ReadAll(io.LimitReader(in, maxEventSize))
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn().Err(err).Msg("bad hook event, treating as empty")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	resp, err := json.Marshal(Dispatch(ctx, p, eventName, ev))
	if err != nil {
		logger.Error().Err(err).Msg("marshal hook response")
		io.WriteString(out, "{}\n")
		return
	}
	out.Write(resp)
	io.WriteString(out, "\n")
	logger.Debug().Dur("took", time.Since(start)).Msg("hook handled")
}

// Dispatch routes one gateway event to its handler. Unknown event names
// resolve to an empty object so newer gateways stay compatible.
func Dispatch(ctx context.Context, p *plugin.Plugin, eventName string, ev Event) any {
	switch eventName {
	case "before_agent_start":
		return BeforeAgentStart(ctx, p, ev)
	case "agent_end":
		return AgentEnd(ctx, p, ev)
	case "command:new":
		return NewSession(ctx, p, ev)
	default:
		return struct{}{}
	}
}
