package plugin

import (
	"context"
	"errors"
	"sync"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// healthCache remembers the last observed remote availability. A cached up
// answer is trusted as-is; down (or nothing observed yet) costs one probe
// on the next read. Readers tolerate a stale up value since the failing
// call itself degrades gracefully and the periodic sync corrects the cache.
type healthCache struct {
	mu       sync.Mutex
	observed bool
	up       bool
}

func (h *healthCache) snapshot() (observed, up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.observed, h.up
}

func (h *healthCache) set(up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observed = true
	h.up = up
}

// observe folds a remote-call outcome into the cache. Only transport
// failures mark the remote down; a remote or protocol error means the
// server answered. Errors that are neither leave the cache untouched.
func (h *healthCache) observe(err error) {
	switch {
	case err == nil:
		h.set(true)
	case errors.Is(err, siyuan.ErrTransport):
		h.set(false)
	}
}

// RemoteAvailable reports whether the note store looks reachable. A cached
// up answer returns without I/O; otherwise exactly one reconnect probe
// runs. Recall keeps working on the local index either way.
func (p *Plugin) RemoteAvailable(ctx context.Context) bool {
	if observed, up := p.health.snapshot(); observed && up {
		return true
	}
	status := p.client.HealthCheck(ctx)
	p.health.set(status.Available)
	if !status.Available {
		p.log.Debug().Str("error", status.Err).Msg("note store unreachable, recall degrades to local index")
	}
	return status.Available
}

// Health is a point-in-time view for health endpoints and doctor output.
type Health struct {
	Remote    siyuan.HealthStatus `json:"remote"`
	Index     store.Stats         `json:"index"`
	InitDone  bool                `json:"initDone"`
	InitError string              `json:"initError,omitempty"`
	Syncing   bool                `json:"syncing"`
}

// Health probes the remote store and reports index counters. The probe
// result also refreshes the availability cache.
func (p *Plugin) Health(ctx context.Context) Health {
	remote := p.client.HealthCheck(ctx)
	p.health.set(remote.Available)

	stats, err := p.db.Stats()
	if err != nil {
		p.log.Warn().Err(err).Msg("stats read failed")
	}

	h := Health{
		Remote:  remote,
		Index:   stats,
		Syncing: p.syncRunning.Load(),
	}
	select {
	case <-p.initDone:
		h.InitDone = true
	default:
	}
	if err := p.initFailure(); err != nil {
		h.InitError = err.Error()
	}
	return h
}
