// Package plugin owns process-wide lifecycle: the singleton component set,
// background initialization, the periodic sync timer, and the remote
// availability policy handlers consult before touching the note store.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/indexer"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/recall"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// closeGrace bounds how long Close waits for background work to drain.
const closeGrace = 5 * time.Second

// ErrSyncRunning is returned when a sync is requested while a previous run
// has not finished.
var ErrSyncRunning = errors.New("sync already running")

// Options configures Register.
type Options struct {
	ConfigPath       string
	GatewayOverrides []byte // raw JSON config fragment from the gateway
	Logger           zerolog.Logger
	WatchConfig      bool // apply notebook-exclusion changes on config file edits
}

// Plugin is the process-wide component set. Register builds it once; every
// handler surface (hooks, web, MCP, CLI) shares the same instance.
type Plugin struct {
	cfg    *config.Config
	client *siyuan.Client
	db     *store.DB
	engine *recall.Engine
	log    zerolog.Logger

	// syncer is built by the background init task. Read it only after
	// initDone is closed (syncerHandle does this safely).
	syncer   *indexer.Service
	initDone chan struct{}

	initMu  sync.Mutex
	initErr error

	syncRunning atomic.Bool
	health      healthCache

	exclMu   sync.Mutex
	excluded map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

var (
	registerMu sync.Mutex
	active     *Plugin
)

// Register loads configuration, builds the client, local store, and recall
// engine synchronously so the first event is safe to handle, and kicks off
// background initialization for everything slow. Calling it again returns
// the existing instance. Only configuration and local-store failures are
// returned; remote problems surface later as degraded behavior.
func Register(opts Options) (*Plugin, error) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if active != nil {
		return active, nil
	}

	cfg, err := config.Load(opts.ConfigPath, opts.GatewayOverrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := cfg.Index.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath, cfg.Index.ExcludedNotebookList(), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	client := siyuan.NewClient(cfg.Siyuan.APIURL, cfg.Siyuan.APIToken, cfg.Siyuan.Timeout(), opts.Logger)

	p := &Plugin{
		cfg:      cfg,
		client:   client,
		db:       db,
		log:      opts.Logger.With().Str("component", "plugin").Logger(),
		initDone: make(chan struct{}),
		excluded: cfg.Index.ExcludedNotebookNames(),
	}
	p.engine = recall.New(client, db, cfg, opts.Logger)
	p.engine.SetRemoteGate(p.RemoteAvailable)

	bgCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.backgroundInit(bgCtx, opts.Logger)

	if opts.WatchConfig {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			err := config.Watch(bgCtx, opts.ConfigPath, opts.Logger, p.applyConfig)
			if err != nil && bgCtx.Err() == nil {
				p.log.Warn().Err(err).Msg("config watch stopped")
			}
		}()
	}

	active = p
	return p, nil
}

// Active returns the registered plugin, or nil when Register has not run.
func Active() *Plugin {
	registerMu.Lock()
	defer registerMu.Unlock()
	return active
}

// backgroundInit builds the sync service, warms the notebook cache, runs
// the first sync when the index is empty, then drives the periodic timer.
// Handlers gate on initDone but never on the outcome: a failed init leaves
// recall running against the remote paths and whatever the index holds.
func (p *Plugin) backgroundInit(ctx context.Context, base zerolog.Logger) {
	defer p.wg.Done()

	if !p.cfg.Index.Enabled {
		p.log.Info().Msg("indexing disabled, recall uses remote paths only")
		close(p.initDone)
		return
	}

	syncer := indexer.New(p.client, p.db, p.cfg.Index, base)
	p.syncer = syncer

	if err := syncer.RefreshNotebooks(ctx); err != nil {
		p.setInitErr(err)
		p.health.observe(err)
		p.log.Warn().Err(err).Msg("notebook refresh failed, exclusions apply by name only")
	} else {
		p.health.observe(nil)
	}

	needs, err := syncer.NeedsInitialSync()
	switch {
	case err != nil:
		p.setInitErr(err)
		p.log.Warn().Err(err).Msg("sync state unreadable")
	case needs:
		if _, err := p.runSync(ctx, true); err != nil && ctx.Err() == nil {
			p.setInitErr(err)
			p.log.Warn().Err(err).Msg("initial sync failed, periodic timer will retry")
		}
	}

	close(p.initDone)
	p.periodicSync(ctx)
}

// periodicSync runs incremental syncs on the configured interval until ctx
// is done. A tick that lands while a run is still going is skipped.
func (p *Plugin) periodicSync(ctx context.Context) {
	interval := p.cfg.Index.SyncInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", interval).Msg("periodic sync started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := p.runSync(ctx, false)
			switch {
			case errors.Is(err, ErrSyncRunning):
				p.log.Debug().Msg("sync tick skipped, previous run still going")
			case err != nil && ctx.Err() == nil:
				p.log.Warn().Err(err).Msg("periodic sync failed")
			case err == nil:
				p.log.Debug().
					Int("docs", stats.Docs).
					Int("indexed", stats.Indexed).
					Msg("periodic sync done")
			}
		}
	}
}

// runSync is the single guarded entry for sync runs, shared by the timer
// and by manual triggers.
func (p *Plugin) runSync(ctx context.Context, full bool) (*indexer.RunStats, error) {
	if !p.syncRunning.CompareAndSwap(false, true) {
		return nil, ErrSyncRunning
	}
	defer p.syncRunning.Store(false)

	stats, err := p.syncer.Sync(ctx, full)
	p.health.observe(err)
	return stats, err
}

// TrySync runs one sync now. full forces a complete rebuild. It fails with
// ErrSyncRunning when another run is in flight so callers can report the
// conflict instead of queueing.
func (p *Plugin) TrySync(ctx context.Context, full bool) (*indexer.RunStats, error) {
	if !p.waitInit(ctx) {
		return nil, fmt.Errorf("index not ready: %w", ctx.Err())
	}
	if p.syncer == nil {
		return nil, errors.New("indexing disabled")
	}
	return p.runSync(ctx, full)
}

// Recall gates on background init and runs the retrieval pipeline. It
// never fails; background init problems degrade the result rather than
// reaching the gateway.
func (p *Plugin) Recall(ctx context.Context, prompt string) recall.Result {
	p.waitInit(ctx)
	return p.engine.Recall(ctx, prompt)
}

// waitInit blocks until background init finished or ctx gave up. The init
// outcome is deliberately not returned.
func (p *Plugin) waitInit(ctx context.Context) bool {
	select {
	case <-p.initDone:
		return true
	case <-ctx.Done():
		return false
	}
}

// syncerHandle returns the sync service when background init has published
// it, else nil.
func (p *Plugin) syncerHandle() *indexer.Service {
	select {
	case <-p.initDone:
		return p.syncer
	default:
		return nil
	}
}

func (p *Plugin) setInitErr(err error) {
	p.initMu.Lock()
	p.initErr = err
	p.initMu.Unlock()
}

func (p *Plugin) initFailure() error {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	return p.initErr
}

// applyConfig folds a reloaded config file into the running process. Only
// the notebook exclusion set applies live; connection and recall settings
// take effect on restart. Newly excluded notebooks are purged from the
// index immediately.
func (p *Plugin) applyConfig(next *config.Config) {
	newSet := next.Index.ExcludedNotebookNames()

	p.exclMu.Lock()
	var added []string
	for name := range newSet {
		if !p.excluded[name] {
			added = append(added, name)
		}
	}
	changed := len(added) > 0 || len(newSet) != len(p.excluded)
	if changed {
		p.excluded = newSet
	}
	p.exclMu.Unlock()

	if !changed {
		return
	}

	p.db.SetExcludedNames(next.Index.ExcludedNotebookList())
	if s := p.syncerHandle(); s != nil {
		s.SetExcludedNames(newSet)
		if len(added) > 0 {
			if _, err := s.PurgeNotebooks(added); err != nil {
				p.log.Warn().Err(err).Msg("purge of newly excluded notebooks failed")
			}
		}
	}
	p.log.Info().Strs("excluded", next.Index.ExcludedNotebookList()).Msg("notebook exclusions updated")
}

// Close stops the timer and watchers, waits out a short grace period for
// in-flight work, and closes the local store. Safe to call twice.
func (p *Plugin) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeGrace):
		p.log.Warn().Msg("close grace period elapsed with work still running")
	}

	err := p.db.Close()

	registerMu.Lock()
	if active == p {
		active = nil
	}
	registerMu.Unlock()
	return err
}

// Config returns the loaded configuration.
func (p *Plugin) Config() *config.Config { return p.cfg }

// Client returns the shared note-store client.
func (p *Plugin) Client() *siyuan.Client { return p.client }

// Store returns the local index store.
func (p *Plugin) Store() *store.DB { return p.db }

// Engine returns the recall engine.
func (p *Plugin) Engine() *recall.Engine { return p.engine }

// Stats reports local index counters.
func (p *Plugin) Stats() (store.Stats, error) { return p.db.Stats() }

// StatusReport bundles index counters with recall telemetry. The web
// stats endpoint, the MCP index_stats tool, and the status command all
// render this shape.
type StatusReport struct {
	Index  store.Stats              `json:"index"`
	Recall recall.TelemetrySnapshot `json:"recall"`
}

// Status reports the combined index and recall counters.
func (p *Plugin) Status() (StatusReport, error) {
	stats, err := p.db.Stats()
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{Index: stats, Recall: p.engine.Telemetry()}, nil
}
