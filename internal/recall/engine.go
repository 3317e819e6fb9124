package recall

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/config"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/intent"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/store"
)

// Engine answers recall requests. It is stateless between calls; the
// coordinator owns its lifecycle and may swap the remote gate.
type Engine struct {
	client   *siyuan.Client
	db       *store.DB
	cfg      *config.Config
	analyzer *intent.Analyzer
	tel      *Telemetry
	log      zerolog.Logger

	// remoteGate reports whether the remote store is reachable. nil
	// means always try.
	remoteGate func(context.Context) bool
}

// New builds a recall engine over the shared client and index store.
func New(client *siyuan.Client, db *store.DB, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		client:   client,
		db:       db,
		cfg:      cfg,
		analyzer: intent.NewAnalyzer(cfg.Recall),
		tel:      newTelemetry(),
		log:      logger.With().Str("component", "recall").Logger(),
	}
}

// Telemetry reports the engine's activity counters.
func (e *Engine) Telemetry() TelemetrySnapshot {
	return e.tel.Snapshot()
}

// SetRemoteGate installs the availability probe consulted before remote
// paths run.
func (e *Engine) SetRemoteGate(fn func(context.Context) bool) {
	e.remoteGate = fn
}

// Recall runs the full pipeline for one prompt. It never returns an
// error; failures degrade to fewer (or zero) documents.
func (e *Engine) Recall(ctx context.Context, prompt string) Result {
	linkedIDs := ExtractDocIDs(prompt, e.cfg.LinkedDoc)
	analysis := e.analyzer.Analyze(prompt, len(linkedIDs) > 0)

	res := Result{
		Reason: analysis.Gate.Reason,
		Intent: analysis.Intent,
		Query:  analysis.Query,
	}

	if !e.cfg.Recall.Enabled {
		return e.recallDisabled(ctx, res, analysis, linkedIDs)
	}

	if !analysis.Gate.Should {
		res.Skipped = true
		e.tel.gate(res.Reason)
		e.log.Debug().Str("reason", res.Reason).Str("intent", analysis.Intent.Type).Msg("recall gated")
		return res
	}

	remoteOK := e.remoteOK(ctx)
	if !remoteOK {
		e.log.Debug().Msg("remote store unavailable, recall degrades to local index")
	}

	var (
		searchDocs []Doc
		attempted  int
		failed     int
	)
	if analysis.Query != "" || len(analysis.Intent.Keywords) > 0 {
		pathResults := e.runPaths(ctx, analysis, remoteOK)
		blocks := make([]Block, 0, 64)
		now := time.Now()
		for _, pr := range pathResults {
			attempted++
			if pr.err != nil {
				failed++
				e.log.Warn().Err(pr.err).Str("path", pr.path).Msg("search path failed")
				continue
			}
			e.tel.path(pr.path, len(pr.blocks))
			e.log.Debug().Str("path", pr.path).Int("candidates", len(pr.blocks)).Msg("search path settled")
			for _, b := range pr.blocks {
				b.Score = scoreBlock(b, analysis.Query, analysis.Intent.Keywords, now)
				blocks = append(blocks, b)
			}
		}
		final := rerank(dedupeByID(blocks), e.cfg.Recall.TwoStage)
		searchDocs = aggregateDocs(final, analysis, e.cfg.Recall.TopicKeywords, e.cfg.Recall.MaxDocs)
	}

	var linked []Doc
	if len(linkedIDs) > 0 && remoteOK {
		linked = e.resolveLinked(ctx, linkedIDs)
		e.tel.path(SourceLinkedDoc, len(linked))
	}

	res.Docs = mergeLinked(linked, searchDocs)
	if len(res.Docs) == 0 {
		if attempted > 0 && failed == attempted {
			res.Err = "No results found"
		}
		e.tel.done(0, "")
		return res
	}

	res.Context = FormatContext(res.Docs, e.cfg.Recall.MaxContextTokens, e.cfg.Recall.BlockExcerptMaxChars)
	e.tel.done(len(res.Docs), res.Context)
	e.log.Debug().
		Int("docs", len(res.Docs)).
		Int("linked", len(linked)).
		Str("reason", res.Reason).
		Int("contextChars", len(res.Context)).
		Msg("recall produced context")
	return res
}

// SearchLocal runs one scored query against the local index only. The
// search surfaces (web, MCP, CLI) use it directly; prompts from the
// gateway go through Recall instead.
func (e *Engine) SearchLocal(query string, limit int) ([]Block, error) {
	if limit <= 0 {
		limit = 20
	}
	keywords := intent.ExtractKeywords(query, e.cfg.Recall.MaxKeywords)
	blocks, err := e.searchLocal(query, keywords, limit)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range blocks {
		blocks[i].Score = scoreBlock(blocks[i], query, keywords, now)
	}
	sortBlocks(blocks)
	return blocks, nil
}

// recallDisabled handles the globally disabled mode: no search paths
// run, but linked docs still resolve unless explicitly skipped.
func (e *Engine) recallDisabled(ctx context.Context, res Result, analysis intent.Analysis, linkedIDs []string) Result {
	if analysis.Gate.Reason == "explicit_skip" || len(linkedIDs) == 0 {
		res.Skipped = true
		if analysis.Gate.Reason != "explicit_skip" {
			res.Reason = "recall_disabled"
		}
		e.tel.gate(res.Reason)
		return res
	}
	res.Reason = "linked_doc"
	res.Docs = e.resolveLinked(ctx, linkedIDs)
	if len(res.Docs) > 0 {
		res.Context = FormatContext(res.Docs, e.cfg.Recall.MaxContextTokens, e.cfg.Recall.BlockExcerptMaxChars)
	}
	return res
}

func (e *Engine) remoteOK(ctx context.Context) bool {
	if e.remoteGate == nil {
		return true
	}
	return e.remoteGate(ctx)
}

// runPaths launches every enabled path and joins them all-settled, so a
// failed path cannot poison the others.
func (e *Engine) runPaths(ctx context.Context, analysis intent.Analysis, remoteOK bool) []pathResult {
	limit := e.cfg.Recall.TwoStage.CandidateLimitPerPath
	if limit <= 0 {
		limit = 100
	}

	paths := make([]string, 0, len(e.cfg.Recall.SearchPaths))
	for _, p := range e.cfg.Recall.SearchPaths {
		if !remoteOK && p != config.PathFTS {
			continue
		}
		paths = append(paths, p)
	}

	results := make([]pathResult, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			var blocks []Block
			var err error
			switch p {
			case config.PathFTS:
				blocks, err = e.searchLocal(analysis.Query, analysis.Intent.Keywords, limit)
			case config.PathFulltext:
				blocks, err = e.searchFulltext(gCtx, analysis.Query, limit)
			case config.PathSQL:
				blocks, err = e.searchSQL(gCtx, analysis.Intent.Keywords, analysis.Query, analysis.Intent.TimeRange, limit)
			}
			results[i] = pathResult{path: p, blocks: blocks, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
