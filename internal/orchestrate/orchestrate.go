// Package orchestrate runs crawls end to end: it walks the enabled
// sources, drives pagination, reconciles the results into the store, and
// rewrites per-source sync metadata. Failures are isolated per source so
// one broken category never blocks the rest of a run.
package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/gazette"
	"github.com/alnheet/SaGovLaws/internal/paginate"
	"github.com/alnheet/SaGovLaws/internal/reconcile"
)

// Browser owns one headless browser process for the duration of a run.
type Browser interface {
	NewSession() (gazette.BrowserSession, error)
	Close(ctx context.Context) error
}

// BrowserFactory starts a browser. Called once per live run so archive
// runs never pay the browser startup cost.
type BrowserFactory func(ctx context.Context) (Browser, error)

// Orchestrator coordinates one crawl invocation across sources.
type Orchestrator struct {
	sources     gazette.SourceStore
	articles    gazette.ArticleStore
	engine      *reconcile.Engine
	interactive *paginate.Interactive
	archive     *paginate.Archive
	browsers    BrowserFactory
	clock       gazette.Clock
	logger      *zap.Logger
}

// New builds an Orchestrator.
func New(
	sources gazette.SourceStore,
	articles gazette.ArticleStore,
	engine *reconcile.Engine,
	interactive *paginate.Interactive,
	archive *paginate.Archive,
	browsers BrowserFactory,
	clock gazette.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if clock == nil {
		clock = gazette.SystemClock{}
	}
	return &Orchestrator{
		sources:     sources,
		articles:    articles,
		engine:      engine,
		interactive: interactive,
		archive:     archive,
		browsers:    browsers,
		clock:       clock,
		logger:      logger,
	}
}

// Bootstrap seeds the source catalog. Sources that already exist keep
// their sync metadata.
func (o *Orchestrator) Bootstrap(ctx context.Context, seeds []gazette.Source) error {
	if err := o.sources.EnsureSources(ctx, seeds); err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}
	return nil
}

// Run crawls the live listing of every enabled source.
func (o *Orchestrator) Run(ctx context.Context, mode gazette.Mode) (gazette.RunResult, error) {
	sources, err := o.sources.EnabledSources(ctx)
	if err != nil {
		return gazette.RunResult{}, fmt.Errorf("list enabled sources: %w", err)
	}
	return o.runLive(ctx, sources, mode)
}

// RunSource crawls the live listing of one source by key.
func (o *Orchestrator) RunSource(ctx context.Context, key string, mode gazette.Mode) (gazette.RunResult, error) {
	source, err := o.sources.GetSource(ctx, key)
	if err != nil {
		return gazette.RunResult{}, err
	}
	return o.runLive(ctx, []gazette.Source{source}, mode)
}

// RunArchive backfills every enabled source from the numbered archive
// pages.
func (o *Orchestrator) RunArchive(ctx context.Context, mode gazette.Mode) (gazette.RunResult, error) {
	sources, err := o.sources.EnabledSources(ctx)
	if err != nil {
		return gazette.RunResult{}, fmt.Errorf("list enabled sources: %w", err)
	}
	return o.runArchive(ctx, sources, mode), nil
}

// RunArchiveSource backfills one source by key.
func (o *Orchestrator) RunArchiveSource(ctx context.Context, key string, mode gazette.Mode) (gazette.RunResult, error) {
	source, err := o.sources.GetSource(ctx, key)
	if err != nil {
		return gazette.RunResult{}, err
	}
	return o.runArchive(ctx, []gazette.Source{source}, mode), nil
}

func (o *Orchestrator) runLive(ctx context.Context, sources []gazette.Source, mode gazette.Mode) (gazette.RunResult, error) {
	result := o.newRunResult(mode)
	if len(sources) == 0 {
		result.Duration = o.clock.Now().Sub(result.StartedAt)
		return result, nil
	}

	browser, err := o.browsers(ctx)
	if err != nil {
		return result, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := browser.Close(ctx); err != nil {
			o.logger.Warn("browser close failed", zap.Error(err))
		}
	}()

	for _, source := range sources {
		result.Sources = append(result.Sources, o.liveSource(ctx, browser, source, mode))
	}
	result.Duration = o.clock.Now().Sub(result.StartedAt)
	return result, nil
}

func (o *Orchestrator) runArchive(ctx context.Context, sources []gazette.Source, mode gazette.Mode) gazette.RunResult {
	result := o.newRunResult(mode)
	for _, source := range sources {
		result.Sources = append(result.Sources, o.archiveSource(ctx, source, mode))
	}
	result.Duration = o.clock.Now().Sub(result.StartedAt)
	return result
}

func (o *Orchestrator) newRunResult(mode gazette.Mode) gazette.RunResult {
	return gazette.RunResult{Mode: mode, StartedAt: o.clock.Now()}
}

func (o *Orchestrator) liveSource(ctx context.Context, browser Browser, source gazette.Source, mode gazette.Mode) gazette.SourceResult {
	started := o.clock.Now()

	sess, err := browser.NewSession()
	if err != nil {
		return o.failSource(ctx, source, started, fmt.Sprintf("open session: %v", err))
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			o.logger.Warn("session close failed", zap.String("source", source.Key), zap.Error(err))
		}
	}()

	existing, err := o.existingIDs(ctx, source, mode)
	if err != nil {
		return o.failSource(ctx, source, started, err.Error())
	}

	crawled, err := o.interactive.Crawl(ctx, sess, source, mode, existing)
	if err != nil {
		return o.failSource(ctx, source, started, err.Error())
	}
	return o.finishSource(ctx, source, started, crawled, mode, false)
}

func (o *Orchestrator) archiveSource(ctx context.Context, source gazette.Source, mode gazette.Mode) gazette.SourceResult {
	started := o.clock.Now()

	existing, err := o.existingIDs(ctx, source, mode)
	if err != nil {
		return o.failSource(ctx, source, started, err.Error())
	}

	crawled, err := o.archive.Crawl(ctx, source, mode, existing)
	if err != nil {
		return o.failSource(ctx, source, started, err.Error())
	}
	return o.finishSource(ctx, source, started, crawled, mode, true)
}

// existingIDs loads the persisted id set used for incremental
// short-circuiting. Full crawls skip the read; chunk-level existence
// checks in reconcile classify writes either way.
func (o *Orchestrator) existingIDs(ctx context.Context, source gazette.Source, mode gazette.Mode) (map[string]struct{}, error) {
	if mode != gazette.ModeIncremental {
		return nil, nil
	}
	existing, err := o.articles.ExistingIDs(ctx, source.Key)
	if err != nil {
		return nil, fmt.Errorf("load existing ids: %w", err)
	}
	return existing, nil
}

func (o *Orchestrator) finishSource(
	ctx context.Context,
	source gazette.Source,
	started time.Time,
	crawled paginate.Result,
	mode gazette.Mode,
	isArchive bool,
) gazette.SourceResult {
	summary := o.engine.Reconcile(ctx, source, crawled.Candidates, isArchive)

	errs := append(append([]string(nil), crawled.Errors...), summary.Errors...)
	o.updateMeta(ctx, source, strings.Join(errs, "; "))

	o.logger.Info("source crawled",
		zap.String("source", source.Key),
		zap.String("mode", string(mode)),
		zap.Bool("archive", isArchive),
		zap.Int("pages", crawled.Pages),
		zap.Int("found", len(crawled.Candidates)),
		zap.Int("new", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", len(errs)),
	)
	return gazette.SourceResult{
		SourceKey:       source.Key,
		TotalFound:      len(crawled.Candidates),
		NewArticles:     summary.Inserted,
		UpdatedArticles: summary.Updated,
		Errors:          errs,
		Duration:        o.clock.Now().Sub(started),
	}
}

// failSource records a source-level failure without aborting the run.
func (o *Orchestrator) failSource(ctx context.Context, source gazette.Source, started time.Time, msg string) gazette.SourceResult {
	o.logger.Error("source crawl failed",
		zap.String("source", source.Key),
		zap.String("error", msg),
	)
	o.updateMeta(ctx, source, msg)
	return gazette.SourceResult{
		SourceKey: source.Key,
		Errors:    []string{msg},
		Duration:  o.clock.Now().Sub(started),
	}
}

// updateMeta rewrites sync metadata after every attempt, successful or
// not, so the catalog always reflects the latest run.
func (o *Orchestrator) updateMeta(ctx context.Context, source gazette.Source, lastError string) {
	meta := gazette.SourceMeta{
		LastError: &lastError,
		SyncedAt:  o.clock.Now(),
	}
	if count, err := o.articles.CountBySource(ctx, source.Key); err == nil {
		meta.ArticleCount = &count
	} else {
		o.logger.Warn("article count refresh failed", zap.String("source", source.Key), zap.Error(err))
	}
	if err := o.sources.UpdateMeta(ctx, source.Key, meta); err != nil {
		o.logger.Warn("source meta update failed", zap.String("source", source.Key), zap.Error(err))
	}
}
