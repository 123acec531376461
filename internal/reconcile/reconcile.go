// Package reconcile merges freshly extracted candidates with persisted
// state: it classifies each candidate as insert or update, writes them in
// bounded atomic batches, and publishes an event for every genuinely new
// article.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/dates"
	"github.com/alnheet/SaGovLaws/internal/extract"
	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// MaxBatchOps is the per-batch write ceiling of the document store.
// Candidate sets larger than this are split into independent batches.
const MaxBatchOps = 500

// Engine reconciles one source's crawl output against the article store.
type Engine struct {
	articles  gazette.ArticleStore
	publisher gazette.Publisher
	clock     gazette.Clock
	logger    *zap.Logger
}

// New builds an Engine. publisher may be nil, in which case events are
// skipped entirely.
func New(articles gazette.ArticleStore, publisher gazette.Publisher, clock gazette.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = gazette.SystemClock{}
	}
	return &Engine{
		articles:  articles,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Summary reports what one reconciliation pass did.
type Summary struct {
	Inserted int
	Updated  int
	Errors   []string
}

// Reconcile persists the candidates of one source crawl. Candidates are
// deduplicated by composite id (first occurrence wins, matching listing
// order), chunked to the store's batch ceiling, and each chunk is checked
// against persisted ids and committed atomically. A failed chunk is
// recorded and does not stop later chunks. Events fire only for inserts
// whose chunk committed.
func (e *Engine) Reconcile(
	ctx context.Context,
	source gazette.Source,
	candidates []gazette.Candidate,
	isArchive bool,
) Summary {
	var summary Summary

	deduped := dedupe(source.Key, candidates)
	for start := 0; start < len(deduped); start += MaxBatchOps {
		end := min(start+MaxBatchOps, len(deduped))
		e.reconcileChunk(ctx, source, deduped[start:end], isArchive, &summary)
	}
	return summary
}

func (e *Engine) reconcileChunk(
	ctx context.Context,
	source gazette.Source,
	chunk []gazette.Candidate,
	isArchive bool,
	summary *Summary,
) {
	ids := make([]string, len(chunk))
	for i, c := range chunk {
		ids[i] = gazette.ArticleID(source.Key, c.OriginalID)
	}

	persisted, err := e.articles.FilterExisting(ctx, ids)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("filter existing: %v", err))
		return
	}

	now := e.clock.Now()
	var batch gazette.ArticleBatch
	for i, c := range chunk {
		article := e.buildArticle(source, c, isArchive, now)
		if _, exists := persisted[ids[i]]; exists {
			batch.Updates = append(batch.Updates, article)
		} else {
			batch.Inserts = append(batch.Inserts, article)
		}
	}

	if err := e.articles.ApplyBatch(ctx, batch); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("apply batch: %v", err))
		return
	}
	summary.Inserted += len(batch.Inserts)
	summary.Updated += len(batch.Updates)
	gazette.ArticlesInserted.Add(float64(len(batch.Inserts)))
	gazette.ArticlesUpdated.Add(float64(len(batch.Updates)))

	e.publishInserts(ctx, batch.Inserts)
}

func (e *Engine) publishInserts(ctx context.Context, inserts []gazette.Article) {
	if e.publisher == nil {
		return
	}
	for _, a := range inserts {
		event := gazette.ArticleEvent{
			ArticleID: a.ID,
			SourceKey: a.SourceKey,
			Title:     a.Title,
			URL:       a.URL,
			IsArchive: a.IsArchive,
		}
		if _, err := e.publisher.Publish(ctx, event); err != nil {
			// The article is persisted either way; a lost event is not
			// worth failing the run over.
			e.logger.Warn("publish new-article event failed",
				zap.String("article_id", a.ID),
				zap.Error(err),
			)
			continue
		}
		gazette.EventsPublished.Inc()
	}
}

// buildArticle denormalizes source context onto a candidate and derives
// the content and date fields. ScrapedAt is set to now; the store keeps
// the original value when the article already exists.
func (e *Engine) buildArticle(source gazette.Source, c gazette.Candidate, isArchive bool, now time.Time) gazette.Article {
	article := gazette.Article{
		ID:           gazette.ArticleID(source.Key, c.OriginalID),
		OriginalID:   c.OriginalID,
		SourceKey:    source.Key,
		SourceNameAr: source.NameAr,
		CategoryID:   source.CategoryID,

		Title: c.Title,

		PublishDateRaw: c.PublishDateRaw,

		URL:    c.URL,
		PDFURL: c.PDFURL,
		HasPDF: c.PDFURL != "",

		IsArchive: isArchive,

		Tags: c.Tags,

		ScrapedAt: now,
		UpdatedAt: now,
	}

	normalized := dates.Normalize(c.PublishDateRaw)
	article.PublishDateGregorian = normalized.ISO()
	article.PublishedAt = normalized.Gregorian

	if c.ContentHTML != "" {
		sanitized, err := extract.SanitizeHTML(c.ContentHTML)
		if err != nil {
			e.logger.Warn("content sanitize failed",
				zap.String("article_id", article.ID),
				zap.Error(err),
			)
		} else {
			article.ContentHTML = sanitized
			article.ContentPlain = extract.PlainText(sanitized)
			article.Excerpt = extract.Excerpt(article.ContentPlain, extract.DefaultExcerptLength)
		}
	}
	return article
}

func dedupe(sourceKey string, candidates []gazette.Candidate) []gazette.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0:0]
	for _, c := range candidates {
		id := gazette.ArticleID(sourceKey, c.OriginalID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, c)
	}
	return out
}
