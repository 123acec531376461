// Package gazette defines the core types and interfaces for the gazette
// ingestion engine: sources, articles, crawl modes, and run results.
package gazette

import (
	"fmt"
	"time"
)

// Mode selects how far a crawl reaches back into a source.
type Mode string

// Crawl modes accepted by the orchestrator and pagination controller.
const (
	// ModeFull crawls until an empty page or the page ceiling.
	ModeFull Mode = "full"
	// ModeIncremental stops at the first previously persisted article.
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a user-supplied mode string, defaulting to incremental.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeIncremental):
		return ModeIncremental, nil
	case string(ModeFull):
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown crawl mode %q", s)
	}
}

// Source is one crawlable gazette category. Sources are created once at
// bootstrap and have their sync metadata rewritten after every run.
type Source struct {
	Key          string     `json:"key"`
	NameAr       string     `json:"name_ar"`
	NameEn       string     `json:"name_en"`
	CategoryID   int        `json:"cat_id"`
	URL          string     `json:"url"`
	Enabled      bool       `json:"enabled"`
	Icon         string     `json:"icon"`
	Color        string     `json:"color"`
	Order        int        `json:"order"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	ArticleCount int        `json:"article_count"`
	LastError    string     `json:"last_error,omitempty"`
}

// Candidate is one extraction result from a listing page, not yet merged
// with source context or persisted state.
type Candidate struct {
	OriginalID     string
	Title          string
	URL            string
	PublishDateRaw string
	PDFURL         string
	ContentHTML    string
	Tags           []string
}

// ArticleID derives the composite identifier for a candidate of the given
// source. Re-deriving for the same source item always yields the same id,
// which is what makes upserts idempotent.
func ArticleID(sourceKey, originalID string) string {
	return sourceKey + "_" + originalID
}

// Article is the canonical persisted content record.
type Article struct {
	ID           string `json:"id"`
	OriginalID   string `json:"original_id"`
	SourceKey    string `json:"source_key"`
	SourceNameAr string `json:"source_name_ar"`
	CategoryID   int    `json:"cat_id"`

	Title        string `json:"title"`
	ContentHTML  string `json:"content_html,omitempty"`
	ContentPlain string `json:"content_plain,omitempty"`
	Excerpt      string `json:"excerpt,omitempty"`

	PublishDateRaw       string     `json:"publish_date_raw"`
	PublishDateGregorian string     `json:"publish_date_gregorian,omitempty"`
	PublishedAt          *time.Time `json:"published_at,omitempty"`

	URL    string `json:"url"`
	PDFURL string `json:"pdf_url,omitempty"`
	HasPDF bool   `json:"has_pdf"`

	// IsArchive marks records produced by the historical backfill crawl,
	// as opposed to the live incremental feed.
	IsArchive bool `json:"is_archive"`

	ScrapedAt time.Time `json:"scraped_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tags []string `json:"tags,omitempty"`
}

// ArticleBatch is one atomic unit of persistence: all inserts and updates
// in a batch commit or fail together.
type ArticleBatch struct {
	Inserts []Article
	Updates []Article
}

// Len reports the number of write operations in the batch.
func (b ArticleBatch) Len() int {
	return len(b.Inserts) + len(b.Updates)
}

// SourceMeta carries the per-run metadata rewritten onto a source after
// every crawl. Nil fields are left untouched.
type SourceMeta struct {
	ArticleCount *int
	LastError    *string
	SyncedAt     time.Time
}

// SourceResult summarizes one source's crawl within a run.
type SourceResult struct {
	SourceKey       string        `json:"source_key"`
	TotalFound      int           `json:"total_found"`
	NewArticles     int           `json:"new_articles"`
	UpdatedArticles int           `json:"updated_articles"`
	Errors          []string      `json:"errors"`
	Duration        time.Duration `json:"duration_ms"`
}

// RunResult aggregates the per-source results of one crawl invocation.
// It is transient: returned to the trigger caller, never persisted.
type RunResult struct {
	Mode      Mode           `json:"mode"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ms"`
	Sources   []SourceResult `json:"results"`
}

// ArticleEvent is published once per genuinely new article insert and is
// the only integration point for downstream notification fan-out.
type ArticleEvent struct {
	ArticleID string `json:"article_id"`
	SourceKey string `json:"source_key"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	IsArchive bool   `json:"is_archive"`
}
