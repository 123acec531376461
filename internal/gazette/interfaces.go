package gazette

import (
	"context"
	"errors"
	"time"
)

// ErrSourceNotFound is returned by source lookups for unknown keys.
var ErrSourceNotFound = errors.New("source not found")

// SourceStore persists the small sources collection.
type SourceStore interface {
	// EnsureSources inserts any source not already present. Existing
	// sources are never overwritten.
	EnsureSources(ctx context.Context, sources []Source) error
	// EnabledSources returns enabled sources ordered by display order.
	EnabledSources(ctx context.Context) ([]Source, error)
	// GetSource fetches one source by key.
	GetSource(ctx context.Context, key string) (Source, error)
	// UpdateMeta rewrites a source's sync metadata.
	UpdateMeta(ctx context.Context, key string, meta SourceMeta) error
}

// ArticleStore persists the articles collection keyed by composite id.
type ArticleStore interface {
	// ExistingIDs returns the full identifier set for one source.
	ExistingIDs(ctx context.Context, sourceKey string) (map[string]struct{}, error)
	// FilterExisting returns which of the given ids are already persisted.
	FilterExisting(ctx context.Context, ids []string) (map[string]struct{}, error)
	// ApplyBatch commits a batch atomically. Callers are responsible for
	// keeping batches within the store's per-batch operation limit.
	ApplyBatch(ctx context.Context, batch ArticleBatch) error
	// CountBySource reports the number of persisted articles for a source.
	CountBySource(ctx context.Context, sourceKey string) (int, error)
}

// Publisher emits new-article events for downstream listeners.
type Publisher interface {
	Publish(ctx context.Context, event ArticleEvent) (string, error)
	Close() error
}

// SnapshotStore archives raw listing page markup and returns a URI.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// PageFetcher retrieves one listing page over plain HTTP.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// BrowserSession is a long-lived rendered-DOM session for one source's
// interactive crawl. Implementations own a browser tab; Close must always
// be called by whoever created the session.
type BrowserSession interface {
	// Navigate loads the listing URL and waits for the DOM to settle.
	Navigate(ctx context.Context, url string) error
	// HTML returns the full accumulated document markup.
	HTML(ctx context.Context) (string, error)
	// LoadMore triggers the next page of content, either by clicking a
	// load-more control or by scroll-based lazy loading. It reports
	// whether more content became available.
	LoadMore(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Clock returns the current time (seam for tests).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
