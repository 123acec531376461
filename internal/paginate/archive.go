package paginate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Archive paginates a source by fetching numbered listing pages over plain
// HTTP. Used for historical backfill, where the paged URLs render without
// JavaScript.
type Archive struct {
	fetcher   gazette.PageFetcher
	extractor Extractor
	snapshots gazette.SnapshotStore
	cfg       Config
	logger    *zap.Logger
}

// NewArchive builds an Archive controller. snapshots may be nil.
func NewArchive(fetcher gazette.PageFetcher, extractor Extractor, snapshots gazette.SnapshotStore, cfg Config, logger *zap.Logger) *Archive {
	return &Archive{
		fetcher:   fetcher,
		extractor: extractor,
		snapshots: snapshots,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Crawl fetches pages 1..MaxPages, stopping at an empty page (full mode)
// or the first already-seen identifier (incremental mode). Per-page fetch
// errors are recorded and the crawl continues with the next page; only a
// failed first page aborts the source, since nothing was reachable at all.
func (c *Archive) Crawl(
	ctx context.Context,
	source gazette.Source,
	mode gazette.Mode,
	existing map[string]struct{},
) (Result, error) {
	var result Result
	limiter := pageLimiter(c.cfg.Delay)

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", page, err))
			return result, nil
		}

		pageURL := pagedURL(source.URL, page)
		result.Pages++

		body, err := c.fetcher.FetchPage(ctx, pageURL)
		if err != nil {
			gazette.FetchErrors.Inc()
			if page == 1 {
				return result, fmt.Errorf("fetch first page of %s: %w", source.Key, err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", page, err))
			continue
		}
		gazette.PagesFetched.Inc()
		c.snapshot(ctx, source.Key, page, body)

		candidates, err := c.extractor.Extract(string(body), pageURL)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("page %d extract: %v", page, err))
			continue
		}
		if len(candidates) == 0 {
			c.logger.Debug("empty page, end of content",
				zap.String("source", source.Key),
				zap.Int("page", page),
			)
			return result, nil
		}

		if mode == gazette.ModeIncremental {
			kept, hitExisting := takeUntilSeen(source.Key, candidates, existing)
			result.Candidates = append(result.Candidates, kept...)
			if hitExisting {
				return result, nil
			}
		} else {
			result.Candidates = append(result.Candidates, candidates...)
		}
	}
	return result, nil
}

func (c *Archive) snapshot(ctx context.Context, sourceKey string, page int, body []byte) {
	if c.snapshots == nil {
		return
	}
	path := snapshotPath(c.cfg.SnapshotPrefix, sourceKey, page)
	if _, err := c.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", body); err != nil {
		c.logger.Warn("page snapshot failed", zap.String("path", path), zap.Error(err))
	}
}

// pagedURL appends the page-number query parameter the archive listing
// understands.
func pagedURL(listingURL string, page int) string {
	sep := "?"
	if strings.Contains(listingURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spaged=%d", listingURL, sep, page)
}
