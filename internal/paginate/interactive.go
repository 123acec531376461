package paginate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Interactive paginates one long-lived rendered session by triggering the
// site's load-more behavior and re-extracting the accumulated DOM after
// each trigger.
type Interactive struct {
	extractor Extractor
	snapshots gazette.SnapshotStore
	cfg       Config
	logger    *zap.Logger
}

// NewInteractive builds an Interactive controller. snapshots may be nil.
func NewInteractive(extractor Extractor, snapshots gazette.SnapshotStore, cfg Config, logger *zap.Logger) *Interactive {
	return &Interactive{
		extractor: extractor,
		snapshots: snapshots,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Crawl walks the session until a stop condition holds: an already-seen id
// (incremental), a cleanly extracted round with no new candidates (full),
// the trigger ceiling, or an exhausted load-more. A failed initial navigation makes the session
// unusable and is the only fatal error; later per-round failures are
// recorded in the result and the crawl moves on.
func (c *Interactive) Crawl(
	ctx context.Context,
	sess gazette.BrowserSession,
	source gazette.Source,
	mode gazette.Mode,
	existing map[string]struct{},
) (Result, error) {
	var result Result

	if err := sess.Navigate(ctx, source.URL); err != nil {
		gazette.FetchErrors.Inc()
		return result, fmt.Errorf("navigate source %s: %w", source.Key, err)
	}

	limiter := pageLimiter(c.cfg.Delay)
	// Identifiers already emitted this session. The accumulated DOM
	// re-yields every earlier item after each load-more trigger.
	seen := make(map[string]struct{})

	for round := 1; round <= c.cfg.MaxPages; round++ {
		if err := limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("round %d: %v", round, err))
			return result, nil
		}

		fresh, extracted, stop := c.extractRound(ctx, sess, source, round, seen, &result)
		if mode == gazette.ModeIncremental {
			kept, hitExisting := takeUntilSeen(source.Key, fresh, existing)
			result.Candidates = append(result.Candidates, kept...)
			if hitExisting {
				c.logger.Debug("incremental stop",
					zap.String("source", source.Key),
					zap.Int("round", round),
				)
				return result, nil
			}
		} else {
			result.Candidates = append(result.Candidates, fresh...)
			// Only a successful extraction that yields nothing new means
			// the listing is exhausted; a failed round keeps triggering.
			if extracted && len(fresh) == 0 {
				return result, nil
			}
		}
		if stop {
			return result, nil
		}

		more, err := sess.LoadMore(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("round %d load more: %v", round, err))
			return result, nil
		}
		if !more {
			return result, nil
		}
	}
	return result, nil
}

// extractRound snapshots and extracts the current DOM, returning only
// candidates not yet seen this session. extracted reports whether the
// extractor actually ran, so callers can tell an empty page from a failed
// round. stop is set when the round failed in a way that makes further
// triggers pointless.
func (c *Interactive) extractRound(
	ctx context.Context,
	sess gazette.BrowserSession,
	source gazette.Source,
	round int,
	seen map[string]struct{},
	result *Result,
) (fresh []gazette.Candidate, extracted bool, stop bool) {
	result.Pages++

	html, err := sess.HTML(ctx)
	if err != nil {
		gazette.FetchErrors.Inc()
		result.Errors = append(result.Errors, fmt.Sprintf("round %d: %v", round, err))
		return nil, false, true
	}
	gazette.PagesFetched.Inc()
	c.snapshot(ctx, source.Key, round, html)

	candidates, err := c.extractor.Extract(html, source.URL)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("round %d extract: %v", round, err))
		return nil, false, false
	}

	for _, cand := range candidates {
		id := gazette.ArticleID(source.Key, cand.OriginalID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, cand)
	}
	return fresh, true, false
}

func (c *Interactive) snapshot(ctx context.Context, sourceKey string, page int, html string) {
	if c.snapshots == nil {
		return
	}
	path := snapshotPath(c.cfg.SnapshotPrefix, sourceKey, page)
	if _, err := c.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html)); err != nil {
		c.logger.Warn("page snapshot failed", zap.String("path", path), zap.Error(err))
	}
}
