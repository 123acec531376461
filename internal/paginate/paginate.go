// Package paginate drives sequential retrieval of listing pages for one
// source, deciding continuation versus stop. Two strategies exist: Archive
// walks numbered pages over plain HTTP (backfill), Interactive drives a
// rendered browser session through load-more triggers (live listing).
package paginate

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Config bounds a crawl regardless of mode.
type Config struct {
	// MaxPages is the hard page/trigger ceiling, enforced even in full
	// mode to bound worst-case runtime.
	MaxPages int
	// Delay is the pause between page loads, to avoid hammering the
	// source server.
	Delay time.Duration
	// SnapshotPrefix, when snapshots are enabled, prefixes archived page
	// object paths.
	SnapshotPrefix string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.Delay <= 0 {
		c.Delay = 2 * time.Second
	}
	return c
}

// Result is what one source's pagination produced.
type Result struct {
	Candidates []gazette.Candidate
	Errors     []string
	Pages      int
}

// Extractor parses one page of markup into candidates.
type Extractor interface {
	Extract(markup string, pageURL string) ([]gazette.Candidate, error)
}

// pageLimiter spaces page loads Delay apart.
func pageLimiter(delay time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(delay), 1)
}

// takeUntilSeen returns the candidates preceding the first already-seen
// identifier and reports whether one was hit. Listing order is newest
// first, so everything beyond the first seen id is already persisted.
func takeUntilSeen(sourceKey string, candidates []gazette.Candidate, existing map[string]struct{}) ([]gazette.Candidate, bool) {
	for i, c := range candidates {
		if _, ok := existing[gazette.ArticleID(sourceKey, c.OriginalID)]; ok {
			return candidates[:i], true
		}
	}
	return candidates, false
}

func snapshotPath(prefix, sourceKey string, page int) string {
	if prefix == "" {
		return fmt.Sprintf("%s/page-%04d.html", sourceKey, page)
	}
	return fmt.Sprintf("%s/%s/page-%04d.html", prefix, sourceKey, page)
}
