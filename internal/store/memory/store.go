// Package memory provides in-memory source and article stores for
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Store holds sources and articles in process memory. It implements both
// gazette.SourceStore and gazette.ArticleStore.
type Store struct {
	mu       sync.RWMutex
	sources  map[string]gazette.Source
	articles map[string]gazette.Article
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sources:  make(map[string]gazette.Source),
		articles: make(map[string]gazette.Article),
	}
}

// EnsureSources inserts sources that are not present yet. Existing entries
// keep their sync metadata.
func (s *Store) EnsureSources(_ context.Context, sources []gazette.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range sources {
		if _, ok := s.sources[src.Key]; ok {
			continue
		}
		s.sources[src.Key] = src
	}
	return nil
}

// EnabledSources returns the enabled sources ordered by display order.
func (s *Store) EnabledSources(_ context.Context) ([]gazette.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gazette.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// GetSource fetches one source by key.
func (s *Store) GetSource(_ context.Context, key string) (gazette.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[key]
	if !ok {
		return gazette.Source{}, gazette.ErrSourceNotFound
	}
	return src, nil
}

// UpdateMeta rewrites a source's sync metadata. Nil meta fields are left
// untouched.
func (s *Store) UpdateMeta(_ context.Context, key string, meta gazette.SourceMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[key]
	if !ok {
		return gazette.ErrSourceNotFound
	}
	syncedAt := meta.SyncedAt
	src.LastSyncAt = &syncedAt
	if meta.ArticleCount != nil {
		src.ArticleCount = *meta.ArticleCount
	}
	if meta.LastError != nil {
		src.LastError = *meta.LastError
	}
	s.sources[key] = src
	return nil
}

// ExistingIDs returns every persisted article id for one source.
func (s *Store) ExistingIDs(_ context.Context, sourceKey string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for id, a := range s.articles {
		if a.SourceKey == sourceKey {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// FilterExisting reports which of the given ids are already persisted.
func (s *Store) FilterExisting(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.articles[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// ApplyBatch commits a batch. Updates preserve the original scrape time.
func (s *Store) ApplyBatch(_ context.Context, batch gazette.ArticleBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range batch.Inserts {
		s.articles[a.ID] = a
	}
	for _, a := range batch.Updates {
		if prev, ok := s.articles[a.ID]; ok {
			a.ScrapedAt = prev.ScrapedAt
		}
		s.articles[a.ID] = a
	}
	return nil
}

// CountBySource reports the number of persisted articles for a source.
func (s *Store) CountBySource(_ context.Context, sourceKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.articles {
		if a.SourceKey == sourceKey {
			n++
		}
	}
	return n, nil
}

// GetArticle fetches one article by composite id; the second return
// reports presence.
func (s *Store) GetArticle(_ context.Context, id string) (gazette.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	return a, ok
}
