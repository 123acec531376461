// Package postgres provides Postgres-backed source and article stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbConn is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it for tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements gazette.SourceStore and gazette.ArticleStore on
// Postgres.
type Store struct {
	pool dbConn
}

// New creates a Store with its own connection pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool dbConn) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertSource = `
INSERT INTO sources (
	key, name_ar, name_en, cat_id, url, enabled, icon, color, display_order
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (key) DO NOTHING`

// EnsureSources inserts any source not already present. Existing rows keep
// their sync metadata.
func (s *Store) EnsureSources(ctx context.Context, sources []gazette.Source) error {
	for _, src := range sources {
		_, err := s.pool.Exec(ctx, insertSource,
			src.Key, src.NameAr, src.NameEn, src.CategoryID, src.URL,
			src.Enabled, src.Icon, src.Color, src.Order,
		)
		if err != nil {
			return fmt.Errorf("ensure source %s: %w", src.Key, err)
		}
	}
	return nil
}

const selectSource = `
SELECT key, name_ar, name_en, cat_id, url, enabled, icon, color,
	display_order, last_sync_at, article_count, COALESCE(last_error, '')
FROM sources`

// EnabledSources returns enabled sources ordered by display order.
func (s *Store) EnabledSources(ctx context.Context) ([]gazette.Source, error) {
	rows, err := s.pool.Query(ctx, selectSource+" WHERE enabled ORDER BY display_order")
	if err != nil {
		return nil, fmt.Errorf("query enabled sources: %w", err)
	}
	defer rows.Close()

	var out []gazette.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read source rows: %w", err)
	}
	return out, nil
}

// GetSource fetches one source by key.
func (s *Store) GetSource(ctx context.Context, key string) (gazette.Source, error) {
	row := s.pool.QueryRow(ctx, selectSource+" WHERE key = $1", key)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return gazette.Source{}, gazette.ErrSourceNotFound
	}
	return src, err
}

func scanSource(row pgx.Row) (gazette.Source, error) {
	var src gazette.Source
	err := row.Scan(
		&src.Key, &src.NameAr, &src.NameEn, &src.CategoryID, &src.URL,
		&src.Enabled, &src.Icon, &src.Color, &src.Order,
		&src.LastSyncAt, &src.ArticleCount, &src.LastError,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gazette.Source{}, err
		}
		return gazette.Source{}, fmt.Errorf("scan source: %w", err)
	}
	return src, nil
}

const updateSourceMeta = `
UPDATE sources SET
	last_sync_at = $2,
	article_count = COALESCE($3, article_count),
	last_error = COALESCE($4, last_error)
WHERE key = $1`

// UpdateMeta rewrites a source's sync metadata. Nil fields keep the
// current value.
func (s *Store) UpdateMeta(ctx context.Context, key string, meta gazette.SourceMeta) error {
	tag, err := s.pool.Exec(ctx, updateSourceMeta, key, meta.SyncedAt, meta.ArticleCount, meta.LastError)
	if err != nil {
		return fmt.Errorf("update source meta %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return gazette.ErrSourceNotFound
	}
	return nil
}

// ExistingIDs returns the full identifier set for one source.
func (s *Store) ExistingIDs(ctx context.Context, sourceKey string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM articles WHERE source_key = $1", sourceKey)
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	return collectIDs(rows)
}

// FilterExisting returns which of the given ids are already persisted.
func (s *Store) FilterExisting(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := s.pool.Query(ctx, "SELECT id FROM articles WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("filter existing ids: %w", err)
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) (map[string]struct{}, error) {
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read id rows: %w", err)
	}
	return out, nil
}

// upsertArticle leaves scraped_at out of the conflict update so the first
// scrape time survives re-crawls.
const upsertArticle = `
INSERT INTO articles (
	id, original_id, source_key, source_name_ar, cat_id,
	title, content_html, content_plain, excerpt,
	publish_date_raw, publish_date_gregorian, published_at,
	url, pdf_url, has_pdf, is_archive,
	scraped_at, updated_at, tags
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
) ON CONFLICT (id) DO UPDATE SET
	source_name_ar = EXCLUDED.source_name_ar,
	cat_id = EXCLUDED.cat_id,
	title = EXCLUDED.title,
	content_html = EXCLUDED.content_html,
	content_plain = EXCLUDED.content_plain,
	excerpt = EXCLUDED.excerpt,
	publish_date_raw = EXCLUDED.publish_date_raw,
	publish_date_gregorian = EXCLUDED.publish_date_gregorian,
	published_at = EXCLUDED.published_at,
	url = EXCLUDED.url,
	pdf_url = EXCLUDED.pdf_url,
	has_pdf = EXCLUDED.has_pdf,
	is_archive = EXCLUDED.is_archive,
	updated_at = EXCLUDED.updated_at,
	tags = EXCLUDED.tags`

// ApplyBatch commits all writes of a batch in one transaction.
func (s *Store) ApplyBatch(ctx context.Context, batch gazette.ArticleBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b pgx.Batch
	queueArticles(&b, batch.Inserts)
	queueArticles(&b, batch.Updates)

	br := tx.SendBatch(ctx, &b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch write %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func queueArticles(b *pgx.Batch, articles []gazette.Article) {
	for _, a := range articles {
		b.Queue(upsertArticle,
			a.ID, a.OriginalID, a.SourceKey, a.SourceNameAr, a.CategoryID,
			a.Title, a.ContentHTML, a.ContentPlain, a.Excerpt,
			a.PublishDateRaw, a.PublishDateGregorian, a.PublishedAt,
			a.URL, a.PDFURL, a.HasPDF, a.IsArchive,
			a.ScrapedAt, a.UpdatedAt, a.Tags,
		)
	}
}

// CountBySource reports the number of persisted articles for a source.
func (s *Store) CountBySource(ctx context.Context, sourceKey string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles WHERE source_key = $1", sourceKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}
