package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/config"
	"github.com/alnheet/SaGovLaws/internal/gazette"
)

type fakeRunner struct {
	lastMode gazette.Mode
	lastKey  string
	archive  bool
	result   gazette.RunResult
	err      error
}

func (f *fakeRunner) Run(_ context.Context, mode gazette.Mode) (gazette.RunResult, error) {
	f.lastMode = mode
	return f.result, f.err
}

func (f *fakeRunner) RunSource(_ context.Context, key string, mode gazette.Mode) (gazette.RunResult, error) {
	f.lastKey, f.lastMode = key, mode
	return f.result, f.err
}

func (f *fakeRunner) RunArchive(_ context.Context, mode gazette.Mode) (gazette.RunResult, error) {
	f.archive, f.lastMode = true, mode
	return f.result, f.err
}

func (f *fakeRunner) RunArchiveSource(_ context.Context, key string, mode gazette.Mode) (gazette.RunResult, error) {
	f.archive, f.lastKey, f.lastMode = true, key, mode
	return f.result, f.err
}

type fakeCatalog struct {
	sources []gazette.Source
	err     error
}

func (f *fakeCatalog) EnabledSources(_ context.Context) ([]gazette.Source, error) {
	return f.sources, f.err
}

func newTestServer(runner *fakeRunner, catalog *fakeCatalog, cfg config.Config) *Server {
	return NewServer(runner, catalog, cfg, zap.NewNop())
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeCatalog{}, config.Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReportsStoreOutage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeCatalog{err: errors.New("connection refused")}, config.Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScrapeFullRunsFullMode(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: gazette.RunResult{
		Mode:      gazette.ModeFull,
		StartedAt: time.Unix(1750000000, 0).UTC(),
		Duration:  3 * time.Second,
		Sources: []gazette.SourceResult{
			{SourceKey: "royal_orders", TotalFound: 4, NewArticles: 2, UpdatedArticles: 2},
		},
	}}
	srv := newTestServer(runner, &fakeCatalog{}, config.Config{})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/full")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, gazette.ModeFull, runner.lastMode)

	var resp struct {
		Success    bool                   `json:"success"`
		Mode       string                 `json:"mode"`
		DurationMs int64                  `json:"duration_ms"`
		Results    []gazette.SourceResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "full", resp.Mode)
	require.Equal(t, int64(3000), resp.DurationMs)
	require.Len(t, resp.Results, 1)
	require.Equal(t, 2, resp.Results[0].NewArticles)
}

func TestScrapeSourceModeHandling(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, &fakeCatalog{}, config.Config{})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/source/royal_orders?mode=full")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "royal_orders", runner.lastKey)
	require.Equal(t, gazette.ModeFull, runner.lastMode)

	// Missing mode defaults to incremental.
	rec = doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/source/royal_orders")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, gazette.ModeIncremental, runner.lastMode)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/source/royal_orders?mode=bogus")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeSourceUnknownKey(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: gazette.ErrSourceNotFound}
	srv := newTestServer(runner, &fakeCatalog{}, config.Config{})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/source/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveRoutes(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, &fakeCatalog{}, config.Config{})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/archive/full")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, runner.archive)
	require.Equal(t, gazette.ModeFull, runner.lastMode)

	rec = doRequest(t, srv.Handler(), http.MethodPost, "/v1/archive/source/laws_regulations?mode=full")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "laws_regulations", runner.lastKey)
}

func TestListSources(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{sources: []gazette.Source{
		{Key: "royal_orders", NameAr: "أوامر ملكية", CategoryID: 7, Enabled: true},
	}}
	srv := newTestServer(&fakeRunner{}, catalog, config.Config{})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sources []gazette.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 1)
	require.Equal(t, "royal_orders", resp.Sources[0].Key)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	srv := newTestServer(&fakeRunner{}, &fakeCatalog{}, cfg)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/full")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/scrape/full", nil)
	req.Header.Set("X-API-Key", "secret")
	ok := httptest.NewRecorder()
	srv.Handler().ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)

	// Query parameter works for schedulers that cannot set headers.
	rec = doRequest(t, srv.Handler(), http.MethodPost, "/v1/scrape/full?api_key=secret")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeCatalog{}, config.Config{})
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
