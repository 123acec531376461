package paginate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alnheet/SaGovLaws/internal/gazette"
)

var testSource = gazette.Source{
	Key: "src",
	URL: "https://uqn.gov.sa/category?cat=9",
}

func testConfig() Config {
	return Config{MaxPages: 10, Delay: time.Millisecond}
}

// fakeExtractor maps markup verbatim to candidates or a scripted error.
type fakeExtractor struct {
	byMarkup map[string][]gazette.Candidate
	errs     map[string]error
}

func (f *fakeExtractor) Extract(markup string, _ string) ([]gazette.Candidate, error) {
	if err := f.errs[markup]; err != nil {
		return nil, err
	}
	return f.byMarkup[markup], nil
}

func candidates(ids ...string) []gazette.Candidate {
	out := make([]gazette.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, gazette.Candidate{
			OriginalID: id,
			Title:      "عنوان تجريبي رقم " + id,
			URL:        "https://uqn.gov.sa/details?p=" + id,
		})
	}
	return out
}

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.pages[url], nil
}

func pageKey(n int) string {
	return fmt.Sprintf("%s&paged=%d", testSource.URL, n)
}

func TestArchiveFullModeStopsAtEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string][]byte{
		pageKey(1): []byte("p1"),
		pageKey(2): []byte("p2"),
		pageKey(3): []byte("p3"),
		pageKey(4): []byte("p4"),
	}}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{
		"p1": candidates("9", "8"),
		"p2": candidates("7", "6"),
		"p3": candidates("5"),
		// p4 yields nothing: end of content.
	}}
	crawler := NewArchive(fetcher, extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), testSource, gazette.ModeFull, nil)
	require.NoError(t, err)
	require.Equal(t, 4, result.Pages)
	require.Len(t, result.Candidates, 5)
	require.Empty(t, result.Errors)
	require.Len(t, fetcher.calls, 4)
}

func TestArchiveIncrementalShortCircuit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string][]byte{pageKey(1): []byte("p1")}}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{
		"p1": candidates("3", "2", "1"),
	}}
	existing := map[string]struct{}{"src_1": {}, "src_2": {}}
	crawler := NewArchive(fetcher, extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), testSource, gazette.ModeIncremental, existing)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	require.Equal(t, "3", result.Candidates[0].OriginalID)
	require.Len(t, fetcher.calls, 1)
}

func TestArchivePageCeiling(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string][]byte{}}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{}}
	for i := 1; i <= 20; i++ {
		markup := fmt.Sprintf("p%d", i)
		fetcher.pages[pageKey(i)] = []byte(markup)
		extractor.byMarkup[markup] = candidates(fmt.Sprint(100 + i))
	}
	cfg := testConfig()
	cfg.MaxPages = 3
	crawler := NewArchive(fetcher, extractor, nil, cfg, zap.NewNop())

	result, err := crawler.Crawl(context.Background(), testSource, gazette.ModeFull, nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.Pages)
	require.Len(t, result.Candidates, 3)
}

func TestArchiveMidCrawlFetchErrorContinues(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			pageKey(1): []byte("p1"),
			pageKey(3): []byte("p3"),
			pageKey(4): []byte("p4"),
		},
		errs: map[string]error{pageKey(2): errors.New("http 503")},
	}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{
		"p1": candidates("5"),
		"p3": candidates("4"),
		// p4 empty ends the crawl.
	}}
	crawler := NewArchive(fetcher, extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), testSource, gazette.ModeFull, nil)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "page 2")
}

func TestArchiveFirstPageFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{pageKey(1): errors.New("connection refused")}}
	crawler := NewArchive(fetcher, &fakeExtractor{}, nil, testConfig(), zap.NewNop())

	_, err := crawler.Crawl(context.Background(), testSource, gazette.ModeFull, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "src")
}

// fakeSession replays a scripted sequence of accumulated-DOM snapshots.
type fakeSession struct {
	navErr error
	htmls  []string
	more   []bool
	round  int
	closed bool
}

func (s *fakeSession) Navigate(_ context.Context, _ string) error { return s.navErr }

func (s *fakeSession) HTML(_ context.Context) (string, error) {
	i := s.round
	if i >= len(s.htmls) {
		i = len(s.htmls) - 1
	}
	return s.htmls[i], nil
}

func (s *fakeSession) LoadMore(_ context.Context) (bool, error) {
	more := false
	if s.round < len(s.more) {
		more = s.more[s.round]
	}
	s.round++
	return more, nil
}

func (s *fakeSession) Close(_ context.Context) error {
	s.closed = true
	return nil
}

func TestInteractiveAccumulatedDOMDeduplicates(t *testing.T) {
	t.Parallel()

	// Each load-more re-yields the whole accumulated listing.
	sess := &fakeSession{
		htmls: []string{"r1", "r2", "r3"},
		more:  []bool{true, true, false},
	}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{
		"r1": candidates("9", "8"),
		"r2": candidates("9", "8", "7", "6"),
		"r3": candidates("9", "8", "7", "6", "5"),
	}}
	crawler := NewInteractive(extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), sess, testSource, gazette.ModeFull, nil)
	require.NoError(t, err)

	var ids []string
	for _, c := range result.Candidates {
		ids = append(ids, c.OriginalID)
	}
	require.Equal(t, []string{"9", "8", "7", "6", "5"}, ids)
}

func TestInteractiveExtractErrorDoesNotEndFullCrawl(t *testing.T) {
	t.Parallel()

	// A round whose markup cannot be parsed is recorded and skipped; only
	// a cleanly extracted round with nothing new ends a full crawl.
	sess := &fakeSession{
		htmls: []string{"r1", "r2", "r3"},
		more:  []bool{true, true, false},
	}
	extractor := &fakeExtractor{
		byMarkup: map[string][]gazette.Candidate{
			"r2": candidates("9", "8"),
			"r3": candidates("9", "8", "7"),
		},
		errs: map[string]error{"r1": errors.New("malformed listing")},
	}
	crawler := NewInteractive(extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), sess, testSource, gazette.ModeFull, nil)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "round 1")
	require.Equal(t, 3, result.Pages)
}

func TestInteractiveIncrementalStopsMidPage(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{htmls: []string{"r1"}, more: []bool{true}}
	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{
		"r1": candidates("3", "2", "1"),
	}}
	existing := map[string]struct{}{"src_1": {}, "src_2": {}}
	crawler := NewInteractive(extractor, nil, testConfig(), zap.NewNop())

	result, err := crawler.Crawl(context.Background(), sess, testSource, gazette.ModeIncremental, existing)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	require.Equal(t, "3", result.Candidates[0].OriginalID)
	// Stop decided before any further load-more trigger.
	require.Equal(t, 0, sess.round)
}

func TestInteractiveNavigationFailureIsFatal(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	crawler := NewInteractive(&fakeExtractor{}, nil, testConfig(), zap.NewNop())

	_, err := crawler.Crawl(context.Background(), sess, testSource, gazette.ModeIncremental, nil)
	require.Error(t, err)
}

func TestInteractiveTriggerCeiling(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{byMarkup: map[string][]gazette.Candidate{}}
	var htmls []string
	var more []bool
	for i := range 20 {
		markup := fmt.Sprintf("r%d", i+1)
		htmls = append(htmls, markup)
		ids := make([]string, 0, i+1)
		for j := 0; j <= i; j++ {
			ids = append(ids, fmt.Sprint(200+j))
		}
		extractor.byMarkup[markup] = candidates(ids...)
		more = append(more, true)
	}
	sess := &fakeSession{htmls: htmls, more: more}
	cfg := testConfig()
	cfg.MaxPages = 4
	crawler := NewInteractive(extractor, nil, cfg, zap.NewNop())

	result, err := crawler.Crawl(context.Background(), sess, testSource, gazette.ModeFull, nil)
	require.NoError(t, err)
	require.Equal(t, 4, result.Pages)
	require.Len(t, result.Candidates, 4)
}

func TestTakeUntilSeen(t *testing.T) {
	t.Parallel()

	existing := map[string]struct{}{"src_2": {}}
	kept, hit := takeUntilSeen("src", candidates("4", "3", "2", "1"), existing)
	require.True(t, hit)
	require.Len(t, kept, 2)

	kept, hit = takeUntilSeen("src", candidates("4", "3"), existing)
	require.False(t, hit)
	require.Len(t, kept, 2)
}
