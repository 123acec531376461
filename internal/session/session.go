// Package session owns the headless Chrome resource used for interactive
// listing crawls. One Browser is created per orchestrator run and torn
// down when the run ends; each source gets its own tab-scoped Session.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls browser behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	NavTimeout     time.Duration
	ScrollSettle   time.Duration
}

// Browser wraps a warm headless Chrome process.
type Browser struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	cfg             Config
	logger          *zap.Logger
}

// NewBrowser launches and warms up headless Chrome.
func NewBrowser(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	if cfg.ScrollSettle <= 0 {
		cfg.ScrollSettle = time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the browser and its allocator. Safe on nil.
func (b *Browser) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

// NewSession opens a fresh tab for one source's crawl.
func (b *Browser) NewSession() *Session {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	return &Session{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		cfg:       b.cfg,
		logger:    b.logger,
	}
}

// Session is one tab navigating a listing page.
type Session struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	cfg       Config
	logger    *zap.Logger
}

// Navigate loads the listing URL and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	headers := network.Headers{}
	if s.cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = s.cfg.AcceptLanguage
	}
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.UserAgent != "" {
		tasks = append(chromedp.Tasks{emulation.SetUserAgentOverride(s.cfg.UserAgent)}, tasks...)
	}
	if err := s.run(ctx, s.cfg.NavTimeout, tasks); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// HTML snapshots the full accumulated document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

// loadMoreSelectors locate the site's load-more control across layout
// variants; evaluated in order, first present element wins.
var loadMoreSelectors = []string{
	".load-more",
	".more-button",
	"button.more",
	`[data-action="load-more"]`,
}

// loadMoreXPath matches buttons/links labeled "المزيد" (more).
const loadMoreXPath = `//button[contains(., "المزيد")] | //a[contains(., "المزيد")]`

// LoadMore clicks the load-more control if one exists, falling back to a
// scroll-to-bottom lazy-load probe that compares document height before
// and after. Returns false when neither produced more content.
func (s *Session) LoadMore(ctx context.Context) (bool, error) {
	if clicked, err := s.clickLoadMore(ctx); err != nil || clicked {
		return clicked, err
	}
	return s.scrollProbe(ctx)
}

func (s *Session) clickLoadMore(ctx context.Context) (bool, error) {
	for _, selector := range loadMoreSelectors {
		var nodes []*cdp.Node
		err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
			chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		})
		if err != nil {
			return false, err
		}
		if len(nodes) == 0 {
			continue
		}
		if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
			chromedp.Click(selector, chromedp.ByQuery),
			chromedp.Sleep(s.cfg.ScrollSettle),
		}); err != nil {
			s.logger.Debug("load-more click failed", zap.String("selector", selector), zap.Error(err))
			continue
		}
		return true, nil
	}

	var nodes []*cdp.Node
	err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
		chromedp.Nodes(loadMoreXPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)),
	})
	if err != nil || len(nodes) == 0 {
		return false, err
	}
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
		chromedp.Click(loadMoreXPath, chromedp.BySearch),
		chromedp.Sleep(s.cfg.ScrollSettle),
	}); err != nil {
		s.logger.Debug("load-more click failed", zap.String("selector", loadMoreXPath), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *Session) scrollProbe(ctx context.Context) (bool, error) {
	var before, after float64
	err := s.run(ctx, s.cfg.NavTimeout, chromedp.Tasks{
		chromedp.Evaluate(`document.body.scrollHeight`, &before),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(s.cfg.ScrollSettle),
		chromedp.Evaluate(`document.body.scrollHeight`, &after),
	})
	if err != nil {
		return false, fmt.Errorf("scroll probe: %w", err)
	}
	return after > before, nil
}

// Close releases the tab.
func (s *Session) Close(_ context.Context) error {
	s.tabCancel()
	return nil
}

func (s *Session) run(ctx context.Context, timeout time.Duration, tasks chromedp.Tasks) error {
	taskCtx, cancelTask := context.WithTimeout(s.tabCtx, timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	return chromedp.Run(taskCtx, tasks)
}

// forwardCancel propagates cancellation of the caller's context into a
// chromedp task context, which is rooted in the tab rather than the call.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
