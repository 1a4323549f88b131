package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpFetcher drives Chromium through the DevTools protocol with
// chromedp. Each fetch opens a new tab on a shared browser.
type ChromedpFetcher struct {
	site    Site
	timeout time.Duration
	logger  *logger.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpFetcher starts the browser.
func NewChromedpFetcher(cfg *config.Config, site Site, log *logger.Logger) (*ChromedpFetcher, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", cfg.HeadlessMode),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	}
	if cfg.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BrowserPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &ChromedpFetcher{
		site:          site,
		timeout:       cfg.ScraperTimeout,
		logger:        log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down.
func (f *ChromedpFetcher) Close() error {
	f.browserCancel()
	f.allocCancel()
	return nil
}

// Fetch runs the locator's script in a fresh tab.
func (f *ChromedpFetcher) Fetch(ctx context.Context, loc Locator) (*Document, error) {
	script, err := BuildScript(f.site, loc)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html, pageURL string
	actions := make([]chromedp.Action, 0, len(script)+2)
	for _, step := range script {
		action, err := chromedpAction(step)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&pageURL),
	)

	f.logger.Debug("Running browser script", "locator", loc.Key(), "steps", len(script))
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Transient("chromedp "+loc.Key(), err)
	}

	return &Document{Locator: loc, URL: pageURL, HTML: html, FetchedAt: time.Now()}, nil
}

func chromedpAction(step Step) (chromedp.Action, error) {
	switch step.Action {
	case ActionNavigate:
		return chromedp.Navigate(step.Value), nil
	case ActionWait:
		return chromedp.WaitReady(step.Selector, chromedp.ByQuery), nil
	case ActionClickLink:
		xpath := fmt.Sprintf(`//a[normalize-space(.)='%s']`, step.Value)
		return click(xpath, step.Navigates, chromedp.BySearch), nil
	case ActionClick:
		return click(step.Selector, step.Navigates, chromedp.ByQuery), nil
	case ActionInput:
		return chromedp.Tasks{
			chromedp.SetValue(step.Selector, "", chromedp.ByQuery),
			chromedp.SendKeys(step.Selector, step.Value, chromedp.ByQuery),
		}, nil
	case ActionUncheck:
		js := fmt.Sprintf(`(function(){var e=document.querySelector(%q);if(e&&e.checked){e.click();}return true;})()`, step.Selector)
		var ok bool
		return chromedp.Evaluate(js, &ok), nil
	default:
		return nil, fmt.Errorf("unsupported action %q", step.Action)
	}
}

// click clicks sel. When navigates is set it returns after the next page's
// load event.
func click(sel string, navigates bool, opts ...chromedp.QueryOption) chromedp.Action {
	if !navigates {
		return chromedp.Click(sel, opts...)
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		loaded := make(chan struct{}, 1)
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventLoadEventFired); ok {
				select {
				case loaded <- struct{}{}:
				default:
				}
			}
		})

		if err := chromedp.Click(sel, opts...).Do(ctx); err != nil {
			return err
		}
		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
