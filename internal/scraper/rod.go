package scraper

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher drives a headless Chromium through go-rod. It keeps a fixed pool
// of pages; a fetch blocks until a page is free.
type RodFetcher struct {
	site    Site
	timeout time.Duration
	browser *rod.Browser
	pages   chan *rod.Page
	logger  *logger.Logger

	closeOnce sync.Once
	all       []*rod.Page
}

// NewRodFetcher launches the browser and opens cfg.MaxConcurrentScrapes pages.
func NewRodFetcher(cfg *config.Config, site Site, log *logger.Logger) (*RodFetcher, error) {
	l := launcher.New().
		Headless(cfg.HeadlessMode).
		Set("user-agent", cfg.UserAgent).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")

	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}

	if cfg.LogLevel == "debug" {
		l = l.Devtools(true)
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	f := &RodFetcher{
		site:    site,
		timeout: cfg.ScraperTimeout,
		browser: browser,
		pages:   make(chan *rod.Page, cfg.MaxConcurrentScrapes),
		logger:  log,
	}
	for i := 0; i < cfg.MaxConcurrentScrapes; i++ {
		page, err := f.newPage()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		f.all = append(f.all, page)
		f.pages <- page
	}
	return f, nil
}

func (f *RodFetcher) newPage() (*rod.Page, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, err
	}
	if _, err := page.SetExtraHeaders([]string{"Accept-Language", "en-US,en;q=0.9"}); err != nil {
		return nil, err
	}
	return page, nil
}

// Close closes every page and the browser.
func (f *RodFetcher) Close() error {
	var err error
	f.closeOnce.Do(func() {
		for _, page := range f.all {
			_ = page.Close()
		}
		err = f.browser.Close()
	})
	return err
}

// Fetch runs the locator's script on a pooled page and captures the final HTML.
func (f *RodFetcher) Fetch(ctx context.Context, loc Locator) (*Document, error) {
	script, err := BuildScript(f.site, loc)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	select {
	case page = <-f.pages:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { f.pages <- page }()

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	p := page.Context(fetchCtx)

	for i, step := range script {
		f.logger.Debug("Running browser step", "locator", loc.Key(), "step", i, "action", step.Action)
		if err := f.run(p, step); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperrors.Transient(fmt.Sprintf("rod %s step %d (%s)", loc.Key(), i, step.Action), err)
		}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, apperrors.Transient("rod read html", err)
	}
	pageURL := ""
	if info, err := p.Info(); err == nil {
		pageURL = info.URL
	}

	return &Document{Locator: loc, URL: pageURL, HTML: html, FetchedAt: time.Now()}, nil
}

func (f *RodFetcher) run(p *rod.Page, step Step) error {
	switch step.Action {
	case ActionNavigate:
		if err := p.Navigate(step.Value); err != nil {
			return err
		}
		return p.WaitLoad()

	case ActionWait:
		_, err := p.Element(step.Selector)
		return err

	case ActionClickLink, ActionClick:
		var (
			el  *rod.Element
			err error
		)
		if step.Action == ActionClickLink {
			el, err = p.ElementR("a", regexp.QuoteMeta(step.Value))
		} else {
			el, err = p.Element(step.Selector)
		}
		if err != nil {
			return err
		}
		if !step.Navigates {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
		wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		wait()
		return nil

	case ActionInput:
		el, err := p.Element(step.Selector)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(step.Value)

	case ActionUncheck:
		el, err := p.Element(step.Selector)
		if err != nil {
			return err
		}
		checked, err := el.Property("checked")
		if err != nil {
			return err
		}
		if checked.Bool() {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
		return nil

	default:
		return fmt.Errorf("unsupported action %q", step.Action)
	}
}
