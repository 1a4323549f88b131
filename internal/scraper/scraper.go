package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/extract"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

// RetryPolicy bounds the exponential backoff of transient fetch failures.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Options configures a Scraper.
type Options struct {
	// Sessions is the size of the fetch-session pool.
	Sessions int
	Retry    RetryPolicy
}

// Scraper composes a Fetcher into the page sets the pipeline needs. Every
// backend call holds a fetch session and is retried only on
// apperrors.ErrFetchTransient.
type Scraper struct {
	fetcher  Fetcher
	site     Site
	sessions *semaphore.Weighted
	retry    RetryPolicy
	logger   *logger.Logger
}

// NewScraper creates a new scraper over fetcher.
func NewScraper(fetcher Fetcher, site Site, opts Options, log *logger.Logger) *Scraper {
	if opts.Sessions < 1 {
		opts.Sessions = 1
	}
	return &Scraper{
		fetcher:  fetcher,
		site:     site,
		sessions: semaphore.NewWeighted(int64(opts.Sessions)),
		retry:    opts.Retry,
		logger:   log,
	}
}

// OptionsFromConfig maps the fetch settings of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Sessions: cfg.MaxConcurrentScrapes,
		Retry: RetryPolicy{
			MaxRetries:      cfg.FetchMaxRetries,
			InitialInterval: cfg.FetchInitialBackoff,
			MaxInterval:     cfg.FetchMaxBackoff,
		},
	}
}

// NewFetcher builds the backend named by cfg.FetchBackend behind the page
// cache. The returned closer releases the browser, if any.
func NewFetcher(cfg *config.Config, site Site, pages cache.Cache[*Document], log *logger.Logger) (*CachingFetcher, io.Closer, error) {
	var (
		backend Fetcher
		closer  io.Closer = nopCloser{}
	)
	switch cfg.FetchBackend {
	case "rod":
		f, err := NewRodFetcher(cfg, site, log)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = f, f
	case "chromedp":
		f, err := NewChromedpFetcher(cfg, site, log)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = f, f
	case "fixture":
		f, err := NewFixtureDirFetcher(cfg.FixtureDir)
		if err != nil {
			return nil, nil, err
		}
		backend = f
	default:
		return nil, nil, fmt.Errorf("unknown fetch backend %q", cfg.FetchBackend)
	}
	log.Info("Fetcher ready", "backend", cfg.FetchBackend, "site", site.Name)
	return NewCachingFetcher(backend, pages), closer, nil
}

// Site is the portal this scraper reads.
func (s *Scraper) Site() Site {
	return s.site
}

// CasePages is everything fetched for one case.
type CasePages struct {
	CaseNumber string
	Search     *Document
	Result     *extract.SearchResult
	Register   *Document
	// Attempts counts backend calls, retries included.
	Attempts int
}

// FetchCase searches the portal for caseNumber and fetches its register.
// A case the portal does not know yields apperrors.ErrCaseNotFound.
func (s *Scraper) FetchCase(ctx context.Context, caseNumber string) (*CasePages, error) {
	pages := &CasePages{CaseNumber: caseNumber}

	search, attempts, err := s.fetch(ctx, CaseLocator(caseNumber))
	pages.Attempts += attempts
	if err != nil {
		return pages, err
	}
	pages.Search = search

	result, err := extract.ParseSearchResult(search.HTML, caseNumber, s.baseURL(search))
	if err != nil {
		return pages, err
	}
	pages.Result = result

	register, attempts, err := s.fetch(ctx, RegisterLocator(caseNumber, result.RegisterURL))
	pages.Attempts += attempts
	if err != nil {
		return pages, err
	}
	pages.Register = register

	return pages, nil
}

// FetchCalendar fetches the settings calendar of one day.
func (s *Scraper) FetchCalendar(ctx context.Context, day time.Time) (*Document, error) {
	doc, _, err := s.fetch(ctx, CalendarLocator(day))
	return doc, err
}

// FilingCaseNumbers lists the cases filed between after and before (inclusive)
// whose number starts with prefix. The portal truncates long result lists, so
// a truncated range is split in half until each part fits.
func (s *Scraper) FilingCaseNumbers(ctx context.Context, after, before time.Time, prefix string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	if err := s.collectFilings(ctx, after, before, prefix, seen, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Scraper) collectFilings(ctx context.Context, after, before time.Time, prefix string, seen map[string]bool, out *[]string) error {
	doc, _, err := s.fetch(ctx, FilingsLocator(after, before, prefix))
	if err != nil {
		return err
	}
	filings, err := extract.ParseFilings(doc.HTML)
	if err != nil {
		return fmt.Errorf("filings %s: %w", doc.Locator.Key(), err)
	}

	if filings.TooMany {
		firstEnd, secondStart, ok := splitRange(after, before)
		if !ok {
			s.logger.Warn("Too many filings on a single day, results truncated",
				"date", after.Format(keyDateLayout), "prefix", prefix)
		} else {
			s.logger.Debug("Splitting filings range",
				"after", after.Format(keyDateLayout), "before", before.Format(keyDateLayout), "prefix", prefix)
			if err := s.collectFilings(ctx, after, firstEnd, prefix, seen, out); err != nil {
				return err
			}
			return s.collectFilings(ctx, secondStart, before, prefix, seen, out)
		}
	}

	for _, n := range filings.CaseNumbers {
		if !seen[n] {
			seen[n] = true
			*out = append(*out, n)
		}
	}
	return nil
}

// splitRange halves [after, before] into [after, firstEnd] and
// [secondStart, before]. A single day cannot be split.
func splitRange(after, before time.Time) (firstEnd, secondStart time.Time, ok bool) {
	days := int(before.Sub(after).Hours() / 24)
	if days < 1 {
		return time.Time{}, time.Time{}, false
	}
	firstEnd = after.AddDate(0, 0, days/2)
	return firstEnd, firstEnd.AddDate(0, 0, 1), true
}

// CalendarPrefixes are the case number search patterns of the justice court
// precincts for a filing year.
func CalendarPrefixes(year int) []string {
	prefixes := make([]string, 0, len(precinctPrefixes))
	for _, p := range precinctPrefixes {
		prefixes = append(prefixes, fmt.Sprintf("%s-%d*", p, year))
	}
	return prefixes
}

var precinctPrefixes = []string{"J1-CV", "J2-CV", "J3-EV", "J4-CV", "J5-CV"}

// FilingPrefixes covers every filing year touched by [after, before].
func FilingPrefixes(after, before time.Time) []string {
	var prefixes []string
	for year := after.Year(); year <= before.Year(); year++ {
		prefixes = append(prefixes, CalendarPrefixes(year)...)
	}
	return prefixes
}

// fetch calls the backend under a fetch session, retrying transient failures.
func (s *Scraper) fetch(ctx context.Context, loc Locator) (*Document, int, error) {
	var (
		doc      *Document
		attempts int
	)

	operation := func() error {
		attempts++
		if err := s.sessions.Acquire(ctx, 1); err != nil {
			return backoff.Permanent(err)
		}
		defer s.sessions.Release(1)

		d, err := s.fetcher.Fetch(ctx, loc)
		if err != nil {
			if errors.Is(err, apperrors.ErrFetchTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		doc = d
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Fetch failed, retrying",
			"locator", loc.Key(), "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, s.newBackOff(ctx), notify)
	if err != nil {
		return nil, attempts, fmt.Errorf("fetch %s: %w", loc.Key(), err)
	}
	return doc, attempts, nil
}

func (s *Scraper) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		b.InitialInterval = s.retry.InitialInterval
	}
	if s.retry.MaxInterval > 0 {
		b.MaxInterval = s.retry.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	retries := s.retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (s *Scraper) baseURL(doc *Document) string {
	if doc.URL != "" && !isFixtureURL(doc.URL) {
		return doc.URL
	}
	return s.site.Homepage
}

func isFixtureURL(u string) bool {
	return strings.HasPrefix(u, "fixture://")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
