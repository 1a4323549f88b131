package scraper

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
)

const pagesDir = "../../testdata/pages"

func day(s string) time.Time {
	t, err := time.Parse(keyDateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func travis(t *testing.T) Site {
	t.Helper()
	site, err := SiteFor("travis", "")
	if err != nil {
		t.Fatalf("SiteFor: %v", err)
	}
	return site
}

func fastOptions(sessions, retries int) Options {
	return Options{
		Sessions: sessions,
		Retry: RetryPolicy{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
}

func fixtureScraper(t *testing.T, opts Options) *Scraper {
	t.Helper()
	f, err := NewFixtureDirFetcher(pagesDir)
	if err != nil {
		t.Fatalf("NewFixtureDirFetcher: %v", err)
	}
	return NewScraper(f, travis(t), opts, logger.NewNop())
}

func TestLocatorKey(t *testing.T) {
	tests := []struct {
		name string
		loc  Locator
		want string
	}{
		{"case", CaseLocator("J1-CV-20-001590"), "search/J1-CV-20-001590"},
		{"register", RegisterLocator("J1-CV-20-001590", "https://example.test/CaseDetail.aspx?CaseID=1"), "register/J1-CV-20-001590"},
		{"calendar day", CalendarLocator(day("2020-06-01")), "calendar/2020-06-01"},
		{"calendar range", Locator{Kind: KindCalendar, After: day("2020-06-01"), Before: day("2020-06-02")}, "calendar/2020-06-01_2020-06-02"},
		{"filings", FilingsLocator(day("2020-06-01"), day("2020-06-30"), "J2-CV-2020*"), "filings/2020-06-01_2020-06-30_J2-CV-2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSiteFor(t *testing.T) {
	site, err := SiteFor("Williamson", "")
	if err != nil {
		t.Fatalf("SiteFor: %v", err)
	}
	if site.Homepage != "https://judicialrecords.wilco.org/PublicAccess/default.aspx" {
		t.Errorf("unexpected homepage %q", site.Homepage)
	}

	site, err = SiteFor("travis", "http://localhost:9000/default.aspx")
	if err != nil {
		t.Fatalf("SiteFor: %v", err)
	}
	if site.Homepage != "http://localhost:9000/default.aspx" {
		t.Errorf("base URL override ignored: %q", site.Homepage)
	}

	if _, err := SiteFor("harris", ""); err == nil {
		t.Error("expected error for unknown county")
	}
}

func TestBuildScript(t *testing.T) {
	site := travis(t)

	script, err := BuildScript(site, CaseLocator("J1-CV-20-001590"))
	if err != nil {
		t.Fatalf("BuildScript: %v", err)
	}
	if script[0].Action != ActionNavigate || script[0].Value != site.Homepage {
		t.Errorf("case script should start at the homepage, got %+v", script[0])
	}
	var typed bool
	for _, step := range script {
		if step.Action == ActionInput && step.Selector == caseSearchValue && step.Value == "J1-CV-20-001590" {
			typed = true
		}
	}
	if !typed {
		t.Error("case script never types the case number")
	}

	script, err = BuildScript(site, CalendarLocator(day("2020-06-01")))
	if err != nil {
		t.Fatalf("BuildScript: %v", err)
	}
	var unchecked int
	for _, step := range script {
		if step.Action == ActionUncheck {
			unchecked++
		}
		if step.Selector == settingOnAfter && step.Value != "6/1/2020" {
			t.Errorf("calendar date typed as %q, want 6/1/2020", step.Value)
		}
	}
	if unchecked != len(calendarCategoryBoxes) {
		t.Errorf("unchecked %d boxes, want %d", unchecked, len(calendarCategoryBoxes))
	}

	if _, err := BuildScript(site, RegisterLocator("J1-CV-20-001590", "")); err == nil {
		t.Error("register locator without URL should fail")
	}
	if _, err := BuildScript(site, Locator{Kind: "pdf"}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestFixtureFetcher(t *testing.T) {
	fsys := fstest.MapFS{
		"search/J1-CV-20-000001.html": {Data: []byte("<html>search</html>")},
	}
	f := NewFixtureFetcher(fsys)
	ctx := context.Background()

	doc, err := f.Fetch(ctx, CaseLocator("J1-CV-20-000001"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.HTML != "<html>search</html>" {
		t.Errorf("unexpected HTML %q", doc.HTML)
	}

	_, err = f.Fetch(ctx, RegisterLocator("J1-CV-20-000001", "x"))
	if !errors.Is(err, apperrors.ErrCaseNotFound) {
		t.Errorf("missing register: got %v, want ErrCaseNotFound", err)
	}

	doc, err = f.Fetch(ctx, CalendarLocator(day("2020-06-02")))
	if err != nil {
		t.Fatalf("missing calendar should be an empty page, got %v", err)
	}
	if doc.HTML != "" {
		t.Errorf("expected empty calendar page, got %q", doc.HTML)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.Fetch(cancelled, CaseLocator("J1-CV-20-000001")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled fetch: got %v", err)
	}
}

func TestFetchCase(t *testing.T) {
	s := fixtureScraper(t, fastOptions(2, 3))

	pages, err := s.FetchCase(context.Background(), "J1-CV-20-001590")
	if err != nil {
		t.Fatalf("FetchCase: %v", err)
	}
	want := "https://odysseypa.traviscountytx.gov/JPPublicAccess/CaseDetail.aspx?CaseID=2186931"
	if pages.Result.RegisterURL != want {
		t.Errorf("RegisterURL = %q, want %q", pages.Result.RegisterURL, want)
	}
	if pages.Register == nil || pages.Register.HTML == "" {
		t.Fatal("register page not fetched")
	}
	if pages.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", pages.Attempts)
	}
}

func TestFetchCaseNotFound(t *testing.T) {
	s := fixtureScraper(t, fastOptions(1, 3))

	for _, n := range []string{"J1-CV-20-009999", "J9-CV-20-000000"} {
		pages, err := s.FetchCase(context.Background(), n)
		if !errors.Is(err, apperrors.ErrCaseNotFound) {
			t.Errorf("%s: got %v, want ErrCaseNotFound", n, err)
		}
		if pages.Attempts != 1 {
			t.Errorf("%s: not-found must not be retried, attempts = %d", n, pages.Attempts)
		}
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	fixtures, err := NewFixtureDirFetcher(pagesDir)
	if err != nil {
		t.Fatal(err)
	}
	var calls int32
	flaky := FetcherFunc(func(ctx context.Context, loc Locator) (*Document, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, apperrors.Transient("fetch", errors.New("connection reset"))
		}
		return fixtures.Fetch(ctx, loc)
	})

	s := NewScraper(flaky, travis(t), fastOptions(1, 3), logger.NewNop())
	pages, err := s.FetchCase(context.Background(), "J1-CV-20-001590")
	if err != nil {
		t.Fatalf("FetchCase: %v", err)
	}
	if pages.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", pages.Attempts)
	}
}

func TestFetchGivesUp(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCall int32
		wantIs   error
	}{
		{"transient exhausted", apperrors.Transient("fetch", errors.New("timeout")), 3, apperrors.ErrFetchTransient},
		{"permanent not retried", errors.New("bad locator"), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			failing := FetcherFunc(func(ctx context.Context, loc Locator) (*Document, error) {
				atomic.AddInt32(&calls, 1)
				return nil, tt.err
			})
			s := NewScraper(failing, travis(t), fastOptions(1, 2), logger.NewNop())

			_, err := s.FetchCalendar(context.Background(), day("2020-06-01"))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("got %v, want %v", err, tt.wantIs)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCall {
				t.Errorf("calls = %d, want %d", got, tt.wantCall)
			}
		})
	}
}

func TestFetchSessionsAreBounded(t *testing.T) {
	var inFlight, maxSeen int32
	slow := FetcherFunc(func(ctx context.Context, loc Locator) (*Document, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return &Document{Locator: loc}, nil
	})

	s := NewScraper(slow, travis(t), fastOptions(2, 0), logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.FetchCalendar(context.Background(), day("2020-06-01").AddDate(0, 0, i)); err != nil {
				t.Errorf("FetchCalendar: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxSeen); got > 2 {
		t.Errorf("%d concurrent fetches, pool size is 2", got)
	}
}

func TestFilingCaseNumbersSplitsTruncatedRange(t *testing.T) {
	s := fixtureScraper(t, fastOptions(1, 0))

	got, err := s.FilingCaseNumbers(context.Background(), day("2020-06-01"), day("2020-06-30"), "J2-CV-2020*")
	if err != nil {
		t.Fatalf("FilingCaseNumbers: %v", err)
	}
	want := []string{"J2-CV-20-000412", "J2-CV-20-000433"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitRange(t *testing.T) {
	firstEnd, secondStart, ok := splitRange(day("2020-06-01"), day("2020-06-30"))
	if !ok {
		t.Fatal("expected split")
	}
	if !firstEnd.Equal(day("2020-06-15")) || !secondStart.Equal(day("2020-06-16")) {
		t.Errorf("split at %s/%s", firstEnd.Format(keyDateLayout), secondStart.Format(keyDateLayout))
	}

	if _, _, ok := splitRange(day("2020-06-01"), day("2020-06-01")); ok {
		t.Error("a single day cannot be split")
	}
}

func TestFilingPrefixes(t *testing.T) {
	got := FilingPrefixes(day("2019-12-01"), day("2020-01-10"))
	if len(got) != 10 {
		t.Fatalf("got %d prefixes, want 10", len(got))
	}
	if got[1] != "J2-CV-2019*" || got[7] != "J3-EV-2020*" {
		t.Errorf("unexpected prefixes %v", got)
	}
}

func TestCachingFetcher(t *testing.T) {
	var calls int32
	counting := FetcherFunc(func(ctx context.Context, loc Locator) (*Document, error) {
		atomic.AddInt32(&calls, 1)
		if loc.Kind == KindRegister {
			return nil, apperrors.Transient("fetch", errors.New("boom"))
		}
		return &Document{Locator: loc, HTML: "<html></html>"}, nil
	})
	f := NewCachingFetcher(counting, cache.NewCache[*Document](10, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(ctx, CaseLocator("J1-CV-20-001590")); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("backend called %d times, want 1", calls)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(ctx, RegisterLocator("J1-CV-20-001590", "x")); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 3 {
		t.Errorf("errors must not be cached, backend called %d times", calls)
	}

	if stats := f.Stats(); stats.Hits != 2 {
		t.Errorf("cache hits = %d, want 2", stats.Hits)
	}
}
