// Package scraper retrieves court register pages. Backends (browser, recorded
// fixtures) sit behind the Fetcher interface so that extraction and matching
// never depend on how a page was obtained.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind is the type of page a Locator points at.
type Kind string

const (
	KindCase     Kind = "case"
	KindRegister Kind = "register"
	KindCalendar Kind = "calendar"
	KindFilings  Kind = "filings"
)

const keyDateLayout = "2006-01-02"

// Locator describes one page to fetch.
type Locator struct {
	Kind       Kind
	CaseNumber string
	// URL is the register link for KindRegister.
	URL string
	// After and Before bound calendar and filings searches, inclusive.
	After  time.Time
	Before time.Time
	// Prefix is the case number prefix of a filings search.
	Prefix string
}

// CaseLocator searches the portal for one case number.
func CaseLocator(caseNumber string) Locator {
	return Locator{Kind: KindCase, CaseNumber: caseNumber}
}

// RegisterLocator opens the register of actions of a case.
func RegisterLocator(caseNumber, url string) Locator {
	return Locator{Kind: KindRegister, CaseNumber: caseNumber, URL: url}
}

// CalendarLocator lists the settings of a single day.
func CalendarLocator(day time.Time) Locator {
	return Locator{Kind: KindCalendar, After: day, Before: day}
}

// FilingsLocator lists the cases filed between after and before whose number
// starts with prefix.
func FilingsLocator(after, before time.Time, prefix string) Locator {
	return Locator{Kind: KindFilings, After: after, Before: before, Prefix: prefix}
}

// Key identifies the page. It doubles as the cache key and the fixture path.
func (l Locator) Key() string {
	switch l.Kind {
	case KindCase:
		return "search/" + l.CaseNumber
	case KindRegister:
		return "register/" + l.CaseNumber
	case KindCalendar:
		if l.After.Equal(l.Before) {
			return "calendar/" + l.After.Format(keyDateLayout)
		}
		return fmt.Sprintf("calendar/%s_%s", l.After.Format(keyDateLayout), l.Before.Format(keyDateLayout))
	case KindFilings:
		prefix := strings.TrimSuffix(l.Prefix, "*")
		return fmt.Sprintf("filings/%s_%s_%s", l.After.Format(keyDateLayout), l.Before.Format(keyDateLayout), prefix)
	default:
		return string(l.Kind)
	}
}

func (l Locator) String() string {
	return l.Key()
}

// Document is the raw content of a fetched page.
type Document struct {
	Locator   Locator
	URL       string
	HTML      string
	FetchedAt time.Time
}

// Fetcher retrieves one page. Implementations wrap retryable failures with
// apperrors.ErrFetchTransient and report missing cases with
// apperrors.ErrCaseNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, loc Locator) (*Document, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, loc Locator) (*Document, error)

func (f FetcherFunc) Fetch(ctx context.Context, loc Locator) (*Document, error) {
	return f(ctx, loc)
}
