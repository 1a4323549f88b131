// Package extract turns raw court-register HTML into typed record shapes.
// Every function here is pure: no I/O, no logging, no shared state.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/PuerkitoBio/goquery"
)

const noMatchesText = "no cases matched"

// SearchResult is the row of the case search results page for one case.
type SearchResult struct {
	CaseNumber  string
	RegisterURL string
	Status      *string
	CaseType    *string
}

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseSearchResult finds the result row for caseNumber and resolves its
// register link against baseURL. A page without results yields ErrCaseNotFound.
func ParseSearchResult(html, caseNumber, baseURL string) (*SearchResult, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	if strings.Contains(strings.ToLower(doc.Text()), noMatchesText) {
		return nil, fmt.Errorf("search %s: %w", caseNumber, apperrors.ErrCaseNotFound)
	}

	var row *goquery.Selection
	links := doc.Find(`a[href*="CaseDetail"]`)
	links.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.EqualFold(cleanText(s.Text()), caseNumber) {
			row = s
			return false
		}
		return true
	})
	if row == nil {
		if links.Length() == 0 {
			return nil, fmt.Errorf("search %s: no register link: %w", caseNumber, apperrors.ErrCaseNotFound)
		}
		row = links.First()
	}

	href, _ := row.Attr("href")
	registerURL, err := resolveURL(baseURL, href)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", caseNumber, err)
	}

	result := &SearchResult{
		CaseNumber:  cleanText(row.Text()),
		RegisterURL: registerURL,
	}

	// The last cell stacks the case type over the status.
	divs := row.Closest("tr").Find("td").Last().Find("div")
	if divs.Length() >= 1 {
		result.CaseType = optional(divs.Eq(0).Text())
	}
	if divs.Length() >= 2 {
		result.Status = optional(divs.Eq(1).Text())
	}

	return result, nil
}

func resolveURL(baseURL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid register link %q: %w", href, err)
	}
	if baseURL == "" || ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}
