package extract

import (
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/PuerkitoBio/goquery"
)

const tooManyMatchesText = "too many matches"

// SettingFields is one row of the court calendar. Key fields are never nil;
// an absent setting or hearing type is the empty string.
type SettingFields struct {
	CaseNumber      string
	CaseLink        *string
	SettingType     string
	SettingStyle    *string
	JudicialOfficer *string
	SettingDate     string
	SettingTime     *string
	HearingType     string
}

// Calendar row cell positions.
const (
	cellCaseNumber  = 1
	cellSettingType = 2
	cellStyle       = 3
	cellOfficer     = 4
	cellDate        = 8
	cellTime        = 9
	cellHearingType = 10
)

// ParseSettings extracts the settings of a calendar results page. Rows
// without a case number or date are rejected individually.
func ParseSettings(html, baseURL string) ([]SettingFields, []error, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, nil, err
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(i int, t *goquery.Selection) bool {
		if t.Find("table").Length() > 0 {
			return true
		}
		if strings.Contains(t.Find("tr").First().Text(), "Judicial Officer") {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, nil, nil
	}

	var (
		settings []SettingFields
		rejected []error
	)
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() <= cellHearingType {
			return
		}
		raw, _ := goquery.OuterHtml(tr)

		caseNumber := cleanText(cells.Eq(cellCaseNumber).Text())
		if caseNumber == "" {
			rejected = append(rejected, apperrors.Malformed("setting", "case number", raw))
			return
		}
		date, ok := NormalizeDate(cells.Eq(cellDate).Text())
		if !ok {
			rejected = append(rejected, apperrors.Malformed("setting", "setting date", raw))
			return
		}

		s := SettingFields{
			CaseNumber:      caseNumber,
			SettingType:     cleanText(cells.Eq(cellSettingType).Text()),
			SettingStyle:    optional(cells.Eq(cellStyle).Text()),
			JudicialOfficer: optional(cells.Eq(cellOfficer).Text()),
			SettingDate:     date,
			SettingTime:     optionalFrom(cells.Eq(cellTime).Text(), NormalizeTime),
			HearingType:     cleanText(cells.Eq(cellHearingType).Text()),
		}
		if href, ok := cells.Eq(cellCaseNumber).Find("a").Attr("href"); ok {
			if link, err := resolveURL(baseURL, href); err == nil {
				s.CaseLink = &link
			}
		}
		settings = append(settings, s)
	})
	return settings, rejected, nil
}

// Filings is the case list of a filed-date search.
type Filings struct {
	CaseNumbers []string
	// TooMany means the portal truncated the result; the range must be split.
	TooMany bool
}

// ParseFilings extracts case numbers from a filed-date search results page.
func ParseFilings(html string) (*Filings, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(doc.Text())
	if strings.Contains(text, tooManyMatchesText) {
		return &Filings{TooMany: true}, nil
	}
	if strings.Contains(text, noMatchesText) {
		return &Filings{}, nil
	}

	f := &Filings{}
	seen := map[string]bool{}
	doc.Find("table").Each(func(i int, t *goquery.Selection) {
		if t.Find("table").Length() > 0 || !strings.Contains(t.Find("th").Text(), "Filed/Location") {
			return
		}
		t.Find(`a[href*="CaseDetail"]`).Each(func(j int, a *goquery.Selection) {
			n := cleanText(a.Text())
			if n != "" && !seen[n] {
				seen[n] = true
				f.CaseNumbers = append(f.CaseNumbers, n)
			}
		})
	})
	return f, nil
}
