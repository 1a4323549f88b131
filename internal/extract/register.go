package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/PuerkitoBio/goquery"
)

var (
	zipPattern      = regexp.MustCompile(`(?i),\s*tx\.?\s+(\d{5}(?:-\d{4})?)`)
	officerPattern  = regexp.MustCompile(`(?i)Judicial Officer:?\s*([^()]+?)\s*(?:\)|Result:|$)`)
	resultPattern   = regexp.MustCompile(`(?i)Result:\s*([^()]+?)\s*(?:Comment:|Judicial Officer|$)`)
	appearedPattern = regexp.MustCompile(`(?i)\bappeared\b`)
	awardedTo       = regexp.MustCompile(`(?i)Awarded To:\s*(.+?)\s*(?:Awarded Against:|Comment:|$)`)
	awardedAgainst  = regexp.MustCompile(`(?i)Awarded Against:\s*(.+?)\s*(?:Awarded To:|Comment:|$)`)
	rowIDDigits     = regexp.MustCompile(`\d+$`)
	rolePattern     = regexp.MustCompile(`(?i)^(plaintiff|defendant)s?(?:\s+\d+)?$`)
)

// Register is everything extracted from one case register page.
type Register struct {
	Case        CaseFields
	Events      []EventFields
	Disposition *DispositionBlock
	// Rejected holds one MalformedRecordError per dropped event row.
	Rejected []error
}

// CaseFields is the case header. Everything but CaseNumber is optional.
type CaseFields struct {
	CaseNumber         string
	Style              *string
	CaseType           *string
	DateFiled          *string
	Precinct           *string
	Plaintiffs         []string
	Defendants         []string
	PlaintiffZip       *string
	DefendantZip       *string
	PlaintiffAttorneys []string
	DefendantAttorneys []string
}

// EventFields is one row of the events section.
type EventFields struct {
	Number  int
	Date    string
	Type    string
	Time    *string
	Officer *string
	Result  *string
	Text    string
}

// DispositionBlock is the raw disposition cell plus whatever it labels explicitly.
type DispositionBlock struct {
	Date           *string
	Heading        string
	Text           string
	Amount         *string
	AwardedTo      *string
	AwardedAgainst *string
	Comments       []string
}

// ParseRegister extracts the case header, events and disposition block. A
// missing case number rejects the whole page; a bad event row rejects only
// that row.
func ParseRegister(html string) (*Register, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	caseNumber := cleanText(doc.Find(".ssCaseDetailCaseNbr span").First().Text())
	if caseNumber == "" {
		return nil, apperrors.Malformed("case", "case number", cleanText(doc.Find("body").Text()))
	}

	reg := &Register{Case: CaseFields{CaseNumber: caseNumber}}
	parseHeader(doc, &reg.Case)
	parseParties(doc, &reg.Case)
	reg.Events, reg.Rejected = parseEvents(doc)
	reg.Disposition = parseDisposition(doc)

	return reg, nil
}

func parseHeader(doc *goquery.Document, c *CaseFields) {
	doc.Find("th").Each(func(i int, th *goquery.Selection) {
		label := strings.ToLower(cleanText(th.Text()))
		if !strings.HasSuffix(label, ":") {
			return
		}
		value := th.NextAllFiltered("td").First().Text()

		switch {
		case strings.Contains(label, "case type"):
			c.CaseType = optional(value)
		case strings.Contains(label, "date filed"):
			c.DateFiled = optionalFrom(value, NormalizeDate)
		case strings.Contains(label, "location"):
			c.Precinct = optionalFrom(value, NormalizePrecinct)
		}
	})

	// The style is the first cell reading "X vs. Y"; cells wrapping nested
	// layout tables are skipped.
	for _, sel := range []string{"td b", "td"} {
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if s.Find("table").Length() > 0 {
				return true
			}
			text := cleanText(s.Text())
			lower := strings.ToLower(text)
			if strings.Contains(lower, " vs. ") || strings.Contains(lower, " vs ") || strings.Contains(lower, " v. ") {
				c.Style = &text
				return false
			}
			return true
		})
		if c.Style != nil {
			return
		}
	}
}

func parseParties(doc *goquery.Document, c *CaseFields) {
	attorneysID := ""
	doc.Find("th").EachWithBreak(func(i int, th *goquery.Selection) bool {
		// "Attorneys", or "Lead Attorneys" on some portals.
		if strings.HasSuffix(strings.ToLower(cleanText(th.Text())), "attorneys") {
			attorneysID, _ = th.Attr("id")
			return false
		}
		return true
	})

	doc.Find("th").Each(func(i int, th *goquery.Selection) {
		m := rolePattern.FindStringSubmatch(cleanText(th.Text()))
		if m == nil {
			return
		}
		nameCell := th.NextAllFiltered("th").First()
		name := cleanText(nameCell.Text())
		if name == "" {
			return
		}
		partyID, _ := nameCell.Attr("id")
		zip := partyZip(th)
		attorneys := partyAttorneys(doc, partyID, attorneysID)

		if strings.EqualFold(m[1], "plaintiff") {
			c.Plaintiffs = append(c.Plaintiffs, name)
			c.PlaintiffAttorneys = append(c.PlaintiffAttorneys, attorneys...)
			if c.PlaintiffZip == nil {
				c.PlaintiffZip = zip
			}
			return
		}
		c.Defendants = append(c.Defendants, name)
		c.DefendantAttorneys = append(c.DefendantAttorneys, attorneys...)
		if c.DefendantZip == nil {
			c.DefendantZip = zip
		}
	})
}

// partyZip scans the party's rows, up to the next party header, for a Texas zip.
func partyZip(roleHeader *goquery.Selection) *string {
	row := roleHeader.Closest("tr")
	rows := row.AddSelection(row.NextAll())

	var zip *string
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if i > 0 && tr.Find("th").FilterFunction(func(_ int, th *goquery.Selection) bool {
			return rolePattern.MatchString(cleanText(th.Text()))
		}).Length() > 0 {
			return false
		}
		if m := zipPattern.FindStringSubmatch(tr.Text()); m != nil {
			zip = &m[1]
			return false
		}
		return true
	})
	return zip
}

func partyAttorneys(doc *goquery.Document, partyID, attorneysID string) []string {
	if partyID == "" || attorneysID == "" {
		return nil
	}
	var names []string
	doc.Find("td[headers]").Each(func(i int, td *goquery.Selection) {
		headers, _ := td.Attr("headers")
		fields := strings.Fields(headers)
		if !contains(fields, partyID) || !contains(fields, attorneysID) {
			return
		}
		td.Find("b").Each(func(j int, b *goquery.Selection) {
			if name := cleanText(b.Text()); name != "" {
				names = append(names, name)
			}
		})
	})
	return names
}

func parseEvents(doc *goquery.Document) ([]EventFields, []error) {
	scope := doc.Selection
	doc.Find("div.ssCaseDetailSectionTitle").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "events") {
			if table := s.Closest("table"); table.Length() > 0 {
				scope = table
			}
			return false
		}
		return true
	})

	var (
		events   []EventFields
		rejected []error
	)
	scope.Find(`th[id^="RCD"]`).Each(func(i int, th *goquery.Selection) {
		row := th.Closest("tr")
		ev, err := parseEventRow(i, th, row)
		if err != nil {
			rejected = append(rejected, err)
			return
		}
		events = append(events, ev)
	})
	return events, rejected
}

func parseEventRow(ordinal int, th, row *goquery.Selection) (EventFields, error) {
	raw, _ := goquery.OuterHtml(row)
	text := cleanText(row.Find("td").Text())

	date, ok := NormalizeDate(th.Text())
	if !ok {
		return EventFields{}, apperrors.Malformed("event", "date", raw)
	}
	eventType := cleanText(row.Find("td b").First().Text())
	if eventType == "" {
		return EventFields{}, apperrors.Malformed("event", "type", raw)
	}

	ev := EventFields{
		Number: ordinal + 1,
		Date:   date,
		Type:   eventType,
		Text:   text,
		Time:   optionalFrom(text, NormalizeTime),
	}
	if id, _ := th.Attr("id"); id != "" {
		if n, err := strconv.Atoi(rowIDDigits.FindString(id)); err == nil {
			ev.Number = n
		}
	}
	if m := officerPattern.FindStringSubmatch(text); m != nil {
		ev.Officer = optional(m[1])
	}
	if m := resultPattern.FindStringSubmatch(text); m != nil {
		ev.Result = optional(m[1])
	} else if appearedPattern.MatchString(text) {
		appeared := "Appeared"
		ev.Result = &appeared
	}
	return ev, nil
}

// parseDisposition returns the latest disposition on the page, or nil.
func parseDisposition(doc *goquery.Document) *DispositionBlock {
	th := doc.Find(`th[id^="RDISPDATE"]`).Last()
	if th.Length() == 0 {
		return nil
	}
	row := th.Closest("tr")
	cell := row.Find(`td[headers*="RDISPDATE"]`).First()
	if cell.Length() == 0 {
		cell = row.Find("td").Last()
	}

	text := cleanText(cell.Text())
	block := &DispositionBlock{
		Date:    optionalFrom(th.Text(), NormalizeDate),
		Heading: cleanText(cell.Find("b").First().Text()),
		Text:    text,
	}

	cell.Find("nobr").Each(func(i int, s *goquery.Selection) {
		line := cleanText(s.Text())
		switch {
		case strings.HasPrefix(line, "Comment:"):
			if comment := strings.TrimSpace(strings.TrimPrefix(line, "Comment:")); comment != "" {
				block.Comments = append(block.Comments, comment)
			}
		case block.Amount == nil && strings.Contains(line, "$"):
			block.Amount = optionalFrom(line, NormalizeAmount)
		}
	})
	if block.Amount == nil {
		block.Amount = optionalFrom(text, NormalizeAmount)
	}
	if m := awardedTo.FindStringSubmatch(text); m != nil {
		block.AwardedTo = optional(m[1])
	}
	if m := awardedAgainst.FindStringSubmatch(text); m != nil {
		block.AwardedAgainst = optional(m[1])
	}
	return block
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
