package scraper

import (
	"fmt"
	"sort"
	"strings"
)

// Site is an Odyssey public access portal of one county.
type Site struct {
	Name     string
	Homepage string
}

var sites = map[string]Site{
	"travis":     {Name: "travis", Homepage: "https://odysseypa.traviscountytx.gov/JPPublicAccess/default.aspx"},
	"williamson": {Name: "williamson", Homepage: "https://judicialrecords.wilco.org/PublicAccess/default.aspx"},
	"hays":       {Name: "hays", Homepage: "http://public.co.hays.tx.us/default.aspx"},
}

// SiteFor returns the portal of county. A non-empty baseURL replaces the
// portal homepage.
func SiteFor(county, baseURL string) (Site, error) {
	site, ok := sites[strings.ToLower(county)]
	if !ok {
		names := make([]string, 0, len(sites))
		for n := range sites {
			names = append(names, n)
		}
		sort.Strings(names)
		return Site{}, fmt.Errorf("unknown county %q (supported: %s)", county, strings.Join(names, ", "))
	}
	if baseURL != "" {
		site.Homepage = baseURL
	}
	return site, nil
}

// Action is one browser interaction.
type Action string

const (
	ActionNavigate  Action = "navigate"
	ActionClickLink Action = "click_link"
	ActionClick     Action = "click"
	ActionInput     Action = "input"
	ActionUncheck   Action = "uncheck"
	ActionWait      Action = "wait"
)

// Step is an action with its target. Selector is a CSS selector except for
// ActionClickLink, where Value is the link text.
type Step struct {
	Action   Action
	Selector string
	Value    string
	// Navigates marks clicks that load a new page.
	Navigates bool
}

// Script is the ordered list of steps that ends on the page to capture.
type Script []Step

// Portal link texts and element ids.
const (
	caseRecordsLink = "Civil, Family & Probate Case Records"
	calendarLink    = "Court Calendar"

	searchByCase     = "#Case"
	searchByDates    = "#DateRange"
	caseSearchValue  = "#CaseSearchValue"
	searchSubmit     = "#SearchSubmit"
	filedOnAfter     = "#DateFiledOnAfter"
	filedOnBefore    = "#DateFiledOnBefore"
	settingOnAfter   = "#DateSettingOnAfter"
	settingOnBefore  = "#DateSettingOnBefore"
	portalInputDates = "1/2/2006"
)

// Calendar categories other than civil are switched off.
var calendarCategoryBoxes = []string{"#chkDtRangeProbate", "#chkDtRangeFamily", "#chkDtRangeCriminal"}

// BuildScript returns the steps that reach the page loc points at.
func BuildScript(site Site, loc Locator) (Script, error) {
	home := Step{Action: ActionNavigate, Value: site.Homepage}

	switch loc.Kind {
	case KindCase:
		if loc.CaseNumber == "" {
			return nil, fmt.Errorf("case locator without case number")
		}
		return Script{
			home,
			{Action: ActionClickLink, Value: caseRecordsLink, Navigates: true},
			{Action: ActionClick, Selector: searchByCase},
			{Action: ActionInput, Selector: caseSearchValue, Value: loc.CaseNumber},
			{Action: ActionClick, Selector: searchSubmit, Navigates: true},
			{Action: ActionWait, Selector: "body"},
		}, nil

	case KindRegister:
		if loc.URL == "" {
			return nil, fmt.Errorf("register locator for %s without URL", loc.CaseNumber)
		}
		return Script{
			{Action: ActionNavigate, Value: loc.URL},
			{Action: ActionWait, Selector: "body"},
		}, nil

	case KindCalendar:
		script := Script{
			home,
			{Action: ActionClickLink, Value: calendarLink, Navigates: true},
			{Action: ActionClick, Selector: searchByDates},
		}
		for _, box := range calendarCategoryBoxes {
			script = append(script, Step{Action: ActionUncheck, Selector: box})
		}
		return append(script,
			Step{Action: ActionInput, Selector: settingOnAfter, Value: loc.After.Format(portalInputDates)},
			Step{Action: ActionInput, Selector: settingOnBefore, Value: loc.Before.Format(portalInputDates)},
			Step{Action: ActionClick, Selector: searchSubmit, Navigates: true},
			Step{Action: ActionWait, Selector: "body"},
		), nil

	case KindFilings:
		return Script{
			home,
			{Action: ActionClickLink, Value: caseRecordsLink, Navigates: true},
			{Action: ActionClick, Selector: searchByCase},
			{Action: ActionInput, Selector: filedOnAfter, Value: loc.After.Format(portalInputDates)},
			{Action: ActionInput, Selector: filedOnBefore, Value: loc.Before.Format(portalInputDates)},
			{Action: ActionInput, Selector: caseSearchValue, Value: loc.Prefix},
			{Action: ActionClick, Selector: searchSubmit, Navigates: true},
			{Action: ActionWait, Selector: "body"},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported locator kind %q", loc.Kind)
	}
}
