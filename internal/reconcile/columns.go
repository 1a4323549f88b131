package reconcile

import "github.com/JustJay7/eviction-hearing-parser/internal/database"

// column gives access to one nullable text column of a row type.
type column[T any] struct {
	name string
	get  func(*T) **string
}

var caseColumns = []column[database.CaseDetail]{
	{"status", func(c *database.CaseDetail) **string { return &c.Status }},
	{"register_url", func(c *database.CaseDetail) **string { return &c.RegisterURL }},
	{"precinct", func(c *database.CaseDetail) **string { return &c.Precinct }},
	{"style", func(c *database.CaseDetail) **string { return &c.Style }},
	{"plaintiff", func(c *database.CaseDetail) **string { return &c.Plaintiff }},
	{"defendants", func(c *database.CaseDetail) **string { return &c.Defendants }},
	{"plaintiff_zip", func(c *database.CaseDetail) **string { return &c.PlaintiffZip }},
	{"defendant_zip", func(c *database.CaseDetail) **string { return &c.DefendantZip }},
	{"case_type", func(c *database.CaseDetail) **string { return &c.CaseType }},
	{"date_filed", func(c *database.CaseDetail) **string { return &c.DateFiled }},
	{"active_or_inactive", func(c *database.CaseDetail) **string { return &c.ActiveOrInactive }},
	{"judgment_after_moratorium", func(c *database.CaseDetail) **string { return &c.JudgmentAfterMoratorium }},
	{"first_court_appearance", func(c *database.CaseDetail) **string { return &c.FirstCourtAppearance }},
}

// Comments are merged separately, see mergeComments.
var dispositionColumns = []column[database.Disposition]{
	{"type", func(d *database.Disposition) **string { return &d.Type }},
	{"date", func(d *database.Disposition) **string { return &d.Date }},
	{"amount", func(d *database.Disposition) **string { return &d.Amount }},
	{"awarded_to", func(d *database.Disposition) **string { return &d.AwardedTo }},
	{"awarded_against", func(d *database.Disposition) **string { return &d.AwardedAgainst }},
	{"judgement_for", func(d *database.Disposition) **string { return &d.JudgementFor }},
	{"attorneys_for_plaintiffs", func(d *database.Disposition) **string { return &d.AttorneysForPlaintiffs }},
	{"attorneys_for_defendants", func(d *database.Disposition) **string { return &d.AttorneysForDefendants }},
}

var eventColumns = []column[database.Event]{
	{"date", func(e *database.Event) **string { return &e.Date }},
	{"time", func(e *database.Event) **string { return &e.Time }},
	{"officer", func(e *database.Event) **string { return &e.Officer }},
	{"result", func(e *database.Event) **string { return &e.Result }},
	{"type", func(e *database.Event) **string { return &e.Type }},
	{"all_text", func(e *database.Event) **string { return &e.AllText }},
}

var settingColumns = []column[database.Setting]{
	{"case_link", func(s *database.Setting) **string { return &s.CaseLink }},
	{"setting_style", func(s *database.Setting) **string { return &s.SettingStyle }},
	{"judicial_officer", func(s *database.Setting) **string { return &s.JudicialOfficer }},
	{"setting_time", func(s *database.Setting) **string { return &s.SettingTime }},
}

// merge copies every non-nil incoming value that differs from target into
// target and returns the changed column names. Nil incoming values never
// erase stored ones.
func merge[T any](target, incoming *T, cols []column[T]) []string {
	var changed []string
	for _, c := range cols {
		in := *c.get(incoming)
		if in == nil {
			continue
		}
		dst := c.get(target)
		if *dst != nil && **dst == *in {
			continue
		}
		v := *in
		*dst = &v
		changed = append(changed, c.name)
	}
	return changed
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
