package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/extract"
	"github.com/JustJay7/eviction-hearing-parser/internal/match"
	"github.com/JustJay7/eviction-hearing-parser/internal/reconcile"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
)

// moratoriumStart is the first day of the eviction moratorium.
var moratoriumStart = time.Date(2020, time.March, 14, 0, 0, 0, 0, time.UTC)

const (
	activeLabel   = "Active"
	inactiveLabel = "Inactive"
	yes           = "Y"
	no            = "N"
)

// caseIncoming assembles the rows of one case from its search result and
// register.
func caseIncoming(m *match.Matcher, v *vocab.Vocabulary, result *extract.SearchResult, reg *extract.Register) reconcile.Incoming {
	c := reg.Case
	row := &database.CaseDetail{
		CaseNumber:   c.CaseNumber,
		Precinct:     c.Precinct,
		Style:        c.Style,
		Plaintiff:    joinNames(c.Plaintiffs),
		Defendants:   joinNames(c.Defendants),
		PlaintiffZip: c.PlaintiffZip,
		DefendantZip: c.DefendantZip,
		CaseType:     c.CaseType,
		DateFiled:    c.DateFiled,
	}

	var status string
	if result != nil {
		if result.RegisterURL != "" {
			row.RegisterURL = ptr(result.RegisterURL)
		}
		row.Status = result.Status
		if row.CaseType == nil {
			row.CaseType = result.CaseType
		}
		if result.Status != nil {
			status = *result.Status
		}
	}

	info, known := v.Status(status)
	if known {
		if info.Active {
			row.ActiveOrInactive = ptr(activeLabel)
		} else {
			row.ActiveOrInactive = ptr(inactiveLabel)
		}
	}

	in := reconcile.Incoming{Case: row}

	if d := reg.Disposition; d != nil {
		in.Disposition = disposition(m, status, c, d)
		if d.Date != nil && known {
			row.JudgmentAfterMoratorium = afterMoratorium(*d.Date, info)
		}
	}

	for _, e := range reg.Events {
		in.Events = append(in.Events, database.Event{
			CaseNumber:  c.CaseNumber,
			EventNumber: e.Number,
			Date:        ptr(e.Date),
			Time:        e.Time,
			Officer:     e.Officer,
			Result:      e.Result,
			Type:        ptr(e.Type),
			AllText:     optional(e.Text),
		})
	}
	return in
}

func disposition(m *match.Matcher, status string, c extract.CaseFields, d *extract.DispositionBlock) *database.Disposition {
	res := m.Match(match.Input{
		Text:           d.Text,
		Status:         status,
		Plaintiffs:     c.Plaintiffs,
		Defendants:     c.Defendants,
		AwardedTo:      value(d.AwardedTo),
		AwardedAgainst: value(d.AwardedAgainst),
	})

	amount := d.Amount
	if amount == nil {
		amount = res.Amount
	}
	return &database.Disposition{
		CaseNumber:             c.CaseNumber,
		Type:                   ptr(res.Type),
		Date:                   d.Date,
		Amount:                 amount,
		AwardedTo:              res.AwardedTo,
		AwardedAgainst:         res.AwardedAgainst,
		JudgementFor:           res.JudgmentFor,
		MatchScore:             res.Score,
		AttorneysForPlaintiffs: joinNames(c.PlaintiffAttorneys),
		AttorneysForDefendants: joinNames(c.DefendantAttorneys),
		Comments:               joinNames(d.Comments),
	}
}

// afterMoratorium is "Y" for a judgment on or after the moratorium start.
func afterMoratorium(date string, info vocab.StatusInfo) *string {
	t, ok := extract.ParseCanonicalDate(date)
	if !ok {
		return nil
	}
	if !t.Before(moratoriumStart) && info.Group == vocab.GroupJudgment {
		return ptr(yes)
	}
	return ptr(no)
}

// settingsByCase groups calendar rows into setting rows per case, in case
// number order.
func settingsByCase(rows []extract.SettingFields) ([]string, map[string][]database.Setting) {
	grouped := map[string][]database.Setting{}
	for _, s := range rows {
		grouped[s.CaseNumber] = append(grouped[s.CaseNumber], database.Setting{
			CaseNumber:      s.CaseNumber,
			SettingType:     s.SettingType,
			HearingType:     s.HearingType,
			SettingDate:     s.SettingDate,
			CaseLink:        s.CaseLink,
			SettingStyle:    s.SettingStyle,
			JudicialOfficer: s.JudicialOfficer,
			SettingTime:     s.SettingTime,
		})
	}
	numbers := make([]string, 0, len(grouped))
	for n := range grouped {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers, grouped
}

func joinNames(names []string) *string {
	var kept []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return ptr(strings.Join(kept, "; "))
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string {
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
