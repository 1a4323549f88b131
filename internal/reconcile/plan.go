// Package reconcile plans the minimal set of writes that brings the stored
// records of one case in line with a fresh extraction. Planning is pure; the
// store applies the plan.
package reconcile

import (
	"fmt"
	"math"
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/extract"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
)

// Op is the write decided for one record.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpSkip   Op = "skip"
)

// Snapshot is the stored state of one case.
type Snapshot struct {
	Case        *database.CaseDetail
	Disposition *database.Disposition
	Events      []database.Event
	Settings    []database.Setting
}

// Incoming is a fresh extraction of one case. Case and Disposition are nil
// when the extraction did not produce them.
type Incoming struct {
	Case        *database.CaseDetail
	Disposition *database.Disposition
	Events      []database.Event
	Settings    []database.Setting
}

// Policy holds the explicit choices of the planner.
type Policy struct {
	// OverwriteAudit replaces disposition comments with the incoming ones
	// instead of keeping them and appending a superseded note.
	OverwriteAudit bool
	// Vocabulary decides which events count as court appearances. Nil means
	// vocab.Default().
	Vocabulary *vocab.Vocabulary
}

// CaseWrite is the decision for the case row. Fields lists the changed
// columns of an update.
type CaseWrite struct {
	Op     Op
	Row    database.CaseDetail
	Fields []string
}

type DispositionWrite struct {
	Op     Op
	Row    database.Disposition
	Fields []string
	// Conflict is set when the stored disposition disagreed on type or amount.
	Conflict bool
}

type EventWrite struct {
	Op     Op
	Row    database.Event
	Fields []string
}

type SettingWrite struct {
	Op     Op
	Row    database.Setting
	Fields []string
}

// Plan is the full set of writes for one case.
type Plan struct {
	CaseNumber  string
	Case        *CaseWrite
	Disposition *DispositionWrite
	Events      []EventWrite
	Settings    []SettingWrite
}

// Inserts counts planned inserts.
func (p *Plan) Inserts() int {
	return p.count(OpInsert)
}

// Updates counts planned updates.
func (p *Plan) Updates() int {
	return p.count(OpUpdate)
}

// Writes counts inserts and updates. An identical re-extraction plans zero.
func (p *Plan) Writes() int {
	return p.Inserts() + p.Updates()
}

func (p *Plan) count(op Op) int {
	n := 0
	if p.Case != nil && p.Case.Op == op {
		n++
	}
	if p.Disposition != nil && p.Disposition.Op == op {
		n++
	}
	for _, e := range p.Events {
		if e.Op == op {
			n++
		}
	}
	for _, s := range p.Settings {
		if s.Op == op {
			n++
		}
	}
	return n
}

// PlanCase compares in against the stored snapshot of caseNumber.
func PlanCase(caseNumber string, stored Snapshot, in Incoming, policy Policy) *Plan {
	v := policy.Vocabulary
	if v == nil {
		v = vocab.Default()
	}

	plan := &Plan{CaseNumber: caseNumber}

	if in.Case != nil {
		incoming := *in.Case
		incoming.CaseNumber = caseNumber
		if first := firstAppearance(v, stored.Events, in.Events); first != nil {
			incoming.FirstCourtAppearance = first
		}
		plan.Case = planCaseRow(stored.Case, &incoming)
	}

	if in.Disposition != nil {
		incoming := *in.Disposition
		incoming.CaseNumber = caseNumber
		plan.Disposition = planDisposition(stored.Disposition, &incoming, policy)
	}

	plan.Events = planEvents(caseNumber, stored.Events, in.Events)
	plan.Settings = planSettings(stored.Settings, in.Settings)
	return plan
}

func planCaseRow(stored, incoming *database.CaseDetail) *CaseWrite {
	if stored == nil {
		return &CaseWrite{Op: OpInsert, Row: *incoming}
	}
	row := *stored
	fields := merge(&row, incoming, caseColumns)
	if len(fields) == 0 {
		return &CaseWrite{Op: OpSkip, Row: row}
	}
	return &CaseWrite{Op: OpUpdate, Row: row, Fields: fields}
}

// supersededPrefix starts the audit note appended to disposition comments
// when a newer extraction replaces the type or amount.
const supersededPrefix = "[superseded "

func planDisposition(stored, incoming *database.Disposition, policy Policy) *DispositionWrite {
	if stored == nil {
		incoming.ID = 0
		return &DispositionWrite{Op: OpInsert, Row: *incoming}
	}

	conflict := (incoming.Type != nil && !equal(stored.Type, incoming.Type)) ||
		(incoming.Amount != nil && !equal(stored.Amount, incoming.Amount))

	row := *stored
	fields := merge(&row, incoming, dispositionColumns)

	if math.Abs(row.MatchScore-incoming.MatchScore) > 1e-9 {
		row.MatchScore = incoming.MatchScore
		fields = append(fields, "match_score")
	}

	comments := mergeComments(stored, incoming, conflict, policy.OverwriteAudit)
	if !equal(comments, stored.Comments) {
		row.Comments = comments
		fields = append(fields, "comments")
	}

	if len(fields) == 0 {
		return &DispositionWrite{Op: OpSkip, Row: row}
	}
	return &DispositionWrite{Op: OpUpdate, Row: row, Fields: fields, Conflict: conflict}
}

// mergeComments keeps the stored comments when the incoming ones are empty and
// carries the audit trail of superseded values forward.
func mergeComments(stored, incoming *database.Disposition, conflict, overwrite bool) *string {
	if overwrite {
		return incoming.Comments
	}

	base, trail := splitAudit(value(stored.Comments))
	if c := strings.TrimSpace(value(incoming.Comments)); c != "" {
		base = c
	}
	if conflict {
		trail = append(trail, supersededNote(stored))
	}

	parts := trail
	if base != "" {
		parts = append([]string{base}, trail...)
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, " ")
	return &joined
}

func supersededNote(d *database.Disposition) string {
	return fmt.Sprintf("%stype=%s amount=%s score=%s]",
		supersededPrefix, value(d.Type), value(d.Amount), formatScore(d.MatchScore))
}

func formatScore(score float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", score), "0"), ".")
}

// splitAudit separates the free text of comments from its trailing
// superseded notes.
func splitAudit(comments string) (string, []string) {
	comments = strings.TrimSpace(comments)
	i := strings.Index(comments, supersededPrefix)
	if i < 0 {
		return comments, nil
	}
	base := strings.TrimSpace(comments[:i])

	var trail []string
	rest := comments[i:]
	for rest != "" {
		end := strings.Index(rest, "]")
		if end < 0 {
			trail = append(trail, rest)
			break
		}
		trail = append(trail, rest[:end+1])
		rest = strings.TrimSpace(rest[end+1:])
	}
	return base, trail
}

func planEvents(caseNumber string, stored, incoming []database.Event) []EventWrite {
	existing := make(map[int]database.Event, len(stored))
	for _, e := range stored {
		existing[e.EventNumber] = e
	}

	var writes []EventWrite
	seen := map[int]bool{}
	for _, e := range incoming {
		if seen[e.EventNumber] {
			continue
		}
		seen[e.EventNumber] = true

		e.CaseNumber = caseNumber
		old, ok := existing[e.EventNumber]
		if !ok {
			e.ID = 0
			writes = append(writes, EventWrite{Op: OpInsert, Row: e})
			continue
		}
		row := old
		if fields := merge(&row, &e, eventColumns); len(fields) > 0 {
			writes = append(writes, EventWrite{Op: OpUpdate, Row: row, Fields: fields})
		} else {
			writes = append(writes, EventWrite{Op: OpSkip, Row: row})
		}
	}
	return writes
}

func planSettings(stored, incoming []database.Setting) []SettingWrite {
	existing := make(map[database.SettingKey]database.Setting, len(stored))
	for _, s := range stored {
		existing[s.Key()] = s
	}

	var writes []SettingWrite
	seen := map[database.SettingKey]bool{}
	for _, s := range incoming {
		key := s.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		old, ok := existing[key]
		if !ok {
			s.ID = 0
			writes = append(writes, SettingWrite{Op: OpInsert, Row: s})
			continue
		}
		row := old
		if fields := merge(&row, &s, settingColumns); len(fields) > 0 {
			writes = append(writes, SettingWrite{Op: OpUpdate, Row: row, Fields: fields})
		} else {
			writes = append(writes, SettingWrite{Op: OpSkip, Row: row})
		}
	}
	return writes
}

// firstAppearance is the earliest date of a hearing-type event among the
// stored and incoming events.
func firstAppearance(v *vocab.Vocabulary, stored, incoming []database.Event) *string {
	var (
		best    string
		bestDay int64
		found   bool
	)
	consider := func(events []database.Event) {
		for _, e := range events {
			if e.Type == nil || e.Date == nil || !v.IsHearingType(*e.Type) {
				continue
			}
			t, ok := extract.ParseCanonicalDate(*e.Date)
			if !ok {
				continue
			}
			if !found || t.Unix() < bestDay {
				best, bestDay, found = *e.Date, t.Unix(), true
			}
		}
	}
	consider(stored)
	consider(incoming)

	if !found {
		return nil
	}
	return &best
}
