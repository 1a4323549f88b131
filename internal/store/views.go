package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
)

// CaseView is one row of v_case.
type CaseView struct {
	CaseNumber              string   `db:"case_number" json:"case_number"`
	Status                  *string  `db:"status" json:"status"`
	RegisterURL             *string  `db:"register_url" json:"register_url"`
	Precinct                *string  `db:"precinct" json:"precinct"`
	Style                   *string  `db:"style" json:"style"`
	Plaintiff               *string  `db:"plaintiff" json:"plaintiff"`
	Defendants              *string  `db:"defendants" json:"defendants"`
	PlaintiffZip            *string  `db:"plaintiff_zip" json:"plaintiff_zip"`
	DefendantZip            *string  `db:"defendant_zip" json:"defendant_zip"`
	CaseType                *string  `db:"case_type" json:"case_type"`
	DateFiled               *string  `db:"date_filed" json:"date_filed"`
	ActiveOrInactive        *string  `db:"active_or_inactive" json:"active_or_inactive"`
	JudgmentAfterMoratorium *string  `db:"judgment_after_moratorium" json:"judgment_after_moratorium"`
	FirstCourtAppearance    *string  `db:"first_court_appearance" json:"first_court_appearance"`
	DispositionType         *string  `db:"disposition_type" json:"disposition_type"`
	DispositionDate         *string  `db:"disposition_date" json:"disposition_date"`
	DispositionAmount       *string  `db:"disposition_amount" json:"disposition_amount"`
	AwardedTo               *string  `db:"awarded_to" json:"awarded_to"`
	AwardedAgainst          *string  `db:"awarded_against" json:"awarded_against"`
	JudgementFor            *string  `db:"judgement_for" json:"judgement_for"`
	MatchScore              *float64 `db:"match_score" json:"match_score"`
	AttorneysForPlaintiffs  *string  `db:"attorneys_for_plaintiffs" json:"attorneys_for_plaintiffs"`
	AttorneysForDefendants  *string  `db:"attorneys_for_defendants" json:"attorneys_for_defendants"`
	Comments                *string  `db:"comments" json:"comments"`
}

// ArchiveRow is one row of filings_archive.
type ArchiveRow struct {
	CaseView
	DispositionID *int64 `db:"disposition_id" json:"disposition_id"`
}

// EventView is one event row, as stored or from eviction_events.
type EventView struct {
	ID          int64   `db:"id" json:"id"`
	CaseNumber  string  `db:"case_number" json:"case_number"`
	EventNumber int     `db:"event_number" json:"event_number"`
	Date        *string `db:"date" json:"date"`
	Time        *string `db:"time" json:"time"`
	Officer     *string `db:"officer" json:"officer"`
	Result      *string `db:"result" json:"result"`
	Type        *string `db:"type" json:"type"`
	AllText     *string `db:"all_text" json:"all_text"`
}

const eventSelect = `SELECT id, case_number, event_number, "date", "time", officer, result, "type", all_text`

// GetCase reads the v_case row of caseNumber.
func (s *Store) GetCase(ctx context.Context, caseNumber string) (*CaseView, error) {
	var row CaseView
	query := s.views.Rebind(`SELECT * FROM v_case WHERE case_number = ?`)
	if err := s.views.GetContext(ctx, &row, query, caseNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case %s: %w", caseNumber, apperrors.ErrCaseNotFound)
		}
		return nil, s.classify(ctx, fmt.Errorf("read v_case: %w", err))
	}
	return &row, nil
}

// CaseEvents lists the events of caseNumber in register order.
func (s *Store) CaseEvents(ctx context.Context, caseNumber string) ([]EventView, error) {
	events := []EventView{}
	query := s.views.Rebind(eventSelect + ` FROM event WHERE case_number = ? ORDER BY event_number`)
	if err := s.views.SelectContext(ctx, &events, query, caseNumber); err != nil {
		return nil, s.classify(ctx, fmt.Errorf("read events: %w", err))
	}
	return events, nil
}

// EvictionEvents lists events of eviction cases from the eviction_events view.
func (s *Store) EvictionEvents(ctx context.Context, limit, offset int) ([]EventView, error) {
	events := []EventView{}
	query := s.views.Rebind(eventSelect + ` FROM eviction_events ORDER BY case_number, event_number LIMIT ? OFFSET ?`)
	if err := s.views.SelectContext(ctx, &events, query, limit, offset); err != nil {
		return nil, s.classify(ctx, fmt.Errorf("read eviction_events: %w", err))
	}
	return events, nil
}

// Archive lists filings_archive rows ordered by case number.
func (s *Store) Archive(ctx context.Context, limit, offset int) ([]ArchiveRow, error) {
	rows := []ArchiveRow{}
	query := s.views.Rebind(`SELECT * FROM filings_archive ORDER BY case_number LIMIT ? OFFSET ?`)
	if err := s.views.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, s.classify(ctx, fmt.Errorf("read filings_archive: %w", err))
	}
	return rows, nil
}
