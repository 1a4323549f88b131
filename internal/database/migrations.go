package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations creates secondary indexes and the derived read views.
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	if err := createViews(db); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	// Refresh of active cases filters on status.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_case_detail_status
		ON case_detail(status)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_case_detail_case_type
		ON case_detail(case_type)
	`).Error; err != nil {
		return err
	}

	return nil
}

const caseColumns = `
	c.case_number, c.status, c.register_url, c.precinct, c.style,
	c.plaintiff, c.defendants, c.plaintiff_zip, c.defendant_zip, c.case_type,
	c.date_filed, c.active_or_inactive, c.judgment_after_moratorium, c.first_court_appearance`

var views = []struct {
	name string
	body string
}{
	{
		name: "v_case",
		body: `SELECT` + caseColumns + `,
			d."type" AS disposition_type, d."date" AS disposition_date, d.amount AS disposition_amount,
			d.awarded_to, d.awarded_against, d.judgement_for, d.match_score,
			d.attorneys_for_plaintiffs, d.attorneys_for_defendants, d.comments
		FROM case_detail c
		LEFT OUTER JOIN disposition d ON d.case_number = c.case_number`,
	},
	{
		name: "eviction_events",
		body: `SELECT e.id, e.case_number, e.event_number, e."date", e."time", e.officer, e.result, e."type", e.all_text
		FROM event e
		JOIN case_detail c ON c.case_number = e.case_number
		WHERE c.case_type = 'Eviction'`,
	},
	{
		name: "filings_archive",
		body: `SELECT` + caseColumns + `,
			d.id AS disposition_id, d."type" AS disposition_type, d."date" AS disposition_date,
			d.amount AS disposition_amount, d.awarded_to, d.awarded_against, d.judgement_for,
			d.match_score, d.attorneys_for_plaintiffs, d.attorneys_for_defendants, d.comments
		FROM case_detail c
		LEFT OUTER JOIN disposition d ON d.case_number = c.case_number`,
	},
}

func dropViews(db *gorm.DB) error {
	for _, v := range views {
		if err := db.Exec("DROP VIEW IF EXISTS " + v.name).Error; err != nil {
			return fmt.Errorf("drop view %s: %w", v.name, err)
		}
	}
	return nil
}

// createViews recreates every view; the statements are valid in both SQLite
// and PostgreSQL.
func createViews(db *gorm.DB) error {
	if err := dropViews(db); err != nil {
		return err
	}
	for _, v := range views {
		if err := db.Exec("CREATE VIEW " + v.name + " AS " + v.body).Error; err != nil {
			return fmt.Errorf("create view %s: %w", v.name, err)
		}
	}
	return nil
}
