// Package store reads and writes the case records. Writes for one case are
// applied as a single transaction in parent-first order.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/reconcile"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistent case store.
type Store struct {
	db     *gorm.DB
	views  *sqlx.DB
	vocab  *vocab.Vocabulary
	logger *logger.Logger
}

// New wraps an open, migrated database.
func New(db *gorm.DB, v *vocab.Vocabulary, log *logger.Logger) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if v == nil {
		v = vocab.Default()
	}

	// sqlx picks its bind style from the driver name.
	driverName := db.Dialector.Name()
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	return &Store{
		db:     db,
		views:  sqlx.NewDb(sqlDB, driverName),
		vocab:  v,
		logger: log,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.views.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Snapshot reads everything stored for caseNumber.
func (s *Store) Snapshot(ctx context.Context, caseNumber string) (reconcile.Snapshot, error) {
	var snap reconcile.Snapshot
	db := s.db.WithContext(ctx)

	var c database.CaseDetail
	switch err := db.Where("case_number = ?", caseNumber).Limit(1).Find(&c).Error; {
	case err != nil:
		return snap, s.classify(ctx, fmt.Errorf("read case %s: %w", caseNumber, err))
	case c.CaseNumber != "":
		snap.Case = &c
	}

	var dispositions []database.Disposition
	if err := db.Where("case_number = ?", caseNumber).Order("id DESC").Limit(1).Find(&dispositions).Error; err != nil {
		return snap, s.classify(ctx, fmt.Errorf("read disposition %s: %w", caseNumber, err))
	}
	if len(dispositions) > 0 {
		snap.Disposition = &dispositions[0]
	}

	if err := db.Where("case_number = ?", caseNumber).Order("event_number").Find(&snap.Events).Error; err != nil {
		return snap, s.classify(ctx, fmt.Errorf("read events %s: %w", caseNumber, err))
	}

	settings, err := s.settings(ctx, caseNumber)
	if err != nil {
		return snap, err
	}
	snap.Settings = settings
	return snap, nil
}

func (s *Store) settings(ctx context.Context, caseNumber string) ([]database.Setting, error) {
	var settings []database.Setting
	if err := s.db.WithContext(ctx).Where("case_number = ?", caseNumber).Order("id").Find(&settings).Error; err != nil {
		return nil, s.classify(ctx, fmt.Errorf("read settings %s: %w", caseNumber, err))
	}
	return settings, nil
}

// SettingsSnapshot reads only the settings of caseNumber.
func (s *Store) SettingsSnapshot(ctx context.Context, caseNumber string) (reconcile.Snapshot, error) {
	settings, err := s.settings(ctx, caseNumber)
	return reconcile.Snapshot{Settings: settings}, err
}

// Apply writes plan in one transaction: case row first, then a parent check,
// then disposition, events and settings.
func (s *Store) Apply(ctx context.Context, plan *reconcile.Plan) error {
	if plan.Writes() == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c := plan.Case; c != nil {
			if err := write(tx, c.Op, &c.Row, c.Fields); err != nil {
				return fmt.Errorf("write case: %w", err)
			}
		}

		if needsParent(plan) {
			var count int64
			if err := tx.Model(&database.CaseDetail{}).Where("case_number = ?", plan.CaseNumber).Count(&count).Error; err != nil {
				return fmt.Errorf("check parent: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("case %s: %w", plan.CaseNumber, apperrors.ErrReferentialViolation)
			}
		}

		if d := plan.Disposition; d != nil {
			if err := write(tx, d.Op, &d.Row, d.Fields); err != nil {
				return fmt.Errorf("write disposition: %w", err)
			}
		}

		for i := range plan.Events {
			e := &plan.Events[i]
			if err := write(tx, e.Op, &e.Row, e.Fields); err != nil {
				return fmt.Errorf("write event %d: %w", e.Row.EventNumber, err)
			}
		}

		for i := range plan.Settings {
			st := &plan.Settings[i]
			if st.Op == reconcile.OpInsert {
				// A concurrent run may have inserted the same key.
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&st.Row).Error; err != nil {
					return fmt.Errorf("write setting %s/%s: %w", st.Row.SettingType, st.Row.SettingDate, err)
				}
				continue
			}
			if err := write(tx, st.Op, &st.Row, st.Fields); err != nil {
				return fmt.Errorf("write setting %s/%s: %w", st.Row.SettingType, st.Row.SettingDate, err)
			}
		}
		return nil
	})
	if err != nil {
		return s.classify(ctx, fmt.Errorf("apply %s: %w", plan.CaseNumber, err))
	}

	s.logger.Debug("Applied plan", "case_number", plan.CaseNumber,
		"inserts", plan.Inserts(), "updates", plan.Updates())
	return nil
}

func write(tx *gorm.DB, op reconcile.Op, row interface{}, fields []string) error {
	switch op {
	case reconcile.OpInsert:
		return tx.Omit(clause.Associations).Create(row).Error
	case reconcile.OpUpdate:
		return tx.Model(row).Select(fields).Updates(row).Error
	default:
		return nil
	}
}

func needsParent(plan *reconcile.Plan) bool {
	if plan.Disposition != nil && plan.Disposition.Op != reconcile.OpSkip {
		return true
	}
	for _, e := range plan.Events {
		if e.Op != reconcile.OpSkip {
			return true
		}
	}
	return false
}

// ActiveCaseNumbers lists stored cases whose status is not inactive.
func (s *Store) ActiveCaseNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	err := s.db.WithContext(ctx).
		Model(&database.CaseDetail{}).
		Where("status IS NULL OR LOWER(status) NOT IN ?", s.vocab.InactiveStatuses()).
		Order("case_number").
		Pluck("case_number", &numbers).Error
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("list active cases: %w", err))
	}
	return numbers, nil
}

var unavailableMessages = []string{
	"connection refused",
	"connection reset",
	"database is closed",
	"broken pipe",
	"no such host",
	"server closed the connection",
}

// classify maps driver failures onto the error taxonomy. Anything that looks
// like lost connectivity, or that coincides with a failing ping, is
// ErrStoreUnavailable.
func (s *Store) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrStoreUnavailable) || errors.Is(err, apperrors.ErrReferentialViolation) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "foreign key") {
		return fmt.Errorf("%w: %v", apperrors.ErrReferentialViolation, err)
	}
	for _, m := range unavailableMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
		}
	}

	if pingErr := s.views.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("%w: %v (ping: %v)", apperrors.ErrStoreUnavailable, err, pingErr)
	}
	return err
}
