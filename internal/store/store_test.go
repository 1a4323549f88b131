package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/reconcile"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const caseNumber = "J1-CV-20-001590"

func str(s string) *string { return &s }

func setupStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	s, err := New(db, nil, logger.NewNop())
	require.NoError(t, err)
	return s, db
}

func incoming() reconcile.Incoming {
	return reconcile.Incoming{
		Case: &database.CaseDetail{
			Status:    str("Final Disposition"),
			CaseType:  str("Eviction"),
			DateFiled: str("03/06/2020"),
			Plaintiff: str("Doe, John"),
		},
		Disposition: &database.Disposition{
			Type:         str("Default Judgment"),
			Amount:       str("1200"),
			JudgementFor: str("Plaintiff"),
			MatchScore:   1,
		},
		Events: []database.Event{
			{EventNumber: 1, Date: str("03/06/2020"), Type: str("Original Petition")},
			{EventNumber: 2, Date: str("04/02/2020"), Type: str("Eviction Hearing")},
		},
		Settings: []database.Setting{
			{CaseNumber: caseNumber, SettingType: "Eviction Hearing", HearingType: "Eviction", SettingDate: "04/02/2020"},
		},
	}
}

func applyIncoming(t *testing.T, s *Store, in reconcile.Incoming) *reconcile.Plan {
	t.Helper()
	ctx := context.Background()
	snap, err := s.Snapshot(ctx, caseNumber)
	require.NoError(t, err)
	plan := reconcile.PlanCase(caseNumber, snap, in, reconcile.Policy{})
	require.NoError(t, s.Apply(ctx, plan))
	return plan
}

func TestApplyAndSnapshot(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	first := applyIncoming(t, s, incoming())
	assert.Equal(t, 5, first.Inserts())

	snap, err := s.Snapshot(ctx, caseNumber)
	require.NoError(t, err)
	require.NotNil(t, snap.Case)
	assert.Equal(t, "04/02/2020", *snap.Case.FirstCourtAppearance)
	require.NotNil(t, snap.Disposition)
	assert.Equal(t, "Default Judgment", *snap.Disposition.Type)
	assert.Len(t, snap.Events, 2)
	assert.Len(t, snap.Settings, 1)

	second := applyIncoming(t, s, incoming())
	assert.Equal(t, 0, second.Writes(), "identical re-run writes nothing")
}

func TestApplyStatusOnlyUpdate(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()
	applyIncoming(t, s, incoming())

	in := incoming()
	in.Case.Status = str("Closed")
	plan := applyIncoming(t, s, in)
	assert.Equal(t, 1, plan.Writes())

	var row database.CaseDetail
	require.NoError(t, db.WithContext(ctx).First(&row, "case_number = ?", caseNumber).Error)
	assert.Equal(t, "Closed", *row.Status)
	assert.Equal(t, "03/06/2020", *row.DateFiled)
	assert.Equal(t, "Doe, John", *row.Plaintiff)
}

func TestApplyRejectsOrphans(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	in := incoming()
	in.Case = nil
	plan := reconcile.PlanCase(caseNumber, reconcile.Snapshot{}, in, reconcile.Policy{})

	err := s.Apply(ctx, plan)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrReferentialViolation), "got %v", err)

	var count int64
	require.NoError(t, db.Model(&database.Setting{}).Count(&count).Error)
	assert.Zero(t, count, "the transaction rolled back")
}

func TestApplySettingKeyIsIdempotent(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	settings := incoming().Settings
	for i := 0; i < 2; i++ {
		// Both plans are made against an empty snapshot, as two racing runs would.
		plan := reconcile.PlanCase(caseNumber, reconcile.Snapshot{}, reconcile.Incoming{Settings: settings}, reconcile.Policy{})
		require.NoError(t, s.Apply(ctx, plan))
	}

	var count int64
	require.NoError(t, db.Model(&database.Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestViews(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	applyIncoming(t, s, incoming())

	row, err := s.GetCase(ctx, caseNumber)
	require.NoError(t, err)
	assert.Equal(t, "Final Disposition", *row.Status)
	require.NotNil(t, row.DispositionType)
	assert.Equal(t, "Default Judgment", *row.DispositionType)
	require.NotNil(t, row.MatchScore)
	assert.Equal(t, 1.0, *row.MatchScore)

	_, err = s.GetCase(ctx, "J9-CV-20-000000")
	assert.True(t, errors.Is(err, apperrors.ErrCaseNotFound), "got %v", err)

	events, err := s.CaseEvents(ctx, caseNumber)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].EventNumber)

	evictions, err := s.EvictionEvents(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, evictions, 2)

	archive, err := s.Archive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	assert.NotNil(t, archive[0].DispositionID)
}

func TestActiveCaseNumbers(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	rows := []database.CaseDetail{
		{CaseNumber: "J1-CV-20-000001", Status: str("Active")},
		{CaseNumber: "J1-CV-20-000002", Status: str("Final Disposition")},
		{CaseNumber: "J1-CV-20-000003"},
		{CaseNumber: "J1-CV-20-000004", Status: str("CLOSED")},
		{CaseNumber: "J1-CV-20-000005", Status: str("Writ of Possession Issued")},
	}
	require.NoError(t, db.Create(&rows).Error)

	got, err := s.ActiveCaseNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"J1-CV-20-000001", "J1-CV-20-000003", "J1-CV-20-000005"}, got)
}

func TestStoreUnavailable(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.True(t, errors.Is(s.Ping(ctx), apperrors.ErrStoreUnavailable))

	_, err = s.Snapshot(ctx, caseNumber)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable), "got %v", err)
	assert.Equal(t, "StoreUnavailable", apperrors.Reason(err))
}
