package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/database"
	"github.com/JustJay7/eviction-hearing-parser/internal/match"
	"github.com/JustJay7/eviction-hearing-parser/internal/reconcile"
	"github.com/JustJay7/eviction-hearing-parser/internal/scraper"
	"github.com/JustJay7/eviction-hearing-parser/internal/store"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	pagesDir = "../../testdata/pages"

	judgedCase  = "J1-CV-20-001590"
	activeCase  = "J2-CV-20-000412"
	unknownCase = "J1-CV-20-009999"
)

type env struct {
	fetcher scraper.Fetcher
	store   *store.Store
	db      *gorm.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st, err := store.New(db, nil, logger.NewNop())
	require.NoError(t, err)

	f, err := scraper.NewFixtureDirFetcher(pagesDir)
	require.NoError(t, err)
	return &env{fetcher: f, store: st, db: db}
}

func (e *env) runner(t *testing.T, fetcher scraper.Fetcher, st Store, workers int) *Runner {
	t.Helper()
	if fetcher == nil {
		fetcher = e.fetcher
	}
	if st == nil {
		st = e.store
	}
	site, err := scraper.SiteFor("travis", "")
	require.NoError(t, err)

	s := scraper.NewScraper(fetcher, site, scraper.Options{
		Sessions: 2,
		Retry:    scraper.RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
	}, logger.NewNop())

	m, err := match.New(vocab.Default(), match.DefaultThreshold)
	require.NoError(t, err)
	return NewRunner(s, st, m, vocab.Default(), Options{Workers: workers}, logger.NewNop())
}

func outcome(t *testing.T, r *Report, subject string) Outcome {
	t.Helper()
	o, ok := r.Outcome(subject)
	require.True(t, ok, "no outcome for %s", subject)
	return o
}

func day(s string) time.Time {
	d, err := time.Parse(dayLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRunCases(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report, err := e.runner(t, nil, nil, 2).Run(ctx, []string{judgedCase, activeCase, unknownCase, " j1-cv-20-001590 "})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3, "duplicates are removed")
	assert.Equal(t, KindCases, report.Kind)
	assert.NotEmpty(t, report.RunID)

	judged := outcome(t, report, judgedCase)
	assert.Equal(t, "Done", judged.Label())
	assert.Equal(t, 5, judged.Inserts)
	assert.Equal(t, 1, judged.Rejected)
	assert.Equal(t, 2, judged.Attempts)

	active := outcome(t, report, activeCase)
	assert.Equal(t, "Done", active.Label())
	assert.Equal(t, 3, active.Inserts)

	unknown := outcome(t, report, unknownCase)
	assert.Equal(t, "Failed:CaseNotFound", unknown.Label())
	assert.Equal(t, 1, unknown.Attempts)
	assert.Contains(t, unknown.Error, "Fetching")

	done, failed := report.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
}

func TestRunCasesWritesDerivedFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.runner(t, nil, nil, 1).Run(ctx, []string{judgedCase, activeCase})
	require.NoError(t, err)

	row, err := e.store.GetCase(ctx, judgedCase)
	require.NoError(t, err)
	assert.Equal(t, "Final Disposition", *row.Status)
	assert.Equal(t, "Inactive", *row.ActiveOrInactive)
	assert.Equal(t, "Y", *row.JudgmentAfterMoratorium)
	assert.Equal(t, "04/02/2020", *row.FirstCourtAppearance)
	assert.Equal(t, "Doe, John", *row.Plaintiff)
	assert.Equal(t, "Roe, Jane; Roe, Richard", *row.Defendants)
	assert.Contains(t, *row.RegisterURL, "CaseDetail.aspx?CaseID=2186931")

	require.NotNil(t, row.DispositionType)
	assert.Equal(t, "Default Judgment", *row.DispositionType)
	assert.Equal(t, "1200", *row.DispositionAmount)
	assert.Equal(t, "Plaintiff", *row.JudgementFor)
	assert.Equal(t, "Rent owed for February and March", *row.Comments)
	assert.Equal(t, "Smith, Alice", *row.AttorneysForPlaintiffs)
	require.NotNil(t, row.MatchScore)
	assert.InDelta(t, 1.0, *row.MatchScore, 1e-9)

	pending, err := e.store.GetCase(ctx, activeCase)
	require.NoError(t, err)
	assert.Equal(t, "Active", *pending.ActiveOrInactive)
	assert.Nil(t, pending.JudgmentAfterMoratorium)
	assert.Nil(t, pending.DispositionType)
	assert.Equal(t, "2", *pending.Precinct)
}

func TestRunCasesIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	numbers := []string{judgedCase, activeCase}

	_, err := e.runner(t, nil, nil, 2).Run(ctx, numbers)
	require.NoError(t, err)

	report, err := e.runner(t, nil, nil, 2).Run(ctx, numbers)
	require.NoError(t, err)
	for _, o := range report.Outcomes {
		assert.Equal(t, StateDone, o.State, o.CaseNumber)
		assert.Zero(t, o.Inserts, o.CaseNumber)
		assert.Zero(t, o.Updates, o.CaseNumber)
	}

	var events int64
	require.NoError(t, e.db.Model(&database.Event{}).Count(&events).Error)
	assert.Equal(t, int64(5), events)
}

func TestDrainReportsUndispatchedCases(t *testing.T) {
	e := newEnv(t)

	var r *Runner
	var calls atomic.Int32
	fetcher := scraper.FetcherFunc(func(ctx context.Context, loc scraper.Locator) (*scraper.Document, error) {
		if calls.Add(1) == 1 {
			r.Drain()
		}
		return e.fetcher.Fetch(ctx, loc)
	})
	r = e.runner(t, fetcher, nil, 1)

	report, err := r.Run(context.Background(), []string{judgedCase, activeCase, unknownCase})
	require.NoError(t, err)
	assert.True(t, r.Draining())

	assert.Equal(t, "Done", outcome(t, report, judgedCase).Label(), "in-flight case finishes")
	assert.Equal(t, "Failed:Drained", outcome(t, report, activeCase).Label())
	assert.Equal(t, "Failed:Drained", outcome(t, report, unknownCase).Label())
}

type unavailableStore struct {
	Store
	applies atomic.Int32
}

func (s *unavailableStore) Apply(ctx context.Context, plan *reconcile.Plan) error {
	s.applies.Add(1)
	return fmt.Errorf("apply %s: %w", plan.CaseNumber, apperrors.ErrStoreUnavailable)
}

func TestStoreUnavailableHaltsBatch(t *testing.T) {
	e := newEnv(t)
	st := &unavailableStore{Store: e.store}

	report, err := e.runner(t, nil, st, 1).Run(context.Background(), []string{judgedCase, activeCase, unknownCase})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable), "got %v", err)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)

	assert.Equal(t, "Failed:StoreUnavailable", outcome(t, report, judgedCase).Label())
	assert.Equal(t, "Failed:Drained", outcome(t, report, activeCase).Label())
	assert.Equal(t, "Failed:Drained", outcome(t, report, unknownCase).Label())
	assert.Equal(t, int32(1), st.applies.Load())
}

func TestRunCancelledContext(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.runner(t, nil, nil, 1).Run(ctx, []string{judgedCase, activeCase})
	require.NoError(t, err)
	for _, o := range report.Outcomes {
		assert.Equal(t, "Failed:Cancelled", o.Label())
	}
}

func TestRunSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report, err := e.runner(t, nil, nil, 2).RunSettings(ctx, day("2020-06-01"), day("2020-06-02"))
	require.NoError(t, err)
	assert.Equal(t, KindSettings, report.Kind)
	require.Len(t, report.Outcomes, 2)

	first := outcome(t, report, "2020-06-01")
	assert.Equal(t, "Done", first.Label())
	assert.Equal(t, 2, first.Inserts)
	assert.Equal(t, 1, first.Rejected)

	empty := outcome(t, report, "2020-06-02")
	assert.Equal(t, "Done", empty.Label())
	assert.Zero(t, empty.Inserts)

	var settings []database.Setting
	require.NoError(t, e.db.Order("case_number").Find(&settings).Error)
	require.Len(t, settings, 2)
	assert.Equal(t, "J2-CV-20-000433", settings[1].CaseNumber)
	assert.Equal(t, "06/01/2020", settings[1].SettingDate)

	again, err := e.runner(t, nil, nil, 2).RunSettings(ctx, day("2020-06-01"), day("2020-06-01"))
	require.NoError(t, err)
	o := outcome(t, again, "2020-06-01")
	assert.Zero(t, o.Inserts)
	assert.Zero(t, o.Updates)
}

func TestRunFilings(t *testing.T) {
	e := newEnv(t)

	report, err := e.runner(t, nil, nil, 2).RunFilings(context.Background(), day("2020-06-01"), day("2020-06-07"))
	require.NoError(t, err)
	assert.Equal(t, KindFilings, report.Kind)
	require.Len(t, report.Outcomes, 2)

	assert.Equal(t, "Done", outcome(t, report, activeCase).Label())
	assert.Equal(t, "Failed:CaseNotFound", outcome(t, report, "J2-CV-20-000433").Label())
}

func TestRefreshActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.runner(t, nil, nil, 2).Run(ctx, []string{judgedCase, activeCase})
	require.NoError(t, err)

	report, err := e.runner(t, nil, nil, 2).RefreshActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindActive, report.Kind)
	require.Len(t, report.Outcomes, 1, "final disposition is inactive")
	assert.Equal(t, activeCase, report.Outcomes[0].CaseNumber)
	assert.Equal(t, "Done", report.Outcomes[0].Label())
}
