// Package pipeline drives cases through fetch, extraction, matching and
// reconciliation with bounded concurrency, and reports a per-case outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/extract"
	"github.com/JustJay7/eviction-hearing-parser/internal/match"
	"github.com/JustJay7/eviction-hearing-parser/internal/reconcile"
	"github.com/JustJay7/eviction-hearing-parser/internal/scraper"
	"github.com/JustJay7/eviction-hearing-parser/internal/vocab"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the case store the pipeline writes through.
type Store interface {
	Snapshot(ctx context.Context, caseNumber string) (reconcile.Snapshot, error)
	SettingsSnapshot(ctx context.Context, caseNumber string) (reconcile.Snapshot, error)
	Apply(ctx context.Context, plan *reconcile.Plan) error
	ActiveCaseNumbers(ctx context.Context) ([]string, error)
}

// Options configures a Runner.
type Options struct {
	// Workers bounds the cases in flight.
	Workers int
	Policy  reconcile.Policy
}

// OptionsFromConfig maps the pipeline settings of cfg.
func OptionsFromConfig(cfg *config.Config, v *vocab.Vocabulary) Options {
	return Options{
		Workers: cfg.WorkerPoolSize,
		Policy: reconcile.Policy{
			OverwriteAudit: cfg.OverwriteDispositionAudit,
			Vocabulary:     v,
		},
	}
}

// Runner processes batches. Once drained it dispatches nothing more; create
// a new Runner per batch.
type Runner struct {
	scraper  *scraper.Scraper
	store    Store
	matcher  *match.Matcher
	vocab    *vocab.Vocabulary
	policy   reconcile.Policy
	workers  int
	logger   *logger.Logger
	draining atomic.Bool
}

// NewRunner creates a new runner.
func NewRunner(s *scraper.Scraper, st Store, m *match.Matcher, v *vocab.Vocabulary, opts Options, log *logger.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if v == nil {
		v = vocab.Default()
	}
	if opts.Policy.Vocabulary == nil {
		opts.Policy.Vocabulary = v
	}
	return &Runner{
		scraper: s,
		store:   st,
		matcher: m,
		vocab:   v,
		policy:  opts.Policy,
		workers: opts.Workers,
		logger:  log,
	}
}

// Drain stops dispatching new work. In-flight work finishes; the rest is
// reported Failed:Drained.
func (r *Runner) Drain() {
	if r.draining.CompareAndSwap(false, true) {
		r.logger.Info("Draining: no new cases will be dispatched")
	}
}

// Draining reports whether Drain was called.
func (r *Runner) Draining() bool {
	return r.draining.Load()
}

// Run processes caseNumbers, duplicates removed. The error is non-nil only
// when the store became unavailable; the report is returned either way.
func (r *Runner) Run(ctx context.Context, caseNumbers []string) (*Report, error) {
	return r.runCases(ctx, KindCases, caseNumbers)
}

// RefreshActive re-runs every stored case that is not in an inactive status.
func (r *Runner) RefreshActive(ctx context.Context) (*Report, error) {
	numbers, err := r.store.ActiveCaseNumbers(ctx)
	if err != nil {
		report := newReport(KindActive)
		report.finish(err)
		return report, err
	}
	return r.runCases(ctx, KindActive, numbers)
}

// RunFilings discovers the cases filed between after and before, one week
// at a time, and runs them.
func (r *Runner) RunFilings(ctx context.Context, after, before time.Time) (*Report, error) {
	var (
		numbers  []string
		failures []Outcome
	)
	for _, week := range SplitIntoWeeks(after, before) {
		for _, prefix := range scraper.FilingPrefixes(week.Start, week.End) {
			if r.Draining() || ctx.Err() != nil {
				break
			}
			found, err := r.scraper.FilingCaseNumbers(ctx, week.Start, week.End, prefix)
			numbers = append(numbers, found...)
			if err != nil {
				subject := fmt.Sprintf("%s..%s %s", week.Start.Format(dayLayout), week.End.Format(dayLayout), prefix)
				r.logger.Warn("Filings search failed", "range", subject, "error", err)
				o := Outcome{Day: subject, State: StateFetching}
				o.fail(err)
				failures = append(failures, o)
			}
		}
	}
	r.logger.Info("Filings discovered", "after", after.Format(dayLayout), "before", before.Format(dayLayout), "cases", len(numbers))

	report, err := r.runCases(ctx, KindFilings, numbers)
	report.Outcomes = append(failures, report.Outcomes...)
	return report, err
}

// RunSettings records the calendar settings of every day in [after, before].
func (r *Runner) RunSettings(ctx context.Context, after, before time.Time) (*Report, error) {
	var days []string
	for d := truncateDay(after); !d.After(truncateDay(before)); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayLayout))
	}
	return r.dispatch(ctx, KindSettings, days,
		func(day string) Outcome { return Outcome{Day: day, State: StatePending} },
		r.processDay)
}

func (r *Runner) runCases(ctx context.Context, kind string, caseNumbers []string) (*Report, error) {
	return r.dispatch(ctx, kind, dedupe(caseNumbers),
		func(n string) Outcome { return Outcome{CaseNumber: n, State: StatePending} },
		r.processCase)
}

type processFunc func(ctx context.Context, log *logger.Logger, o *Outcome)

// dispatch runs process for every subject on at most r.workers goroutines.
// A subject is only started while the runner is not draining; a store
// outage drains the runner and becomes the batch error.
func (r *Runner) dispatch(ctx context.Context, kind string, subjects []string, newOutcome func(string) Outcome, process processFunc) (*Report, error) {
	report := newReport(kind)
	report.Outcomes = make([]Outcome, len(subjects))
	log := r.logger.With("run_id", report.RunID)
	log.Info("Run started", "kind", kind, "subjects", len(subjects), "workers", r.workers)

	var (
		g        errgroup.Group
		fatalErr atomic.Pointer[error]
	)
	g.SetLimit(r.workers)

	for i, subject := range subjects {
		o := newOutcome(subject)
		if r.Draining() {
			o.drain()
			report.Outcomes[i] = o
			continue
		}
		if err := ctx.Err(); err != nil {
			o.fail(err)
			report.Outcomes[i] = o
			continue
		}

		i := i
		g.Go(func() error {
			// The slot may have opened only after a drain started.
			if r.Draining() {
				o.drain()
				report.Outcomes[i] = o
				return nil
			}
			process(ctx, log, &o)
			report.Outcomes[i] = o
			if errors.Is(o.err, apperrors.ErrStoreUnavailable) {
				fatalErr.CompareAndSwap(nil, &o.err)
				r.Drain()
				return o.err
			}
			return nil
		})
	}

	err := g.Wait()
	if p := fatalErr.Load(); p != nil {
		err = *p
	}
	report.finish(err)

	done, failed := report.Counts()
	if err != nil {
		log.Error("Run halted", "kind", kind, "done", done, "failed", failed, "error", err)
		return report, fmt.Errorf("run %s: %w", report.RunID, err)
	}
	log.Info("Run finished", "kind", kind, "done", done, "failed", failed,
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}

// processCase moves one case from Pending to Done or Failed.
func (r *Runner) processCase(ctx context.Context, log *logger.Logger, o *Outcome) {
	caseNumber := o.CaseNumber
	log = log.With("case_number", caseNumber)

	o.advance(StateFetching)
	pages, err := r.scraper.FetchCase(ctx, caseNumber)
	if pages != nil {
		o.Attempts = pages.Attempts
	}
	if err != nil {
		r.failed(log, o, err)
		return
	}

	o.advance(StateExtracting)
	reg, err := extract.ParseRegister(pages.Register.HTML)
	if err != nil {
		r.failed(log, o, err)
		return
	}
	if !strings.EqualFold(reg.Case.CaseNumber, caseNumber) {
		r.failed(log, o, apperrors.Malformed("register", "case number", reg.Case.CaseNumber))
		return
	}
	reg.Case.CaseNumber = caseNumber
	o.Rejected = len(reg.Rejected)
	for _, rejected := range reg.Rejected {
		log.Warn("Rejected record", "error", rejected)
	}

	o.advance(StateMatching)
	in := caseIncoming(r.matcher, r.vocab, pages.Result, reg)
	if d := in.Disposition; d != nil {
		log.Debug("Disposition matched", "type", value(d.Type), "judgement_for", value(d.JudgementFor), "score", d.MatchScore)
	}

	o.advance(StateReconciling)
	inserts, updates, err := r.reconcile(ctx, caseNumber, in, r.store.Snapshot)
	if err != nil {
		r.failed(log, o, err)
		return
	}
	o.Inserts, o.Updates = inserts, updates

	o.advance(StateDone)
	log.Info("Case done", "attempts", o.Attempts, "inserts", o.Inserts, "updates", o.Updates, "rejected", o.Rejected)
}

// processDay records the settings of one calendar day.
func (r *Runner) processDay(ctx context.Context, log *logger.Logger, o *Outcome) {
	log = log.With("day", o.Day)
	day, err := time.Parse(dayLayout, o.Day)
	if err != nil {
		r.failed(log, o, err)
		return
	}

	o.advance(StateFetching)
	doc, err := r.scraper.FetchCalendar(ctx, day)
	if err != nil {
		r.failed(log, o, err)
		return
	}

	o.advance(StateExtracting)
	rows, rejected, err := extract.ParseSettings(doc.HTML, r.scraper.Site().Homepage)
	if err != nil {
		r.failed(log, o, err)
		return
	}
	o.Rejected = len(rejected)
	for _, rej := range rejected {
		log.Warn("Rejected setting", "error", rej)
	}

	// Settings carry no disposition text.
	o.advance(StateMatching)
	numbers, grouped := settingsByCase(rows)

	o.advance(StateReconciling)
	for _, n := range numbers {
		in := reconcile.Incoming{Settings: grouped[n]}
		inserts, updates, err := r.reconcile(ctx, n, in, r.store.SettingsSnapshot)
		if err != nil {
			r.failed(log.With("case_number", n), o, err)
			return
		}
		o.Inserts += inserts
		o.Updates += updates
	}

	o.advance(StateDone)
	log.Info("Calendar done", "cases", len(numbers), "inserts", o.Inserts, "updates", o.Updates, "rejected", o.Rejected)
}

type snapshotFunc func(ctx context.Context, caseNumber string) (reconcile.Snapshot, error)

func (r *Runner) reconcile(ctx context.Context, caseNumber string, in reconcile.Incoming, snapshot snapshotFunc) (inserts, updates int, err error) {
	stored, err := snapshot(ctx, caseNumber)
	if err != nil {
		return 0, 0, err
	}
	plan := reconcile.PlanCase(caseNumber, stored, in, r.policy)
	if d := plan.Disposition; d != nil && d.Conflict {
		r.logger.Warn("Disposition superseded", "case_number", caseNumber,
			"stored_type", value(stored.Disposition.Type), "type", value(d.Row.Type))
	}
	if err := r.store.Apply(ctx, plan); err != nil {
		return 0, 0, err
	}
	return plan.Inserts(), plan.Updates(), nil
}

func (r *Runner) failed(log *logger.Logger, o *Outcome, err error) {
	stage := o.State
	o.fail(err)
	log.Warn("Failed", "stage", stage, "reason", o.Reason, "attempts", o.Attempts, "error", err)
}

func newReport(kind string) *Report {
	return &Report{
		RunID:     uuid.New().String(),
		Kind:      kind,
		StartedAt: time.Now(),
		Outcomes:  []Outcome{},
	}
}

func (r *Report) finish(err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}

func dedupe(caseNumbers []string) []string {
	seen := make(map[string]bool, len(caseNumbers))
	out := make([]string, 0, len(caseNumbers))
	for _, n := range caseNumbers {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
