package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Run kinds.
const (
	KindCases    = "cases"
	KindFilings  = "filings"
	KindSettings = "settings"
	KindActive   = "active"
)

// Outcome is the final state of one case, or of one calendar day in a
// settings run.
type Outcome struct {
	CaseNumber string `json:"case_number,omitempty"`
	// Day is set instead of CaseNumber for settings runs.
	Day      string `json:"day,omitempty"`
	State    State  `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
	Inserts  int    `json:"inserts"`
	Updates  int    `json:"updates"`
	Rejected int    `json:"rejected"`

	err error
}

// Subject is the case number or day the outcome is about.
func (o Outcome) Subject() string {
	if o.CaseNumber != "" {
		return o.CaseNumber
	}
	return o.Day
}

// Label is "Done" or "Failed:<reason>".
func (o Outcome) Label() string {
	if o.State == StateFailed {
		return string(StateFailed) + ":" + o.Reason
	}
	return string(o.State)
}

// Report is the result of one run.
type Report struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	// Error is the batch-level failure that halted the run, if any.
	Error string `json:"error,omitempty"`
}

// Counts returns the number of done and failed outcomes.
func (r *Report) Counts() (done, failed int) {
	for _, o := range r.Outcomes {
		switch o.State {
		case StateDone:
			done++
		case StateFailed:
			failed++
		}
	}
	return done, failed
}

// Outcome finds the outcome of subject.
func (r *Report) Outcome(subject string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Subject() == subject {
			return o, true
		}
	}
	return Outcome{}, false
}

// Markdown renders the report as a GitHub-flavored Markdown table.
func (r *Report) Markdown() string {
	var b strings.Builder
	done, failed := r.Counts()

	fmt.Fprintf(&b, "# Run %s (%s)\n\n", r.RunID, r.Kind)
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Done: %d, Failed: %d\n", done, failed)
	if r.Error != "" {
		fmt.Fprintf(&b, "- Halted: %s\n", escapeCell(r.Error))
	}
	b.WriteString("\n")

	if len(r.Outcomes) == 0 {
		b.WriteString("Nothing to do.\n")
		return b.String()
	}

	b.WriteString("| Subject | State | Attempts | Inserts | Updates | Rejected | Error |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %s |\n",
			escapeCell(o.Subject()), o.Label(), o.Attempts, o.Inserts, o.Updates, o.Rejected, escapeCell(o.Error))
	}
	return b.String()
}

// HTML renders Markdown() as a standalone HTML page.
func (r *Report) HTML() (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(r.Markdown()), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Run " + r.RunID + "</title>" +
		"<style>body{font-family:sans-serif;margin:1rem;} table{border-collapse:collapse;} " +
		"th,td{border:1px solid #ccc;padding:0.3rem 0.5rem;text-align:left;}</style>" +
		"</head><body>" + content.String() + "</body></html>", nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
