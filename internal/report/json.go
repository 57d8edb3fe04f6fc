package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/roach88/fixturekit/internal/canon"
	"github.com/roach88/fixturekit/internal/runner"
)

// Document is the JSON form of a finished run.
type Document struct {
	RunID      string         `json:"run_id"`
	Digest     string         `json:"digest"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
	Counts     map[string]int `json:"counts"`
	Results    []ResultDoc    `json:"results"`
	Closures   []ClosureDoc   `json:"closures"`
}

// ResultDoc is one test of a Document.
type ResultDoc struct {
	ID         string   `json:"id"`
	Outcome    string   `json:"outcome"`
	Attempts   int      `json:"attempts"`
	DurationMS int64    `json:"duration_ms"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
	Markers    []string `json:"markers,omitempty"`
	Output     string   `json:"output,omitempty"`
}

// ClosureDoc is one closed scope activation of a Document.
type ClosureDoc struct {
	Scope      string   `json:"scope"`
	Activation string   `json:"activation"`
	TornDown   int      `json:"torn_down"`
	Errors     []string `json:"errors,omitempty"`
}

// NewDocument converts a report.
func NewDocument(report *runner.Report) (*Document, error) {
	digest, err := canon.RunDigest(report)
	if err != nil {
		return nil, fmt.Errorf("digest run %s: %w", report.RunID, err)
	}

	counts := report.Counts()
	doc := &Document{
		RunID:      report.RunID,
		Digest:     digest,
		Status:     report.Status(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.Duration().Milliseconds(),
		Counts:     make(map[string]int, len(runner.Outcomes)),
		Results:    make([]ResultDoc, 0, len(report.Results)),
		Closures:   make([]ClosureDoc, 0, len(report.Closures)),
	}
	for _, o := range runner.Outcomes {
		doc.Counts[string(o)] = counts[o]
	}
	for _, res := range report.Results {
		doc.Results = append(doc.Results, ResultDoc{
			ID:         res.ID(),
			Outcome:    string(res.Outcome),
			Attempts:   res.Attempts,
			DurationMS: res.Duration.Milliseconds(),
			Reason:     res.Reason,
			Error:      res.Diagnostic(),
			Markers:    res.Case.Markers.Names(),
			Output:     res.Output,
		})
	}
	for _, cl := range report.Closures {
		cd := ClosureDoc{
			Scope:      string(cl.Activation.Scope),
			Activation: cl.Activation.Key,
			TornDown:   cl.TornDown,
		}
		for _, te := range cl.Errors {
			cd.Errors = append(cd.Errors, te.Error())
		}
		doc.Closures = append(doc.Closures, cd)
	}
	return doc, nil
}

// WriteJSON writes report to w as an indented Document.
func WriteJSON(w io.Writer, report *runner.Report) error {
	doc, err := NewDocument(report)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
