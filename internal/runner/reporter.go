package runner

import (
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Reporter receives run progress.
type Reporter interface {
	RunStarted(runID string, cases []*testcase.Case)
	TestStarted(c *testcase.Case)
	TestFinished(r *Result)
	ScopeClosed(report resolver.ClosureReport)
	RunFinished(report *Report)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) RunStarted(string, []*testcase.Case) {}
func (NopReporter) TestStarted(*testcase.Case)          {}
func (NopReporter) TestFinished(*Result)                {}
func (NopReporter) ScopeClosed(resolver.ClosureReport)  {}
func (NopReporter) RunFinished(*Report)                 {}

// Reporters fans events out to several reporters.
type Reporters []Reporter

func (rs Reporters) RunStarted(runID string, cases []*testcase.Case) {
	for _, r := range rs {
		r.RunStarted(runID, cases)
	}
}

func (rs Reporters) TestStarted(c *testcase.Case) {
	for _, r := range rs {
		r.TestStarted(c)
	}
}

func (rs Reporters) TestFinished(res *Result) {
	for _, r := range rs {
		r.TestFinished(res)
	}
}

func (rs Reporters) ScopeClosed(report resolver.ClosureReport) {
	for _, r := range rs {
		r.ScopeClosed(report)
	}
}

func (rs Reporters) RunFinished(report *Report) {
	for _, r := range rs {
		r.RunFinished(report)
	}
}
