// Package report renders runs for people and for machines.
//
// Console is a runner.Reporter that prints one line per test and a
// summary. WriteJSON renders a finished report as a JSON document.
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"

	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/testcase"
)

// labels are the fixed-width tags printed before each test ID.
var labels = map[runner.Outcome]string{
	runner.OutcomePassed:          "PASSED",
	runner.OutcomeFailed:          "FAILED",
	runner.OutcomeExpectedFailure: "XFAIL",
	runner.OutcomeUnexpectedPass:  "XPASS",
	runner.OutcomeError:           "ERROR",
	runner.OutcomeSkipped:         "SKIPPED",
}

// Console prints progress to a terminal.
type Console struct {
	w       io.Writer
	verbose bool
	program string

	good  *color.Color
	bad   *color.Color
	warn  *color.Color
	faint *color.Color
}

var _ runner.Reporter = (*Console)(nil)

// Option configures a Console.
type Option func(c *Console)

// WithVerbose prints captured output of every test, not just failing ones.
func WithVerbose(v bool) Option {
	return func(c *Console) { c.verbose = v }
}

// WithColor forces color on or off. By default color follows whether
// stdout is a terminal.
func WithColor(enabled bool) Option {
	return func(c *Console) {
		for _, col := range []*color.Color{c.good, c.bad, c.warn, c.faint} {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// WithProgram sets the command name used in rerun hints.
func WithProgram(name string) Option {
	return func(c *Console) { c.program = name }
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer, opts ...Option) *Console {
	c := &Console{
		w:       w,
		program: "fixturekit",
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
		faint:   color.New(color.Faint),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Console) colorFor(o runner.Outcome) *color.Color {
	switch o {
	case runner.OutcomePassed:
		return c.good
	case runner.OutcomeFailed, runner.OutcomeError:
		return c.bad
	default:
		return c.warn
	}
}

// RunStarted prints the run header.
func (c *Console) RunStarted(runID string, cases []*testcase.Case) {
	fmt.Fprintf(c.w, "run %s: %d tests\n", runID, len(cases))
}

// TestStarted implements runner.Reporter.
func (c *Console) TestStarted(*testcase.Case) {}

// TestFinished prints the test line and, for bad outcomes, the diagnostic.
func (c *Console) TestFinished(res *runner.Result) {
	line := fmt.Sprintf("%-8s %s", labels[res.Outcome], res.ID())
	fmt.Fprint(c.w, c.colorFor(res.Outcome).Sprint(line))
	if res.Reason != "" {
		fmt.Fprintf(c.w, " (%s)", res.Reason)
	}
	if res.Attempts > 1 {
		fmt.Fprint(c.w, c.faint.Sprintf(" [%d attempts]", res.Attempts))
	}
	fmt.Fprintln(c.w)

	if res.Outcome.Bad() && res.Err != nil {
		c.indent("    ", res.Err.Error())
	}
	for _, te := range res.TeardownErrors {
		c.indent("    ", te.Error())
	}
	if res.Output != "" && (c.verbose || res.Outcome.Bad()) {
		c.indent("    | ", strings.TrimSuffix(res.Output, "\n"))
	}
}

// ScopeClosed implements runner.Reporter. Teardown errors are printed
// with the test they are attached to, or in the summary.
func (c *Console) ScopeClosed(resolver.ClosureReport) {}

// RunFinished prints leftover teardown errors, rerun hints and the
// summary line.
func (c *Console) RunFinished(report *runner.Report) {
	attached := make(map[*resolver.TeardownError]bool)
	for _, res := range report.Results {
		for _, te := range res.TeardownErrors {
			attached[te] = true
		}
	}
	for _, cl := range report.Closures {
		for _, te := range cl.Errors {
			if !attached[te] {
				fmt.Fprintln(c.w, c.bad.Sprintf("%-8s %s", "TEARDOWN", cl.Activation))
				c.indent("    ", te.Error())
			}
		}
	}

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(c.w)
		fmt.Fprintln(c.w, "rerun failures with:")
		for _, res := range failures {
			fmt.Fprintf(c.w, "  %s\n", ReproCommand(c.program, res.ID()))
		}
	}

	fmt.Fprintln(c.w)
	summary := "== " + Summary(report) + " =="
	switch report.Status() {
	case "ok":
		fmt.Fprintln(c.w, c.good.Sprint(summary))
	case "degraded":
		fmt.Fprintln(c.w, c.warn.Sprint(summary))
	default:
		fmt.Fprintln(c.w, c.bad.Sprint(summary))
	}
}

func (c *Console) indent(prefix, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(c.w, "%s%s\n", prefix, line)
	}
}

// Summary renders counts per outcome and the wall time, e.g.
// "3 passed, 1 failed in 1.20s".
func Summary(report *runner.Report) string {
	if len(report.Results) == 0 {
		return "no tests ran"
	}
	counts := report.Counts()
	var parts []string
	for _, o := range runner.Outcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	switch n := teardownErrors(report); {
	case n == 1:
		parts = append(parts, "1 teardown error")
	case n > 1:
		parts = append(parts, fmt.Sprintf("%d teardown errors", n))
	}
	s := strings.Join(parts, ", ")
	if report.Aborted {
		s += ", aborted"
	}
	return fmt.Sprintf("%s in %.2fs", s, report.Duration().Seconds())
}

// teardownErrors counts distinct teardown failures in a report.
func teardownErrors(report *runner.Report) int {
	seen := make(map[*resolver.TeardownError]bool)
	for _, res := range report.Results {
		for _, te := range res.TeardownErrors {
			seen[te] = true
		}
	}
	for _, cl := range report.Closures {
		for _, te := range cl.Errors {
			seen[te] = true
		}
	}
	return len(seen)
}

// ReproCommand is a shell command that reruns one test.
func ReproCommand(program, testID string) string {
	var b commandBuilder
	b.add(program, "run", "--run", "^"+regexp.QuoteMeta(testID)+"$")
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
