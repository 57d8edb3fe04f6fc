package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/testcase"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	SelectOptions

	// Fixtures lists the registered fixtures instead of the tests.
	Fixtures bool
}

// ListedTest is one collected test in JSON output.
type ListedTest struct {
	ID       string   `json:"id"`
	Module   string   `json:"module"`
	Class    string   `json:"class,omitempty"`
	Fixtures []string `json:"fixtures,omitempty"`
	Markers  []string `json:"markers,omitempty"`
}

// ListedFixture is one registered fixture in JSON output.
type ListedFixture struct {
	Key      string   `json:"key"`
	Scope    string   `json:"scope"`
	Params   int      `json:"params,omitempty"`
	Requires []string `json:"requires,omitempty"`
	Autouse  bool     `json:"autouse,omitempty"`
}

// ListResult is the JSON payload of list.
type ListResult struct {
	Tests      []ListedTest `json:"tests"`
	Deselected int          `json:"deselected"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the selected tests without running them",
		Long: `Collect the demo suites and print the ID of every test the same
selection flags as run would execute. No fixture is set up.

Example:
  fixturekit list -m smoke
  fixturekit list --suite indirect --format json
  fixturekit list --suite fixture1 --fixtures`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTests(cmd, opts)
		},
	}

	addSelectFlags(cmd.Flags(), &opts.SelectOptions)
	cmd.Flags().BoolVar(&opts.Fixtures, "fixtures", false, "List the fixtures the selected suites register")
	return cmd
}

func listTests(cmd *cobra.Command, opts *ListOptions) error {
	s, err := opts.openSession(cmd, &opts.SelectOptions)
	if err != nil {
		return err
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Fixtures {
		return listFixtures(f, s.registry.Fixtures)
	}
	if opts.Format == "json" {
		result := ListResult{Tests: make([]ListedTest, 0, len(s.selected)), Deselected: s.deselected()}
		for _, c := range s.selected {
			result.Tests = append(result.Tests, ListedTest{
				ID:       c.ID,
				Module:   c.Module,
				Class:    c.Class,
				Fixtures: c.Fixtures,
				Markers:  c.Markers.Names(),
			})
		}
		return f.Success(result)
	}

	var b strings.Builder
	if opts.Verbose {
		// One block per module or class, with the fixtures each test needs.
		for _, g := range testcase.Groups(s.selected) {
			fmt.Fprintf(&b, "%s\n", g.Path())
			for _, c := range g.Cases {
				fmt.Fprintf(&b, "  %s", strings.TrimPrefix(c.ID, g.Path()+"::"))
				if len(c.Markers) > 0 {
					fmt.Fprintf(&b, " [%s]", c.Markers)
				}
				if len(c.Fixtures) > 0 {
					fmt.Fprintf(&b, " (%s)", strings.Join(c.Fixtures, ", "))
				}
				b.WriteByte('\n')
			}
		}
	} else {
		for _, c := range s.selected {
			b.WriteString(c.ID)
			if len(c.Markers) > 0 {
				fmt.Fprintf(&b, " [%s]", c.Markers)
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "%s collected", pluralize(len(s.selected), "test"))
	if n := s.deselected(); n > 0 {
		fmt.Fprintf(&b, " (%d deselected)", n)
	}
	return f.Success(b.String())
}

// listFixtures prints the fixture registry in registration order.
func listFixtures(f *OutputFormatter, reg *fixture.Registry) error {
	if f.Format == "json" {
		defs := reg.Definitions()
		out := make([]ListedFixture, 0, len(defs))
		for _, d := range defs {
			out = append(out, ListedFixture{
				Key:      d.Key(),
				Scope:    string(d.Scope),
				Params:   len(d.Params),
				Requires: d.Requires,
				Autouse:  d.Autouse,
			})
		}
		return f.Success(out)
	}
	return f.Success(reg.String() + pluralize(reg.Len(), "fixture") + " registered")
}
