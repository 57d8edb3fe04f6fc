package testcase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/fixturekit/internal/marker"
)

// Predicate decides whether a case runs.
type Predicate func(c *Case) bool

// Filter returns the cases matching every predicate, in their original order.
func Filter(cases []*Case, preds ...Predicate) []*Case {
	var out []*Case
next:
	for _, c := range cases {
		for _, p := range preds {
			if p != nil && !p(c) {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}

// MarkerPredicate selects cases whose markers satisfy expr.
func MarkerPredicate(expr marker.Expr) Predicate {
	return func(c *Case) bool {
		return expr.Match(c.Markers)
	}
}

// NameFilters selects cases by regular expressions over their IDs.
type NameFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsPredicate converts the filters into a predicate.
func (f NameFilters) AsPredicate() Predicate {
	return func(c *Case) bool {
		return (!f.MustMatch.IsDefined() || f.MustMatch.AnyMatch(c.ID)) &&
			!f.MustNotMatch.AnyMatch(c.ID)
	}
}

// IsDefined reports whether any pattern was given.
func (f NameFilters) IsDefined() bool {
	return f.MustMatch.IsDefined() || f.MustNotMatch.IsDefined()
}

// Describe renders the filters for the run banner.
func (f NameFilters) Describe() []string {
	var lines []string
	if f.MustMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any not matching %s", f.MustMatch))
	}
	if f.MustNotMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any matching %s", f.MustNotMatch))
	}
	return lines
}

// RegexList is a compiled list of test ID patterns, built from the run and
// skip settings after config merging.
type RegexList struct {
	patterns []*regexp.Regexp
}

// NewRegexList compiles every pattern. The first invalid one is reported
// with its position in the list.
func NewRegexList(patterns []string) (RegexList, error) {
	r := RegexList{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for i, p := range patterns {
		rx, err := regexp.Compile(p)
		if err != nil {
			return RegexList{}, fmt.Errorf("invalid regex #%d: %w", i+1, err)
		}
		r.patterns = append(r.patterns, rx)
	}
	return r, nil
}

func (r RegexList) String() string {
	quoted := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		quoted[i] = strconv.Quote(p.String())
	}
	return strings.Join(quoted, " or ")
}

// IsDefined reports whether the list has patterns.
func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

// AnyMatch reports whether any pattern matches s.
func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
