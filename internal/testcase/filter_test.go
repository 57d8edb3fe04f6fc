package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fixturekit/internal/marker"
)

func sampleCases(t *testing.T) []*Case {
	t.Helper()
	m := NewModule("fixture81")
	m.Test("test_smoke", noop).Mark(marker.Tag("smoke"))
	m.Test("test_win", noop).Mark(marker.Tag("smoke"), marker.Tag("win10"))
	cls := m.Class("TestPlain")
	cls.Test("test_a", noop)
	cls.Test("test_b", noop)
	m.Test("test_tail", noop)

	cases, err := NewRegistry(nil).Discover(m)
	require.NoError(t, err)
	return cases
}

func TestFilter_MarkerExpression(t *testing.T) {
	cases := sampleCases(t)

	got := Filter(cases, MarkerPredicate(marker.MustParseExpr("smoke and not win10")))
	assert.Equal(t, []string{"fixture81::test_smoke"}, ids(got))

	got = Filter(cases, MarkerPredicate(marker.MustParseExpr("")))
	assert.Len(t, got, len(cases))

	got = Filter(cases, MarkerPredicate(marker.MustParseExpr("not smoke")))
	assert.Equal(t, []string{
		"fixture81::TestPlain::test_a",
		"fixture81::TestPlain::test_b",
		"fixture81::test_tail",
	}, ids(got))
}

func TestFilter_NameFilters(t *testing.T) {
	cases := sampleCases(t)

	run, err := NewRegexList([]string{"TestPlain"})
	require.NoError(t, err)
	skip, err := NewRegexList([]string{"test_b$"})
	require.NoError(t, err)

	f := NameFilters{MustMatch: run, MustNotMatch: skip}
	assert.True(t, f.IsDefined())
	assert.Equal(t, []string{"fixture81::TestPlain::test_a"}, ids(Filter(cases, f.AsPredicate())))
	assert.Equal(t, []string{
		`skip any not matching "TestPlain"`,
		`skip any matching "test_b$"`,
	}, f.Describe())

	assert.Len(t, Filter(cases, NameFilters{}.AsPredicate()), len(cases))

	_, err = NewRegexList([]string{"ok", "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex #2")
}

func TestFilter_Combined(t *testing.T) {
	cases := sampleCases(t)
	run, err := NewRegexList([]string{"win"})
	require.NoError(t, err)

	got := Filter(cases,
		MarkerPredicate(marker.MustParseExpr("smoke")),
		NameFilters{MustMatch: run}.AsPredicate(),
		nil,
	)
	assert.Equal(t, []string{"fixture81::test_win"}, ids(got))
}

func TestGroups(t *testing.T) {
	groups := Groups(sampleCases(t))
	require.Len(t, groups, 3)

	assert.Equal(t, "fixture81", groups[0].Path())
	assert.Len(t, groups[0].Cases, 2)
	assert.Equal(t, "fixture81::TestPlain", groups[1].Path())
	assert.Len(t, groups[1].Cases, 2)
	assert.Equal(t, "fixture81", groups[2].Path())
	assert.Len(t, groups[2].Cases, 1)

	assert.Empty(t, Groups(nil))
}
