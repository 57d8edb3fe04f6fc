package suites

import (
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fixturekit/internal/browser"
	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/marker"
	"github.com/roach88/fixturekit/internal/roles"
	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Data shared by the arithmetic modules. bigNumber is deliberately not
// greater than five.
var (
	numbers   = []int{1, 2, 3, 4, 5}
	bigNumber = -191
)

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func sumEqualsFifteen(input []int) error {
	total := sum(input)
	return runner.Expect(15, total,
		fmt.Sprintf("the sum of the list %v is incorrect: expected 15, got %d", input, total))
}

func greaterThanFive(n int) error {
	if n > 5 {
		return nil
	}
	return &runner.AssertionError{
		Messages: []string{fmt.Sprintf("number %d is not greater than 5", n)},
		Expected: "> 5",
		Actual:   n,
	}
}

// listSum requests its data as module fixtures.
func listSum() *testcase.Module {
	m := testcase.NewModule("list_sum")
	m.Fixture(fixture.Definition{Name: "input_list", Scope: fixture.ScopeModule, Provider: fixture.Constant(numbers)})
	m.Fixture(fixture.Definition{Name: "number", Scope: fixture.ScopeModule, Provider: fixture.Constant(bigNumber)})

	m.Test("sum_of_list_elements_equals_fifteen", func(t testcase.T) error {
		return sumEqualsFifteen(t.Value("input_list").([]int))
	}, "input_list")
	m.Test("number_is_greater_than_five", func(t testcase.T) error {
		return greaterThanFive(t.Value("number").(int))
	}, "number")
	return m
}

// sumAndValue keeps the same data on a class.
func sumAndValue() *testcase.Module {
	m := testcase.NewModule("sum_and_value")
	c := m.Class("TestWithPytest")
	c.Fixture(fixture.Definition{Name: "numbers", Scope: fixture.ScopeClass, Provider: fixture.Constant(numbers)})
	c.Fixture(fixture.Definition{Name: "big_number", Scope: fixture.ScopeClass, Provider: fixture.Constant(bigNumber)})

	c.Test("sum_of_list_elements_equals_fifteen", func(t testcase.T) error {
		return sumEqualsFifteen(t.Value("numbers").([]int))
	}, "numbers")
	c.Test("number_is_greater_than_five", func(t testcase.T) error {
		return greaterThanFive(t.Value("big_number").(int))
	}, "big_number")
	return m
}

// listSumUnittest asserts with testify inside the bodies.
func listSumUnittest() *testcase.Module {
	m := testcase.NewModule("list_sum_unittest")
	c := m.Class("TestWithUnittest")
	c.Fixture(fixture.Definition{Name: "numbers", Scope: fixture.ScopeClass, Provider: fixture.Constant(numbers)})
	c.Fixture(fixture.Definition{Name: "big_number", Scope: fixture.ScopeClass, Provider: fixture.Constant(bigNumber)})

	c.Test("sum_of_list_elements_equals_fifteen", func(t testcase.T) error {
		input := t.Value("numbers").([]int)
		total := sum(input)
		assert.Equal(t, 15, total, "The sum of the list %v is incorrect. Expected: 15. Got: %d.", input, total)
		return nil
	}, "numbers")
	c.Test("number_is_greater_than_five", func(t testcase.T) error {
		n := t.Value("big_number").(int)
		require.True(t, n > 5, "Number %d is not greater than 5.", n)
		return nil
	}, "big_number")
	return m
}

// fixture1 opens one browser per class in TestMainPage1 and one per test
// in TestMainPage2, through autouse fixtures visible to one class each.
func (c *Catalog) fixture1() *testcase.Module {
	m := testcase.NewModule("fixture1")

	suite := m.Class("TestMainPage1")
	suite.Fixture(fixture.Definition{
		Name:     "browser",
		Scope:    fixture.ScopeClass,
		Autouse:  true,
		Provider: c.session("start browser for test suite..", "quit browser for test suite.."),
	})
	suite.Test("guest_should_see_banner_image", shouldSee("", BannerImage), "link")
	suite.Test("guest_should_see_elements_card_on_the_main_page", shouldSee("", ElementsCard), "link")

	perTest := m.Class("TestMainPage2")
	perTest.Fixture(fixture.Definition{
		Name:     "browser",
		Scope:    fixture.ScopeFunction,
		Autouse:  true,
		Provider: c.session("start browser for test..", "quit browser for test.."),
	})
	perTest.Test("guest_should_see_banner_image", shouldSee("", BannerImage), "link")
	perTest.Test("guest_should_see_elements_card_on_the_main_page", shouldSee("", ElementsCard), "link")
	return m
}

// fixture3 provides the browser return-style. Its sessions are never quit.
func (c *Catalog) fixture3() *testcase.Module {
	m := testcase.NewModule("fixture3")
	m.Fixture(fixture.Definition{
		Name: "browser",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			req.Logger.Info("start browser")
			return c.launcher.Launch(req.Context())
		}),
	})

	cls := m.Class("TestMainPage1")
	cls.Test("guest_should_see_banner_image", shouldSee("", BannerImage), "browser", "link")
	cls.Test("guest_should_see_elements_card_on_the_main_page", shouldSee("", ElementsCard), "browser", "link")
	return m
}

// fixture10 yields a browser per test and expects the join-now button to
// be missing.
func (c *Catalog) fixture10() *testcase.Module {
	m := testcase.NewModule("fixture10")
	m.Fixture(fixture.Definition{
		Name:     "browser",
		Scope:    fixture.ScopeFunction,
		Provider: c.session("start browser", "quit browser"),
	})

	cls := m.Class("TestMainPage1")
	cls.Test("guest_should_see_banner_image", shouldSee("", BannerImage), "browser", "link")
	cls.Test("guest_should_see_elements_card_on_the_main_page", shouldSee("", ElementsCard), "browser", "link")
	cls.Test("guest_should_see_join_now_button_on_the_main_page", shouldSee("", JoinNowByID), "browser", "link").
		Mark(marker.XFail("no join now button on the main page"))
	return m
}

// fixture81 tags tests for selection with -m.
func (c *Catalog) fixture81() *testcase.Module {
	m := testcase.NewModule("fixture81")
	m.Fixture(fixture.Definition{
		Name:     "browser",
		Scope:    fixture.ScopeFunction,
		Provider: c.session("start browser", "quit browser"),
	})

	logged := func(line string, body testcase.Body) testcase.Body {
		return func(t testcase.T) error {
			t.Logf("%s", line)
			return body(t)
		}
	}

	cls := m.Class("TestMainPage1")
	cls.Test("guest_should_see_banner_image", logged("smoke test 1", shouldSee("", BannerImage)), "browser", "link").
		Mark(marker.Tag("smoke"))
	cls.Test("guest_should_see_elements_card_on_the_main_page", logged("smoke test 2", shouldSee("", ElementsCard)), "browser", "link").
		Mark(marker.Tag("smoke"), marker.Tag("win10"))
	return m
}

// rerun uses the global browser. The join-now test fails on every
// attempt, so --reruns only repeats it.
func rerun() *testcase.Module {
	m := testcase.NewModule("rerun")
	m.Test("guest_should_see_elements_card_on_the_main_page", shouldSee("", ElementsCard), "browser", "link")
	m.Test("guest_should_see_join_now_button_on_the_main_page", shouldSee("", JoinNowByCSS), "browser", "link")
	return m
}

// SampleText is the heading of the page the new tab opens.
const SampleText = "This is a sample page"

// newTab clicks a button that opens a tab and reads the tab's heading.
func newTab() *testcase.Module {
	m := testcase.NewModule("new_tab")
	m.Test("sample_page_opens_in_new_tab", func(t testcase.T) error {
		d := t.Value("browser").(browser.Driver)
		u, err := pageURL(t, "browser-windows")
		if err != nil {
			return err
		}
		require.NoError(t, d.Open(u))

		button, err := d.Find(NewTabButton)
		require.NoError(t, err)
		require.NoError(t, button.Click())

		handles, err := d.WindowHandles()
		require.NoError(t, err)
		require.Len(t, handles, 2, "new tab did not open")
		require.NoError(t, d.SwitchToWindow(handles[1]))

		heading, err := d.Find(SampleHeading)
		require.NoError(t, err)
		actual, err := heading.Text()
		require.NoError(t, err)
		return runner.Expect(SampleText, actual, "text of the new tab")
	}, "browser", "link")
	return m
}

// indirect feeds parametrized values to fixtures instead of the test.
func indirect() *testcase.Module {
	m := testcase.NewModule("indirect")
	m.Fixture(fixture.Definition{
		Name: "x",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return strings.Repeat(fmt.Sprint(req.ParamValue()), 3), nil
		}),
	})
	m.Fixture(fixture.Definition{
		Name: "y",
		Provider: fixture.Value(func(req *fixture.Request) (any, error) {
			return strings.Repeat(fmt.Sprint(req.ParamValue()), 2), nil
		}),
	})

	check := func(wantX, wantY string) testcase.Body {
		return func(t testcase.T) error {
			t.Logf("x=%v y=%v", t.Value("x"), t.Value("y"))
			assert.Equal(t, wantX, t.Value("x"))
			assert.Equal(t, wantY, t.Value("y"))
			return nil
		}
	}

	// Only y goes through its fixture; x reaches the test unchanged.
	m.Test("indirect_list", check("a", "bb"), "x", "y").
		Parametrize("x, y", []any{[]any{"a", "b"}}, testcase.Indirect("y"))
	m.Test("indirect_all", check("aaa", "bb"), "x", "y").
		Parametrize("x, y", []any{[]any{"a", "b"}}, testcase.Indirect())
	return m
}

// inheritance asks every role the questions of the roles table.
func inheritance() *testcase.Module {
	m := testcase.NewModule("inheritance")
	m.Fixture(fixture.Definition{
		Name:     "student",
		Scope:    fixture.ScopeModule,
		Provider: fixture.Constant(roles.New("Тимофей", roles.Student)),
	})

	m.Test("answer", func(t testcase.T) error {
		student := t.Value("student").(roles.Person)
		someone := roles.New(t.Value("name").(string), t.Value("role").(roles.Role))
		ex := student.Ask(someone, t.Value("question").(string))
		t.Logf("%s", ex)
		return runner.Expect(t.Value("answer").(string), ex.Answer)
	}, "student", "name", "role", "question", "answer").
		Parametrize("name, role, question, answer", []any{
			[]any{"Марина", roles.Curator, roles.QuestionSad, "Держись, всё получится. Хочешь видео с котиками?"},
			[]any{"Ира", roles.Mentor, roles.QuestionSad, "Отдохни и возвращайся с вопросами по теории."},
			[]any{"Евгений", roles.Reviewer, "когда каникулы?", roles.DefaultAnswer},
			[]any{"Евгений", roles.Reviewer, roles.QuestionProject, "О, вопрос про проект, это я люблю."},
			[]any{"Виталя", roles.Human, "как устроиться на работу питонистом?", roles.DefaultAnswer},
			[]any{"Ира", roles.Mentor, roles.QuestionJob, "Сейчас расскажу."},
		}, testcase.IDs("curator-sad", "mentor-sad", "reviewer-holidays", "reviewer-project", "friend-job", "mentor-job"))
	return m
}
