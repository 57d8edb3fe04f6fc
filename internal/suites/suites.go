// Package suites holds the built-in demo test modules run by the CLI.
//
// Each module exercises one harness feature against the demo site: scoped
// browser fixtures, yield and return providers, xfail and selection
// markers, reruns, direct and indirect parametrization.
package suites

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/roach88/fixturekit/internal/browser"
	"github.com/roach88/fixturekit/internal/fixture"
	"github.com/roach88/fixturekit/internal/testcase"
)

// Locators used across the demo pages.
var (
	BannerImage   = browser.CSS(".banner-image")
	ElementsCard  = browser.XPath(`//*[@class="card mt-4 top-card"][.//h5[text()="Elements"]]`)
	JoinNowByID   = browser.ID("join_now")
	JoinNowByCSS  = browser.CSS("#join_now")
	NewTabButton  = browser.CSS("#tabButton")
	SampleHeading = browser.CSS("#sampleHeading")
)

// Catalog builds the demo modules against a browser launcher.
type Catalog struct {
	launcher browser.Launcher
	builders map[string]func() *testcase.Module
}

// New creates a catalog whose browser fixtures start sessions with l.
func New(l browser.Launcher) *Catalog {
	c := &Catalog{launcher: l}
	c.builders = map[string]func() *testcase.Module{
		"list_sum":          listSum,
		"sum_and_value":     sumAndValue,
		"list_sum_unittest": listSumUnittest,
		"fixture1":          c.fixture1,
		"fixture3":          c.fixture3,
		"fixture10":         c.fixture10,
		"fixture81":         c.fixture81,
		"rerun":             rerun,
		"new_tab":           newTab,
		"indirect":          indirect,
		"inheritance":       inheritance,
	}
	return c
}

// Names lists the available modules, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.builders))
	for n := range c.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Modules builds the named modules in the order given, or every module
// when names is empty. Each call returns fresh builders.
func (c *Catalog) Modules(names ...string) ([]*testcase.Module, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	modules := make([]*testcase.Module, 0, len(names))
	for _, n := range names {
		build, ok := c.builders[n]
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %s)", n, strings.Join(c.Names(), ", "))
		}
		modules = append(modules, build())
	}
	return modules, nil
}

// Globals returns the fixtures every module can see: the base link and a
// function-scoped browser.
func (c *Catalog) Globals() []fixture.Definition {
	return []fixture.Definition{
		{
			Name:  "link",
			Scope: fixture.ScopeProcess,
			Provider: fixture.Value(func(req *fixture.Request) (any, error) {
				if req.Config == nil || req.Config.BaseURL == "" {
					return nil, fmt.Errorf("no base url configured")
				}
				return req.Config.BaseURL, nil
			}),
		},
		{
			Name:     "browser",
			Scope:    fixture.ScopeFunction,
			Provider: c.session("start browser", "quit browser"),
		},
	}
}

// Discover registers the globals on reg and discovers the named modules.
func (c *Catalog) Discover(reg *testcase.Registry, names ...string) ([]*testcase.Case, error) {
	modules, err := c.Modules(names...)
	if err != nil {
		return nil, err
	}
	for _, def := range c.Globals() {
		if err := reg.Fixtures.Register(def); err != nil {
			return nil, err
		}
	}
	return reg.Discover(modules...)
}

// session is a yield provider that launches a browser and quits it when
// the owning scope closes.
func (c *Catalog) session(start, quit string) fixture.Provider {
	return fixture.Yield(func(req *fixture.Request) (any, fixture.Teardown, error) {
		req.Logger.Info(start, "test", req.TestID)
		d, err := c.launcher.Launch(req.Context())
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		return d, func() error {
			req.Logger.Info(quit)
			return d.Quit()
		}, nil
	})
}

// pageURL resolves ref against the link fixture.
func pageURL(t testcase.T, ref string) (string, error) {
	base, err := url.Parse(t.Value("link").(string))
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(r).String(), nil
}

// shouldSee opens ref and finds loc.
func shouldSee(ref string, loc browser.Locator) testcase.Body {
	return func(t testcase.T) error {
		d := t.Value("browser").(browser.Driver)
		u, err := pageURL(t, ref)
		if err != nil {
			return err
		}
		if err := d.Open(u); err != nil {
			return err
		}
		_, err = d.Find(loc)
		return err
	}
}
