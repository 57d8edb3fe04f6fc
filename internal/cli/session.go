package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/fixturekit/internal/browser"
	"github.com/roach88/fixturekit/internal/config"
	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/marker"
	"github.com/roach88/fixturekit/internal/suites"
	"github.com/roach88/fixturekit/internal/testcase"
)

// SelectOptions holds the flags shared by run and list that are not part
// of the configuration.
type SelectOptions struct {
	Suites []string
}

// addSelectFlags registers the discovery and selection flags. Every flag
// except --suite is bound to its configuration key by loadConfig.
func addSelectFlags(fs *pflag.FlagSet, opts *SelectOptions) {
	d := config.Default()
	fs.StringSliceVar(&opts.Suites, "suite", nil, "suites to load (default: all)")
	fs.StringP("select", "m", "", `marker expression, e.g. "smoke and not win10"`)
	fs.StringArray("run", nil, "run only tests whose ID matches this regex (repeatable)")
	fs.StringArray("skip", nil, "skip tests whose ID matches this regex (repeatable)")
	fs.String("markers", "", "path to a YAML marker manifest")
	fs.Bool("strict-markers", false, "reject markers the manifest does not register")
	fs.String("base-url", d.BaseURL, "link every page test starts from")
	fs.String("driver", d.Driver, "browser driver (fake|selenium)")
	fs.String("selenium-url", "", "remote WebDriver endpoint for the selenium driver")
	fs.String("browser", d.Browser, "browserName requested from selenium")
}

// loadConfig merges flags, environment and the --config file.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	cfg, err := config.Load(v, o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// logger returns the diagnostic logger. Records are dropped unless
// --verbose is set, since the reporter already prints every outcome.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return logger.Discard()
	}
	return logger.New(cmd.ErrOrStderr(), true)
}

// session is a discovered and filtered set of cases.
type session struct {
	cfg      *config.Config
	log      *slog.Logger
	launcher browser.Launcher
	registry *testcase.Registry

	// discovered is every case; selected survives the filters.
	discovered []*testcase.Case
	selected   []*testcase.Case
}

// openSession loads the configuration, discovers the suites, applies the
// marker manifest and filters the cases.
func (o *RootOptions) openSession(cmd *cobra.Command, sel *SelectOptions) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: o.logger(cmd), launcher: o.Launcher}

	if s.launcher == nil {
		if s.launcher, err = browser.NewLauncher(cfg); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create browser launcher", err)
		}
	}

	s.registry = testcase.NewRegistry(nil)
	s.discovered, err = suites.New(s.launcher).Discover(s.registry, sel.Suites...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to discover tests", err)
	}

	known := marker.NewKnown()
	if cfg.MarkersFile != "" {
		m, err := marker.LoadManifest(cfg.MarkersFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load marker manifest", err)
		}
		s.registry.ApplyManifest(m)
		known = m.Known()
	}
	if cfg.StrictMarkers {
		if err := known.Check(s.registry.Markers); err != nil {
			return nil, WrapExitError(ExitCommandError, "unregistered markers", err)
		}
	}

	preds, filters, err := selection(cfg)
	if err != nil {
		return nil, err
	}
	for _, rule := range filters.Describe() {
		s.log.Debug("name filter", "rule", rule)
	}
	s.selected = testcase.Filter(s.discovered, preds...)
	s.log.Debug("tests collected",
		"discovered", len(s.discovered),
		"selected", len(s.selected),
		"suites", sel.Suites,
	)
	return s, nil
}

// selection builds the marker and name predicates of cfg.
func selection(cfg *config.Config) ([]testcase.Predicate, testcase.NameFilters, error) {
	var filters testcase.NameFilters
	expr, err := marker.ParseExpr(cfg.Select)
	if err != nil {
		return nil, filters, WrapExitError(ExitCommandError, "invalid --select", err)
	}

	if filters.MustMatch, err = testcase.NewRegexList(cfg.Run); err != nil {
		return nil, filters, WrapExitError(ExitCommandError, "invalid --run", err)
	}
	if filters.MustNotMatch, err = testcase.NewRegexList(cfg.Skip); err != nil {
		return nil, filters, WrapExitError(ExitCommandError, "invalid --skip", err)
	}
	return []testcase.Predicate{testcase.MarkerPredicate(expr), filters.AsPredicate()}, filters, nil
}

// deselected is the number of cases the filters dropped.
func (s *session) deselected() int {
	return len(s.discovered) - len(s.selected)
}

// colorEnabled reports whether console output to w should be colored.
// color.NoColor already accounts for NO_COLOR and a non-terminal stdout.
func colorEnabled(w io.Writer) bool {
	return w == io.Writer(os.Stdout) && !color.NoColor
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
