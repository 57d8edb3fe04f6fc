// Package config holds the run configuration shared by fixtures, the
// executor and the CLI.
//
// Settings are merged by viper from flags, FIXTUREKIT_* environment
// variables and an optional YAML file, then validated against an embedded
// CUE schema before use.
package config

import "time"

// Driver names.
const (
	DriverFake     = "fake"
	DriverSelenium = "selenium"
)

// DefaultBaseURL is the site the demo suites browse.
const DefaultBaseURL = "https://demoqa.com/"

// Config is the explicit configuration object handed to fixtures and tests.
type Config struct {
	// BaseURL is the link every page test starts from.
	BaseURL string `mapstructure:"base_url" json:"base_url"`

	// Driver selects the browser driver: "fake" or "selenium".
	Driver string `mapstructure:"driver" json:"driver"`

	// SeleniumURL is the remote WebDriver endpoint for the selenium driver.
	SeleniumURL string `mapstructure:"selenium_url" json:"selenium_url"`

	// Browser is the browserName capability requested from selenium.
	Browser string `mapstructure:"browser" json:"browser"`

	// Reruns is how many times a failed test is retried.
	Reruns int `mapstructure:"reruns" json:"reruns"`

	// Timeout bounds a single test body; zero disables it.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// Select is a marker expression, e.g. "smoke and not win10".
	Select string `mapstructure:"select" json:"select"`

	// Run and Skip are regular expressions over test IDs.
	Run  []string `mapstructure:"run" json:"run"`
	Skip []string `mapstructure:"skip" json:"skip"`

	// DBPath is the sqlite run-history database; empty disables history.
	DBPath string `mapstructure:"db" json:"db"`

	// MetricsFile receives a prometheus textfile after each run.
	MetricsFile string `mapstructure:"metrics_file" json:"metrics_file"`

	// MarkersFile is a YAML marker manifest.
	MarkersFile string `mapstructure:"markers" json:"markers"`

	// StrictMarkers rejects markers that are not registered.
	StrictMarkers bool `mapstructure:"strict_markers" json:"strict_markers"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Driver:  DriverFake,
		Browser: "chrome",
	}
}
