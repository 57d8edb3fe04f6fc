// Package browser is the driver capability test bodies automate a browser
// through.
//
// Two implementations exist: Fake, an in-memory site good enough for the
// demo suites and for tests, and Selenium, an adapter over a remote
// WebDriver server.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/fixturekit/internal/config"
)

// By names a locator strategy. Values match the WebDriver wire names.
type By string

const (
	ByCSS   By = "css selector"
	ByXPath By = "xpath"
	ByID    By = "id"
)

// Locator finds an element.
type Locator struct {
	By    By
	Value string
}

// CSS builds a CSS selector locator.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// ID builds an element ID locator.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// Element is a located element.
type Element interface {
	Click() error
	Text() (string, error)
}

// Driver automates one browser session.
type Driver interface {
	Open(url string) error
	Find(loc Locator) (Element, error)
	WindowHandles() ([]string, error)
	SwitchToWindow(handle string) error
	Quit() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}

// NotFoundError is returned by Find when no element matches.
type NotFoundError struct {
	Locator Locator
	URL     string
}

func (e *NotFoundError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("no such element: %s", e.Locator)
	}
	return fmt.Sprintf("no such element: %s on %s", e.Locator, e.URL)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrSessionClosed is returned by a driver used after Quit.
var ErrSessionClosed = errors.New("browser session closed")

// NewLauncher picks the launcher for cfg.Driver.
func NewLauncher(cfg *config.Config) (Launcher, error) {
	switch cfg.Driver {
	case config.DriverFake, "":
		return NewFakeLauncher(DemoSite()), nil
	case config.DriverSelenium:
		return &SeleniumLauncher{URL: cfg.SeleniumURL, Browser: cfg.Browser}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}
