package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/tebeka/selenium"
)

// SeleniumLauncher starts sessions on a remote WebDriver server.
type SeleniumLauncher struct {
	// URL is the WebDriver endpoint, e.g. http://localhost:4444/wd/hub.
	URL string

	// Browser is the requested browserName capability.
	Browser string
}

// Launch opens a remote session.
func (l *SeleniumLauncher) Launch(ctx context.Context) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps := selenium.Capabilities{"browserName": l.Browser}
	wd, err := selenium.NewRemote(caps, l.URL)
	if err != nil {
		return nil, fmt.Errorf("start %s session at %s: %w", l.Browser, l.URL, err)
	}
	return &Selenium{wd: wd}, nil
}

// Selenium adapts a selenium.WebDriver to Driver.
type Selenium struct {
	wd  selenium.WebDriver
	url string
}

func (s *Selenium) Open(url string) error {
	if err := s.wd.Get(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	s.url = url
	return nil
}

func (s *Selenium) Find(loc Locator) (Element, error) {
	el, err := s.wd.FindElement(seleniumBy(loc.By), loc.Value)
	if err != nil {
		return nil, mapFindError(loc, s.url, err)
	}
	return el, nil
}

func (s *Selenium) WindowHandles() ([]string, error) {
	return s.wd.WindowHandles()
}

func (s *Selenium) SwitchToWindow(handle string) error {
	return s.wd.SwitchWindow(handle)
}

func (s *Selenium) Quit() error {
	return s.wd.Quit()
}

func seleniumBy(by By) string {
	switch by {
	case ByXPath:
		return selenium.ByXPATH
	case ByID:
		return selenium.ByID
	default:
		return selenium.ByCSSSelector
	}
}

// mapFindError turns the WebDriver "no such element" error into a
// NotFoundError.
func mapFindError(loc Locator, url string, err error) error {
	var se *selenium.Error
	if errors.As(err, &se) && se.Err == "no such element" {
		return &NotFoundError{Locator: loc, URL: url}
	}
	return fmt.Errorf("find %s: %w", loc, err)
}
