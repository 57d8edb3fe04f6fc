package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Site is the content the fake browser serves, keyed by URL path.
type Site map[string]Page

// Page is one fake document.
type Page struct {
	Title    string
	Elements []FakeElement
}

// FakeElement is an element of a fake page. It is found by any of its
// locators, compared literally.
type FakeElement struct {
	Locators []Locator
	Text     string

	// OpensTab, when set, makes Click open this path in a new window.
	OpensTab string
}

// DemoSite returns the pages the demo suites visit.
func DemoSite() Site {
	return Site{
		"/": {
			Title: "DEMOQA",
			Elements: []FakeElement{
				{Locators: []Locator{CSS(".banner-image")}},
				{
					Locators: []Locator{XPath(`//*[@class="card mt-4 top-card"][.//h5[text()="Elements"]]`)},
					Text:     "Elements",
				},
				{
					Locators: []Locator{XPath(`//*[@class="card mt-4 top-card"][.//h5[text()="Forms"]]`)},
					Text:     "Forms",
				},
			},
		},
		"/browser-windows": {
			Title: "DEMOQA",
			Elements: []FakeElement{
				{Locators: []Locator{CSS("#tabButton"), ID("tabButton")}, Text: "New Tab", OpensTab: "/sample"},
				{Locators: []Locator{CSS("#windowButton"), ID("windowButton")}, Text: "New Window", OpensTab: "/sample"},
			},
		},
		"/sample": {
			Elements: []FakeElement{
				{Locators: []Locator{CSS("#sampleHeading"), ID("sampleHeading")}, Text: "This is a sample page"},
			},
		},
	}
}

// FakeLauncher starts Fake sessions and counts them.
type FakeLauncher struct {
	site Site

	mu       sync.Mutex
	launched int
	sessions []*Fake
}

// NewFakeLauncher serves site. Pages are matched by URL path only, so the
// same site answers for any base URL.
func NewFakeLauncher(site Site) *FakeLauncher {
	return &FakeLauncher{site: site}
}

// Launch starts a session.
func (l *FakeLauncher) Launch(ctx context.Context) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched++
	f := &Fake{site: l.site, handles: []string{"window-1"}, windows: map[string]string{"window-1": ""}, current: "window-1"}
	l.sessions = append(l.sessions, f)
	return f, nil
}

// Launched returns how many sessions were started.
func (l *FakeLauncher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Open returns how many sessions have not quit.
func (l *FakeLauncher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.sessions {
		if !s.Closed() {
			n++
		}
	}
	return n
}

// Fake is an in-memory Driver.
type Fake struct {
	site Site

	mu      sync.Mutex
	handles []string
	windows map[string]string // handle → current URL
	current string
	closed  bool
}

// Open navigates the current window.
func (f *Fake) Open(rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSessionClosed
	}
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("open %q: %w", rawURL, err)
	}
	f.windows[f.current] = rawURL
	return nil
}

// Find looks the locator up on the current page.
func (f *Fake) Find(loc Locator) (Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrSessionClosed
	}
	current := f.windows[f.current]
	page, ok := f.site[pagePath(current)]
	if ok {
		for i := range page.Elements {
			el := &page.Elements[i]
			for _, l := range el.Locators {
				if l == loc {
					return &fakeElement{driver: f, el: el, origin: current}, nil
				}
			}
		}
	}
	return nil, &NotFoundError{Locator: loc, URL: current}
}

// WindowHandles lists windows in opening order.
func (f *Fake) WindowHandles() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrSessionClosed
	}
	out := make([]string, len(f.handles))
	copy(out, f.handles)
	return out, nil
}

// SwitchToWindow focuses a window.
func (f *Fake) SwitchToWindow(handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSessionClosed
	}
	if _, ok := f.windows[handle]; !ok {
		return fmt.Errorf("no such window: %s", handle)
	}
	f.current = handle
	return nil
}

// Quit ends the session. Quitting twice is an error.
func (f *Fake) Quit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSessionClosed
	}
	f.closed = true
	return nil
}

// Closed reports whether Quit was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) openTab(origin, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handle := fmt.Sprintf("window-%d", len(f.handles)+1)
	f.handles = append(f.handles, handle)
	f.windows[handle] = resolveRef(origin, path)
}

type fakeElement struct {
	driver *Fake
	el     *FakeElement
	origin string
}

func (e *fakeElement) Click() error {
	if e.driver.Closed() {
		return ErrSessionClosed
	}
	if e.el.OpensTab != "" {
		e.driver.openTab(e.origin, e.el.OpensTab)
	}
	return nil
}

func (e *fakeElement) Text() (string, error) {
	if e.driver.Closed() {
		return "", ErrSessionClosed
	}
	return e.el.Text, nil
}

// pagePath maps a URL to a site key.
func pagePath(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		return p
	}
	return "/"
}

func resolveRef(origin, path string) string {
	base, err := url.Parse(origin)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return base.ResolveReference(ref).String()
}
