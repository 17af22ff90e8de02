package downloader

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// JSRenderer renders a page through a local headless Chromium instance. It
// is a fallback for listing pages whose links are populated by
// client-side JavaScript, where a dialect scraper's static HTML parse
// would otherwise find nothing.
type JSRenderer struct {
	Timeout time.Duration
}

// NewJSRenderer builds a JSRenderer bounded by timeout.
func NewJSRenderer(timeout time.Duration) *JSRenderer {
	return &JSRenderer{Timeout: timeout}
}

// Render navigates to pageURL in a freshly launched headless browser and
// returns the fully rendered HTML once the page finishes loading.
func (r *JSRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	browser, err := r.newBrowser(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return "", err
	}

	return page.HTML()
}

func (r *JSRenderer) newBrowser(ctx context.Context) (*rod.Browser, error) {
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u).Context(ctx).Timeout(r.Timeout)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}
