package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and memoizes robots.txt per host so a long-running
// scrape job does not refetch it on every page.
type robotsCache struct {
	client *http.Client
	mu     sync.Mutex
	data   map[string]*robotstxt.RobotsData
}

func newRobotsCache(timeout time.Duration) *robotsCache {
	return &robotsCache{
		client: &http.Client{Timeout: timeout},
		data:   make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether userAgent may fetch rawURL, fetching and caching
// that host's robots.txt on first use. A fetch failure is treated as
// permissive: robots.txt is absent on plenty of government sites this
// pipeline targets, and that must not block the crawl.
func (c *robotsCache) allowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	c.mu.Lock()
	data, cached := c.data[u.Host]
	c.mu.Unlock()
	if !cached {
		data, _ = c.fetch(ctx, u, userAgent)
		c.mu.Lock()
		c.data[u.Host] = data
		c.mu.Unlock()
	}
	if data == nil {
		return true
	}
	return data.FindGroup(userAgent).Test(u.String())
}

func (c *robotsCache) fetch(ctx context.Context, base *url.URL, userAgent string) (*robotstxt.RobotsData, error) {
	robotsURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("non-200 robots.txt")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}
