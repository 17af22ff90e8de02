// Package downloader fetches candidate documents over HTTP with retry,
// backoff, a rotating User-Agent, and typed failure classification.
package downloader

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// robotsUserAgent is the identity checked against robots.txt groups. "*"
// is used rather than one of the rotating browser strings since the
// rotation is cosmetic to avoid trivial User-Agent blocks, not a claim to
// be a different, ungoverned crawler.
const robotsUserAgent = "*"

// userAgents rotates across at least three distinct browser families per
// attempt, per the design floor.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Result is the successful outcome of Fetch.
type Result struct {
	Bytes        []byte
	ContentType  string
	FinalURL     string
	ETag         string
	LastModified string
}

// Config governs retry counts, timeouts, and size limits.
type Config struct {
	Attempts       int
	RequestTimeout time.Duration
	MaxRedirects   int
	MaxBytes       int64
	RespectRobots  bool
	RatePerSecond  float64 // requests/sec floor per Downloader instance, 0 disables limiting
}

// DefaultConfig returns the design-default floors (30s timeout, 3 attempts,
// 5 redirects).
func DefaultConfig() Config {
	return Config{Attempts: 3, RequestTimeout: 30 * time.Second, MaxRedirects: 5, MaxBytes: 200 << 20, RespectRobots: true, RatePerSecond: 2}
}

// Downloader fetches candidate documents with retry and typed errors.
type Downloader struct {
	cfg     Config
	client  *http.Client
	robots  *robotsCache
	limiter *rate.Limiter
}

// New builds a Downloader honoring cfg's redirect cap.
func New(cfg Config) *Downloader {
	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	d := &Downloader{cfg: cfg, client: client}
	if cfg.RespectRobots {
		d.robots = newRobotsCache(cfg.RequestTimeout)
	}
	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return d
}

// Fetch retrieves url, retrying transient failures up to cfg.Attempts times
// with exponential backoff (1s, 2s) and a rotating User-Agent each attempt.
func (d *Downloader) Fetch(ctx context.Context, url, refererBase string) (Result, error) {
	if d.robots != nil && !d.robots.allowed(ctx, url, robotsUserAgent) {
		return Result{}, apperr.New(apperr.KindUpstreamBlocked, "disallowed by robots.txt")
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "rate limiter wait cancelled")
		}
	}

	attempts := d.cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return Result{}, apperr.Wrap(apperr.KindUpstreamTransient, ctx.Err(), "context cancelled during backoff")
			case <-time.After(backoff):
			}
		}

		res, err := d.attempt(ctx, url, refererBase, attempt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !apperr.Retryable(err) {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

// HeadInfo carries the conditional-fetch validators a server returned for
// a HEAD request.
type HeadInfo struct {
	ETag         string
	LastModified string
}

// Head issues a single HEAD request to collect ETag/Last-Modified
// validators without downloading the body, so an unchanged document can
// be recognized before a full GET is attempted. It is best-effort: any
// failure (network error, 405 Method Not Allowed, no validators in the
// response) is returned as an error and the caller should fall back to a
// full Fetch rather than treat the failure as "document changed".
func (d *Downloader) Head(ctx context.Context, url string) (HeadInfo, error) {
	if d.robots != nil && !d.robots.allowed(ctx, url, robotsUserAgent) {
		return HeadInfo{}, apperr.New(apperr.KindUpstreamBlocked, "disallowed by robots.txt")
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return HeadInfo{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "rate limiter wait cancelled")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return HeadInfo{}, apperr.Wrap(apperr.KindInputInvalid, err, "malformed request URL")
	}
	req.Header.Set("User-Agent", userAgents[0])

	resp, err := d.client.Do(req)
	if err != nil {
		return HeadInfo{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "HEAD request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return HeadInfo{}, apperr.New(apperr.KindUpstreamBlocked, resp.Status)
	}

	info := HeadInfo{ETag: resp.Header.Get("ETag"), LastModified: resp.Header.Get("Last-Modified")}
	if info.ETag == "" && info.LastModified == "" {
		return HeadInfo{}, apperr.New(apperr.KindUpstreamTransient, "server returned no conditional-fetch validators")
	}
	return info, nil
}

func (d *Downloader) attempt(ctx context.Context, url, refererBase string, attempt int) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInputInvalid, err, "malformed request URL")
	}
	req.Header.Set("Accept", "text/html,application/pdf,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if refererBase != "" {
		req.Header.Set("Referer", refererBase)
	}
	req.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Result{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "request timed out")
		}
		return Result{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "connection error")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return Result{}, apperr.New(apperr.KindUpstreamTransient, resp.Status)
	case resp.StatusCode >= 500:
		return Result{}, apperr.New(apperr.KindUpstreamTransient, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, apperr.New(apperr.KindUpstreamBlocked, resp.Status)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return Result{}, apperr.New(apperr.KindUpstreamBlocked, resp.Status)
	case resp.StatusCode >= 400:
		return Result{}, apperr.New(apperr.KindUpstreamBlocked, resp.Status)
	}

	limit := d.cfg.MaxBytes
	if limit <= 0 {
		limit = 200 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUpstreamTransient, err, "failed reading response body")
	}
	if int64(len(body)) > limit {
		return Result{}, apperr.New(apperr.KindTooLarge, "response exceeds configured size cap")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = sniff(body)
	}
	return Result{
		Bytes:        body,
		ContentType:  ct,
		FinalURL:     resp.Request.URL.String(),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	for e := err; e != nil; {
		if te, ok := e.(timeouter); ok {
			t = te
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return t != nil && t.Timeout()
}

// sniff falls back to magic-byte detection when the server omits
// Content-Type.
func sniff(b []byte) string {
	switch {
	case len(b) >= 4 && string(b[:4]) == "%PDF":
		return "application/pdf"
	case len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 0x03 && b[3] == 0x04:
		return "application/zip"
	case len(b) >= 8 && strings.HasPrefix(string(b[:8]), "\xd0\xcf\x11\xe0"):
		return "application/x-ole-storage"
	default:
		return "application/octet-stream"
	}
}
