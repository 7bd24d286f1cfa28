// Package webfetch implements the Webpage Fetcher capability (§4.9):
// fetch(url) -> html with a 30s timeout and 3 retries, rate-limited per
// platform to respect source-site politeness (§4.6.1).
//
// Follows the shape of a pluggable scrape backend behind a
// rate-limited tool config, narrowed to raw HTML retrieval and using
// golang.org/x/time/rate for the per-platform token bucket instead of
// inventing one.
package webfetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/internal/tlsutil"
)

const (
	fetchTimeout = 30 * time.Second
	maxAttempts  = 4 // one initial attempt plus 3 retries
)

// Fetcher fetches web pages with retry and per-platform rate limiting.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	// defaultRate is the token-bucket rate applied to any platform
	// without an explicit override (politeness default, §4.6.1).
	defaultRate rate.Limit
	burst       int
}

func New(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: fetchTimeout, Transport: tlsutil.SecureTransport()},
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
		defaultRate: rate.Every(500 * time.Millisecond),
		burst:       1,
	}
}

func (f *Fetcher) limiterFor(platform string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[platform]
	if !ok {
		l = rate.NewLimiter(f.defaultRate, f.burst)
		f.limiters[platform] = l
	}
	return l
}

// Fetch retrieves url's HTML body, rate-limited per platform, making up
// to maxAttempts attempts while failures are transient. A 4xx response
// is a KindValidation error and is returned without a retry.
func (f *Fetcher) Fetch(ctx context.Context, platform, url string) (string, error) {
	if err := f.limiterFor(platform).Wait(ctx); err != nil {
		return "", errs.Wrap(errs.KindTransient, "rate limiter wait", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if errs.Is(err, errs.KindValidation) {
			return "", err
		}
		f.logger.Warn("webpage fetch failed, retrying", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return "", errs.Wrap(errs.KindTransient, "webpage fetch exhausted retries", lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", errs.New(errs.KindTransient, "server error fetching page")
	}
	if resp.StatusCode >= 400 {
		return "", errs.New(errs.KindValidation, "client error fetching page")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractText strips HTML tags and returns the visible text content,
// handed to the LLM Gateway for metadata extraction (§4.6.1).
func ExtractText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, "parse html", err)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String()), nil
}
