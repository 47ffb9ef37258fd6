package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 100 * 1024
	DefaultMinTextChars = 100
	defaultUserAgent    = "Mozilla/5.0 (compatible; ParleyBot/1.0)"
)

// Fetcher downloads web pages and extracts their text.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	minChars int
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithFetchTimeout bounds a single download.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodyBytes caps how much of the body is read. Longer pages are truncated.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithMinTextChars rejects pages with less extracted text.
func WithMinTextChars(n int) FetcherOption {
	return func(f *Fetcher) {
		f.minChars = n
	}
}

// NewFetcher creates a Fetcher with the default limits.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   http.DefaultClient,
		timeout:  DefaultFetchTimeout,
		maxBytes: DefaultMaxBodyBytes,
		minChars: DefaultMinTextChars,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: only absolute http(s) urls are supported", raw)
	}
	return u, nil
}

// Fetch downloads rawURL and extracts its readable text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("failed to fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	page, err := HTML(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Page{}, err
	}
	if len([]rune(page.Text)) < f.minChars {
		return Page{}, fmt.Errorf("%w: page has fewer than %d characters of text", domain.ErrEmptyDocument, f.minChars)
	}
	return page, nil
}
