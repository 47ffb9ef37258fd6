// Package chunker splits text into bounded, overlapping segments for retrieval indexing.
package chunker

import "time"

// Defaults used by the ingestion pipeline.
const (
	DefaultSize          = 800
	DefaultOverlap       = 100
	DefaultMaxIterations = 10000
	DefaultTimeout       = 30 * time.Second
)

// clockCheckInterval is how many windows are cut between wall-clock checks.
const clockCheckInterval = 256

type config struct {
	maxIterations int
	timeout       time.Duration
	now           func() time.Time
}

// Option configures Split.
type Option func(*config)

// WithMaxIterations bounds the number of windows. Exceeding it returns the whole text.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithTimeout bounds the wall-clock time spent. Exceeding it returns the whole text.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Split cuts text into windows of size runes, each starting overlap runes
// before the end of the previous one.
//
// An overlap that is negative or not smaller than size is treated as 0. A
// non-positive size yields the whole text as one chunk. Empty text yields no
// chunks. The window always moves forward, and when the iteration cap or the
// timeout is hit the whole text is returned as a single chunk.
func Split(text string, size, overlap int, opts ...Option) []string {
	if text == "" {
		return nil
	}
	cfg := config{
		maxIterations: DefaultMaxIterations,
		timeout:       DefaultTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	deadline := cfg.now().Add(cfg.timeout)

	var chunks []string
	start := 0
	for i := 0; start < n; i++ {
		if i >= cfg.maxIterations {
			return []string{text}
		}
		if cfg.timeout > 0 && i%clockCheckInterval == 0 && cfg.now().After(deadline) {
			return []string{text}
		}

		end := min(start+size, n)
		if end > start {
			chunks = append(chunks, string(runes[start:end]))
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
