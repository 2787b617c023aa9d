// Package fetch retrieves rendered page content for the scraper. The primary
// implementation talks to an external render service; a direct HTTP fetcher
// and an ordered fallback chain are available behind the same interface.
package fetch

import (
	"context"
	"fmt"
	"time"
)

// Format selects an output representation of the captured page.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatLinks    = "links"
)

// Options parameterise one capture of a URL.
type Options struct {
	// Formats lists the requested output representations.
	Formats []string
	// OnlyMainContent restricts the capture to the page's main content block.
	OnlyMainContent bool
	// SettleDelay lets client-side rendering finish before capture.
	SettleDelay time.Duration
}

// Result is the captured content of one URL. Fields not covered by the
// requested formats are left zero.
type Result struct {
	Markdown string
	HTML     string
	Links    []string
	Metadata map[string]any
}

// Fetcher captures one URL per call. Implementations make a single attempt:
// retrying or skipping a failed fetch is the caller's decision.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, opts Options) (*Result, error)
	Name() string
}

// MapOptions parameterise one bulk URL-mapping call.
type MapOptions struct {
	// Search narrows the mapping to URLs matching a term.
	Search string
	// Limit caps the number of returned URLs.
	Limit int
	// IncludeSubdomains extends the mapping beyond the site's root host.
	IncludeSubdomains bool
}

// Mapper lists a site's known URLs in one bulk call, without fetching the
// pages themselves. Optional: only the render service supports it.
type Mapper interface {
	Map(ctx context.Context, siteURL string, opts MapOptions) ([]string, error)
}

// Error reports that the upstream service rejected or failed a capture.
// Status is the upstream HTTP status, or zero for transport failures.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch: %s", e.Message)
	}
	return fmt.Sprintf("fetch: HTTP %d: %s", e.Status, e.Message)
}
