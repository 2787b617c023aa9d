package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Local fetches pages directly over HTTP without client-side rendering. It
// produces HTML and links only; markdown stays empty, so extractors that read
// markdown fall through to their HTML strategies. Intended as the last link
// of a Chain, not as a standalone replacement for the render service.
type Local struct {
	collector *colly.Collector
}

// NewLocal builds a direct fetcher for the given site host.
func NewLocal(siteURL, userAgent string, timeout time.Duration) (*Local, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host, "www."+parsed.Host),
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Local{collector: collector}, nil
}

// Name implements Fetcher.
func (l *Local) Name() string { return "local" }

// Fetch retrieves targetURL with a plain GET and extracts the rendered-as-is
// HTML plus absolute links.
func (l *Local) Fetch(ctx context.Context, targetURL string, _ Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clone so per-call handlers do not accumulate on the shared collector.
	collector := l.collector.Clone()

	var (
		body      []byte
		status    int
		fetchErr  error
		collected bool
	)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
		collected = true
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := collector.Visit(targetURL); err != nil {
		return nil, &Error{Message: err.Error()}
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, &Error{Status: status, Message: fetchErr.Error()}
	}
	if !collected {
		return nil, &Error{Message: "no response received"}
	}

	links, title := parseLinks(body, targetURL)
	return &Result{
		HTML:     string(body),
		Links:    links,
		Metadata: map[string]any{"title": title},
	}, nil
}

func parseLinks(body []byte, pageURL string) ([]string, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, ""
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})

	return links, strings.TrimSpace(doc.Find("title").First().Text())
}
