package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default base URL for the render service's v1 API.
const defaultBaseURL = "https://api.firecrawl.dev/v1"

// scrapeRequest is the body for POST /scrape.
type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
}

// scrapeResponse is the response from POST /scrape.
type scrapeResponse struct {
	Success bool     `json:"success"`
	Data    pageData `json:"data"`
	Error   string   `json:"error,omitempty"`
}

// pageData is a single page capture returned by the render service.
type pageData struct {
	Markdown string         `json:"markdown"`
	HTML     string         `json:"html"`
	Links    []string       `json:"links"`
	Metadata map[string]any `json:"metadata"`
}

// mapRequest is the body for POST /map.
type mapRequest struct {
	URL               string `json:"url"`
	Search            string `json:"search,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	IncludeSubdomains bool   `json:"includeSubdomains"`
}

// mapResponse is the response from POST /map.
type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the default render service endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client captures URLs through the render service. Every call re-fetches:
// there is no cache and no retry inside the client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a render service client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Fetcher.
func (c *Client) Name() string { return "render" }

// Fetch captures targetURL once through the render service.
func (c *Client) Fetch(ctx context.Context, targetURL string, opts Options) (*Result, error) {
	body := scrapeRequest{
		URL:             targetURL,
		Formats:         opts.Formats,
		OnlyMainContent: opts.OnlyMainContent,
		WaitFor:         int(opts.SettleDelay / time.Millisecond),
	}

	var decoded scrapeResponse
	if err := c.post(ctx, "/scrape", body, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		message := decoded.Error
		if message == "" {
			message = "capture not successful"
		}
		return nil, &Error{Status: http.StatusOK, Message: message}
	}

	return &Result{
		Markdown: decoded.Data.Markdown,
		HTML:     decoded.Data.HTML,
		Links:    decoded.Data.Links,
		Metadata: decoded.Data.Metadata,
	}, nil
}

// Map implements Mapper: one bulk listing of siteURL's known URLs.
func (c *Client) Map(ctx context.Context, siteURL string, opts MapOptions) ([]string, error) {
	body := mapRequest{
		URL:               siteURL,
		Search:            opts.Search,
		Limit:             opts.Limit,
		IncludeSubdomains: opts.IncludeSubdomains,
	}

	var decoded mapResponse
	if err := c.post(ctx, "/map", body, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		message := decoded.Error
		if message == "" {
			message = "mapping not successful"
		}
		return nil, &Error{Status: http.StatusOK, Message: message}
	}
	return decoded.Links, nil
}

// post sends an authenticated JSON request and decodes a 2xx response into
// out. Non-2xx responses come back as *Error with the upstream's message
// when the body carried one.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := string(data)
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			message = failure.Error
		}
		return &Error{Status: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
