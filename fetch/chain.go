package fetch

import (
	"context"
	"log/slog"
)

// Chain tries fetchers in priority order, returning the first success. A
// failed link is logged and the next one attempted; the chain itself never
// retries a link.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a Chain over the given fetchers, tried in order.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Name implements Fetcher.
func (c *Chain) Name() string { return "chain" }

// Fetch tries each fetcher in order for targetURL.
func (c *Chain) Fetch(ctx context.Context, targetURL string, opts Options) (*Result, error) {
	var lastErr error
	for _, f := range c.fetchers {
		result, err := f.Fetch(ctx, targetURL, opts)
		if err == nil && result != nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			slog.Debug("fetcher failed, trying next",
				slog.String("fetcher", f.Name()),
				slog.String("url", targetURL),
				slog.Any("error", err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &Error{Message: "no fetchers configured"}
}

// Map delegates to the first link that supports bulk URL mapping.
func (c *Chain) Map(ctx context.Context, siteURL string, opts MapOptions) ([]string, error) {
	for _, f := range c.fetchers {
		if m, ok := f.(Mapper); ok {
			return m.Map(ctx, siteURL, opts)
		}
	}
	return nil, &Error{Message: "no fetcher supports URL mapping"}
}
