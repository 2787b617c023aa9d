package scraper

import (
	"context"
	"errors"

	"github.com/viniciusgf/go-scrape-inci/fetch"
)

var (
	// ErrMissingAPIKey is returned when a run is started without the render
	// service credential. This is the only pre-flight failure: it aborts the
	// run before any fetch is attempted.
	ErrMissingAPIKey = errors.New("scraper: render service API key not configured")

	// ErrAlreadyRunning is returned when a run is started while one is active.
	ErrAlreadyRunning = errors.New("scraper: a run is already active")

	// ErrAborted is the cooperative-stop sentinel observed at unit boundaries.
	ErrAborted = errors.New("scraper: aborted")
)

// errorCategory labels an error for metrics.
func errorCategory(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		switch {
		case fetchErr.Status == 0:
			return "network"
		case fetchErr.Status == 429:
			return "rate_limited"
		case fetchErr.Status >= 500:
			return "upstream"
		default:
			return "rejected"
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted) {
		return "aborted"
	}
	return "other"
}
