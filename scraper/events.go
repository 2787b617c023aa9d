package scraper

import "github.com/viniciusgf/go-scrape-inci/models"

// Sink receives structured progress events from a run. It is the entire
// surface a presentation layer needs; the scraper never renders anything
// itself. Callbacks fire from the single worker goroutine, so implementations
// must not block for long.
type Sink interface {
	OnProgress(models.Progress)
	OnLog(models.LogEntry)
	OnPageUpdate(models.PageBucket)
	OnProductScraped(models.ScrapedProduct)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnProgress(models.Progress)             {}
func (NopSink) OnLog(models.LogEntry)                  {}
func (NopSink) OnPageUpdate(models.PageBucket)         {}
func (NopSink) OnProductScraped(models.ScrapedProduct) {}
