// Package scraper drives the multi-phase crawl: paginated brand discovery,
// per-brand product-link discovery, and per-product scraping. One sequential
// worker does all fetching and parsing; that is the politeness mechanism, not
// an incidental limitation.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/viniciusgf/go-scrape-inci/config"
	"github.com/viniciusgf/go-scrape-inci/fetch"
	"github.com/viniciusgf/go-scrape-inci/models"
	"github.com/viniciusgf/go-scrape-inci/parser"
)

// Phase names the traversal states surfaced to observers.
type Phase string

const (
	PhaseIdle                Phase = "Idle"
	PhaseFetchingBrandPages  Phase = "FetchingBrandPages"
	PhaseDiscoveringProducts Phase = "DiscoveringProducts"
	PhaseScrapingProducts    Phase = "ScrapingProducts"
	PhaseCompleted           Phase = "Completed"
	PhaseAborted             Phase = "Aborted"
)

// StartOptions parameterise one run.
type StartOptions struct {
	// StartOffset and EndOffset bound the brand-index traversal, inclusive.
	// EndOffset is ignored in auto-paginate mode.
	StartOffset int
	EndOffset   int
	// ProductLimitPerPage caps scraped products per index page, split evenly
	// across the page's brands (minimum one each). Zero adopts the configured
	// default limit.
	ProductLimitPerPage int
}

func (o StartOptions) validate(auto bool) error {
	if o.StartOffset < 0 {
		return fmt.Errorf("start offset cannot be negative")
	}
	if !auto && o.EndOffset < o.StartOffset {
		return fmt.Errorf("end offset %d precedes start offset %d", o.EndOffset, o.StartOffset)
	}
	if o.ProductLimitPerPage < 0 {
		return fmt.Errorf("product limit cannot be negative")
	}
	return nil
}

// Status is an observer snapshot of the run state.
type Status struct {
	Running      bool            `json:"running"`
	Paused       bool            `json:"paused"`
	Phase        Phase           `json:"phase"`
	Progress     models.Progress `json:"progress"`
	ProductCount int             `json:"productCount"`
	PageCount    int             `json:"pageCount"`
}

// Controller owns the traversal state machine. All fetch-and-parse work runs
// on a single goroutine; observers read copies through the snapshot methods.
type Controller struct {
	cfg     *config.Config
	fetcher fetch.Fetcher
	sink    Sink
	Metrics *Metrics
	logs    *LogBuffer

	pageLimiter    *rate.Limiter
	brandLimiter   *rate.Limiter
	productLimiter *rate.Limiter

	seen *lru.Cache[string, struct{}]

	mu       sync.Mutex
	running  bool
	phase    Phase
	progress models.Progress
	products []models.ScrapedProduct
	pages    []*models.PageBucket
	result   *models.RunResult
	ctrl     *control
}

// New builds a controller. A nil sink discards events.
func New(cfg *config.Config, fetcher fetch.Fetcher, sink Sink) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if sink == nil {
		sink = NopSink{}
	}
	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("seen cache: %w", err)
	}
	return &Controller{
		cfg:            cfg,
		fetcher:        fetcher,
		sink:           sink,
		Metrics:        NewMetrics(),
		logs:           NewLogBuffer(),
		pageLimiter:    delayLimiter(cfg.PageDelay),
		brandLimiter:   delayLimiter(cfg.BrandDelay),
		productLimiter: delayLimiter(cfg.ProductDelay),
		seen:           seen,
		phase:          PhaseIdle,
	}, nil
}

func delayLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Start begins a run on a background goroutine. It fails without fetching
// anything when the credential is missing, a run is already active, or the
// options are out of range.
func (c *Controller) Start(opts StartOptions) error {
	opts = c.withDefaults(opts)
	if err := c.begin(opts); err != nil {
		return err
	}
	go c.run(opts)
	return nil
}

// Run executes a run synchronously and returns its summary.
func (c *Controller) Run(opts StartOptions) (*models.RunResult, error) {
	opts = c.withDefaults(opts)
	if err := c.begin(opts); err != nil {
		return nil, err
	}
	return c.run(opts), nil
}

// withDefaults fills unset options from the configuration.
func (c *Controller) withDefaults(opts StartOptions) StartOptions {
	if opts.ProductLimitPerPage == 0 {
		opts.ProductLimitPerPage = c.cfg.ProductLimitPerPage
	}
	return opts
}

func (c *Controller) begin(opts StartOptions) error {
	if err := opts.validate(c.cfg.AutoPaginate); err != nil {
		return fmt.Errorf("scraper: %w", err)
	}
	if c.cfg.APIKey == "" && !c.cfg.LocalFallback {
		return ErrMissingAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.ctrl = newControl()
	c.phase = PhaseIdle
	c.progress = models.Progress{Phase: string(PhaseIdle)}
	c.products = nil
	c.pages = nil
	c.result = nil
	c.logs.Reset()
	return nil
}

func (c *Controller) run(opts StartOptions) *models.RunResult {
	result := &models.RunResult{StartTime: time.Now()}

	if c.cfg.AutoPaginate {
		c.logf(models.LogInfo, "starting scrape from offset %d (auto-paginate)", opts.StartOffset)
	} else {
		c.logf(models.LogInfo, "starting scrape for offsets %d..%d", opts.StartOffset, opts.EndOffset)
	}

	c.setPhase(PhaseFetchingBrandPages)
	buckets, err := c.fetchBrandPages(opts, result)
	if err == nil {
		err = c.scrapePages(buckets, opts, result)
	}

	result.EndTime = time.Now()
	switch {
	case c.aborted() || errors.Is(err, ErrAborted):
		result.Aborted = true
		c.setPhase(PhaseAborted)
		c.logf(models.LogWarning, "scraping aborted")
	case err != nil:
		result.Aborted = true
		c.setPhase(PhaseAborted)
		c.logf(models.LogError, "scraping failed: %v", err)
	default:
		c.setPhase(PhaseCompleted)
		c.logf(models.LogSuccess, "scraping completed: %d products from %d brands across %d pages",
			result.ProductCount, result.BrandCount, result.PageCount)
	}

	c.mu.Lock()
	c.result = result
	c.running = false
	c.mu.Unlock()
	return result
}

// fetchBrandPages iterates the brand index. In ranged mode every offset in
// [start, end] is attempted even when one comes back empty; in auto-paginate
// mode the first empty page ends the traversal.
func (c *Controller) fetchBrandPages(opts StartOptions, result *models.RunResult) ([]*models.PageBucket, error) {
	total := opts.EndOffset - opts.StartOffset + 1
	if c.cfg.AutoPaginate {
		total = 0
	}

	var buckets []*models.PageBucket
	for step := 0; ; step++ {
		offset := opts.StartOffset + step
		if c.cfg.AutoPaginate {
			if step >= c.cfg.MaxAutoPages {
				c.logf(models.LogWarning, "auto-paginate reached the %d page cap, stopping", c.cfg.MaxAutoPages)
				break
			}
		} else if offset > opts.EndOffset {
			break
		}

		if err := c.gate(); err != nil {
			return buckets, err
		}
		c.setProgress(step+1, total, fmt.Sprintf("Fetching brand page %d", offset))

		res, err := c.fetchPage(c.brandIndexURL(offset), fetch.Options{
			Formats:         []string{fetch.FormatHTML, fetch.FormatLinks},
			OnlyMainContent: true,
		}, "page")
		if err != nil {
			// Losing an index page loses every brand behind it. Unlike
			// per-brand and per-product failures this halts the run.
			c.logf(models.LogError, "failed to fetch brand page at offset %d: %v", offset, err)
			return buckets, fmt.Errorf("fetch brand page offset %d: %w", offset, err)
		}

		brands := parser.BrandLinks(res.Links)
		if len(brands) == 0 {
			if c.cfg.AutoPaginate {
				c.logf(models.LogInfo, "offset %d is empty, end of pagination", offset)
				break
			}
			c.logf(models.LogWarning, "no brands found at offset %d, skipping", offset)
		} else {
			bucket := newBucket(offset, brands)
			buckets = append(buckets, bucket)
			c.mu.Lock()
			c.pages = append(c.pages, bucket)
			c.mu.Unlock()
			c.emitPage(bucket)
			c.logf(models.LogSuccess, "found %d brands at offset %d", len(brands), offset)
		}

		c.pace(c.pageLimiter)
	}
	return buckets, nil
}

func newBucket(offset int, brands []models.BrandRef) *models.PageBucket {
	statuses := make([]models.BrandStatus, len(brands))
	for i, brand := range brands {
		statuses[i] = models.BrandStatus{Name: brand.Name, URL: brand.URL}
	}
	return &models.PageBucket{Offset: offset, Brands: statuses}
}

// scrapePages walks every bucket in page order, discovering and scraping each
// brand's products. Per-unit failures are logged and skipped.
func (c *Controller) scrapePages(buckets []*models.PageBucket, opts StartOptions, result *models.RunResult) error {
	for _, bucket := range buckets {
		if err := c.gate(); err != nil {
			return err
		}

		c.mutateBucket(bucket, func(b *models.PageBucket) { b.IsCurrentlyProcessing = true })
		c.emitPage(bucket)

		perBrandCap := 0
		if opts.ProductLimitPerPage > 0 {
			perBrandCap = opts.ProductLimitPerPage / len(bucket.Brands)
			if perBrandCap < 1 {
				perBrandCap = 1
			}
		}

		for i := range bucket.Brands {
			if err := c.gate(); err != nil {
				return err
			}
			if err := c.scrapeBrand(bucket, i, perBrandCap, result); err != nil {
				return err
			}
			result.BrandCount++
			c.pace(c.brandLimiter)
		}

		c.mutateBucket(bucket, func(b *models.PageBucket) {
			b.IsCurrentlyProcessing = false
			b.IsComplete = true
		})
		c.emitPage(bucket)
		c.Metrics.IncPagesCompleted()
		result.PageCount++
	}
	return nil
}

// scrapeBrand discovers one brand's product links and scrapes the selected
// products sequentially. Finding no products is not a brand failure.
func (c *Controller) scrapeBrand(bucket *models.PageBucket, brandIdx, perBrandCap int, result *models.RunResult) error {
	brand := bucket.Brands[brandIdx]

	c.setPhase(PhaseDiscoveringProducts)
	c.setProgress(brandIdx+1, len(bucket.Brands), "Scanning brand: "+brand.Name)
	c.logf(models.LogInfo, "scanning %s", brand.Name)

	var refs []models.ProductRef
	res, err := c.fetchPage(brand.URL, fetch.Options{
		Formats:         []string{fetch.FormatHTML, fetch.FormatLinks},
		OnlyMainContent: true,
	}, "brand")
	if err != nil {
		c.logf(models.LogWarning, "failed to scan %s (offset %d): %v", brand.Name, bucket.Offset, err)
		c.recordFailure(result, brand.URL)
	} else {
		refs = parser.ProductLinks(res.Links)
	}

	selected := refs[:0:0]
	for _, ref := range refs {
		if _, dup := c.seen.Get(ref.URL); dup {
			continue
		}
		c.seen.Add(ref.URL, struct{}{})
		selected = append(selected, ref)
	}
	if perBrandCap > 0 && len(selected) > perBrandCap {
		selected = selected[:perBrandCap]
	}

	c.setPhase(PhaseScrapingProducts)
	scraped := 0
	for j, ref := range selected {
		if err := c.gate(); err != nil {
			c.finishBrand(bucket, brandIdx, scraped)
			return err
		}
		c.setProgress(j+1, len(selected), "Scraping: "+ref.Name)

		product, err := c.scrapeProduct(ref)
		if err != nil {
			c.logf(models.LogError, "error scraping %s (brand %s, offset %d): %v",
				ref.Name, brand.Name, bucket.Offset, err)
			c.recordFailure(result, ref.URL)
		} else {
			c.mu.Lock()
			c.products = append(c.products, product)
			bucket.Products = append(bucket.Products, product)
			c.mu.Unlock()
			c.Metrics.IncProducts()
			c.sink.OnProductScraped(product)
			c.logf(models.LogSuccess, "scraped: %s (brand: %s)", product.Name, product.Brand)
			result.ProductCount++
			scraped++
		}

		c.pace(c.productLimiter)
	}

	c.finishBrand(bucket, brandIdx, scraped)
	if len(selected) > 0 {
		c.logf(models.LogInfo, "%s: scraped %d of %d discovered products", brand.Name, scraped, len(refs))
	}
	return nil
}

func (c *Controller) finishBrand(bucket *models.PageBucket, brandIdx, scraped int) {
	c.mutateBucket(bucket, func(b *models.PageBucket) {
		b.Brands[brandIdx].IsScraped = true
		b.Brands[brandIdx].ProductCount = scraped
	})
	c.emitPage(bucket)
}

func (c *Controller) scrapeProduct(ref models.ProductRef) (models.ScrapedProduct, error) {
	res, err := c.fetchPage(ref.URL, fetch.Options{
		Formats:     []string{fetch.FormatMarkdown, fetch.FormatHTML},
		SettleDelay: c.cfg.SettleDelay,
	}, "product")
	if err != nil {
		return models.ScrapedProduct{}, err
	}
	src := parser.NewSource(res.Markdown, res.HTML, res.Metadata, ref.URL)
	return parser.BuildProduct(src), nil
}

func (c *Controller) fetchPage(url string, opts fetch.Options, phase string) (*fetch.Result, error) {
	c.Metrics.IncRequest(phase)
	start := time.Now()
	res, err := c.fetcher.Fetch(c.ctrl.ctx, url, opts)
	c.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		c.Metrics.IncError(errorCategory(err))
		return nil, err
	}
	return res, nil
}

// gate is the unit-of-work boundary: abort wins over pause, and a paused run
// blocks here on a fixed poll interval without consuming CPU. Pause is
// honored before a new unit starts, never mid-fetch.
func (c *Controller) gate() error {
	for {
		if c.ctrl.Aborted() {
			return ErrAborted
		}
		if !c.ctrl.Paused() {
			return nil
		}
		select {
		case <-c.ctrl.ctx.Done():
			return ErrAborted
		case <-time.After(c.cfg.PausePoll):
		}
	}
}

// pace applies the phase's inter-request delay. Abort cancels the wait; the
// next gate call surfaces it.
func (c *Controller) pace(limiter *rate.Limiter) {
	_ = limiter.Wait(c.ctrl.ctx)
}

func (c *Controller) brandIndexURL(offset int) string {
	return fmt.Sprintf("%s/brands?offset=%d", c.cfg.SiteURL, offset)
}

func (c *Controller) recordFailure(result *models.RunResult, url string) {
	result.ErrorCount++
	result.FailedURLs = append(result.FailedURLs, url)
}

func (c *Controller) aborted() bool {
	c.mu.Lock()
	ctrl := c.ctrl
	c.mu.Unlock()
	return ctrl != nil && ctrl.Aborted()
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	c.phase = phase
	c.progress.Phase = string(phase)
	c.mu.Unlock()
}

func (c *Controller) setProgress(current, total int, phase string) {
	progress := models.Progress{Current: current, Total: total, Phase: phase}
	c.mu.Lock()
	c.progress = progress
	c.mu.Unlock()
	c.sink.OnProgress(progress)
}

func (c *Controller) mutateBucket(bucket *models.PageBucket, fn func(*models.PageBucket)) {
	c.mu.Lock()
	fn(bucket)
	c.mu.Unlock()
}

func (c *Controller) emitPage(bucket *models.PageBucket) {
	c.mu.Lock()
	snapshot := copyBucket(bucket)
	c.mu.Unlock()
	c.sink.OnPageUpdate(snapshot)
}

func (c *Controller) logf(logType models.LogType, format string, args ...any) {
	entry := c.logs.Append(logType, fmt.Sprintf(format, args...))
	switch logType {
	case models.LogError:
		slog.Error(entry.Message)
	case models.LogWarning:
		slog.Warn(entry.Message)
	default:
		slog.Info(entry.Message)
	}
	c.sink.OnLog(entry)
}

// TogglePause flips the pause flag and reports the new state. It takes
// effect within one poll interval.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	ctrl := c.ctrl
	c.mu.Unlock()
	if ctrl == nil {
		return false
	}
	paused := ctrl.TogglePause()
	if paused {
		c.logf(models.LogInfo, "scraping paused")
	} else {
		c.logf(models.LogInfo, "scraping resumed")
	}
	return paused
}

// defaultMapLimit bounds a bulk mapping call when the caller sets no limit.
const defaultMapLimit = 5000

// MapProductURLs lists every known product URL on the site in one bulk
// render-service call, without crawling. It is independent of the traversal:
// no run state is touched and no run needs to be active.
func (c *Controller) MapProductURLs(ctx context.Context, limit int) ([]models.ProductRef, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	mapper, ok := c.fetcher.(fetch.Mapper)
	if !ok {
		return nil, fmt.Errorf("scraper: fetcher %q does not support URL mapping", c.fetcher.Name())
	}
	if limit <= 0 {
		limit = defaultMapLimit
	}

	links, err := mapper.Map(ctx, c.cfg.SiteURL, fetch.MapOptions{
		Search: "products",
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("map product URLs: %w", err)
	}

	refs := parser.ProductLinks(links)
	slog.Info("mapped product URLs", slog.Int("count", len(refs)))
	return refs, nil
}

// Abort requests a cooperative stop of the active run.
func (c *Controller) Abort() {
	c.mu.Lock()
	ctrl := c.ctrl
	c.mu.Unlock()
	if ctrl != nil {
		ctrl.Abort()
	}
}

// Reset aborts any active run and clears all accumulated state.
func (c *Controller) Reset() {
	c.Abort()
	c.mu.Lock()
	c.phase = PhaseIdle
	c.progress = models.Progress{Phase: string(PhaseIdle)}
	c.products = nil
	c.pages = nil
	c.result = nil
	c.mu.Unlock()
	c.seen.Purge()
	c.logs.Reset()
}

// Status returns an observer snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	paused := false
	if c.ctrl != nil {
		paused = c.ctrl.Paused()
	}
	return Status{
		Running:      c.running,
		Paused:       paused,
		Phase:        c.phase,
		Progress:     c.progress,
		ProductCount: len(c.products),
		PageCount:    len(c.pages),
	}
}

// Products returns a copy of every record scraped so far.
func (c *Controller) Products() []models.ScrapedProduct {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ScrapedProduct, len(c.products))
	copy(out, c.products)
	return out
}

// Pages returns copies of every page bucket.
func (c *Controller) Pages() []models.PageBucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.PageBucket, len(c.pages))
	for i, bucket := range c.pages {
		out[i] = copyBucket(bucket)
	}
	return out
}

// Page returns a copy of the bucket for one offset.
func (c *Controller) Page(offset int) (models.PageBucket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range c.pages {
		if bucket.Offset == offset {
			return copyBucket(bucket), true
		}
	}
	return models.PageBucket{}, false
}

// Logs returns a copy of the bounded run log, oldest first.
func (c *Controller) Logs() []models.LogEntry {
	return c.logs.Snapshot()
}

// Result returns the last finished run's summary, or nil while running.
func (c *Controller) Result() *models.RunResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// copyBucket must be called with c.mu held when bucket is shared.
func copyBucket(bucket *models.PageBucket) models.PageBucket {
	out := *bucket
	out.Brands = make([]models.BrandStatus, len(bucket.Brands))
	copy(out.Brands, bucket.Brands)
	out.Products = make([]models.ScrapedProduct, len(bucket.Products))
	copy(out.Products, bucket.Products)
	return out
}
