package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/viniciusgf/go-scrape-inci/config"
	"github.com/viniciusgf/go-scrape-inci/fetch"
	"github.com/viniciusgf/go-scrape-inci/models"
)

const testSite = "https://inci.test"

// stubFetcher serves canned results keyed by URL. An unknown URL yields an
// empty result, which reads as an empty page. The optional hook fires on the
// worker goroutine before each result is returned.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetch.Result
	errs  map[string]error
	calls []string
	hook  func(url string)
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Fetch(_ context.Context, url string, _ fetch.Options) (*fetch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.hook
	res := f.pages[url]
	err := f.errs[url]
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &fetch.Result{}, nil
	}
	return res, nil
}

func (f *stubFetcher) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if strings.Contains(call, substr) {
			n++
		}
	}
	return n
}

func (f *stubFetcher) addIndexPage(offset int, brandSlugs ...string) {
	links := make([]string, len(brandSlugs))
	for i, slug := range brandSlugs {
		links[i] = testSite + "/brands/" + slug
	}
	f.pages[indexURL(offset)] = &fetch.Result{Links: links}
}

func (f *stubFetcher) addBrandPage(slug string, productSlugs ...string) {
	links := make([]string, len(productSlugs))
	for i, p := range productSlugs {
		links[i] = testSite + "/products/" + p
	}
	f.pages[testSite+"/brands/"+slug] = &fetch.Result{Links: links}
}

func (f *stubFetcher) addProductPage(slug, name string) {
	f.pages[testSite+"/products/"+slug] = &fetch.Result{
		Markdown: "## Ingredients overview\n\n[Aqua](" + testSite + "/ingredients/water), [Glycerin](" + testSite + "/ingredients/glycerin)\n",
		Metadata: map[string]any{"title": name + " ingredients (Explained)"},
	}
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string]*fetch.Result),
		errs:  make(map[string]error),
	}
}

func indexURL(offset int) string {
	return fmt.Sprintf("%s/brands?offset=%d", testSite, offset)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SiteURL = testSite
	cfg.APIKey = "test-key"
	cfg.PageDelay = 0
	cfg.BrandDelay = 0
	cfg.ProductDelay = 0
	cfg.PausePoll = 5 * time.Millisecond
	cfg.SettleDelay = 0
	return cfg
}

func newTestController(t *testing.T, cfg *config.Config, fetcher fetch.Fetcher) *Controller {
	t.Helper()
	c, err := New(cfg, fetcher, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRangedModeAttemptsEveryOffset(t *testing.T) {
	fetcher := newStubFetcher()
	c := newTestController(t, testConfig(), fetcher)

	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := fetcher.callCount("/brands?offset="); got != 3 {
		t.Errorf("index fetches = %d, want 3", got)
	}
	if result.Aborted {
		t.Errorf("empty offsets must not abort the run")
	}
	if result.PageCount != 0 || result.BrandCount != 0 {
		t.Errorf("result = %+v, want zero pages and brands", result)
	}
	if got := c.Status().Phase; got != PhaseCompleted {
		t.Errorf("phase = %q, want %q", got, PhaseCompleted)
	}

	warnings := 0
	for _, entry := range c.Logs() {
		if entry.Type == models.LogWarning && strings.Contains(entry.Message, "no brands found") {
			warnings++
		}
	}
	if warnings != 3 {
		t.Errorf("empty-offset warnings = %d, want 3", warnings)
	}
}

func TestAutoPaginateStopsAtFirstEmptyPage(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "brand-a")
	fetcher.addIndexPage(1, "brand-b")
	// offset 2 is unknown and therefore empty
	fetcher.addBrandPage("brand-a")
	fetcher.addBrandPage("brand-b")

	cfg := testConfig()
	cfg.AutoPaginate = true
	c := newTestController(t, cfg, fetcher)

	result, err := c.Run(StartOptions{StartOffset: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fetcher.callCount("/brands?offset="); got != 3 {
		t.Errorf("index fetches = %d, want 3", got)
	}
	if result.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", result.PageCount)
	}
}

func TestPerBrandCapSplitsLimitEvenly(t *testing.T) {
	fetcher := newStubFetcher()
	brandSlugs := make([]string, 5)
	for i := range brandSlugs {
		slug := fmt.Sprintf("brand-%d", i)
		brandSlugs[i] = slug
		products := make([]string, 8)
		for j := range products {
			products[j] = fmt.Sprintf("brand-%d-item-%d", i, j)
			fetcher.addProductPage(products[j], fmt.Sprintf("Brand %d Item %d", i, j))
		}
		fetcher.addBrandPage(slug, products...)
	}
	fetcher.addIndexPage(0, brandSlugs...)

	c := newTestController(t, testConfig(), fetcher)
	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0, ProductLimitPerPage: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.ProductCount != 10 {
		t.Errorf("ProductCount = %d, want 10", result.ProductCount)
	}
	if result.BrandCount != 5 || result.PageCount != 1 {
		t.Errorf("result = %+v, want 5 brands over 1 page", result)
	}
	if got := fetcher.callCount("/products/"); got != 10 {
		t.Errorf("product fetches = %d, want 10", got)
	}

	page, ok := c.Page(0)
	if !ok {
		t.Fatalf("bucket for offset 0 missing")
	}
	if !page.IsComplete || page.IsCurrentlyProcessing {
		t.Errorf("bucket flags = %+v", page)
	}
	for _, brand := range page.Brands {
		if !brand.IsScraped || brand.ProductCount != 2 {
			t.Errorf("brand %s = %+v, want scraped with 2 products", brand.Name, brand)
		}
	}
	if len(page.Products) != 10 {
		t.Errorf("bucket products = %d, want 10", len(page.Products))
	}
}

func TestConfigLimitAppliesWhenOptionsOmitIt(t *testing.T) {
	fetcher := newStubFetcher()
	products := make([]string, 8)
	for j := range products {
		products[j] = fmt.Sprintf("item-%d", j)
		fetcher.addProductPage(products[j], fmt.Sprintf("Item %d", j))
	}
	fetcher.addIndexPage(0, "brand-a")
	fetcher.addBrandPage("brand-a", products...)

	cfg := testConfig()
	cfg.ProductLimitPerPage = 2
	c := newTestController(t, cfg, fetcher)

	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ProductCount != 2 {
		t.Errorf("ProductCount = %d, want the configured limit of 2", result.ProductCount)
	}
}

func TestDuplicateProductsScrapedOnce(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "brand-a", "brand-b")
	fetcher.addProductPage("shared-item", "Shared Item")
	fetcher.addProductPage("own-item", "Own Item")
	fetcher.addBrandPage("brand-a", "shared-item")
	fetcher.addBrandPage("brand-b", "shared-item", "own-item")

	c := newTestController(t, testConfig(), fetcher)
	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.ProductCount != 2 {
		t.Errorf("ProductCount = %d, want 2", result.ProductCount)
	}
	if got := fetcher.callCount("/products/shared-item"); got != 1 {
		t.Errorf("shared product fetched %d times, want 1", got)
	}
}

func TestIndexPageFailureHaltsRun(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "brand-a")
	fetcher.addBrandPage("brand-a")
	fetcher.errs[indexURL(1)] = &fetch.Error{Status: 502, Message: "bad gateway"}

	c := newTestController(t, testConfig(), fetcher)
	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Aborted {
		t.Errorf("index failure must end the run, got %+v", result)
	}
	if got := fetcher.callCount("/brands?offset="); got != 2 {
		t.Errorf("index fetches = %d, want 2 (offset 2 never attempted)", got)
	}
	if got := c.Status().Phase; got != PhaseAborted {
		t.Errorf("phase = %q, want %q", got, PhaseAborted)
	}
}

func TestBrandScanFailureIsSkipped(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "broken-brand", "brand-b")
	fetcher.errs[testSite+"/brands/broken-brand"] = &fetch.Error{Status: 500, Message: "boom"}
	fetcher.addProductPage("item-b", "Item B")
	fetcher.addBrandPage("brand-b", "item-b")

	c := newTestController(t, testConfig(), fetcher)
	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Aborted {
		t.Errorf("a failed brand scan must not abort the run")
	}
	if result.ProductCount != 1 || result.BrandCount != 2 {
		t.Errorf("result = %+v, want 1 product from 2 brands", result)
	}
	if result.ErrorCount != 1 || len(result.FailedURLs) != 1 {
		t.Errorf("failure bookkeeping = %+v", result)
	}

	page, _ := c.Page(0)
	if !page.Brands[0].IsScraped || page.Brands[0].ProductCount != 0 {
		t.Errorf("failed brand status = %+v, want scraped with 0 products", page.Brands[0])
	}
}

func TestMissingAPIKeyFailsBeforeFetching(t *testing.T) {
	fetcher := newStubFetcher()
	cfg := testConfig()
	cfg.APIKey = ""
	c := newTestController(t, cfg, fetcher)

	if _, err := c.Run(StartOptions{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("no fetch may happen without a credential, got %v", fetcher.calls)
	}
}

func TestLocalFallbackSatisfiesCredentialCheck(t *testing.T) {
	fetcher := newStubFetcher()
	cfg := testConfig()
	cfg.APIKey = ""
	cfg.LocalFallback = true
	c := newTestController(t, cfg, fetcher)

	if _, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestStartWhileRunning(t *testing.T) {
	fetcher := newStubFetcher()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fetcher.hook = func(string) {
		once.Do(func() { close(started) })
		<-release
	}

	c := newTestController(t, testConfig(), fetcher)
	if err := c.Start(StartOptions{StartOffset: 0, EndOffset: 0}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	if err := c.Start(StartOptions{StartOffset: 0, EndOffset: 0}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second start err = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	waitFor(t, func() bool { return !c.Status().Running }, "run to finish")
}

func TestAbortDuringProductScrape(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "brand-a")
	products := []string{"item-0", "item-1", "item-2"}
	for _, p := range products {
		fetcher.addProductPage(p, "Item "+p)
	}
	fetcher.addBrandPage("brand-a", products...)

	c := newTestController(t, testConfig(), fetcher)
	fetcher.hook = func(url string) {
		if strings.Contains(url, "/products/") {
			c.Abort()
		}
	}

	result, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Aborted {
		t.Fatalf("result.Aborted = false, want true")
	}
	if got := fetcher.callCount("/products/"); got != 1 {
		t.Errorf("product fetches after abort = %d, want 1 (the in-flight unit)", got)
	}
	if got := c.Status().Phase; got != PhaseAborted {
		t.Errorf("phase = %q, want %q", got, PhaseAborted)
	}

	logs := c.Logs()
	if len(logs) == 0 {
		t.Fatalf("no logs recorded")
	}
	last := logs[len(logs)-1]
	if last.Type != models.LogWarning || !strings.Contains(last.Message, "aborted") {
		t.Errorf("final log = %+v, want an abort warning", last)
	}
}

func TestPauseBlocksBetweenUnits(t *testing.T) {
	fetcher := newStubFetcher()
	var once sync.Once
	c := newTestController(t, testConfig(), fetcher)
	fetcher.hook = func(url string) {
		once.Do(func() { c.TogglePause() })
	}

	if err := c.Start(StartOptions{StartOffset: 0, EndOffset: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return c.Status().Paused }, "pause to take effect")

	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount("/brands?offset="); got != 1 {
		t.Fatalf("paused run kept fetching: index fetches = %d, want 1", got)
	}
	if !c.Status().Running {
		t.Fatalf("paused run must still report running")
	}

	if paused := c.TogglePause(); paused {
		t.Fatalf("TogglePause should resume, reported still paused")
	}
	waitFor(t, func() bool { return !c.Status().Running }, "run to finish after resume")

	if got := fetcher.callCount("/brands?offset="); got != 2 {
		t.Errorf("index fetches after resume = %d, want 2", got)
	}
	if got := c.Status().Phase; got != PhaseCompleted {
		t.Errorf("phase = %q, want %q", got, PhaseCompleted)
	}
}

func TestTogglePauseWithoutRun(t *testing.T) {
	c := newTestController(t, testConfig(), newStubFetcher())
	if c.TogglePause() {
		t.Fatalf("TogglePause before any run must report unpaused")
	}
}

func TestResetClearsAccumulatedState(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addIndexPage(0, "brand-a")
	fetcher.addProductPage("item-0", "Item 0")
	fetcher.addBrandPage("brand-a", "item-0")

	c := newTestController(t, testConfig(), fetcher)
	if _, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(c.Products()) != 1 {
		t.Fatalf("setup run scraped %d products, want 1", len(c.Products()))
	}

	c.Reset()

	status := c.Status()
	if status.Running || status.Phase != PhaseIdle || status.ProductCount != 0 || status.PageCount != 0 {
		t.Errorf("status after reset = %+v", status)
	}
	if len(c.Logs()) != 0 {
		t.Errorf("logs survived reset")
	}
	if c.Result() != nil {
		t.Errorf("result survived reset")
	}

	// The dedup cache clears too, so a rerun revisits the same product.
	if _, err := c.Run(StartOptions{StartOffset: 0, EndOffset: 0}); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if got := fetcher.callCount("/products/item-0"); got != 2 {
		t.Errorf("product fetched %d times across reset, want 2", got)
	}
}

func TestStartOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    StartOptions
		auto    bool
		wantErr bool
	}{
		{name: "valid range", opts: StartOptions{StartOffset: 0, EndOffset: 3}},
		{name: "negative start", opts: StartOptions{StartOffset: -1}, wantErr: true},
		{name: "end before start", opts: StartOptions{StartOffset: 5, EndOffset: 2}, wantErr: true},
		{name: "end ignored in auto mode", opts: StartOptions{StartOffset: 5, EndOffset: 2}, auto: true},
		{name: "negative limit", opts: StartOptions{ProductLimitPerPage: -3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate(tt.auto)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubMapper struct {
	*stubFetcher
	links   []string
	mapErr  error
	gotOpts fetch.MapOptions
}

func (m *stubMapper) Map(_ context.Context, _ string, opts fetch.MapOptions) ([]string, error) {
	m.gotOpts = opts
	return m.links, m.mapErr
}

func TestMapProductURLs(t *testing.T) {
	mapper := &stubMapper{
		stubFetcher: newStubFetcher(),
		links: []string{
			testSite + "/products/item-a",
			testSite + "/products/item-a",
			testSite + "/products/item-b?variant=2",
			testSite + "/brands/brand-a",
			testSite + "/products/item-c",
		},
	}
	c := newTestController(t, testConfig(), mapper)

	refs, err := c.MapProductURLs(context.Background(), 0)
	if err != nil {
		t.Fatalf("MapProductURLs: %v", err)
	}

	if len(refs) != 2 || refs[0].URL != testSite+"/products/item-a" || refs[1].URL != testSite+"/products/item-c" {
		t.Fatalf("refs = %+v, want deduplicated product pages only", refs)
	}
	if mapper.gotOpts.Search != "products" {
		t.Errorf("search = %q, want products", mapper.gotOpts.Search)
	}
	if mapper.gotOpts.Limit != defaultMapLimit {
		t.Errorf("limit = %d, want default %d", mapper.gotOpts.Limit, defaultMapLimit)
	}
}

func TestMapProductURLsRequiresCredential(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	cfg.LocalFallback = true
	c := newTestController(t, cfg, &stubMapper{stubFetcher: newStubFetcher()})

	if _, err := c.MapProductURLs(context.Background(), 10); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestMapProductURLsWithoutMapper(t *testing.T) {
	c := newTestController(t, testConfig(), newStubFetcher())
	if _, err := c.MapProductURLs(context.Background(), 10); err == nil {
		t.Fatalf("expected error for a fetcher without mapping support")
	}
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"network", &fetch.Error{Status: 0, Message: "refused"}, "network"},
		{"rate limited", &fetch.Error{Status: 429}, "rate_limited"},
		{"upstream", &fetch.Error{Status: 503}, "upstream"},
		{"rejected", &fetch.Error{Status: 403}, "rejected"},
		{"aborted sentinel", ErrAborted, "aborted"},
		{"cancelled context", context.Canceled, "aborted"},
		{"other", errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCategory(tt.err); got != tt.want {
				t.Fatalf("errorCategory = %q, want %q", got, tt.want)
			}
		})
	}
}
