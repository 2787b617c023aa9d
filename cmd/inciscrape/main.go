package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viniciusgf/go-scrape-inci/config"
	"github.com/viniciusgf/go-scrape-inci/export"
	"github.com/viniciusgf/go-scrape-inci/fetch"
	"github.com/viniciusgf/go-scrape-inci/models"
	"github.com/viniciusgf/go-scrape-inci/scraper"
	"github.com/viniciusgf/go-scrape-inci/server"
)

func main() {
	defaultCfg := config.DefaultConfig()
	apiKeyDefault, _ := config.EnvString("FIRECRAWL_API_KEY")
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("SCRAPER_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	limitDefault := 0
	if value, ok, err := config.EnvInt("SCRAPER_PRODUCT_LIMIT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PRODUCT_LIMIT: %v\n", err)
		os.Exit(1)
	} else if ok {
		limitDefault = value
	}

	apiKey := flag.String("api-key", apiKeyDefault, "Render service API key (FIRECRAWL_API_KEY)")
	siteURL := flag.String("site-url", defaultCfg.SiteURL, "Root URL of the ingredient site")
	startOffset := flag.Int("start", 0, "First brand-index offset (inclusive)")
	endOffset := flag.Int("end", 0, "Last brand-index offset (inclusive)")
	productLimit := flag.Int("limit", limitDefault, "Product cap per index page (0 = unlimited)")
	autoPaginate := flag.Bool("auto", false, "Ignore -end and stop at the first empty index page")
	mapProducts := flag.Bool("map", false, "List every known product URL in one bulk call, then exit")
	pageDelayMs := flag.Int("page-delay", int(defaultCfg.PageDelay/time.Millisecond), "Delay between index page fetches (milliseconds)")
	brandDelayMs := flag.Int("brand-delay", int(defaultCfg.BrandDelay/time.Millisecond), "Delay between brand scans (milliseconds)")
	productDelayMs := flag.Int("product-delay", int(defaultCfg.ProductDelay/time.Millisecond), "Delay between product scrapes (milliseconds)")
	localFallback := flag.Bool("local-fallback", false, "Fall back to direct HTTP fetching when the render service fails")
	outputDir := flag.String("output", outputDefault, "Directory for exported JSON")
	serveAddr := flag.String("serve", "", "Run the control API on this address instead of a one-shot scrape")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.APIKey = *apiKey
	cfg.SiteURL = *siteURL
	cfg.ProductLimitPerPage = *productLimit
	cfg.AutoPaginate = *autoPaginate
	cfg.PageDelay = time.Duration(*pageDelayMs) * time.Millisecond
	cfg.BrandDelay = time.Duration(*brandDelayMs) * time.Millisecond
	cfg.ProductDelay = time.Duration(*productDelayMs) * time.Millisecond
	cfg.LocalFallback = *localFallback
	cfg.OutputDir = *outputDir
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	controller, err := scraper.New(cfg, fetcher, nil)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping at the next unit of work")
		controller.Abort()
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(controller.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	if *mapProducts {
		runMap(ctx, controller, *productLimit)
	} else if *serveAddr != "" {
		runServer(ctx, controller, *serveAddr)
	} else {
		runOnce(controller, cfg, scraper.StartOptions{
			StartOffset:         *startOffset,
			EndOffset:           *endOffset,
			ProductLimitPerPage: *productLimit,
		})
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
}

func buildFetcher(cfg *config.Config) (fetch.Fetcher, error) {
	var fetchers []fetch.Fetcher
	if cfg.APIKey != "" {
		opts := []fetch.Option{fetch.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout})}
		if cfg.APIBaseURL != "" {
			opts = append(opts, fetch.WithBaseURL(cfg.APIBaseURL))
		}
		fetchers = append(fetchers, fetch.NewClient(cfg.APIKey, opts...))
	}
	if cfg.LocalFallback {
		local, err := fetch.NewLocal(cfg.SiteURL, cfg.UserAgent, cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, local)
	}
	if len(fetchers) == 1 {
		return fetchers[0], nil
	}
	return fetch.NewChain(fetchers...), nil
}

func runServer(ctx context.Context, controller *scraper.Controller, addr string) {
	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(controller),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("control server shutdown failed", slog.Any("error", err))
		}
	}()

	slog.Info("control server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("control server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func runMap(ctx context.Context, controller *scraper.Controller, limit int) {
	refs, err := controller.MapProductURLs(ctx, limit)
	if err != nil {
		slog.Error("mapping product URLs failed", slog.Any("error", err))
		os.Exit(1)
	}
	for _, ref := range refs {
		fmt.Println(ref.URL)
	}
	slog.Info("mapping complete", slog.Int("total", len(refs)))
}

func runOnce(controller *scraper.Controller, cfg *config.Config, opts scraper.StartOptions) {
	result, err := controller.Run(opts)
	if err != nil {
		slog.Error("scraping failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	products := controller.Products()
	if len(products) > 0 {
		path, err := export.SaveAll(cfg.OutputDir, products, time.Now())
		if err != nil {
			slog.Error("export failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("export written", slog.String("path", path))
	}

	printSummary(result, len(products))
	if result.Aborted {
		os.Exit(1)
	}
}

func printSummary(result *models.RunResult, productCount int) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Aborted {
		fmt.Println("Scrape aborted")
	} else {
		fmt.Println("Scrape complete")
	}
	fmt.Printf("  Pages:        %d\n", result.PageCount)
	fmt.Printf("  Brands:       %d\n", result.BrandCount)
	fmt.Printf("  Products:     %d\n", productCount)
	fmt.Printf("  Errors:       %d\n", result.ErrorCount)
	if len(result.FailedURLs) > 0 {
		fmt.Printf("  Failed URLs:  %d\n", len(result.FailedURLs))
	}
	fmt.Printf("  Duration:     %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
