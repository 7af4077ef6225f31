// Package main is the sitesearch CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/cli"
	"github.com/hyperjump/sitesearch/internal/config"
	"github.com/hyperjump/sitesearch/internal/crawler"
	"github.com/hyperjump/sitesearch/internal/indexer"
	"github.com/hyperjump/sitesearch/internal/models"
	"github.com/hyperjump/sitesearch/internal/morph"
	"github.com/hyperjump/sitesearch/internal/search"
	"github.com/hyperjump/sitesearch/internal/server"
	"github.com/hyperjump/sitesearch/internal/stats"
	"github.com/hyperjump/sitesearch/internal/storage"
	"github.com/hyperjump/sitesearch/internal/watcher"
	"github.com/hyperjump/sitesearch/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/sitesearch/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory so that running from the project dir uses
// the project's config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "crawl":
		runCrawl()
	case "start":
		runLifecycle("/api/startIndexing", "Indexing started")
	case "stop":
		runLifecycle("/api/stopIndexing", "Indexing stopped")
	case "index-page":
		runIndexPage()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("sitesearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config, builds the logger and wires every component.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
		zap.Int("sites", len(cfg.Sites)),
	)
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	configWatcher := watcher.NewWatcher(resolved,
		watcher.SitesReloader(components.Sites, logger),
		watcher.WithLogger(logger))
	if err := configWatcher.Start(watchCtx); err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
	}

	srv := server.NewServer(components.Engine, components.Crawler, components.Stats, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	configWatcher.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if components.Crawler.IsIndexing() {
		if err := components.Crawler.Stop(ctx); err != nil {
			logger.Warn("stop indexing failed", zap.Error(err))
		}
	}
	_ = srv.Stop(ctx)
}

// runCrawl performs a full crawl in-process and prints the resulting statistics.
func runCrawl() {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if err := components.Crawler.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Crawl failed: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		stopCtx, cancel := context.WithTimeout(ctx, cfg.Crawler.StopTimeout+time.Second)
		defer cancel()
		if err := components.Crawler.Stop(stopCtx); err != nil {
			logger.Warn("stop indexing failed", zap.Error(err))
		}
	}()

	components.Crawler.Wait()
	st, err := components.Stats.Statistics(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Statistics failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatistics(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runLifecycle(endpoint, done string) {
	fs := flag.NewFlagSet("lifecycle", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(strings.TrimRight(*serverURL, "/") + endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(done)
}

func runIndexPage() {
	fs := flag.NewFlagSet("index-page", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = index in-process)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: sitesearch index-page [flags] <url>")
		os.Exit(1)
	}
	pageURL := fs.Arg(0)

	if *serverURL != "" {
		resp, err := http.PostForm(strings.TrimRight(*serverURL, "/")+"/api/indexPage", url.Values{"url": {pageURL}})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if err := checkResponse(resp); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Page queued: %s\n", pageURL)
		return
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	if err := components.Crawler.IndexPage(context.Background(), pageURL); err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	components.Crawler.Wait()
	fmt.Printf("Page indexed: %s\n", pageURL)
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: sitesearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  sitesearch search леопард
  sitesearch search --site https://example.com --limit 5 новости спорта
  sitesearch search --server "" --output json поиск
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return ""
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the database directly)")
	site := fs.String("site", "", "restrict results to one configured site")
	offset := fs.Int("offset", 0, "number of results to skip")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	query := &models.SearchQuery{Query: queryStr, Site: *site, Offset: *offset, Limit: *limit}

	var response *models.SearchResponse
	if *serverURL != "" {
		var err error
		response, err = searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		response, err = components.Engine.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchURL builds the GET URL of the search endpoint for query.
func searchURL(serverURL string, query *models.SearchQuery) string {
	v := url.Values{}
	v.Set("query", query.Query)
	if query.Site != "" {
		v.Set("site", query.Site)
	}
	if query.Offset > 0 {
		v.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Limit > 0 {
		v.Set("limit", strconv.Itoa(query.Limit))
	}
	return strings.TrimRight(serverURL, "/") + "/api/search?" + v.Encode()
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	resp, err := http.Get(searchURL(serverURL, query))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// checkResponse turns a non-200 API answer into an error carrying the server's message.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var st *models.Statistics
	var dbLine string
	if *serverURL != "" {
		var err error
		st, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		st, err = components.Stats.Statistics(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		if size, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
			dbLine = fmt.Sprintf("\ndatabase: %s (%d bytes)\n", cfg.Storage.DatabasePath, size)
		}
	}
	if err := cli.WriteStatistics(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText && dbLine != "" {
		fmt.Print(dbLine)
	}
}

func statusViaHTTP(serverURL string) (*models.Statistics, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/statistics")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var out struct {
		Statistics *models.Statistics `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Statistics == nil {
		return nil, fmt.Errorf("decode response: missing statistics")
	}
	return out.Statistics, nil
}

// Components holds the wired application services.
type Components struct {
	Storage storage.Storage
	Sites   *config.SiteRegistry
	Morph   *morph.Engine
	Indexer *indexer.Indexer
	Crawler *crawler.Crawler
	Engine  *search.Engine
	Stats   *stats.Service
}

// Close waits for background page jobs and closes storage.
func (c *Components) Close() {
	if c.Crawler != nil && !c.Crawler.IsIndexing() {
		c.Crawler.Wait()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	dict, err := morph.OpenDictionary(cfg.Morphology.DictionaryPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("morphology: %w", err)
	}
	if cfg.Morphology.DictionaryPath == "" {
		logger.Warn("no morphology dictionary configured, indexing snowball stems instead of lemmas",
			zap.String("setting", "morphology.dictionary_path"))
	}
	m := morph.NewEngine(dict, cfg.Morphology.CacheSize)
	sites := config.NewSiteRegistry(cfg.Sites)
	idx := indexer.NewIndexer(store, m, indexer.WithLogger(logger))
	crawl := crawler.New(store, idx, crawler.NewHTTPFetcher(cfg.Crawler), sites, cfg.Crawler,
		crawler.WithLogger(logger))

	return &Components{
		Storage: store,
		Sites:   sites,
		Morph:   m,
		Indexer: idx,
		Crawler: crawl,
		Engine:  search.NewEngine(store, m, sites, cfg.Search, search.WithLogger(logger)),
		Stats:   stats.NewService(store, sites, crawl),
	}, nil
}

func printUsage() {
	fmt.Println(`sitesearch - crawl sites and search them by Russian word lemmas

Usage:
  sitesearch <command> [flags]

Commands:
  server       Start the HTTP API server
  crawl        Crawl every configured site in-process and print statistics
  start        Ask the server to start indexing
  stop         Ask the server to stop indexing
  index-page   Re-index a single page: sitesearch index-page <url>
  search       Search indexed pages: sitesearch search <query>
  status       Show corpus statistics
  version      Print the version
  help         Show this help

Run "sitesearch <command> -h" for command flags.`)
}
