package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/metrics"
	"github.com/RakeshSingh38/multi-agent-ai-system/internal/tracing"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes     = 2 << 20
)

// Config holds the endpoints and limits of the HTTP collector
type Config struct {
	DuckDuckGoURL    string
	WikipediaAPIURL  string
	WikipediaRESTURL string
	MarketURL        string
	NewsFeeds        []string

	MaxWebResults   int
	MaxNewsArticles int
	MaxSymbols      int
	MaxScrapedPages int
	EntriesPerFeed  int

	// RequestsPerSecond bounds outbound calls per remote host
	RequestsPerSecond float64
	Timeout           time.Duration
}

// DefaultConfig returns the public endpoints used in production
func DefaultConfig() Config {
	return Config{
		DuckDuckGoURL:    "https://api.duckduckgo.com/",
		WikipediaAPIURL:  "https://en.wikipedia.org/w/api.php",
		WikipediaRESTURL: "https://en.wikipedia.org/api/rest_v1/page/summary/",
		MarketURL:        "https://query1.finance.yahoo.com/v8/finance/chart/",
		NewsFeeds: []string{
			"https://rss.cnn.com/rss/edition.rss",
			"https://feeds.bbci.co.uk/news/rss.xml",
			"https://www.reuters.com/tools/rss",
		},
		MaxWebResults:     8,
		MaxNewsArticles:   20,
		MaxSymbols:        3,
		MaxScrapedPages:   3,
		EntriesPerFeed:    10,
		RequestsPerSecond: 2,
		Timeout:           10 * time.Second,
	}
}

// HTTPCollector collects from public web APIs. Each source fails independently:
// a failing source is logged and left out of SourcesUsed.
type HTTPCollector struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	wrappers map[string]*circuitbreaker.HTTPWrapper

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
}

// NewHTTPCollector creates a new HTTP collector
func NewHTTPCollector(cfg Config, logger *zap.Logger) *HTTPCollector {
	def := DefaultConfig()
	if cfg.MaxWebResults <= 0 {
		cfg.MaxWebResults = def.MaxWebResults
	}
	if cfg.MaxNewsArticles <= 0 {
		cfg.MaxNewsArticles = def.MaxNewsArticles
	}
	if cfg.MaxSymbols <= 0 {
		cfg.MaxSymbols = def.MaxSymbols
	}
	if cfg.MaxScrapedPages <= 0 {
		cfg.MaxScrapedPages = def.MaxScrapedPages
	}
	if cfg.EntriesPerFeed <= 0 {
		cfg.EntriesPerFeed = def.EntriesPerFeed
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	client := &http.Client{Timeout: cfg.Timeout}
	wrappers := make(map[string]*circuitbreaker.HTTPWrapper)
	for _, source := range []string{SourceWebSearch, SourceWikipedia, SourceNews, SourceMarketData, SourceDetailedContent} {
		wrappers[source] = circuitbreaker.NewHTTPWrapper(client, source, "collector", logger)
	}

	return &HTTPCollector{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		wrappers: wrappers,
		limiters: make(map[string]*rate.Limiter),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ComprehensiveResearch runs the web, encyclopedia, news and market sources concurrently,
// then scrapes the top web results.
func (c *HTTPCollector) ComprehensiveResearch(ctx context.Context, topic string, questions []string) (*Research, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	ctx, span := tracing.StartSpan(ctx, "collector.comprehensive_research")
	defer span.End()

	started := c.now()
	c.logger.Info("Starting comprehensive research", zap.String("topic", topic), zap.Int("questions", len(questions)))

	var (
		findings Findings
		wg       sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		findings.WebSearch = c.searchWeb(ctx, topic)
	}()
	go func() {
		defer wg.Done()
		findings.Wikipedia = c.wikipediaSummary(ctx, topic)
	}()
	go func() {
		defer wg.Done()
		findings.News = c.newsArticles(ctx, topic)
	}()
	if IsFinancialTopic(topic) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			findings.MarketData = c.marketData(ctx, topic)
		}()
	}
	wg.Wait()

	if len(findings.WebSearch) > 0 {
		findings.DetailedContent = c.detailedContent(ctx, findings.WebSearch)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("research cancelled: %w", err)
	}

	used := sourcesFor(findings)
	research := &Research{
		Topic:        topic,
		SourcesUsed:  used,
		Findings:     findings,
		TotalSources: len(used),
		StartedAt:    started,
		CompletedAt:  c.now(),
	}
	c.logger.Info("Research completed", zap.String("topic", topic), zap.Strings("sources", used))
	return research, nil
}

// get performs a rate limited GET through the per-source circuit breaker and returns the body
func (c *HTTPCollector) get(ctx context.Context, source, rawURL string, accept string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.wrappers[source].Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned status %d", u.Host, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *HTTPCollector) limiter(host string) *rate.Limiter {
	c.limMu.Lock()
	defer c.limMu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), 2)
		c.limiters[host] = l
	}
	return l
}

func (c *HTTPCollector) record(source string, err error, count int) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		c.logger.Warn("Source collection failed", zap.String("source", source), zap.Error(err))
	case count == 0:
		outcome = "empty"
	}
	metrics.CollectorSourceResults.WithLabelValues(source, outcome).Inc()
}
