package collector

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// ddgResponse is the subset of the DuckDuckGo instant answer payload we read
type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

func (c *HTTPCollector) searchWeb(ctx context.Context, topic string) []WebResult {
	q := url.Values{}
	q.Set("q", topic)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	body, err := c.get(ctx, SourceWebSearch, c.cfg.DuckDuckGoURL+"?"+q.Encode(), "application/json")
	if err != nil {
		c.record(SourceWebSearch, err, 0)
		return nil
	}
	var resp ddgResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.record(SourceWebSearch, fmt.Errorf("failed to decode search response: %w", err), 0)
		return nil
	}

	var results []WebResult
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		results = append(results, WebResult{
			Title:   resp.Heading,
			URL:     resp.AbstractURL,
			Snippet: resp.AbstractText,
			Source:  "duckduckgo",
		})
	}
	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(results) >= c.cfg.MaxWebResults {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.FirstURL == "" || t.Text == "" {
				continue
			}
			title := t.Text
			if i := strings.Index(title, " - "); i > 0 {
				title = title[:i]
			}
			results = append(results, WebResult{
				Title:   title,
				URL:     t.FirstURL,
				Snippet: t.Text,
				Source:  "duckduckgo",
			})
		}
	}
	walk(resp.RelatedTopics)

	c.record(SourceWebSearch, nil, len(results))
	c.logger.Debug("Web search results", zap.String("topic", topic), zap.Int("count", len(results)))
	return results
}

type wikiSummaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (c *HTTPCollector) wikipediaSummary(ctx context.Context, topic string) *WikiSummary {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", topic)
	q.Set("limit", "3")
	q.Set("format", "json")

	body, err := c.get(ctx, SourceWikipedia, c.cfg.WikipediaAPIURL+"?"+q.Encode(), "application/json")
	if err != nil {
		c.record(SourceWikipedia, err, 0)
		return nil
	}
	// opensearch answers [query, [titles], [descriptions], [urls]]
	var search []json.RawMessage
	var titles []string
	if err := json.Unmarshal(body, &search); err != nil || len(search) < 2 {
		c.record(SourceWikipedia, fmt.Errorf("unexpected search response"), 0)
		return nil
	}
	if err := json.Unmarshal(search[1], &titles); err != nil || len(titles) == 0 {
		c.record(SourceWikipedia, nil, 0)
		return nil
	}

	pageURL := c.cfg.WikipediaRESTURL + url.PathEscape(strings.ReplaceAll(titles[0], " ", "_"))
	body, err = c.get(ctx, SourceWikipedia, pageURL, "application/json")
	if err != nil {
		c.record(SourceWikipedia, err, 0)
		return nil
	}
	var page wikiSummaryResponse
	if err := json.Unmarshal(body, &page); err != nil {
		c.record(SourceWikipedia, fmt.Errorf("failed to decode summary: %w", err), 0)
		return nil
	}
	if page.Extract == "" {
		c.record(SourceWikipedia, nil, 0)
		return nil
	}

	c.record(SourceWikipedia, nil, 1)
	return &WikiSummary{
		Title:   page.Title,
		Summary: page.Extract,
		URL:     page.ContentURLs.Desktop.Page,
		Source:  "wikipedia",
	}
}

type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

func (c *HTTPCollector) newsArticles(ctx context.Context, topic string) []NewsArticle {
	needle := strings.ToLower(topic)
	var (
		articles []NewsArticle
		lastErr  error
	)

	for _, feedURL := range c.cfg.NewsFeeds {
		body, err := c.get(ctx, SourceNews, feedURL, "application/rss+xml, application/xml")
		if err != nil {
			lastErr = err
			c.logger.Warn("Failed to fetch feed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		var feed rssFeed
		if err := xml.Unmarshal(body, &feed); err != nil {
			lastErr = err
			c.logger.Warn("Failed to parse feed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}

		source := feed.Channel.Title
		if source == "" {
			source = "Unknown"
		}
		items := feed.Channel.Items
		if len(items) > c.cfg.EntriesPerFeed {
			items = items[:c.cfg.EntriesPerFeed]
		}
		for _, item := range items {
			if !strings.Contains(strings.ToLower(item.Title), needle) &&
				!strings.Contains(strings.ToLower(item.Description), needle) {
				continue
			}
			articles = append(articles, NewsArticle{
				Title:     strings.TrimSpace(item.Title),
				Summary:   strings.TrimSpace(stripTags(item.Description)),
				URL:       strings.TrimSpace(item.Link),
				Published: item.PubDate,
				Source:    source,
			})
		}
	}

	if len(articles) > c.cfg.MaxNewsArticles {
		articles = articles[:c.cfg.MaxNewsArticles]
	}
	if len(articles) == 0 && lastErr != nil {
		c.record(SourceNews, lastErr, 0)
		return nil
	}
	c.record(SourceNews, nil, len(articles))
	return articles
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *HTTPCollector) marketData(ctx context.Context, topic string) []Quote {
	symbols := ExtractSymbols(topic)
	if len(symbols) > c.cfg.MaxSymbols {
		symbols = symbols[:c.cfg.MaxSymbols]
	}

	var quotes []Quote
	for _, symbol := range symbols {
		q, err := c.quote(ctx, symbol)
		if err != nil {
			c.logger.Warn("Market data retrieval failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		quotes = append(quotes, q)
	}
	c.record(SourceMarketData, nil, len(quotes))
	return quotes
}

func (c *HTTPCollector) quote(ctx context.Context, symbol string) (Quote, error) {
	q := url.Values{}
	q.Set("range", "1mo")
	q.Set("interval", "1d")

	body, err := c.get(ctx, SourceMarketData, c.cfg.MarketURL+url.PathEscape(symbol)+"?"+q.Encode(), "application/json")
	if err != nil {
		return Quote{}, err
	}
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Quote{}, fmt.Errorf("failed to decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return Quote{}, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("no chart data for %s", symbol)
	}

	r := resp.Chart.Result[0]
	var closes []float64
	if len(r.Indicators.Quote) > 0 {
		for _, v := range r.Indicators.Quote[0].Close {
			if v != nil {
				closes = append(closes, *v)
			}
		}
	}

	out := Quote{
		Symbol:      symbol,
		CompanyName: firstNonEmpty(r.Meta.LongName, r.Meta.ShortName, "Unknown"),
		MarketCap:   "N/A",
		Sector:      "N/A",
		Currency:    r.Meta.Currency,
		Source:      "yahoo_finance",
		RetrievedAt: c.now().Format(time.RFC3339),
	}
	switch {
	case len(closes) > 0:
		last := closes[len(closes)-1]
		out.CurrentPrice = &last
		if len(closes) > 1 && closes[0] != 0 {
			out.PriceChange30d = (last - closes[0]) / closes[0] * 100
		}
	case r.Meta.RegularMarketPrice > 0:
		p := r.Meta.RegularMarketPrice
		out.CurrentPrice = &p
	}
	return out, nil
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func (c *HTTPCollector) detailedContent(ctx context.Context, web []WebResult) []PageContent {
	n := c.cfg.MaxScrapedPages
	if len(web) < n {
		n = len(web)
	}

	var pages []PageContent
	var lastErr error
	for _, r := range web[:n] {
		page, err := c.scrape(ctx, r.URL)
		if err != nil {
			lastErr = err
			c.logger.Warn("Web scraping failed", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 && lastErr != nil {
		c.record(SourceDetailedContent, lastErr, 0)
		return nil
	}
	c.record(SourceDetailedContent, nil, len(pages))
	return pages
}

func (c *HTTPCollector) scrape(ctx context.Context, pageURL string) (PageContent, error) {
	body, err := c.get(ctx, SourceDetailedContent, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return PageContent{}, err
	}
	mt := mimetype.Detect(body)
	if !mt.Is("text/html") && !mt.Is("application/xhtml+xml") {
		return PageContent{}, fmt.Errorf("unsupported content type %s", mt.String())
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return PageContent{}, fmt.Errorf("failed to convert page: %w", err)
	}
	text := strings.Join(strings.Fields(markdown), " ")

	var title string
	if m := titlePattern.FindSubmatch(body); m != nil {
		title = strings.TrimSpace(html.UnescapeString(string(m[1])))
	}

	return PageContent{
		URL:       pageURL,
		Title:     title,
		Content:   text,
		WordCount: len(strings.Fields(text)),
		ScrapedAt: c.now().Format(time.RFC3339),
	}, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
