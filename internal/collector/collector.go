// Package collector gathers multi-source research data for a topic.
package collector

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Source names, in collection order
const (
	SourceWebSearch       = "web_search"
	SourceWikipedia       = "wikipedia"
	SourceNews            = "news"
	SourceMarketData      = "market_data"
	SourceDetailedContent = "detailed_content"
)

// Collector gathers findings for a topic
type Collector interface {
	ComprehensiveResearch(ctx context.Context, topic string, questions []string) (*Research, error)
}

// Research is the raw, per-source output of a collection run
type Research struct {
	Topic        string    `json:"topic"`
	SourcesUsed  []string  `json:"sources_used"`
	Findings     Findings  `json:"findings"`
	TotalSources int       `json:"total_sources"`
	StartedAt    time.Time `json:"research_started_at"`
	CompletedAt  time.Time `json:"research_completed_at"`
}

// Findings holds the heterogeneous source payloads. Nil or empty fields mean the
// source was skipped or returned nothing.
type Findings struct {
	WebSearch       []WebResult   `json:"web_search,omitempty"`
	Wikipedia       *WikiSummary  `json:"wikipedia,omitempty"`
	News            []NewsArticle `json:"news,omitempty"`
	MarketData      []Quote       `json:"market_data,omitempty"`
	DetailedContent []PageContent `json:"detailed_content,omitempty"`
}

type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

type WikiSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

type NewsArticle struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	URL       string `json:"url"`
	Published string `json:"published"`
	Source    string `json:"source"`
}

// Quote is one market data record. Error is set when retrieval for the symbol failed.
type Quote struct {
	Symbol         string   `json:"symbol"`
	CurrentPrice   *float64 `json:"current_price"`
	PriceChange30d float64  `json:"price_change_30d"`
	CompanyName    string   `json:"company_name,omitempty"`
	MarketCap      any      `json:"market_cap,omitempty"`
	Sector         string   `json:"sector,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Source         string   `json:"source,omitempty"`
	RetrievedAt    string   `json:"retrieved_at,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// PageContent is the scraped text of one web page
type PageContent struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	ScrapedAt string `json:"scraped_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// sourcesFor lists the sources that produced data, in collection order
func sourcesFor(f Findings) []string {
	var used []string
	if len(f.WebSearch) > 0 {
		used = append(used, SourceWebSearch)
	}
	if f.Wikipedia != nil {
		used = append(used, SourceWikipedia)
	}
	if len(f.News) > 0 {
		used = append(used, SourceNews)
	}
	if len(f.MarketData) > 0 {
		used = append(used, SourceMarketData)
	}
	if len(f.DetailedContent) > 0 {
		used = append(used, SourceDetailedContent)
	}
	return used
}

var financialKeywords = []string{
	"stock", "stocks", "company", "companies", "market", "markets",
	"share", "shares", "equity", "investment", "trading", "ticker",
	"nasdaq", "nyse", "sp500", "s&p", "dow", "price", "valuation",
	"tesla", "apple", "google", "microsoft", "amazon", "meta",
	"facebook", "netflix", "nvidia", "intel", "amd", "ibm",
	"oracle", "salesforce", "adobe", "twitter", "uber", "lyft",
	"airbnb", "spotify", "zoom", "slack", "dropbox", "paypal",
	"tsla", "aapl", "googl", "msft", "amzn", "nflx", "nvda",
}

// IsFinancialTopic reports whether market data should be collected for topic
func IsFinancialTopic(topic string) bool {
	lower := strings.ToLower(topic)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// companySymbols is ordered so extraction is deterministic
var companySymbols = []struct{ name, symbol string }{
	{"tesla", "TSLA"},
	{"apple", "AAPL"},
	{"microsoft", "MSFT"},
	{"google", "GOOGL"},
	{"alphabet", "GOOGL"},
	{"amazon", "AMZN"},
	{"meta", "META"},
	{"facebook", "META"},
	{"netflix", "NFLX"},
	{"nvidia", "NVDA"},
	{"intel", "INTC"},
	{"amd", "AMD"},
	{"ibm", "IBM"},
	{"oracle", "ORCL"},
	{"salesforce", "CRM"},
	{"adobe", "ADBE"},
	{"uber", "UBER"},
	{"airbnb", "ABNB"},
	{"spotify", "SPOT"},
	{"zoom", "ZM"},
	{"paypal", "PYPL"},
	{"shopify", "SHOP"},
	{"snap", "SNAP"},
	{"coinbase", "COIN"},
	{"walmart", "WMT"},
	{"disney", "DIS"},
	{"nike", "NKE"},
	{"starbucks", "SBUX"},
}

var symbolPattern = regexp.MustCompile(`\b[A-Z]{3,5}\b`)

var defaultSymbols = []string{"AAPL", "MSFT", "GOOGL"}

// ExtractSymbols maps company names and explicit tickers in text to symbols,
// de-duplicated in first-seen order, falling back to a default basket.
func ExtractSymbols(text string) []string {
	var symbols []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	lower := strings.ToLower(text)
	for _, c := range companySymbols {
		if strings.Contains(lower, c.name) {
			add(c.symbol)
		}
	}
	for _, s := range symbolPattern.FindAllString(text, -1) {
		add(s)
	}
	if len(symbols) == 0 {
		return append([]string(nil), defaultSymbols...)
	}
	if len(symbols) > 5 {
		symbols = symbols[:5]
	}
	return symbols
}
