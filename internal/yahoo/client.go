// Package yahoo implements domain.MarketData against the Yahoo Finance JSON API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockbot/internal/domain"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultCookieURL = "https://fc.yahoo.com"

	// DefaultUserAgent mimics a desktop browser; Yahoo rejects bare Go clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/91.0.4472.124 Safari/537.36"

	summaryModules = "price,summaryDetail,financialData,assetProfile"
	errBodyLimit   = 1024

	// crumbRetryAfter spaces out handshake attempts after a failure.
	crumbRetryAfter = 15 * time.Minute
)

type Config struct {
	BaseURL      string
	CookieURL    string
	UserAgent    string
	Timeout      time.Duration
	SearchLimit  int
	DisableCrumb bool // skip the cookie/crumb handshake (tests, proxies)
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// Client is a Yahoo Finance client. Safe for concurrent use.
type Client struct {
	baseURL      string
	cookieURL    string
	userAgent    string
	searchLimit  int
	disableCrumb bool
	http         *http.Client
	logger       *slog.Logger
	now          func() time.Time

	crumbMu    sync.Mutex
	crumb      string
	crumbBusy  bool
	crumbTried time.Time
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CookieURL == "" {
		cfg.CookieURL = DefaultCookieURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		cookieURL:    cfg.CookieURL,
		userAgent:    cfg.UserAgent,
		searchLimit:  cfg.SearchLimit,
		disableCrumb: cfg.DisableCrumb,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

var _ domain.MarketData = (*Client)(nil)

// FetchQuote returns the quote summary for symbol. Yahoo's "Not Found"
// answer yields an empty quote rather than an error.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	params := url.Values{"modules": {summaryModules}}
	if crumb := c.ensureCrumb(ctx); crumb != "" {
		params.Set("crumb", crumb)
	}
	endpoint := c.baseURL + "/v10/finance/quoteSummary/" + url.PathEscape(symbol) + "?" + params.Encode()

	var resp yfSummaryResponse
	if err := c.getJSON(ctx, "quote", endpoint, &resp); err != nil {
		if isNotFound(err) {
			return &domain.Quote{Symbol: symbol}, nil
		}
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		if e.Code == "Not Found" {
			return &domain.Quote{Symbol: symbol}, nil
		}
		return nil, fmt.Errorf("yahoo quote %s: %s", symbol, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return &domain.Quote{Symbol: symbol}, nil
	}
	return toQuote(symbol, resp.QuoteSummary.Result[0]), nil
}

func toQuote(symbol string, r yfSummaryResult) *domain.Quote {
	q := &domain.Quote{Symbol: symbol}
	if p := r.Price; p != nil {
		q.LongName = p.LongName
		q.ShortName = p.ShortName
		q.Currency = p.Currency
		q.Exchange = p.Exchange
		q.RegularMarketPrice = p.RegularMarketPrice.Raw
		q.PreviousClose = p.RegularMarketPreviousClose.Raw
	}
	if d := r.SummaryDetail; d != nil {
		if d.PreviousClose.Raw != nil {
			q.PreviousClose = d.PreviousClose.Raw
		}
		if q.Currency == "" {
			q.Currency = d.Currency
		}
	}
	if f := r.FinancialData; f != nil {
		q.CurrentPrice = f.CurrentPrice.Raw
	}
	if a := r.AssetProfile; a != nil {
		q.Website = a.Website
	}
	return q
}

// FetchHistory returns daily closes for the range ending now, oldest first.
// Days without a close are skipped. An unknown symbol yields no points.
func (c *Client) FetchHistory(ctx context.Context, symbol string, rng domain.HistoryRange) ([]domain.PricePoint, error) {
	params := url.Values{"interval": {"1d"}, "includePrePost": {"false"}}
	if r, ok := rangeParam(rng); ok {
		params.Set("range", r)
	} else {
		now := c.now()
		params.Set("period1", strconv.FormatInt(rng.Start(now).Unix(), 10))
		params.Set("period2", strconv.FormatInt(now.Unix(), 10))
	}
	endpoint := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	var resp yfChartResponse
	if err := c.getJSON(ctx, "history", endpoint, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo history %s %s: %w", symbol, rng, err)
	}
	if e := resp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo history %s %s: %s", symbol, rng, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return parseCloses(resp.Chart.Result[0]), nil
}

func parseCloses(result yfChartResult) []domain.PricePoint {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	closes := result.Indicators.Quote[0].Close
	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, domain.PricePoint{Date: time.Unix(ts, 0).UTC(), Close: *closes[i]})
	}
	return points
}

// rangeParam maps ranges Yahoo accepts natively to its range parameter.
func rangeParam(r domain.HistoryRange) (string, bool) {
	switch {
	case r.Months == 0 && (r.Days == 1 || r.Days == 5):
		return strconv.Itoa(r.Days) + "d", true
	case r.Days == 0 && (r.Months == 1 || r.Months == 3 || r.Months == 6):
		return strconv.Itoa(r.Months) + "mo", true
	case r.Days == 0 && r.Months > 0 && r.Months%12 == 0:
		switch years := r.Months / 12; years {
		case 1, 2, 5, 10:
			return strconv.Itoa(years) + "y", true
		}
	}
	return "", false
}

// SearchSymbols returns up to the configured number of matching tickers.
func (c *Client) SearchSymbols(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	params := url.Values{
		"q":           {query},
		"quotesCount": {strconv.Itoa(c.searchLimit)},
		"newsCount":   {"0"},
	}
	endpoint := c.baseURL + "/v1/finance/search?" + params.Encode()

	var resp yfSearchResponse
	if err := c.getJSON(ctx, "search", endpoint, &resp); err != nil {
		return nil, fmt.Errorf("yahoo search %q: %w", query, err)
	}
	matches := make([]domain.SymbolMatch, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		matches = append(matches, domain.SymbolMatch{Symbol: q.Symbol, Name: coalesce(q.ShortName, q.LongName)})
		if len(matches) == c.searchLimit {
			break
		}
	}
	return matches, nil
}

// Ping runs a cheap search to check that Yahoo is reachable.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.SearchSymbols(ctx, "SPY")
	return time.Since(start), err
}

// ensureCrumb returns Yahoo's crumb, running the cookie/crumb handshake when
// none is known. After a failed attempt requests go out without a crumb until
// crumbRetryAfter has passed. Callers never wait on another caller's
// handshake.
func (c *Client) ensureCrumb(ctx context.Context) string {
	if c.disableCrumb {
		return ""
	}
	c.crumbMu.Lock()
	if c.crumb != "" || c.crumbBusy ||
		(!c.crumbTried.IsZero() && c.now().Sub(c.crumbTried) < crumbRetryAfter) {
		crumb := c.crumb
		c.crumbMu.Unlock()
		return crumb
	}
	c.crumbBusy = true
	c.crumbTried = c.now()
	c.crumbMu.Unlock()

	crumb := c.fetchCrumb(ctx)

	c.crumbMu.Lock()
	c.crumb = crumb
	c.crumbBusy = false
	c.crumbMu.Unlock()
	return crumb
}

func (c *Client) fetchCrumb(ctx context.Context) string {
	if resp, err := c.do(ctx, c.cookieURL); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	resp, err := c.do(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil {
		c.logger.Debug("yahoo crumb unavailable", "err", err)
		return ""
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Warn("yahoo crumb unavailable", "status", resp.StatusCode, "err", err)
		return ""
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) do(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return c.http.Do(req)
}

// getJSON decodes a 2xx response into out. Other statuses become a
// *domain.UpstreamError carrying the start of the body.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return &domain.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// isNotFound reports whether err is Yahoo's 404 "Not Found" answer.
func isNotFound(err error) bool {
	var ue *domain.UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound && strings.Contains(ue.Body, "Not Found")
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
