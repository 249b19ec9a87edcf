// Package stock fetches quote, history and chart data for a symbol and
// formats it into replies.
package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stockbot/internal/domain"
	"stockbot/internal/metrics"
)

const (
	defaultHistoryDays = 400
	defaultSearchLimit = 5
	defaultChartWidth  = 1000
	defaultChartHeight = 500
	defaultCurrency    = "USD"
	defaultExchange    = "Unknown"
)

// DefaultReturnPeriods are the trailing windows, in months, shown on a full report.
var DefaultReturnPeriods = []int{1, 3, 12}

type Config struct {
	Market domain.MarketData
	Charts domain.ChartRenderer // nil disables charts
	Logger *slog.Logger

	ReturnPeriods []int
	HistoryDays   int
	SearchLimit   int
	ChartWidth    int
	ChartHeight   int

	Now func() time.Time
}

// Service builds reports from a market-data provider. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	market domain.MarketData
	charts domain.ChartRenderer
	logger *slog.Logger

	returnPeriods []int
	historyDays   int
	searchLimit   int
	chartWidth    int
	chartHeight   int
	now           func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.ReturnPeriods) == 0 {
		cfg.ReturnPeriods = DefaultReturnPeriods
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = defaultHistoryDays
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = defaultChartWidth
	}
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = defaultChartHeight
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		market:        cfg.Market,
		charts:        cfg.Charts,
		logger:        cfg.Logger,
		returnPeriods: sortedPeriods(cfg.ReturnPeriods),
		historyDays:   cfg.HistoryDays,
		searchLimit:   cfg.SearchLimit,
		chartWidth:    cfg.ChartWidth,
		chartHeight:   cfg.ChartHeight,
		now:           cfg.Now,
	}
}

// Report is the full view of one symbol.
type Report struct {
	Name        string
	Symbol      string
	Price       *float64
	Currency    string
	Exchange    string
	Website     string
	DailyChange *float64
	Returns     []PeriodReturn
	ChartMonths int
	Chart       []byte // PNG; nil when the chart could not be produced
}

// Brief is the minimal view: price and daily change only.
type Brief struct {
	Name        string
	Symbol      string
	Price       *float64
	Currency    string
	DailyChange *float64
}

// snapshot is the part of a quote shared by Report and Brief.
type snapshot struct {
	quote *domain.Quote
	name  string
	price *float64
}

// resolve fetches the quote and applies the price precedence. A symbol with
// neither a price nor a name yields domain.ErrNotFound.
func (s *Service) resolve(ctx context.Context, symbol string) (*snapshot, error) {
	q, err := s.market.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = &domain.Quote{Symbol: symbol}
	}

	price := firstPrice(q.CurrentPrice, q.RegularMarketPrice, q.PreviousClose)
	if price == nil {
		hist, err := s.market.FetchHistory(ctx, symbol, domain.HistoryRange{Days: 1})
		if err != nil {
			return nil, fmt.Errorf("latest close: %w", err)
		}
		if len(hist) > 0 {
			last := hist[len(hist)-1].Close
			price = &last
		}
	}

	if price == nil && q.DisplayName() == "" {
		return nil, domain.ErrNotFound
	}
	name := q.DisplayName()
	if name == "" {
		name = symbol
	}
	return &snapshot{quote: q, name: name, price: price}, nil
}

// Brief returns price and daily change for symbol.
func (s *Service) Brief(ctx context.Context, symbol string) (*Brief, error) {
	snap, err := s.resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Brief{
		Name:        snap.name,
		Symbol:      symbol,
		Price:       snap.price,
		Currency:    orDefault(snap.quote.Currency, defaultCurrency),
		DailyChange: dailyChange(snap.price, snap.quote.PreviousClose),
	}, nil
}

// Report returns the full report for symbol with a chart covering chartMonths.
// Trailing returns and the chart are best-effort: their failures leave the
// corresponding fields empty.
func (s *Service) Report(ctx context.Context, symbol string, chartMonths int) (*Report, error) {
	snap, err := s.resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	q := snap.quote
	r := &Report{
		Name:        snap.name,
		Symbol:      symbol,
		Price:       snap.price,
		Currency:    orDefault(q.Currency, defaultCurrency),
		Exchange:    orDefault(q.Exchange, defaultExchange),
		Website:     q.Website,
		DailyChange: dailyChange(snap.price, q.PreviousClose),
		ChartMonths: chartMonths,
	}

	var g errgroup.Group
	g.Go(func() error {
		r.Returns = s.returns(ctx, symbol)
		return nil
	})
	g.Go(func() error {
		r.Chart = s.chart(ctx, symbol, chartMonths, r.Currency)
		return nil
	})
	_ = g.Wait()

	return r, nil
}

func (s *Service) returns(ctx context.Context, symbol string) []PeriodReturn {
	hist, err := s.market.FetchHistory(ctx, symbol, domain.HistoryRange{Days: s.historyDays})
	if err != nil {
		s.logger.Warn("return history unavailable", "symbol", symbol, "err", err)
		hist = nil
	}
	return CalculateReturns(hist, s.returnPeriods, s.now())
}

func (s *Service) chart(ctx context.Context, symbol string, months int, currency string) []byte {
	if s.charts == nil {
		return nil
	}
	hist, err := s.market.FetchHistory(ctx, symbol, domain.HistoryRange{Months: months})
	if err != nil {
		s.chartFailed(symbol, fmt.Errorf("chart history: %w", err))
		return nil
	}
	if len(hist) == 0 {
		return nil
	}
	png, err := s.charts.RenderLineChart(ctx, hist, domain.ChartSpec{
		Title:  fmt.Sprintf("%s Price Over %d Months", symbol, months),
		XLabel: "Date",
		YLabel: fmt.Sprintf("Price (%s)", currency),
		Width:  s.chartWidth,
		Height: s.chartHeight,
	})
	if err != nil {
		s.chartFailed(symbol, err)
		return nil
	}
	return png
}

func (s *Service) chartFailed(symbol string, err error) {
	metrics.ChartFailuresTotal.Inc()
	s.logger.Warn("chart skipped", "symbol", symbol, "err", err)
}

// Search returns at most the configured number of matches for query.
func (s *Service) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	matches, err := s.market.SearchSymbols(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matches) > s.searchLimit {
		matches = matches[:s.searchLimit]
	}
	return matches, nil
}

// QuoteLine is the one-line answer of the !stock prefix command. Only the
// current price is consulted.
func (s *Service) QuoteLine(ctx context.Context, symbol string) (string, error) {
	q, err := s.market.FetchQuote(ctx, symbol)
	if err != nil {
		return "", err
	}
	name := symbol
	if q != nil && q.LongName != "" {
		name = q.LongName
	}
	price := "N/A"
	if q != nil && q.CurrentPrice != nil {
		price = formatPlain(*q.CurrentPrice)
	}
	return fmt.Sprintf("%s (%s): $%s", name, symbol, price), nil
}

// IsNotFound reports whether err means the symbol could not be resolved.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// firstPrice returns the first reported, non-zero price.
func firstPrice(candidates ...*float64) *float64 {
	for _, p := range candidates {
		if p != nil && *p != 0 {
			v := *p
			return &v
		}
	}
	return nil
}

func dailyChange(price, prevClose *float64) *float64 {
	if price == nil || prevClose == nil || *prevClose == 0 {
		return nil
	}
	pct := (*price - *prevClose) / *prevClose * 100
	return &pct
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
