package stock

import (
	"context"
	"sync"

	"stockbot/internal/domain"
)

type fakeMarket struct {
	mu sync.Mutex

	quotes    map[string]*domain.Quote
	quoteErr  error
	history   map[string][]domain.PricePoint // keyed by HistoryRange.String()
	histErr   error
	matches   []domain.SymbolMatch
	searchErr error

	searches []string
	ranges   []domain.HistoryRange
}

func (f *fakeMarket) FetchQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return &domain.Quote{Symbol: symbol}, nil
}

func (f *fakeMarket) FetchHistory(_ context.Context, _ string, rng domain.HistoryRange) ([]domain.PricePoint, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, rng)
	f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history[rng.String()], nil
}

func (f *fakeMarket) SearchSymbols(_ context.Context, query string) ([]domain.SymbolMatch, error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	return f.matches, f.searchErr
}

type fakeCharts struct {
	png  []byte
	err  error
	spec domain.ChartSpec
}

func (f *fakeCharts) RenderLineChart(_ context.Context, _ []domain.PricePoint, spec domain.ChartSpec) ([]byte, error) {
	f.spec = spec
	return f.png, f.err
}

func ptr(v float64) *float64 { return &v }
