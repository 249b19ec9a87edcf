package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"stockbot/internal/domain"
	"stockbot/internal/stock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReporter answers from per-symbol tables. Symbols listed in panics
// panic, symbols in delays sleep first, and "SLOW" blocks until ctx ends.
type fakeReporter struct {
	mu sync.Mutex

	reports  map[string]*stock.Report
	briefs   map[string]*stock.Brief
	errs     map[string]error
	matches  []domain.SymbolMatch
	panics   map[string]bool
	delays   map[string]time.Duration
	searches []string
	periods  []int
}

func (f *fakeReporter) wait(ctx context.Context, symbol string) error {
	if f.panics[symbol] {
		panic("kaboom " + symbol)
	}
	if symbol == "SLOW" {
		<-ctx.Done()
		return ctx.Err()
	}
	if d := f.delays[symbol]; d > 0 {
		time.Sleep(d)
	}
	return f.errs[symbol]
}

func (f *fakeReporter) Report(ctx context.Context, symbol string, months int) (*stock.Report, error) {
	f.mu.Lock()
	f.periods = append(f.periods, months)
	f.mu.Unlock()
	if err := f.wait(ctx, symbol); err != nil {
		return nil, err
	}
	if r, ok := f.reports[symbol]; ok {
		cp := *r
		cp.ChartMonths = months
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReporter) Brief(ctx context.Context, symbol string) (*stock.Brief, error) {
	if err := f.wait(ctx, symbol); err != nil {
		return nil, err
	}
	if b, ok := f.briefs[symbol]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReporter) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	if err := f.wait(ctx, "?"+query); err != nil {
		return nil, err
	}
	return f.matches, nil
}

func (f *fakeReporter) QuoteLine(ctx context.Context, symbol string) (string, error) {
	if err := f.wait(ctx, symbol); err != nil {
		return "", err
	}
	return symbol + " line", nil
}

func (f *fakeReporter) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

type recordingSender struct {
	mu  sync.Mutex
	out []domain.OutboundMessage
}

func (s *recordingSender) SendOutbound(msg domain.OutboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, msg)
}

func (s *recordingSender) byKind(kind domain.OutboundKind) []domain.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var got []domain.OutboundMessage
	for _, m := range s.out {
		if m.Kind == kind {
			got = append(got, m)
		}
	}
	return got
}

func report(name, symbol string) *stock.Report {
	return &stock.Report{Name: name, Symbol: symbol, Currency: "USD", Exchange: "NMS"}
}
