package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a provider cannot resolve a symbol at all.
var ErrNotFound = errors.New("symbol not found")

// Quote is a snapshot of a symbol as reported by the market-data provider.
// Optional numeric fields are nil when the provider did not report them.
type Quote struct {
	Symbol             string
	LongName           string
	ShortName          string
	CurrentPrice       *float64
	RegularMarketPrice *float64
	PreviousClose      *float64
	Currency           string
	Exchange           string
	Website            string
}

// DisplayName returns the long name, falling back to the short name.
func (q *Quote) DisplayName() string {
	if q == nil {
		return ""
	}
	if q.LongName != "" {
		return q.LongName
	}
	return q.ShortName
}

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// HistoryRange is a lookback window ending now.
type HistoryRange struct {
	Days   int
	Months int
}

// Start returns the first instant covered by the range.
func (r HistoryRange) Start(now time.Time) time.Time {
	return now.AddDate(0, -r.Months, -r.Days)
}

func (r HistoryRange) String() string {
	switch {
	case r.Months > 0 && r.Days > 0:
		return fmt.Sprintf("%dmo%dd", r.Months, r.Days)
	case r.Months > 0:
		return fmt.Sprintf("%dmo", r.Months)
	default:
		return fmt.Sprintf("%dd", r.Days)
	}
}

// SymbolMatch is one row of a symbol search.
type SymbolMatch struct {
	Symbol string
	Name   string
}

// MarketData is the market-data provider capability consumed by the report service.
type MarketData interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
	FetchHistory(ctx context.Context, symbol string, rng HistoryRange) ([]PricePoint, error)
	SearchSymbols(ctx context.Context, query string) ([]SymbolMatch, error)
}

// UpstreamError reports a non-success HTTP status from a provider.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}
