// Package command turns free-form chat text into bracket commands such as
// [[[AAPL]]], [[[AAPL,6]]], [[[-AAPL]]] and [[[?apple]]].
package command

import "strings"

// Kind identifies a command variant.
type Kind int

const (
	KindTicker Kind = iota + 1
	KindTickerWithPeriod
	KindMinimal
	KindSearch
	KindEmptySearch
)

func (k Kind) String() string {
	switch k {
	case KindTicker:
		return "ticker"
	case KindTickerWithPeriod:
		return "ticker_period"
	case KindMinimal:
		return "minimal"
	case KindSearch:
		return "search"
	case KindEmptySearch:
		return "empty_search"
	default:
		return "unknown"
	}
}

const (
	// DefaultPeriodMonths is the chart period used when none (or an invalid one) is given.
	DefaultPeriodMonths = 3

	// ReservedPrefix marks messages that belong to the prefix command surface.
	ReservedPrefix = "!"
)

// Command is one classified bracket pattern.
type Command struct {
	Kind         Kind
	Symbol       string // upper-cased; empty for search kinds
	Query        string // original case; search only
	PeriodMonths int    // chart period; ticker kinds only
	Raw          string // trimmed pattern text
}

// Key is the equality key used to collapse repeats within one message.
// Search keys are prefixed so a query can never collide with a symbol.
func (c Command) Key() string {
	switch c.Kind {
	case KindSearch:
		return "?" + strings.ToLower(c.Query)
	case KindEmptySearch:
		return "?"
	default:
		return c.Symbol
	}
}

// IsTicker reports whether the command looks up a symbol.
func (c Command) IsTicker() bool {
	switch c.Kind {
	case KindTicker, KindTickerWithPeriod, KindMinimal:
		return true
	}
	return false
}
