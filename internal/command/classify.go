package command

import (
	"strconv"
	"strings"
)

// Classify maps one raw pattern to exactly one command. Precedence is
// search ("?"), minimal ("-"), ticker with period (comma), plain ticker.
// ok is false when the pattern is dropped without a reply.
func Classify(raw string) (cmd Command, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Command{}, false
	}

	switch {
	case strings.HasPrefix(raw, "?"):
		query := strings.TrimSpace(raw[1:])
		if query == "" {
			return Command{Kind: KindEmptySearch, Raw: raw}, true
		}
		return Command{Kind: KindSearch, Query: query, Raw: raw}, true

	case strings.HasPrefix(raw, "-"):
		sym, _, _ := strings.Cut(raw[1:], ",")
		sym = strings.TrimSpace(sym)
		if sym == "" {
			return Command{}, false
		}
		return Command{Kind: KindMinimal, Symbol: strings.ToUpper(sym), Raw: raw}, true

	case strings.Contains(raw, ","):
		left, right, _ := strings.Cut(raw, ",")
		sym := strings.ToUpper(strings.TrimSpace(left))
		if sym == "" {
			return Command{}, false
		}
		return Command{
			Kind:         KindTickerWithPeriod,
			Symbol:       sym,
			PeriodMonths: ParsePeriod(right),
			Raw:          raw,
		}, true

	default:
		return Command{
			Kind:         KindTicker,
			Symbol:       strings.ToUpper(strings.Fields(raw)[0]),
			PeriodMonths: DefaultPeriodMonths,
			Raw:          raw,
		}, true
	}
}

// ParsePeriod parses a signed base-10 month count. Unparsable and
// non-positive values fall back to DefaultPeriodMonths.
func ParsePeriod(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return DefaultPeriodMonths
	}
	return n
}
