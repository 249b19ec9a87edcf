package dispatch

import (
	"context"
	"fmt"
	"strings"

	"stockbot/internal/command"
)

// PrefixCommand is a parsed "!name args..." message.
type PrefixCommand struct {
	Name string
	Args []string
	Raw  string
}

// ParsePrefix parses text starting with the reserved prefix. It returns nil
// for any other text.
func ParsePrefix(text string) *PrefixCommand {
	if !strings.HasPrefix(text, command.ReservedPrefix) {
		return nil
	}
	parts := strings.Fields(strings.TrimPrefix(text, command.ReservedPrefix))
	if len(parts) == 0 {
		return nil
	}
	return &PrefixCommand{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
		Raw:  text,
	}
}

// HandlePrefix answers a prefix command with one line of text. Handled is
// false for commands the bot does not know, which are ignored silently.
func (r *Router) HandlePrefix(ctx context.Context, pc *PrefixCommand) (text string, handled bool) {
	switch pc.Name {
	case "stock":
		if len(pc.Args) == 0 {
			return "Usage: !stock SYMBOL", true
		}
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		symbol := strings.ToUpper(pc.Args[0])
		line, err := r.reports.QuoteLine(ctx, symbol)
		if err != nil {
			r.logger.Warn("prefix quote failed", "symbol", symbol, "err", err)
			return fmt.Sprintf("Error fetching data for %s: %v", pc.Args[0], err), true
		}
		return line, true

	case "help":
		return helpText(), true

	default:
		return "", false
	}
}

func helpText() string {
	return strings.Join([]string{
		"Mention tickers anywhere in a message with triple brackets:",
		"  [[[AAPL]]]      full report with a 3 month chart",
		"  [[[AAPL,6]]]    full report with a 6 month chart",
		"  [[[-AAPL]]]     price and daily change only",
		"  [[[?apple]]]    search for matching tickers",
		"  !stock AAPL     one-line price",
	}, "\n")
}
