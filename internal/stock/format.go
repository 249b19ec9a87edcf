package stock

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"stockbot/internal/domain"
)

const (
	notAvailable = "N/A"
	noName       = "No name"

	// ChartFileName is the attachment name of a report chart.
	ChartFileName = "chart.png"

	maxErrorChars = 200
)

// ReportReply renders a full report.
func ReportReply(r *Report) domain.Reply {
	e := domain.Embed{
		Title: fmt.Sprintf("%s (%s)", r.Name, r.Symbol),
		Color: domain.ColorGreen,
	}
	e.AddField("Price", r.Currency+" "+formatPrice(r.Price), true)
	e.AddField("Exchange", r.Exchange, true)
	if r.Website != "" {
		e.AddField("Website", r.Website, false)
	}
	e.AddField("Daily % Change", formatPercent(r.DailyChange), true)
	for _, pr := range r.Returns {
		e.AddField(fmt.Sprintf("%d Month Return", pr.Months), formatPercent(pr.Percent), true)
	}

	reply := domain.Reply{Embed: e}
	if len(r.Chart) > 0 {
		reply.Image = &domain.Image{Name: ChartFileName, ContentType: "image/png", Data: r.Chart}
	}
	return reply
}

// BriefReply renders a minimal report.
func BriefReply(b *Brief) domain.Reply {
	e := domain.Embed{
		Title: fmt.Sprintf("%s (%s)", b.Name, b.Symbol),
		Color: domain.ColorGreen,
	}
	price := notAvailable
	if b.Price != nil {
		price = b.Currency + " " + formatPrice(b.Price)
	}
	e.AddField("Price", price, true)
	e.AddField("Daily % Change", formatPercent(b.DailyChange), true)
	return domain.Reply{Embed: e}
}

// SearchReply renders the outcome of a symbol search.
func SearchReply(query string, matches []domain.SymbolMatch, err error) domain.Reply {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return domain.Reply{Embed: domain.Embed{
			Title:       "Yahoo Finance Search Failed",
			Description: fmt.Sprintf("Failed to search Yahoo Finance for: `%s` (status: %d)", query, upstream.StatusCode),
			Color:       domain.ColorRed,
		}}
	case err != nil:
		return domain.Reply{Embed: domain.Embed{
			Title:       "Error",
			Description: fmt.Sprintf("Error searching for '%s': %s", query, clip(err.Error(), maxErrorChars)),
			Color:       domain.ColorRed,
		}}
	case len(matches) == 0:
		return domain.Reply{Embed: domain.Embed{
			Title:       "No Results",
			Description: fmt.Sprintf("No tickers found for search: `%s`", query),
			Color:       domain.ColorOrange,
		}}
	}

	e := domain.Embed{
		Title: fmt.Sprintf("Search results for '%s'", query),
		Color: domain.ColorBlue,
	}
	addMatchFields(&e, matches)
	return domain.Reply{Embed: e}
}

// NotFoundReply renders the fallback for an unresolvable symbol, listing
// whatever the follow-up search suggested.
func NotFoundReply(symbol string, suggestions []domain.SymbolMatch) domain.Reply {
	e := domain.Embed{
		Title:       "Stock Not Found",
		Description: fmt.Sprintf("Could not find stock info for '%s'.", symbol),
		Color:       domain.ColorOrange,
	}
	addMatchFields(&e, suggestions)
	return domain.Reply{Embed: e}
}

// MissingSearchTermReply answers [[[?]]].
func MissingSearchTermReply() domain.Reply {
	return domain.Reply{Embed: domain.Embed{
		Title:       "Missing Search Term",
		Description: "Add a company name or keyword after `?`, for example `[[[?apple]]]`.",
		Color:       domain.ColorOrange,
	}}
}

// ErrorReply renders a failed lookup of symbol.
func ErrorReply(symbol string, err error) domain.Reply {
	return domain.Reply{Embed: domain.Embed{
		Title:       "Error",
		Description: fmt.Sprintf("Error fetching data for %s: %s", symbol, clip(err.Error(), maxErrorChars)),
		Color:       domain.ColorRed,
	}}
}

// RefreshFailedReply replaces a report whose symbol no longer resolves.
func RefreshFailedReply(symbol string) domain.Reply {
	return domain.Reply{Embed: domain.Embed{
		Title:       "Error",
		Description: "Could not fetch data for " + symbol,
		Color:       domain.ColorRed,
	}}
}

func addMatchFields(e *domain.Embed, matches []domain.SymbolMatch) {
	for _, m := range matches {
		name := m.Name
		if name == "" {
			name = noName
		}
		e.AddField(m.Symbol, name, false)
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func formatPercent(p *float64) string {
	if p == nil {
		return notAvailable
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

// formatPlain prints a price without fixed precision, e.g. 189.5.
func formatPlain(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
