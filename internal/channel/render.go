package channel

import (
	"fmt"
	"html"
	"strings"

	"stockbot/internal/domain"
)

// ButtonStyle is the emphasis of a button.
type ButtonStyle int

const (
	StyleSecondary ButtonStyle = iota
	StylePrimary               // current chart period, mode switch
	StyleSuccess               // refresh
)

// Button is a platform-neutral control button.
type Button struct {
	Label   string
	Payload string
	Style   ButtonStyle
}

var periodButtons = []struct {
	label  string
	months int
}{
	{"1M", 1},
	{"3M", 3},
	{"6M", 6},
	{"1Y", 12},
}

// ControlButtons returns the button row for a reply's control. slot is the
// reply's position within the message that carries it. Symbols that cannot
// be carried in a payload get no buttons.
func ControlButtons(c *domain.Control, slot int) []Button {
	if c == nil {
		return nil
	}
	valid := true
	event := func(action domain.ControlAction, months int) string {
		ev := domain.ControlEvent{Kind: c.Kind, Action: action, Symbol: c.Symbol, PeriodMonths: months, Slot: slot}
		valid = valid && ev.Valid()
		return ev.Encode()
	}
	row := controlRow(c, event)
	if !valid {
		return nil
	}
	return row
}

func controlRow(c *domain.Control, event func(domain.ControlAction, int) string) []Button {
	switch c.Kind {
	case domain.ControlFull:
		row := []Button{{Label: "🔄 Refresh", Payload: event(domain.ActionRefresh, c.PeriodMonths), Style: StyleSuccess}}
		for _, p := range periodButtons {
			style := StyleSecondary
			if p.months == c.PeriodMonths {
				style = StylePrimary
			}
			row = append(row, Button{Label: p.label, Payload: event(domain.ActionPeriod, p.months), Style: style})
		}
		return row
	case domain.ControlBrief:
		return []Button{
			{Label: "🔄 Refresh", Payload: event(domain.ActionRefresh, c.PeriodMonths), Style: StyleSuccess},
			{Label: "📊 Full Report", Payload: event(domain.ActionFull, c.PeriodMonths), Style: StylePrimary},
		}
	default:
		return nil
	}
}

// RenderText renders a reply as plain text for terminals.
func RenderText(r domain.Reply) string {
	var sb strings.Builder
	sb.WriteString(r.Embed.Title)
	if r.Embed.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Embed.Description)
	}
	for _, f := range r.Embed.Fields {
		fmt.Fprintf(&sb, "\n  %s: %s", f.Name, f.Value)
	}
	if r.Image != nil {
		fmt.Fprintf(&sb, "\n  [chart %s, %d bytes]", r.Image.Name, len(r.Image.Data))
	}
	return sb.String()
}

// RenderHTML renders a reply in Telegram's HTML subset.
func RenderHTML(r domain.Reply) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>", html.EscapeString(r.Embed.Title))
	if r.Embed.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(strings.ReplaceAll(r.Embed.Description, "`", "")))
	}
	for _, f := range r.Embed.Fields {
		fmt.Fprintf(&sb, "\n<b>%s</b>: %s", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	return sb.String()
}

// RenderHTMLLimit renders like RenderHTML but keeps the result within limit
// bytes. The description is cut on a rune boundary before escaping and the
// fields that no longer fit are dropped, so tags and entities stay whole.
func RenderHTMLLimit(r domain.Reply, limit int) string {
	if s := RenderHTML(r); len(s) <= limit {
		return s
	}
	var sb strings.Builder
	title, _ := escapeWithin(r.Embed.Title, limit-len("<b></b>"))
	fmt.Fprintf(&sb, "<b>%s</b>", title)

	if r.Embed.Description != "" {
		desc, whole := escapeWithin(strings.ReplaceAll(r.Embed.Description, "`", ""), limit-sb.Len()-1)
		sb.WriteString("\n")
		sb.WriteString(desc)
		if !whole {
			return sb.String()
		}
	}
	for _, f := range r.Embed.Fields {
		line := fmt.Sprintf("\n<b>%s</b>: %s", html.EscapeString(f.Name), html.EscapeString(f.Value))
		if sb.Len()+len(line) > limit {
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// escapeWithin HTML-escapes s, stopping before the escaped text would exceed
// budget bytes. A cut is marked with an ellipsis; whole reports no cut.
func escapeWithin(s string, budget int) (string, bool) {
	if e := html.EscapeString(s); len(e) <= budget {
		return e, true
	}
	const ellipsis = "…"
	var sb strings.Builder
	for _, r := range s {
		e := html.EscapeString(string(r))
		if sb.Len()+len(e)+len(ellipsis) > budget {
			break
		}
		sb.WriteString(e)
	}
	if budget >= len(ellipsis) {
		sb.WriteString(ellipsis)
	}
	return sb.String(), false
}
