package channel

import (
	"strings"
	"testing"
	"unicode/utf8"

	"stockbot/internal/domain"
)

func TestControlButtons_Full(t *testing.T) {
	buttons := ControlButtons(&domain.Control{Kind: domain.ControlFull, Symbol: "AAPL", PeriodMonths: 6}, 2)
	if len(buttons) != 5 {
		t.Fatalf("expected 5 buttons, got %d", len(buttons))
	}
	if buttons[0].Style != StyleSuccess {
		t.Errorf("refresh should be success style, got %v", buttons[0].Style)
	}

	ev, err := domain.ParseControlEvent(buttons[0].Payload)
	if err != nil {
		t.Fatalf("refresh payload: %v", err)
	}
	if ev.Action != domain.ActionRefresh || ev.PeriodMonths != 6 || ev.Slot != 2 || ev.Symbol != "AAPL" {
		t.Errorf("unexpected refresh event: %+v", ev)
	}

	wantLabels := []string{"1M", "3M", "6M", "1Y"}
	wantMonths := []int{1, 3, 6, 12}
	for i, b := range buttons[1:] {
		if b.Label != wantLabels[i] {
			t.Errorf("button %d: expected %s, got %s", i+1, wantLabels[i], b.Label)
		}
		ev, err := domain.ParseControlEvent(b.Payload)
		if err != nil {
			t.Fatalf("period payload: %v", err)
		}
		if ev.Action != domain.ActionPeriod || ev.PeriodMonths != wantMonths[i] {
			t.Errorf("button %s: unexpected event %+v", b.Label, ev)
		}
		active := wantMonths[i] == 6
		if active != (b.Style == StylePrimary) {
			t.Errorf("button %s: active=%v but style=%v", b.Label, active, b.Style)
		}
	}
}

func TestControlButtons_Brief(t *testing.T) {
	buttons := ControlButtons(&domain.Control{Kind: domain.ControlBrief, Symbol: "MSFT", PeriodMonths: 3}, 0)
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(buttons))
	}
	ev, err := domain.ParseControlEvent(buttons[1].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Action != domain.ActionFull || ev.Kind != domain.ControlBrief {
		t.Errorf("second button should switch to full report, got %+v", ev)
	}
}

func TestControlButtons_None(t *testing.T) {
	if b := ControlButtons(nil, 0); b != nil {
		t.Errorf("nil control should have no buttons, got %v", b)
	}
	if b := ControlButtons(&domain.Control{Kind: "bogus", Symbol: "X"}, 0); b != nil {
		t.Errorf("unknown kind should have no buttons, got %v", b)
	}
}

func TestControlButtons_UnencodableSymbol(t *testing.T) {
	for _, sym := range []string{"BRK|B", strings.Repeat("X", 52)} {
		if b := ControlButtons(&domain.Control{Kind: domain.ControlFull, Symbol: sym, PeriodMonths: 3}, 0); b != nil {
			t.Errorf("%q: expected no buttons, got %d", sym, len(b))
		}
	}
}

func TestRenderText(t *testing.T) {
	r := domain.Reply{
		Embed: domain.Embed{Title: "Apple Inc. (AAPL)", Description: "desc"},
		Image: &domain.Image{Name: "chart.png", Data: []byte("12345")},
	}
	r.Embed.AddField("Price", "USD 190.12", true)

	got := RenderText(r)
	want := "Apple Inc. (AAPL)\ndesc\n  Price: USD 190.12\n  [chart chart.png, 5 bytes]"
	if got != want {
		t.Errorf("unexpected text:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderHTML_Escapes(t *testing.T) {
	r := domain.Reply{Embed: domain.Embed{Title: "AT&T <T>", Description: "Try `[[[T]]]`"}}
	r.Embed.AddField("P&L", "<1>", false)

	got := RenderHTML(r)
	for _, want := range []string{"<b>AT&amp;T &lt;T&gt;</b>", "\nTry [[[T]]]", "<b>P&amp;L</b>: &lt;1&gt;"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestRenderHTMLLimit(t *testing.T) {
	r := domain.Reply{Embed: domain.Embed{Title: "Error", Description: strings.Repeat("a&b é ", 400)}}
	r.Embed.AddField("Price", "USD 1.00", true)

	const limit = 100
	got := RenderHTMLLimit(r, limit)
	if len(got) > limit {
		t.Fatalf("rendered %d bytes, limit %d", len(got), limit)
	}
	if !utf8.ValidString(got) {
		t.Error("cut should fall on a rune boundary")
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("cut should be marked, got %q", got)
	}
	if strings.Contains(got, "Price") {
		t.Error("fields after a cut description should be dropped")
	}
	body := strings.TrimPrefix(got, "<b>Error</b>\n")
	if i := strings.LastIndex(body, "&"); i >= 0 && !strings.HasPrefix(body[i:], "&amp;") {
		t.Errorf("entity split at the cut: %q", body[i:])
	}
}

func TestRenderHTMLLimit_DropsFieldsThatDoNotFit(t *testing.T) {
	r := domain.Reply{Embed: domain.Embed{Title: "Search results for 'x'"}}
	for i := 0; i < 50; i++ {
		r.Embed.AddField("SYM", "Some long company name", false)
	}
	got := RenderHTMLLimit(r, 200)
	if len(got) > 200 {
		t.Fatalf("rendered %d bytes", len(got))
	}
	if strings.Count(got, "<b>") != strings.Count(got, "</b>") {
		t.Errorf("unbalanced tags in %q", got)
	}
	if short := RenderHTMLLimit(domain.Reply{Embed: domain.Embed{Title: "AAPL"}}, 200); short != "<b>AAPL</b>" {
		t.Errorf("short reply should render unchanged, got %q", short)
	}
}
