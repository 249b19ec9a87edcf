package channel

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/domain"
)

func fullReply(symbol string, period int, withChart bool) domain.Reply {
	r := domain.Reply{
		Embed:   domain.Embed{Title: symbol, Color: domain.ColorGreen},
		Control: &domain.Control{Kind: domain.ControlFull, Symbol: symbol, PeriodMonths: period},
	}
	r.Embed.AddField("Price", "USD 1.00", true)
	if withChart {
		r.Image = &domain.Image{Name: "chart.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	}
	return r
}

func TestDiscordMessage(t *testing.T) {
	replies := []domain.Reply{
		fullReply("AAPL", 3, true),
		{Embed: domain.Embed{Title: "Ticker Not Found", Color: domain.ColorRed}},
		fullReply("MSFT", 12, false),
	}

	send := discordMessage(replies)
	if len(send.Embeds) != 3 {
		t.Fatalf("expected 3 embeds, got %d", len(send.Embeds))
	}
	if send.Embeds[0].Image == nil || send.Embeds[0].Image.URL != "attachment://chart-0.png" {
		t.Errorf("first embed should reference its chart, got %+v", send.Embeds[0].Image)
	}
	if send.Embeds[0].Color != int(domain.ColorGreen) {
		t.Errorf("unexpected color %x", send.Embeds[0].Color)
	}
	if send.Embeds[2].Image != nil {
		t.Error("reply without chart should not reference an image")
	}
	if len(send.Files) != 1 || send.Files[0].Name != "chart-0.png" {
		t.Errorf("expected one chart-0.png file, got %+v", send.Files)
	}
	if len(send.Components) != 2 {
		t.Fatalf("expected 2 action rows, got %d", len(send.Components))
	}
	if slot, ok := rowSlot(send.Components[1]); !ok || slot != 2 {
		t.Errorf("second row should belong to slot 2, got %d %v", slot, ok)
	}
}

func TestDiscordMessage_RowCap(t *testing.T) {
	var replies []domain.Reply
	for i := 0; i < domain.MaxRepliesPerSend; i++ {
		replies = append(replies, fullReply("T", 3, false))
	}
	send := discordMessage(replies)
	if len(send.Embeds) != domain.MaxRepliesPerSend {
		t.Errorf("expected %d embeds, got %d", domain.MaxRepliesPerSend, len(send.Embeds))
	}
	if len(send.Components) != discordMaxActionRows {
		t.Errorf("expected %d rows, got %d", discordMaxActionRows, len(send.Components))
	}
}

func TestDiscordParts_EmbedTextLimit(t *testing.T) {
	var replies []domain.Reply
	for i := 0; i < 6; i++ {
		replies = append(replies, domain.Reply{Embed: domain.Embed{
			Title:       "Error",
			Description: strings.Repeat("x", 1050),
			Color:       domain.ColorRed,
		}})
	}
	replies = append(replies, fullReply("AAPL", 3, true))

	parts := discordParts(replies)
	if len(parts) < 2 {
		t.Fatalf("expected the batch to be split, got %d part(s)", len(parts))
	}
	count := 0
	for i, part := range parts {
		total := 0
		for _, e := range discordMessage(part).Embeds {
			total += len(e.Title) + len(e.Description)
			for _, f := range e.Fields {
				total += len(f.Name) + len(f.Value)
			}
		}
		if total > discordMaxEmbedChars {
			t.Errorf("part %d carries %d embed chars", i, total)
		}
		count += len(part)
	}
	if count != len(replies) {
		t.Errorf("expected %d replies across parts, got %d", len(replies), count)
	}
	last := parts[len(parts)-1]
	if last[len(last)-1].Embed.Title != "AAPL" {
		t.Error("reply order should be preserved")
	}
}

func TestDiscordParts_SmallBatch(t *testing.T) {
	parts := discordParts([]domain.Reply{fullReply("A", 3, false), fullReply("B", 3, false)})
	if len(parts) != 1 || len(parts[0]) != 2 {
		t.Errorf("small batch should stay in one message, got %v", parts)
	}
}

func TestDiscordRow_Styles(t *testing.T) {
	row, ok := discordRow(&domain.Control{Kind: domain.ControlFull, Symbol: "AAPL", PeriodMonths: 1}, 0)
	if !ok {
		t.Fatal("expected a row")
	}
	want := []discordgo.ButtonStyle{
		discordgo.SuccessButton, discordgo.PrimaryButton, discordgo.SecondaryButton,
		discordgo.SecondaryButton, discordgo.SecondaryButton,
	}
	for i, c := range row.Components {
		b := c.(discordgo.Button)
		if b.Style != want[i] {
			t.Errorf("button %s: expected style %d, got %d", b.Label, want[i], b.Style)
		}
		if len(b.CustomID) > 100 {
			t.Errorf("custom ID too long: %d", len(b.CustomID))
		}
	}
}

func TestEditedMessage_ReplacesSlot(t *testing.T) {
	sent := discordMessage([]domain.Reply{fullReply("AAPL", 3, true), fullReply("MSFT", 3, true)})

	// Discord returns pointer components and CDN attachments.
	msg := &discordgo.Message{
		Embeds: sent.Embeds,
		Attachments: []*discordgo.MessageAttachment{
			{ID: "1", Filename: "chart-0.png"},
			{ID: "2", Filename: "chart-1.png"},
		},
	}
	for _, c := range sent.Components {
		row := c.(discordgo.ActionsRow)
		ptr := &discordgo.ActionsRow{}
		for _, b := range row.Components {
			btn := b.(discordgo.Button)
			ptr.Components = append(ptr.Components, &btn)
		}
		msg.Components = append(msg.Components, ptr)
	}

	updated := fullReply("MSFT", 12, true)
	updated.Embed.Title = "MSFT refreshed"
	edit, ok := editedMessage(msg, 1, updated)
	if !ok {
		t.Fatal("slot 1 should be editable")
	}

	embeds := *edit.Embeds
	if embeds[0].Title != "AAPL" || embeds[1].Title != "MSFT refreshed" {
		t.Errorf("unexpected titles %q, %q", embeds[0].Title, embeds[1].Title)
	}
	atts := *edit.Attachments
	if len(atts) != 1 || atts[0].Filename != "chart-0.png" {
		t.Errorf("only the other slot's chart should be kept, got %+v", atts)
	}
	if len(edit.Files) != 1 || edit.Files[0].Name != "chart-1.png" {
		t.Errorf("expected a new chart-1.png, got %+v", edit.Files)
	}

	rows := *edit.Components
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if _, isPtr := rows[0].(*discordgo.ActionsRow); !isPtr {
		t.Error("untouched row should be passed through as received")
	}
	newRow, ok := rows[1].(discordgo.ActionsRow)
	if !ok {
		t.Fatalf("slot 1 row should be rebuilt, got %T", rows[1])
	}
	active := newRow.Components[4].(discordgo.Button)
	if active.Label != "1Y" || active.Style != discordgo.PrimaryButton {
		t.Errorf("1Y should be the active period, got %+v", active)
	}
}

func TestEditedMessage_OutOfRange(t *testing.T) {
	msg := &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Title: "x"}}}
	if _, ok := editedMessage(msg, 3, fullReply("X", 3, false)); ok {
		t.Error("slot beyond embeds should not be editable")
	}
}

func TestSlashContent(t *testing.T) {
	str := func(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
		return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
	}
	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{"stock", discordgo.ApplicationCommandInteractionData{Name: "stock", Options: []*discordgo.ApplicationCommandInteractionDataOption{str("symbol", "AAPL")}}, "[[[AAPL]]]"},
		{"stock months", discordgo.ApplicationCommandInteractionData{Name: "stock", Options: []*discordgo.ApplicationCommandInteractionDataOption{
			str("symbol", "AAPL"),
			{Name: "months", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(12)},
		}}, "[[[AAPL,12]]]"},
		{"quote", discordgo.ApplicationCommandInteractionData{Name: "quote", Options: []*discordgo.ApplicationCommandInteractionDataOption{str("symbol", "MSFT")}}, "[[[-MSFT]]]"},
		{"search", discordgo.ApplicationCommandInteractionData{Name: "search", Options: []*discordgo.ApplicationCommandInteractionDataOption{str("query", "apple")}}, "[[[?apple]]]"},
		{"unknown", discordgo.ApplicationCommandInteractionData{Name: "other"}, ""},
		{"missing option", discordgo.ApplicationCommandInteractionData{Name: "stock"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slashContent(tt.data); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("short message", 100)
	if len(chunks) != 1 || chunks[0] != "short message" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessage_PrefersNewlines(t *testing.T) {
	msg := strings.Repeat("a", 70) + "\n" + strings.Repeat("b", 70)
	chunks := splitMessage(msg, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 70)+"\n" {
		t.Errorf("first chunk should end at the newline, got %q", chunks[0])
	}
	if strings.Join(chunks, "") != msg {
		t.Error("chunks should reassemble to the original")
	}
}
