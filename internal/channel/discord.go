package channel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/domain"
)

const (
	discordMaxMsgLen     = 2000
	discordMaxActionRows = 5
	discordMaxEmbedChars = 6000 // summed over every embed in one message
)

// Discord implements domain.Channel for Discord.
type Discord struct {
	token   string
	guildID string
	refresh domain.RefreshFunc
	session *discordgo.Session
	bus     domain.MessageBus
	logger  *slog.Logger
	ctx     context.Context
}

type DiscordConfig struct {
	Token   string
	GuildID string             // only answer in this guild when set
	Refresh domain.RefreshFunc // button presses; buttons are inert when nil
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		refresh: cfg.Refresh,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and blocks until ctx is done.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus
	d.ctx = ctx

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	bus.OnOutbound(d.Name(), d.deliver)
	session.AddHandler(d.onMessage)
	session.AddHandler(d.onInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username, "guild", d.guildID)

	d.registerSlashCommands()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Stop is a no-op; the session closes when Start's context is cancelled.
func (d *Discord) Stop() error { return nil }

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if d.guildID != "" && m.GuildID != d.guildID {
		return
	}

	d.logger.Debug("discord message received",
		"author", m.Author.Username,
		"chat_id", m.ChannelID,
		"content_len", len(m.Content),
	)

	d.bus.Publish(domain.InboundMessage{
		Channel:   d.Name(),
		ChatID:    m.ChannelID,
		SenderID:  m.Author.ID,
		MessageID: m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	})
}

func (d *Discord) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if d.guildID != "" && i.GuildID != "" && i.GuildID != d.guildID {
		return
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		d.onButton(s, i)
	case discordgo.InteractionApplicationCommand:
		d.onSlashCommand(s, i)
	}
}

// onButton re-renders the reply a pressed button belongs to and edits it in place.
func (d *Discord) onButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	payload := i.MessageComponentData().CustomID
	ev, err := domain.ParseControlEvent(payload)
	if err != nil || d.refresh == nil || i.Message == nil {
		d.logger.Warn("ignoring discord component", "custom_id", payload, "err", err)
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		d.logger.Error("discord defer failed", "err", err)
		return
	}

	reply := d.refresh(d.ctx, ev)
	edit, ok := editedMessage(i.Message, ev.Slot, reply)
	if !ok {
		d.logger.Warn("control slot out of range", "slot", ev.Slot, "embeds", len(i.Message.Embeds))
		return
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		d.logger.Error("discord edit failed", "chat_id", i.ChannelID, "symbol", ev.Symbol, "err", err)
	}
}

// onSlashCommand turns /stock and /search into bracket syntax and publishes it.
func (d *Discord) onSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	content := slashContent(i.ApplicationCommandData())
	if content == "" {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: "`" + content + "`"},
	}); err != nil {
		d.logger.Warn("discord slash ack failed", "err", err)
	}

	sender := ""
	switch {
	case i.Member != nil && i.Member.User != nil:
		sender = i.Member.User.ID
	case i.User != nil:
		sender = i.User.ID
	}
	d.bus.Publish(domain.InboundMessage{
		Channel:  d.Name(),
		ChatID:   i.ChannelID,
		SenderID: sender,
		Content:  content,
	})
}

func slashContent(data discordgo.ApplicationCommandInteractionData) string {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = o
	}
	switch data.Name {
	case "stock":
		sym, ok := opts["symbol"]
		if !ok {
			return ""
		}
		if p, ok := opts["months"]; ok {
			return fmt.Sprintf("[[[%s,%d]]]", sym.StringValue(), p.IntValue())
		}
		return "[[[" + sym.StringValue() + "]]]"
	case "quote":
		if sym, ok := opts["symbol"]; ok {
			return "[[[-" + sym.StringValue() + "]]]"
		}
	case "search":
		if q, ok := opts["query"]; ok {
			return "[[[?" + q.StringValue() + "]]]"
		}
	}
	return ""
}

func (d *Discord) registerSlashCommands() {
	symbol := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "symbol",
		Description: "Ticker symbol, e.g. AAPL",
		Required:    true,
	}
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "stock",
			Description: "Full report with chart",
			Options: []*discordgo.ApplicationCommandOption{
				symbol,
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "months",
					Description: "Chart period in months",
				},
			},
		},
		{
			Name:        "quote",
			Description: "Price and daily change",
			Options:     []*discordgo.ApplicationCommandOption{symbol},
		},
		{
			Name:        "search",
			Description: "Search for ticker symbols",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Company name or keyword",
				Required:    true,
			}},
		},
	}

	for _, cmd := range commands {
		if _, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, d.guildID, cmd); err != nil {
			d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
		}
	}
}

// deliver is the bus outbound handler.
func (d *Discord) deliver(msg domain.OutboundMessage) {
	switch msg.Kind {
	case domain.OutboundTyping:
		if err := d.session.ChannelTyping(msg.ChatID); err != nil {
			d.logger.Debug("discord typing failed", "chat_id", msg.ChatID, "err", err)
		}
	case domain.OutboundText:
		for _, chunk := range splitMessage(msg.Content, discordMaxMsgLen) {
			if _, err := d.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
				d.logger.Error("discord send failed", "chat_id", msg.ChatID, "err", err)
			}
		}
	case domain.OutboundReplies:
		for _, part := range discordParts(msg.Replies) {
			if _, err := d.session.ChannelMessageSendComplex(msg.ChatID, discordMessage(part)); err != nil {
				d.logger.Error("discord send failed", "chat_id", msg.ChatID, "replies", len(part), "err", err)
			}
		}
	}
}

// discordParts splits a batch so no message exceeds Discord's embed text
// limit. A single oversized reply still goes out on its own.
func discordParts(replies []domain.Reply) [][]domain.Reply {
	var parts [][]domain.Reply
	var cur []domain.Reply
	total := 0
	for _, r := range replies {
		n := embedChars(r.Embed)
		if len(cur) > 0 && total+n > discordMaxEmbedChars {
			parts = append(parts, cur)
			cur, total = nil, 0
		}
		cur = append(cur, r)
		total += n
	}
	if len(cur) > 0 {
		parts = append(parts, cur)
	}
	return parts
}

func embedChars(e domain.Embed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	return n
}

// discordMessage renders one batch as a single message: one embed per
// reply, charts as attachments, and a button row per control.
func discordMessage(replies []domain.Reply) *discordgo.MessageSend {
	send := &discordgo.MessageSend{}
	for slot, r := range replies {
		send.Embeds = append(send.Embeds, discordEmbed(r, slot))
		if f := discordFile(r, slot); f != nil {
			send.Files = append(send.Files, f)
		}
		if row, ok := discordRow(r.Control, slot); ok && len(send.Components) < discordMaxActionRows {
			send.Components = append(send.Components, row)
		}
	}
	return send
}

func chartName(slot int) string {
	return "chart-" + strconv.Itoa(slot) + ".png"
}

func discordEmbed(r domain.Reply, slot int) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       r.Embed.Title,
		Description: r.Embed.Description,
		Color:       int(r.Embed.Color),
	}
	for _, f := range r.Embed.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if r.Image != nil {
		e.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + chartName(slot)}
	}
	return e
}

func discordFile(r domain.Reply, slot int) *discordgo.File {
	if r.Image == nil {
		return nil
	}
	return &discordgo.File{
		Name:        chartName(slot),
		ContentType: r.Image.ContentType,
		Reader:      bytes.NewReader(r.Image.Data),
	}
}

func discordRow(c *domain.Control, slot int) (discordgo.ActionsRow, bool) {
	buttons := ControlButtons(c, slot)
	if len(buttons) == 0 {
		return discordgo.ActionsRow{}, false
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		style := discordgo.SecondaryButton
		switch b.Style {
		case StylePrimary:
			style = discordgo.PrimaryButton
		case StyleSuccess:
			style = discordgo.SuccessButton
		}
		row.Components = append(row.Components, discordgo.Button{Label: b.Label, Style: style, CustomID: b.Payload})
	}
	return row, true
}

// editedMessage replaces the embed, chart and button row at slot in msg.
func editedMessage(msg *discordgo.Message, slot int, reply domain.Reply) (*discordgo.WebhookEdit, bool) {
	if slot < 0 || slot >= len(msg.Embeds) {
		return nil, false
	}

	embeds := append([]*discordgo.MessageEmbed(nil), msg.Embeds...)
	embeds[slot] = discordEmbed(reply, slot)

	attachments := make([]*discordgo.MessageAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		if a.Filename != chartName(slot) {
			attachments = append(attachments, a)
		}
	}
	var files []*discordgo.File
	if f := discordFile(reply, slot); f != nil {
		files = append(files, f)
	}

	newRow, hasRow := discordRow(reply.Control, slot)
	components := make([]discordgo.MessageComponent, 0, len(msg.Components)+1)
	replaced := false
	for _, c := range msg.Components {
		if s, ok := rowSlot(c); ok && s == slot {
			replaced = true
			if hasRow {
				components = append(components, newRow)
			}
			continue
		}
		components = append(components, c)
	}
	if !replaced && hasRow && len(components) < discordMaxActionRows {
		components = append(components, newRow)
	}

	return &discordgo.WebhookEdit{
		Embeds:      &embeds,
		Components:  &components,
		Attachments: &attachments,
		Files:       files,
	}, true
}

// rowSlot reads the reply slot encoded in a row's first button.
func rowSlot(c discordgo.MessageComponent) (int, bool) {
	var inner []discordgo.MessageComponent
	switch row := c.(type) {
	case *discordgo.ActionsRow:
		inner = row.Components
	case discordgo.ActionsRow:
		inner = row.Components
	default:
		return 0, false
	}
	for _, b := range inner {
		var id string
		switch btn := b.(type) {
		case *discordgo.Button:
			id = btn.CustomID
		case discordgo.Button:
			id = btn.CustomID
		}
		if ev, err := domain.ParseControlEvent(id); err == nil {
			return ev.Slot, true
		}
	}
	return 0, false
}

// splitMessage splits a message into chunks that fit within the max length,
// trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
