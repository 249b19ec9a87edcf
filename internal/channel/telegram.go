package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stockbot/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxCaptionLen  = 1024
	telegramMaxSendRetries = 3
)

// telegramAPI is the part of *tgbotapi.BotAPI used after startup.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Channel for Telegram Bot.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	refresh   domain.RefreshFunc

	bot       telegramAPI
	bus       domain.MessageBus
	logger    *slog.Logger
	callbacks sync.WaitGroup // refreshes in flight
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	Refresh   domain.RefreshFunc
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		refresh:   cfg.Refresh,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound(t.Name(), t.deliver)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			t.callbacks.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Stop is a no-op: StopReceivingUpdates panics when called twice and Start
// already calls it on cancellation.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) deliver(msg domain.OutboundMessage) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		t.logger.Error("invalid chat ID for telegram outbound", "chatID", msg.ChatID, "err", err)
		return
	}
	replyTo, _ := strconv.Atoi(msg.ReplyTo)

	switch msg.Kind {
	case domain.OutboundTyping:
		_, _ = t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	case domain.OutboundText:
		t.sendMessage(chatID, msg.Content)
	case domain.OutboundReplies:
		for _, r := range msg.Replies {
			t.sendReply(chatID, replyTo, r)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		t.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", update.Message.From.UserName,
		)
		t.sendMessage(chatID, "⛔ Unauthorized. Your user ID is not in the allow list.")
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	if update.Message.IsCommand() {
		var ok bool
		if text, ok = commandContent(update.Message.Command(), update.Message.CommandArguments()); !ok {
			t.sendMessage(chatID, telegramWelcome)
			return
		}
	}

	t.logger.Info("telegram message received",
		"user_id", userID,
		"chat_id", chatID,
		"text_len", len(text),
	)

	t.bus.Publish(domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(chatID, 10),
		SenderID:  strconv.FormatInt(userID, 10),
		MessageID: strconv.Itoa(update.Message.MessageID),
		Content:   text,
		Timestamp: time.Unix(int64(update.Message.Date), 0),
	})
}

const telegramWelcome = "👋 Hi! Put ticker symbols in triple brackets anywhere in a message:\n\n" +
	"[[[AAPL]]] full report\n[[[AAPL,12]]] report with a 12 month chart\n" +
	"[[[-AAPL]]] price only\n[[[?apple]]] symbol search\n\n/stock AAPL quick quote, /help for more"

// commandContent maps slash commands onto the text the dispatch loop
// understands. ok is false for commands answered locally.
func commandContent(name, args string) (string, bool) {
	args = strings.TrimSpace(args)
	switch strings.ToLower(name) {
	case "stock", "quote":
		return strings.TrimSpace("!stock " + args), true
	case "help":
		return "!help", true
	case "search":
		return "[[[?" + args + "]]]", true
	default:
		return "", false
	}
}

func (t *Telegram) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	_, _ = t.bot.Request(tgbotapi.NewCallback(cq.ID, ""))

	if cq.From != nil && !t.isAllowed(cq.From.ID) {
		return
	}
	ev, err := domain.ParseControlEvent(cq.Data)
	if err != nil || t.refresh == nil {
		t.logger.Warn("ignoring telegram callback", "data", cq.Data, "err", err)
		return
	}

	// The refresh fetches market data; keep the polling loop free meanwhile.
	t.callbacks.Add(1)
	go func() {
		defer t.callbacks.Done()
		t.applyRefresh(ctx, cq.Message, ev)
	}()
}

// applyRefresh re-renders the reply behind a pressed button and edits msg
// in place.
func (t *Telegram) applyRefresh(ctx context.Context, msg *tgbotapi.Message, ev domain.ControlEvent) {
	chatID := msg.Chat.ID
	msgID := msg.MessageID
	reply := t.refresh(ctx, ev)
	keyboard := telegramKeyboard(reply.Control)

	var edit tgbotapi.Chattable
	switch {
	case len(msg.Photo) > 0 && reply.Image != nil:
		caption, fits := telegramCaption(reply)
		if !fits {
			caption = ""
		}
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{Name: reply.Image.Name, Bytes: reply.Image.Data})
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		edit = tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{ChatID: chatID, MessageID: msgID, ReplyMarkup: keyboard},
			Media:    photo,
		}
	case len(msg.Photo) > 0:
		c := tgbotapi.NewEditMessageCaption(chatID, msgID, RenderHTMLLimit(reply, telegramMaxCaptionLen))
		c.ParseMode = tgbotapi.ModeHTML
		c.ReplyMarkup = keyboard
		edit = c
	case reply.Image != nil:
		// A text message cannot grow a photo; replace it.
		t.sendReply(chatID, 0, reply)
		if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
			t.logger.Debug("telegram delete failed", "chat_id", chatID, "err", err)
		}
		return
	default:
		c := tgbotapi.NewEditMessageText(chatID, msgID, RenderHTMLLimit(reply, telegramMaxMsgLen))
		c.ParseMode = tgbotapi.ModeHTML
		c.ReplyMarkup = keyboard
		edit = c
	}

	if _, err := t.bot.Request(edit); err != nil {
		t.logger.Error("telegram edit failed", "chat_id", chatID, "symbol", ev.Symbol, "err", err)
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// sendReply sends one reply as a photo with caption, or as an HTML message.
// Charts whose caption would overflow go out bare, followed by the text.
func (t *Telegram) sendReply(chatID int64, replyTo int, r domain.Reply) {
	keyboard := telegramKeyboard(r.Control)

	if r.Image != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: r.Image.Name, Bytes: r.Image.Data})
		photo.ReplyToMessageID = replyTo
		caption, fits := telegramCaption(r)
		if fits {
			photo.Caption = caption
			photo.ParseMode = tgbotapi.ModeHTML
			if keyboard != nil {
				photo.ReplyMarkup = *keyboard
			}
		}
		if _, err := t.bot.Send(photo); err != nil {
			t.logger.Error("telegram photo failed", "chat_id", chatID, "err", err)
		} else if fits {
			return
		}
	}

	msg := tgbotapi.NewMessage(chatID, RenderHTMLLimit(r, telegramMaxMsgLen))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("telegram send failed", "chat_id", chatID, "title", r.Embed.Title, "err", err)
	}
}

func telegramKeyboard(c *domain.Control) *tgbotapi.InlineKeyboardMarkup {
	buttons := ControlButtons(c, 0)
	if len(buttons) == 0 {
		return nil
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		label := b.Label
		if c.Kind == domain.ControlFull && b.Style == StylePrimary {
			label = "• " + label // no button colours; mark the active period
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, b.Payload))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

func telegramCaption(r domain.Reply) (string, bool) {
	text := RenderHTML(r)
	return text, len(text) <= telegramMaxCaptionLen
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends a single plain text chunk with retry and rate limit handling.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			return
		}

		errStr := err.Error()

		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
