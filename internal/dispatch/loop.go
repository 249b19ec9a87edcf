package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stockbot/internal/command"
	"stockbot/internal/domain"
	"stockbot/internal/metrics"
)

const defaultMaxConcurrentMessages = 5

// Loop consumes inbound messages from the bus and answers them.
type Loop struct {
	bus         domain.MessageBus
	router      *Router
	aggregator  *Aggregator
	logger      *slog.Logger
	concurrency int
}

type LoopConfig struct {
	Bus             domain.MessageBus
	Router          *Router
	Logger          *slog.Logger
	Concurrency     int           // max parallel messages (default 5)
	TypingKeepalive time.Duration // see AggregatorConfig
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultMaxConcurrentMessages
	}
	return &Loop{
		bus:    cfg.Bus,
		router: cfg.Router,
		aggregator: NewAggregator(AggregatorConfig{
			Sender:          cfg.Bus,
			Logger:          cfg.Logger,
			TypingKeepalive: cfg.TypingKeepalive,
		}),
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages with bounded concurrency until ctx is done
// or the bus is closed, then waits for in-flight messages.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatch loop started", "concurrency", l.concurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatch loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, dispatch loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				l.processMessage(ctx, m)
			}(msg)
		}
	}
}

// processMessage answers one message and sends the result through the bus.
func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("message handling panicked", "channel", msg.Channel, "chat_id", msg.ChatID, "panic", p)
		}
	}()

	if pc := ParsePrefix(msg.Content); pc != nil {
		text, handled := l.router.HandlePrefix(ctx, pc)
		if handled && text != "" {
			l.bus.SendOutbound(domain.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				ReplyTo: msg.MessageID,
				Kind:    domain.OutboundText,
				Content: text,
			})
		}
		return
	}

	cmds := command.Parse(msg.Content)
	if len(cmds) == 0 {
		return
	}

	metrics.MessagesTotal.Inc()
	metrics.InflightMessages.Inc()
	defer metrics.InflightMessages.Dec()

	l.logger.Info("processing message",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"sender", msg.SenderID,
		"commands", len(cmds),
	)

	stop := l.aggregator.StartTyping(ctx, msg)
	defer stop()
	replies := l.router.Route(ctx, cmds)
	sends := l.aggregator.Deliver(ctx, msg, replies)

	l.logger.Debug("message answered", "channel", msg.Channel, "chat_id", msg.ChatID, "replies", len(replies), "sends", sends)
}

// Result is the synchronous answer to one message.
type Result struct {
	Replies []domain.Reply
	Text    string // prefix command answer
}

// ProcessDirect answers content synchronously without touching the bus.
// Used by the CLI.
func (l *Loop) ProcessDirect(ctx context.Context, content string) Result {
	if pc := ParsePrefix(content); pc != nil {
		text, _ := l.router.HandlePrefix(ctx, pc)
		return Result{Text: text}
	}
	if strings.TrimSpace(content) == "" {
		return Result{}
	}
	return Result{Replies: l.router.Route(ctx, command.Parse(content))}
}
