package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stockbot/internal/domain"
	"stockbot/internal/metrics"
)

const defaultTypingKeepalive = 9 * time.Second

// Sender accepts outbound messages. domain.MessageBus satisfies it.
type Sender interface {
	SendOutbound(msg domain.OutboundMessage)
}

// Batch splits replies into consecutive groups of at most size, preserving order.
func Batch(replies []domain.Reply, size int) [][]domain.Reply {
	if size <= 0 {
		size = domain.MaxRepliesPerSend
	}
	if len(replies) == 0 {
		return nil
	}
	batches := make([][]domain.Reply, 0, (len(replies)+size-1)/size)
	for start := 0; start < len(replies); start += size {
		end := min(start+size, len(replies))
		batches = append(batches, replies[start:end])
	}
	return batches
}

type AggregatorConfig struct {
	Sender          Sender
	Logger          *slog.Logger
	TypingKeepalive time.Duration // typing re-send interval (default 9s)
}

// Aggregator shows one typing indicator per message and delivers the
// replies in platform-sized batches.
type Aggregator struct {
	sender    Sender
	logger    *slog.Logger
	keepalive time.Duration
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TypingKeepalive <= 0 {
		cfg.TypingKeepalive = defaultTypingKeepalive
	}
	return &Aggregator{sender: cfg.Sender, logger: cfg.Logger, keepalive: cfg.TypingKeepalive}
}

// StartTyping signals typing for msg's chat and repeats it until the
// returned stop function is called or ctx ends. stop blocks until the
// keepalive goroutine has exited and may be called more than once.
func (a *Aggregator) StartTyping(ctx context.Context, msg domain.InboundMessage) (stop func()) {
	typing := domain.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Kind: domain.OutboundTyping}
	a.sender.SendOutbound(typing)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(a.keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.sender.SendOutbound(typing)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// Deliver sends replies for msg in batches of at most domain.MaxRepliesPerSend.
// Once ctx is cancelled the remaining batches are discarded. It returns the
// number of sends made.
func (a *Aggregator) Deliver(ctx context.Context, msg domain.InboundMessage, replies []domain.Reply) int {
	sends := 0
	for _, batch := range Batch(replies, domain.MaxRepliesPerSend) {
		if err := ctx.Err(); err != nil {
			a.logger.Info("discarding replies for cancelled message",
				"channel", msg.Channel, "chat_id", msg.ChatID, "sent", sends, "err", err)
			break
		}
		a.sender.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			ReplyTo: msg.MessageID,
			Kind:    domain.OutboundReplies,
			Replies: batch,
		})
		sends++
		metrics.SendsTotal.Inc()
		metrics.RepliesSentTotal.Add(int64(len(batch)))
	}
	return sends
}
