package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// MaxRepliesPerSend is the platform cap on structured items in one outbound send.
const MaxRepliesPerSend = 10

// Color is an RGB embed accent.
type Color int

const (
	ColorGreen  Color = 0x2ecc71
	ColorRed    Color = 0xe74c3c
	ColorOrange Color = 0xe67e22
	ColorBlue   Color = 0x3498db
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the structured body of a reply.
type Embed struct {
	Title       string
	Description string
	Color       Color
	Fields      []Field
}

func (e *Embed) AddField(name, value string, inline bool) {
	e.Fields = append(e.Fields, Field{Name: name, Value: value, Inline: inline})
}

// Image is a file attached to a reply.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ControlKind selects the button set bound to a reply.
type ControlKind string

const (
	ControlFull  ControlKind = "full"
	ControlBrief ControlKind = "brief"
)

// Control binds a reply to the symbol and chart period its buttons act on.
type Control struct {
	Kind         ControlKind
	Symbol       string
	PeriodMonths int
}

// Reply is one structured outbound unit.
type Reply struct {
	Embed   Embed
	Image   *Image
	Control *Control
}

// ControlAction is the button a user pressed.
type ControlAction string

const (
	ActionRefresh ControlAction = "refresh"
	ActionPeriod  ControlAction = "period"
	ActionFull    ControlAction = "full"
)

// ControlEvent is a decoded button press. PeriodMonths is the period the
// resulting reply should show; Slot is the reply's position in its message.
type ControlEvent struct {
	Kind         ControlKind
	Action       ControlAction
	Symbol       string
	PeriodMonths int
	Slot         int
}

// RefreshFunc re-renders a reply for a control event.
type RefreshFunc func(ctx context.Context, ev ControlEvent) Reply

const controlPrefix = "stk"

// MaxControlPayload is Telegram's callback data limit, the tighter of the
// button payload limits (Discord custom IDs allow 100 characters).
const MaxControlPayload = 64

// Encode packs the event into a button payload. Check Valid first; a symbol
// containing the separator does not survive the round trip.
func (ev ControlEvent) Encode() string {
	return strings.Join([]string{
		controlPrefix,
		string(ev.Kind),
		string(ev.Action),
		ev.Symbol,
		strconv.Itoa(ev.PeriodMonths),
		strconv.Itoa(ev.Slot),
	}, "|")
}

// Valid reports whether the event encodes to a payload that ParseControlEvent
// accepts and every platform can carry.
func (ev ControlEvent) Valid() bool {
	if ev.Symbol == "" || strings.Contains(ev.Symbol, "|") {
		return false
	}
	return len(ev.Encode()) <= MaxControlPayload
}

// IsControlPayload reports whether s was produced by ControlEvent.Encode.
func IsControlPayload(s string) bool {
	return strings.HasPrefix(s, controlPrefix+"|")
}

// ParseControlEvent decodes a payload produced by Encode.
func ParseControlEvent(s string) (ControlEvent, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 6 || parts[0] != controlPrefix {
		return ControlEvent{}, fmt.Errorf("malformed control payload %q", s)
	}
	period, err := strconv.Atoi(parts[4])
	if err != nil {
		return ControlEvent{}, fmt.Errorf("control period: %w", err)
	}
	slot, err := strconv.Atoi(parts[5])
	if err != nil {
		return ControlEvent{}, fmt.Errorf("control slot: %w", err)
	}
	ev := ControlEvent{
		Kind:         ControlKind(parts[1]),
		Action:       ControlAction(parts[2]),
		Symbol:       parts[3],
		PeriodMonths: period,
		Slot:         slot,
	}
	switch ev.Kind {
	case ControlFull, ControlBrief:
	default:
		return ControlEvent{}, fmt.Errorf("unknown control kind %q", parts[1])
	}
	switch ev.Action {
	case ActionRefresh, ActionPeriod, ActionFull:
	default:
		return ControlEvent{}, fmt.Errorf("unknown control action %q", parts[2])
	}
	if ev.Symbol == "" {
		return ControlEvent{}, fmt.Errorf("control payload without symbol")
	}
	return ev, nil
}
