// Package notify contains reference eventbus.Handler implementations.
// Notification transports proper (Telegram, etc.) are out of scope; this
// package exists so the event surface (spec.md §6) has at least one
// observable Subscriber, used in integration tests and as a minimal
// operator-facing default.
package notify

import (
	"fmt"
	"io"

	"github.com/tausackhn/twlived-go/internal/eventbus"
)

// ConsoleSubscriber prints human-readable lines for StreamOnline,
// StreamOffline, and ExceptionEvent to an io.Writer (typically os.Stdout).
type ConsoleSubscriber struct {
	out io.Writer
}

// NewConsoleSubscriber returns a ConsoleSubscriber writing to out.
func NewConsoleSubscriber(out io.Writer) *ConsoleSubscriber {
	return &ConsoleSubscriber{out: out}
}

// OnEvent implements eventbus.Handler.
func (s *ConsoleSubscriber) OnEvent(e eventbus.Event) {
	switch ev := e.(type) {
	case eventbus.StreamOnline:
		fmt.Fprintf(s.out, "[online] %s is now live playing %q\n", ev.Stream.ChannelName, ev.Stream.GameName)
	case eventbus.StreamOffline:
		fmt.Fprintf(s.out, "[offline] %s went offline\n", ev.Channel.Name)
	case eventbus.ExceptionEvent:
		fmt.Fprintf(s.out, "[error] %s: %v\n", ev.Message, ev.Err)
	}
}

// Subscribe registers the subscriber on bus for the event types it handles.
func (s *ConsoleSubscriber) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(s,
		eventbus.TypeOf[eventbus.StreamOnline](),
		eventbus.TypeOf[eventbus.StreamOffline](),
		eventbus.TypeOf[eventbus.ExceptionEvent](),
	)
}
