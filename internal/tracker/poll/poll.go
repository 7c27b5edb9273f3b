// Package poll implements the Polling Tracker (spec.md §4.5): on each tick
// it batch-queries stream status for a fixed channel set and emits
// StreamOnline/StreamOffline/StreamChanged transitions onto an
// internal/eventbus.Bus, suppressing repeats via a per-channel last-event
// cache.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// DefaultPollPeriod is the tick interval when Tracker is constructed with a
// zero Period (spec.md §4.5).
const DefaultPollPeriod = 60 * time.Second

// Tracker polls a fixed set of channels for stream status changes.
type Tracker struct {
	channels []twitchapi.Channel
	client   twitchapi.Client
	bus      *eventbus.Bus
	period   time.Duration

	mu        sync.Mutex
	lastEvent map[string]eventbus.StreamInfo // channel ID -> last known online StreamInfo
	online    map[string]bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Tracker. period defaults to DefaultPollPeriod when zero.
func New(channels []twitchapi.Channel, client twitchapi.Client, bus *eventbus.Bus, period time.Duration) *Tracker {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &Tracker{
		channels:  channels,
		client:    client,
		bus:       bus,
		period:    period,
		lastEvent: make(map[string]eventbus.StreamInfo),
		online:    make(map[string]bool),
	}
}

// Run ticks until ctx is cancelled or Stop is called. It blocks; call it
// from its own goroutine.
func (t *Tracker) Run(ctx context.Context) {
	t.mu.Lock()
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	stopCh := t.stopCh
	doneCh := t.doneCh
	t.mu.Unlock()
	defer close(doneCh)

	for {
		t.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-time.After(t.period):
		}
	}
}

// Stop requests graceful termination; the loop observes this at the next
// iteration boundary (spec.md §5 "Cancellation").
func (t *Tracker) Stop() {
	t.mu.Lock()
	stopCh := t.stopCh
	doneCh := t.doneCh
	t.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	if doneCh != nil {
		<-doneCh
	}
}

func (t *Tracker) tick(ctx context.Context) {
	streams, err := t.client.GetStreams(ctx, t.channels)
	if err != nil {
		slog.Warn("poll tracker: GetStreams failed", "error", err)
		t.bus.Publish(eventbus.ExceptionEvent{Base: eventbus.NewBase(), Message: "poll tracker tick failed", Err: err})
		return
	}

	byID := make(map[string]eventbus.StreamInfo, len(streams))
	for _, s := range streams {
		byID[s.ChannelID] = s
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.channels {
		current, isOnline := byID[ch.ID]
		wasOnline := t.online[ch.ID]

		switch {
		case isOnline && !wasOnline:
			t.online[ch.ID] = true
			t.lastEvent[ch.ID] = current
			t.bus.Publish(eventbus.StreamOnline{Base: eventbus.NewBase(), Stream: current})
		case !isOnline && wasOnline:
			delete(t.online, ch.ID)
			delete(t.lastEvent, ch.ID)
			t.bus.Publish(eventbus.StreamOffline{Base: eventbus.NewBase(), Channel: ch})
		case isOnline && wasOnline:
			prev := t.lastEvent[ch.ID]
			if !prev.Equal(current) {
				t.lastEvent[ch.ID] = current
				t.bus.Publish(eventbus.StreamChanged{Base: eventbus.NewBase(), Previous: prev, Current: current})
			}
		default:
			// stayed offline: suppress.
		}
	}
}
