package notify

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleSubscriber_PrintsKnownEvents(t *testing.T) {
	var buf bytes.Buffer
	sub := NewConsoleSubscriber(&buf)

	sub.OnEvent(eventbus.StreamOnline{Stream: twitchapi.StreamInfo{ChannelName: "alice", GameName: "Chess"}})
	sub.OnEvent(eventbus.StreamOffline{Channel: twitchapi.Channel{Name: "alice"}})
	sub.OnEvent(eventbus.ExceptionEvent{Message: "boom", Err: errors.New("bad")})

	out := buf.String()
	for _, want := range []string{"alice", "Chess", "boom", "bad"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestConsoleSubscriber_IgnoresOtherEvents(t *testing.T) {
	var buf bytes.Buffer
	sub := NewConsoleSubscriber(&buf)

	sub.OnEvent(eventbus.PlaylistUpdated{Total: 5, ToLoad: 2})

	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestConsoleSubscriber_Subscribe(t *testing.T) {
	buf := &lockedBuffer{}
	sub := NewConsoleSubscriber(buf)
	bus := eventbus.New()
	sub.Subscribe(bus)

	bus.Publish(eventbus.StreamOnline{Stream: twitchapi.StreamInfo{ChannelName: "bob"}})

	deadline := time.After(time.Second)
	for {
		if strings.Contains(buf.String(), "bob") {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("output = %q, want it to contain \"bob\"", buf.String())
		case <-time.After(time.Millisecond):
		}
	}
}
