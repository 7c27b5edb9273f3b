package eventbus

import (
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	seen   chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan struct{}, 64)}
}

func (r *recordingHandler) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *recordingHandler) waitN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.seen:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d/%d", i+1, n)
		}
	}
}

func (r *recordingHandler) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestSubscribeConcreteTypeDeliversOnlyMatchingEvents(t *testing.T) {
	b := New()
	h := newRecordingHandler()
	b.Subscribe(h, TypeOf[StreamOnline]())

	b.Publish(StreamOnline{Base: NewBase(), Stream: StreamInfo{ChannelName: "foo"}})
	b.Publish(StreamOffline{Base: NewBase(), Channel: Channel{Name: "foo"}})

	h.waitN(t, 1)
	time.Sleep(20 * time.Millisecond)

	events := h.snapshot()
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
	if _, ok := events[0].(StreamOnline); !ok {
		t.Fatalf("want StreamOnline, got %T", events[0])
	}
}

func TestSubscribeByCategoryDeliversAllConcreteTypes(t *testing.T) {
	b := New()
	h := newRecordingHandler()
	b.Subscribe(h, TypeOf[StreamEvent]())

	b.Publish(StreamOnline{Base: NewBase()})
	b.Publish(StreamOffline{Base: NewBase()})
	b.Publish(StreamChanged{Base: NewBase()})
	b.Publish(ExceptionEvent{Base: NewBase(), Message: "not a stream event"})

	h.waitN(t, 3)
	time.Sleep(20 * time.Millisecond)

	if got := len(h.snapshot()); got != 3 {
		t.Fatalf("want 3 events, got %d", got)
	}
}

func TestSubscribeBothConcreteAndCategoryDeliversTwice(t *testing.T) {
	b := New()
	h := newRecordingHandler()
	b.Subscribe(h, TypeOf[StreamEvent](), TypeOf[StreamOnline]())

	b.Publish(StreamOnline{Base: NewBase()})

	h.waitN(t, 2)
	time.Sleep(20 * time.Millisecond)

	if got := len(h.snapshot()); got != 2 {
		t.Fatalf("want 2 deliveries for dual registration, got %d", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	h := newRecordingHandler()
	b.Subscribe(h, TypeOf[StreamOnline]())
	b.Unsubscribe(h, TypeOf[StreamOnline]())

	b.Publish(StreamOnline{Base: NewBase()})

	time.Sleep(50 * time.Millisecond)
	if got := len(h.snapshot()); got != 0 {
		t.Fatalf("want 0 events after unsubscribe, got %d", got)
	}
}

func TestFIFOPerPublisherSubscriberPair(t *testing.T) {
	b := New()
	h := newRecordingHandler()
	b.Subscribe(h, TypeOf[PlaylistUpdated]())

	const n = 50
	for i := 0; i < n; i++ {
		b.Publish(PlaylistUpdated{Base: NewBase(), Total: i})
	}

	h.waitN(t, n)
	events := h.snapshot()
	for i, e := range events {
		pu := e.(PlaylistUpdated)
		if pu.Total != i {
			t.Fatalf("out-of-order delivery at %d: got Total=%d", i, pu.Total)
		}
	}
}

type panickingHandler struct{}

func (panickingHandler) OnEvent(Event) { panic("boom") }

func TestPanicInOneSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New()
	bad := panickingHandler{}
	good := newRecordingHandler()

	b.Subscribe(bad, TypeOf[StreamOnline]())
	b.Subscribe(good, TypeOf[StreamOnline]())

	b.Publish(StreamOnline{Base: NewBase()})

	good.waitN(t, 1)
}

func TestConnectStoresClient(t *testing.T) {
	b := New()
	type fakeClient struct{ name string }
	b.Connect(&fakeClient{name: "helix"})

	c, ok := b.Client().(*fakeClient)
	if !ok || c.name != "helix" {
		t.Fatalf("Connect/Client round-trip failed: %#v", b.Client())
	}
}
