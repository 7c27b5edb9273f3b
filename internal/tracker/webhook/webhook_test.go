package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/mock/gomock"

	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
	"github.com/tausackhn/twlived-go/internal/twitchapi/twitchapimock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestTracker(t *testing.T) (*Tracker, *gin.Engine, chan eventbus.Event) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := twitchapimock.NewMockClient(ctrl)

	bus := eventbus.New()
	ch := make(chan eventbus.Event, 64)
	bus.Subscribe(eventbus.HandlerFunc(func(e eventbus.Event) { ch <- e }),
		eventbus.TypeOf[eventbus.StreamEvent]())

	tr, err := New([]twitchapi.Channel{{Name: "alice", ID: "1"}}, client, bus, Options{
		CallbackBaseURL: "http://example.com",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	engine := gin.New()
	engine.GET("/webhook/streams/:channel", tr.handleGet)
	engine.POST("/webhook/streams/:channel", tr.handlePost)
	return tr, engine, ch
}

func TestHandleGet_SubscribeHandshake(t *testing.T) {
	_, engine, _ := newTestTracker(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/streams/alice?hub.mode=subscribe&hub.challenge=xyz123&hub.topic=streams", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "xyz123" {
		t.Fatalf("body = %q, want echoed challenge", rec.Body.String())
	}
}

func TestHandleGet_Denied(t *testing.T) {
	_, engine, _ := newTestTracker(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/streams/alice?hub.mode=denied", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleGet_UnknownChannel(t *testing.T) {
	_, engine, _ := newTestTracker(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/streams/nobody?hub.mode=subscribe&hub.challenge=x", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGet_UnknownMode(t *testing.T) {
	_, engine, _ := newTestTracker(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/streams/alice?hub.mode=bogus", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postNotification(t *testing.T, engine *gin.Engine, tr *Tracker, channel, notificationID string, body []byte, badSig bool) *httptest.ResponseRecorder {
	t.Helper()
	sig := sign(tr.secret, body)
	if badSig {
		sig = "sha256=" + hex.EncodeToString(make([]byte, 32))
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/streams/"+channel, bytes.NewReader(body))
	if notificationID != "" {
		req.Header.Set("Twitch-Notification-Id", notificationID)
	}
	req.Header.Set("X-Hub-Signature", sig)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHandlePost_OnlineThenOffline(t *testing.T) {
	tr, engine, events := newTestTracker(t)

	onlinePayload, _ := json.Marshal(map[string]any{
		"data": []map[string]any{{
			"user_id":    "1",
			"user_login": "alice",
			"game_name":  "A",
			"type":       "live",
			"started_at": time.Unix(0, 0).UTC().Format(time.RFC3339),
		}},
	})
	rec := postNotification(t, engine, tr, "alice", "notif-1", onlinePayload, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case e := <-events:
		if _, ok := e.(eventbus.StreamOnline); !ok {
			t.Fatalf("got %T, want StreamOnline", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for StreamOnline")
	}

	offlinePayload, _ := json.Marshal(map[string]any{"data": []map[string]any{}})
	rec = postNotification(t, engine, tr, "alice", "notif-2", offlinePayload, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case e := <-events:
		if _, ok := e.(eventbus.StreamOffline); !ok {
			t.Fatalf("got %T, want StreamOffline", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for StreamOffline")
	}
}

func TestHandlePost_DuplicateNotificationSuppressed(t *testing.T) {
	tr, engine, events := newTestTracker(t)

	payload, _ := json.Marshal(map[string]any{
		"data": []map[string]any{{
			"user_id": "1", "user_login": "alice", "type": "live",
			"started_at": time.Unix(0, 0).UTC().Format(time.RFC3339),
		}},
	})

	postNotification(t, engine, tr, "alice", "dup-1", payload, false)
	<-events // StreamOnline

	rec := postNotification(t, engine, tr, "alice", "dup-1", payload, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event on duplicate delivery: %T", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandlePost_MissingNotificationID(t *testing.T) {
	tr, engine, _ := newTestTracker(t)
	payload := []byte(`{"data":[]}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/streams/alice", bytes.NewReader(payload))
	req.Header.Set("X-Hub-Signature", sign(tr.secret, payload))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlePost_BadSignature(t *testing.T) {
	tr, engine, _ := newTestTracker(t)
	payload := []byte(`{"data":[]}`)

	rec := postNotification(t, engine, tr, "alice", "notif-x", payload, true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHandlePost_UnknownChannel(t *testing.T) {
	tr, engine, _ := newTestTracker(t)
	payload := []byte(`{"data":[]}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/streams/nobody", bytes.NewReader(payload))
	req.Header.Set("X-Hub-Signature", sign(tr.secret, payload))
	req.Header.Set("Twitch-Notification-Id", "n1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIDDeque_BoundsAndDedup(t *testing.T) {
	d := newIDDeque(3)
	if !d.addIfAbsent("a") {
		t.Fatal("a should be new")
	}
	if d.addIfAbsent("a") {
		t.Fatal("a should be a duplicate")
	}
	d.addIfAbsent("b")
	d.addIfAbsent("c")
	d.addIfAbsent("d") // evicts "a"
	if !d.addIfAbsent("a") {
		t.Fatal("a should be new again after eviction")
	}
}
