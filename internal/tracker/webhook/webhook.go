// Package webhook implements the Webhook Tracker (spec.md §4.6): a small
// gin HTTP server serving the hub verification handshake and stream-change
// notifications, plus the subscribe/renew/unsubscribe lifecycle that keeps
// the upstream hub pointed at it.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// DefaultLeaseSeconds is the subscription lease length requested from the
// hub (spec.md §4.6), and also the background renewer's period.
const DefaultLeaseSeconds = 86400

// MaxSubscribeAttempts and SubscribeRetryWait bound the subscribe-on-run
// retry policy (spec.md §4.6 "Failures are retried with bounded backoff").
const (
	MaxSubscribeAttempts = 10
	SubscribeRetryWait   = 10 * time.Second
)

// maxNotificationIDs bounds the dedup deque (spec.md §4.6).
const maxNotificationIDs = 100

type subscriptionState string

const (
	stateUnsubscribed subscriptionState = "unsubscribed"
	stateSubscribed   subscriptionState = "subscribed"
)

// SignatureMismatchError is returned (and logged) when a notification's
// X-Hub-Signature does not match the computed HMAC.
type SignatureMismatchError struct{}

func (*SignatureMismatchError) Error() string { return "webhook: signature mismatch" }

// Options configures a Tracker.
type Options struct {
	// Addr is the address the HTTP server listens on, e.g. ":8080".
	Addr string
	// CallbackBaseURL is this server's externally reachable base URL,
	// e.g. "https://example.com". The tracker appends
	// "/webhook/streams/<channel>".
	CallbackBaseURL string
	// LeaseSeconds defaults to DefaultLeaseSeconds.
	LeaseSeconds int
}

// Tracker serves the webhook callback endpoint and manages hub
// subscriptions for a fixed channel set.
type Tracker struct {
	channels []twitchapi.Channel
	client   twitchapi.Client
	bus      *eventbus.Bus
	opts     Options
	secret   string

	mu        sync.Mutex
	state     map[string]subscriptionState // channel name -> state
	lastEvent map[string]eventbus.StreamInfo
	online    map[string]bool
	seenIDs   *idDeque

	server      *http.Server
	renewCancel context.CancelFunc
	renewDone   chan struct{}
}

// New constructs a Tracker. A random per-server HMAC secret is generated.
func New(channels []twitchapi.Channel, client twitchapi.Client, bus *eventbus.Bus, opts Options) (*Tracker, error) {
	if opts.LeaseSeconds <= 0 {
		opts.LeaseSeconds = DefaultLeaseSeconds
	}
	secret, err := randomSecret()
	if err != nil {
		return nil, fmt.Errorf("webhook: generate secret: %w", err)
	}

	state := make(map[string]subscriptionState, len(channels))
	for _, ch := range channels {
		state[strings.ToLower(ch.Name)] = stateUnsubscribed
	}

	return &Tracker{
		channels:  channels,
		client:    client,
		bus:       bus,
		opts:      opts,
		secret:    secret,
		state:     state,
		lastEvent: make(map[string]eventbus.StreamInfo),
		online:    make(map[string]bool),
		seenIDs:   newIDDeque(maxNotificationIDs),
	}, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Run subscribes every channel, starts the HTTP server, and starts the
// background lease renewer. It returns once the server is listening;
// callers should call Stop for graceful shutdown.
func (t *Tracker) Run(ctx context.Context) error {
	for _, ch := range t.channels {
		if err := t.subscribeWithRetry(ctx, ch, "subscribe"); err != nil {
			slog.Error("webhook tracker: subscribe failed after retries", "channel", ch.Name, "error", err)
			t.bus.Publish(eventbus.ExceptionEvent{Base: eventbus.NewBase(), Message: "webhook subscribe failed", Err: err})
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/webhook/streams/:channel", t.handleGet)
	engine.POST("/webhook/streams/:channel", t.handlePost)

	t.server = &http.Server{
		Addr:         t.opts.Addr,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	t.renewCancel = cancel
	t.renewDone = make(chan struct{})
	go t.renewLoop(renewCtx)

	return nil
}

// Stop cancels the renewal task, unsubscribes every still-subscribed
// channel, then shuts down the HTTP server (spec.md §4.6).
func (t *Tracker) Stop() {
	if t.renewCancel != nil {
		t.renewCancel()
		<-t.renewDone
	}

	for _, ch := range t.channels {
		t.mu.Lock()
		st := t.state[strings.ToLower(ch.Name)]
		t.mu.Unlock()
		if st != stateSubscribed {
			continue
		}
		if err := t.unsubscribe(context.Background(), ch); err != nil {
			slog.Warn("webhook tracker: unsubscribe failed", "channel", ch.Name, "error", err)
		}
	}

	if t.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webhook tracker: server shutdown error", "error", err)
		}
	}
}

func (t *Tracker) renewLoop(ctx context.Context) {
	defer close(t.renewDone)
	period := time.Duration(t.opts.LeaseSeconds) * time.Second
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ch := range t.channels {
				if err := t.subscribeWithRetry(ctx, ch, "subscribe"); err != nil {
					slog.Warn("webhook tracker: lease renewal failed", "channel", ch.Name, "error", err)
				}
			}
		}
	}
}

func (t *Tracker) subscribeWithRetry(ctx context.Context, ch twitchapi.Channel, mode string) error {
	callback := t.callbackURL(ch)
	var lastErr error
	for attempt := 0; attempt < MaxSubscribeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(SubscribeRetryWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := t.client.PostWebhook(ctx, callback, mode, topicFor(ch), t.secret, t.opts.LeaseSeconds)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("webhook: %s failed after %d attempts: %w", mode, MaxSubscribeAttempts, lastErr)
}

func (t *Tracker) unsubscribe(ctx context.Context, ch twitchapi.Channel) error {
	return t.client.PostWebhook(ctx, t.callbackURL(ch), "unsubscribe", topicFor(ch), t.secret, 0)
}

func (t *Tracker) callbackURL(ch twitchapi.Channel) string {
	return strings.TrimRight(t.opts.CallbackBaseURL, "/") + "/webhook/streams/" + strings.ToLower(ch.Name)
}

func topicFor(ch twitchapi.Channel) string {
	return "streams?user_id=" + ch.ID
}

func (t *Tracker) findChannel(name string) (twitchapi.Channel, bool) {
	name = strings.ToLower(name)
	for _, ch := range t.channels {
		if strings.ToLower(ch.Name) == name {
			return ch, true
		}
	}
	return twitchapi.Channel{}, false
}

// handleGet implements the verification handshake (spec.md §4.6).
func (t *Tracker) handleGet(c *gin.Context) {
	channelName := c.Param("channel")
	if _, ok := t.findChannel(channelName); !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	mode := c.Query("hub.mode")
	challenge := c.Query("hub.challenge")

	t.mu.Lock()
	defer t.mu.Unlock()

	switch mode {
	case "subscribe", "unsubscribe":
		t.state[strings.ToLower(channelName)] = subscriptionState(mode + "d")
		c.String(http.StatusOK, "%s", challenge)
	case "denied":
		t.state[strings.ToLower(channelName)] = stateUnsubscribed
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusBadRequest)
	}
}

// handlePost implements notification delivery (spec.md §4.6).
func (t *Tracker) handlePost(c *gin.Context) {
	channelName := c.Param("channel")
	ch, ok := t.findChannel(channelName)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	notificationID := c.GetHeader("Twitch-Notification-Id")
	if notificationID == "" {
		c.Status(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if !t.verifySignature(c.GetHeader("X-Hub-Signature"), body) {
		slog.Warn("webhook tracker: signature mismatch", "channel", channelName)
		c.Status(http.StatusForbidden)
		return
	}

	t.mu.Lock()
	isNew := t.seenIDs.addIfAbsent(notificationID)
	t.mu.Unlock()
	if !isNew {
		c.Status(http.StatusOK)
		return
	}

	var payload struct {
		Data []struct {
			UserID    string `json:"user_id"`
			UserLogin string `json:"user_login"`
			GameName  string `json:"game_name"`
			Type      string `json:"type"`
			StartedAt string `json:"started_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var current eventbus.StreamInfo
	present := len(payload.Data) > 0
	if present {
		startedAt, _ := time.Parse(time.RFC3339, payload.Data[0].StartedAt)
		current = eventbus.StreamInfo{
			ChannelName: strings.ToLower(payload.Data[0].UserLogin),
			ChannelID:   payload.Data[0].UserID,
			GameName:    payload.Data[0].GameName,
			Status:      payload.Data[0].Type,
			StartedAt:   startedAt,
		}
	}
	t.classify(ch, current, present)

	c.Status(http.StatusOK)
}

func (t *Tracker) verifySignature(header string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(t.secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// classify applies the same transition-and-suppression logic as the
// polling tracker (spec.md §4.5), keyed by last_event[channel], to a single
// notification instead of a batch tick.
func (t *Tracker) classify(ch twitchapi.Channel, current eventbus.StreamInfo, present bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasOnline := t.online[ch.ID]

	switch {
	case present && !wasOnline:
		t.online[ch.ID] = true
		t.lastEvent[ch.ID] = current
		t.bus.Publish(eventbus.StreamOnline{Base: eventbus.NewBase(), Stream: current})
	case !present && wasOnline:
		delete(t.online, ch.ID)
		delete(t.lastEvent, ch.ID)
		t.bus.Publish(eventbus.StreamOffline{Base: eventbus.NewBase(), Channel: ch})
	case present && wasOnline:
		prev := t.lastEvent[ch.ID]
		if !prev.Equal(current) {
			t.lastEvent[ch.ID] = current
			t.bus.Publish(eventbus.StreamChanged{Base: eventbus.NewBase(), Previous: prev, Current: current})
		}
	default:
		// stayed offline: suppress.
	}
}

// idDeque is a bounded FIFO of recently seen ids, used to deduplicate
// notification deliveries (spec.md §4.6).
type idDeque struct {
	max   int
	order []string
	seen  map[string]struct{}
}

func newIDDeque(max int) *idDeque {
	return &idDeque{max: max, seen: make(map[string]struct{}, max)}
}

// addIfAbsent records id and returns true if it was not already present.
func (d *idDeque) addIfAbsent(id string) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	if len(d.order) > d.max {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return true
}
