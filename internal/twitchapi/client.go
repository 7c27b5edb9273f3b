package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxIDsPerCall bounds how many channels get_streams can query in a single
// request, per spec.md §6.
const MaxIDsPerCall = 100

// maxRateLimitAttempts bounds the exponential backoff retried on a 429
// before a RateLimitedError is surfaced to the caller, per spec.md §5.
const maxRateLimitAttempts = 5

// Client is the contract the core subsystems require from the upstream
// platform's HTTP API (spec.md §6). Out of scope here: authentication flow
// details, request signing, and the concrete JSON shapes of any one
// platform. Production code wires an adapter (Helix, v5, or equivalent)
// satisfying this interface; tests use a generated mock
// (go.uber.org/mock/gomock) instead of a live network.
type Client interface {
	GetStreams(ctx context.Context, channels []Channel) ([]StreamInfo, error)
	GetVideo(ctx context.Context, videoID string) (VideoInfo, error)
	GetVideos(ctx context.Context, channel Channel, videoType VideoType, limit int) ([]VideoInfo, error)
	GetVariantPlaylist(ctx context.Context, videoID string) (string, error)
	GetLiveVariantPlaylist(ctx context.Context, channel Channel) (string, error)
	GetUsers(ctx context.Context, logins []string, ids []string) ([]Channel, error)
	PostWebhook(ctx context.Context, callbackURL, mode, topic, secret string, leaseSeconds int) error
}

// HTTPClient is the default Client implementation: a thin REST adapter with
// a per-process token bucket and 401-triggered single re-authorization, per
// spec.md §5 and §7.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rateLimiter

	mu          sync.Mutex
	accessToken string
	clientID    string
	clientSecret string
	reauthorize func(ctx context.Context) (string, error)

	userCache userCache
}

// NewHTTPClient constructs an HTTPClient. reauthorize is called at most once
// per request on a 401 to mint a fresh access token; it may be nil if the
// caller never expects tokens to expire.
func NewHTTPClient(baseURL, clientID, accessToken string, reauthorize func(ctx context.Context) (string, error)) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&dialer{connectTimeout: 30 * time.Second}).dialContext,
			},
		},
		limiter:     newRateLimiter(),
		accessToken: accessToken,
		clientID:    clientID,
		reauthorize: reauthorize,
		userCache:   newUserCache(),
	}
}

// do performs one HTTP round-trip with rate limiting, a single 401 retry via
// reauthorize, and translation of non-2xx responses into the typed errors of
// errors.go.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return &TransientError{Op: op, Err: err}
	}

	resp, err := c.doWithBackoff(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.reauthorize != nil {
		token, rerr := c.reauthorize(ctx)
		if rerr != nil {
			return &AuthExpiredError{Op: op}
		}
		c.mu.Lock()
		c.accessToken = token
		c.mu.Unlock()

		resp.Body.Close()
		resp, err = c.doWithBackoff(ctx, op, method, path, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthExpiredError{Op: op}
		}
	}

	return c.handleStatus(op, resp, out)
}

// doWithBackoff performs one request, retrying on a 429 response with the
// bounded exponential schedule of backoffSchedule (2, 4, 8, ... s) per
// spec.md §5, honoring a server-sent Retry-After when present. It gives up
// after maxRateLimitAttempts and returns a RateLimitedError.
func (c *HTTPClient) doWithBackoff(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	backoff := newBackoffSchedule(maxRateLimitAttempts)
	for {
		resp, err := c.doOnce(ctx, method, path, body)
		if err != nil {
			return nil, &TransientError{Op: op, Err: err}
		}
		c.limiter.observe(resp.Header)

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		retryAfter, hasRetryAfter := retryAfterSeconds(resp.Header)
		resp.Body.Close()

		wait, ok := backoff.Next()
		if !ok {
			last := 0
			if hasRetryAfter {
				last = retryAfter
			}
			return nil, &RateLimitedError{Op: op, RetryAfter: last}
		}
		if hasRetryAfter {
			wait = time.Duration(retryAfter) * time.Second
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, &TransientError{Op: op, Err: ctx.Err()}
		}
	}
}

// retryAfterSeconds parses a Retry-After header expressed in seconds. ok is
// false when the header is absent or non-numeric (e.g. an HTTP-date form,
// which this client does not need to support), in which case the caller
// falls back to its own backoff schedule.
func retryAfterSeconds(h http.Header) (seconds int, ok bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return sec, true
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *HTTPClient) handleStatus(op string, resp *http.Response, out any) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Unreachable in practice: doWithBackoff already retries 429s and
		// only ever hands handleStatus a non-429 response or returns its own
		// RateLimitedError directly. Kept as a defensive fallback.
		retryAfter, _ := retryAfterSeconds(resp.Header)
		return &RateLimitedError{Op: op, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &TransientError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(resp.Body)
		return &PermanentError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetStreams batch-queries stream statuses, chunking at MaxIDsPerCall.
func (c *HTTPClient) GetStreams(ctx context.Context, channels []Channel) ([]StreamInfo, error) {
	var all []StreamInfo
	for start := 0; start < len(channels); start += MaxIDsPerCall {
		end := min(start+MaxIDsPerCall, len(channels))
		chunk := channels[start:end]

		ids := make([]string, len(chunk))
		for i, ch := range chunk {
			ids[i] = ch.ID
		}

		var page struct {
			Data []streamPayload `json:"data"`
		}
		path := "/streams?" + joinQuery("user_id", ids)
		if err := c.do(ctx, "GetStreams", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			all = append(all, p.toStreamInfo())
		}
	}
	return all, nil
}

// GetVideo fetches one VideoInfo by id.
func (c *HTTPClient) GetVideo(ctx context.Context, videoID string) (VideoInfo, error) {
	var page struct {
		Data []videoPayload `json:"data"`
	}
	path := fmt.Sprintf("/videos?id=%s", videoID)
	if err := c.do(ctx, "GetVideo", http.MethodGet, path, nil, &page); err != nil {
		return VideoInfo{}, err
	}
	if len(page.Data) == 0 {
		return VideoInfo{}, &PermanentError{Op: "GetVideo", StatusCode: http.StatusNotFound, Body: "no such video"}
	}
	return page.Data[0].toVideoInfo()
}

// GetVideos lists videos of the given type for a channel, most recent first.
func (c *HTTPClient) GetVideos(ctx context.Context, channel Channel, videoType VideoType, limit int) ([]VideoInfo, error) {
	var page struct {
		Data []videoPayload `json:"data"`
	}
	path := fmt.Sprintf("/videos?user_id=%s&type=%s&first=%d", channel.ID, videoType, limit)
	if err := c.do(ctx, "GetVideos", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	out := make([]VideoInfo, 0, len(page.Data))
	for _, p := range page.Data {
		v, err := p.toVideoInfo()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetVariantPlaylist fetches the raw m3u8 text for a VOD.
func (c *HTTPClient) GetVariantPlaylist(ctx context.Context, videoID string) (string, error) {
	return c.getText(ctx, "GetVariantPlaylist", fmt.Sprintf("/vod/%s.m3u8", videoID))
}

// GetLiveVariantPlaylist fetches the raw m3u8 text for a live channel.
func (c *HTTPClient) GetLiveVariantPlaylist(ctx context.Context, channel Channel) (string, error) {
	return c.getText(ctx, "GetLiveVariantPlaylist", fmt.Sprintf("/live/%s.m3u8", channel.Name))
}

func (c *HTTPClient) getText(ctx context.Context, op, path string) (string, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return "", &TransientError{Op: op, Err: err}
	}
	resp, err := c.doWithBackoff(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", &TransientError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return "", &PermanentError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// GetUsers resolves channel logins and/or ids to Channel values, consulting
// and populating the instance-scoped cache (spec.md §9: "no process-wide
// singletons").
func (c *HTTPClient) GetUsers(ctx context.Context, logins []string, ids []string) ([]Channel, error) {
	var need []string
	var resolved []Channel

	for _, l := range logins {
		if ch, ok := c.userCache.byLogin(l); ok {
			resolved = append(resolved, ch)
		} else {
			need = append(need, "login="+l)
		}
	}
	for _, id := range ids {
		if ch, ok := c.userCache.byID(id); ok {
			resolved = append(resolved, ch)
		} else {
			need = append(need, "id="+id)
		}
	}
	if len(need) == 0 {
		return resolved, nil
	}

	var page struct {
		Data []userPayload `json:"data"`
	}
	path := "/users?" + strings.Join(need, "&")
	if err := c.do(ctx, "GetUsers", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	for _, u := range page.Data {
		ch := Channel{Name: strings.ToLower(u.Login), ID: u.ID}
		c.userCache.put(ch)
		resolved = append(resolved, ch)
	}
	return resolved, nil
}

// PostWebhook posts a subscribe/unsubscribe request to the platform's hub.
func (c *HTTPClient) PostWebhook(ctx context.Context, callbackURL, mode, topic, secret string, leaseSeconds int) error {
	payload, err := json.Marshal(hubRequest{
		Mode:         mode,
		Topic:        topic,
		Callback:     callbackURL,
		Secret:       secret,
		LeaseSeconds: leaseSeconds,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, "PostWebhook", http.MethodPost, "/webhooks/hub", payload, nil)
}

type hubRequest struct {
	Mode         string `json:"hub.mode"`
	Topic        string `json:"hub.topic"`
	Callback     string `json:"hub.callback"`
	Secret       string `json:"hub.secret"`
	LeaseSeconds int    `json:"hub.lease_seconds"`
}

func joinQuery(key string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = key + "=" + v
	}
	return strings.Join(parts, "&")
}

type dialer struct {
	connectTimeout time.Duration
}

func (d *dialer) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.connectTimeout}
	return nd.DialContext(ctx, network, addr)
}
