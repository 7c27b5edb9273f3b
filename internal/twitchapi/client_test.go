package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestParseDurationFormatDurationRoundTrip(t *testing.T) {
	cases := []string{"1h23m45s", "45m", "30s", "2h", "1h0m1s"}
	for _, s := range cases {
		d, err := ParseDuration(s)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", s, err)
		}
		got := FormatDuration(d)
		d2, err := ParseDuration(got)
		if err != nil {
			t.Fatalf("ParseDuration(FormatDuration(%q)=%q): %v", s, got, err)
		}
		if d2 != d {
			t.Fatalf("round-trip mismatch for %q: %v != %v", s, d, d2)
		}
	}
}

func TestParseDurationRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "abc", "1x", "h"} {
		if _, err := ParseDuration(s); err == nil {
			t.Fatalf("ParseDuration(%q) should have failed", s)
		}
	}
}

func TestGetStreamsChunksAtMaxIDsPerCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Ratelimit-Remaining", "100")
		w.Header().Set("Ratelimit-Reset", "9999999999")
		json.NewEncoder(w).Encode(struct {
			Data []streamPayload `json:"data"`
		}{Data: []streamPayload{{UserName: "foo", UserID: "1", StartedAt: time.Now()}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)

	channels := make([]Channel, MaxIDsPerCall+1)
	for i := range channels {
		channels[i] = Channel{Name: "c", ID: "id"}
	}

	_, err := c.GetStreams(context.Background(), channels)
	if err != nil {
		t.Fatalf("GetStreams: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 chunked calls for %d channels, got %d", len(channels), calls)
	}
}

func TestDoRetriesOnceOn401ThenSurfacesAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var reauthCalls int
	c := NewHTTPClient(srv.URL, "cid", "stale", func(ctx context.Context) (string, error) {
		reauthCalls++
		return "fresh", nil
	})

	_, err := c.GetVideo(context.Background(), "123")
	if err == nil {
		t.Fatal("expected AuthExpiredError")
	}
	if _, ok := err.(*AuthExpiredError); !ok {
		t.Fatalf("want *AuthExpiredError, got %T: %v", err, err)
	}
	if reauthCalls != 1 {
		t.Fatalf("want exactly 1 reauthorize call, got %d", reauthCalls)
	}
}

func TestDoSurfacesPermanentErrorOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such video"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)
	_, err := c.GetVideo(context.Background(), "123")
	var permErr *PermanentError
	if err == nil {
		t.Fatal("expected PermanentError")
	}
	if e, ok := err.(*PermanentError); ok {
		permErr = e
	} else {
		t.Fatalf("want *PermanentError, got %T", err)
	}
	if permErr.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", permErr.StatusCode)
	}
}

func TestGetUsersCachesResolvedLogins(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(struct {
			Data []userPayload `json:"data"`
		}{Data: []userPayload{{ID: "42", Login: "foo"}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)

	if _, err := c.GetUsers(context.Background(), []string{"foo"}, nil); err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if _, err := c.GetUsers(context.Background(), []string{"foo"}, nil); err != nil {
		t.Fatalf("GetUsers (cached): %v", err)
	}
	if calls != 1 {
		t.Fatalf("want 1 network call (second lookup served from cache), got %d", calls)
	}
}

func TestDoRetriesOn429ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			// Retry-After: 0 tells doWithBackoff to retry immediately
			// instead of sleeping its own schedule, keeping the test fast.
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Data []videoPayload `json:"data"`
		}{Data: []videoPayload{{ID: "123", Duration: "30s"}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)
	v, err := c.GetVideo(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if v.ID != "123" {
		t.Fatalf("want video 123, got %q", v.ID)
	}
	if calls != 3 {
		t.Fatalf("want 2 rate-limited attempts then a success (3 calls total), got %d", calls)
	}
}

func TestDoGivesUpAfterMaxRateLimitAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)
	_, err := c.GetVideo(context.Background(), "123")
	if err == nil {
		t.Fatal("expected RateLimitedError after exhausting the backoff schedule")
	}
	rlErr, ok := err.(*RateLimitedError)
	if !ok {
		t.Fatalf("want *RateLimitedError, got %T: %v", err, err)
	}
	if rlErr.RetryAfter != 0 {
		t.Fatalf("want RetryAfter 0 (from the server's last Retry-After: 0), got %d", rlErr.RetryAfter)
	}
	// maxRateLimitAttempts retries plus the initial request.
	if calls != maxRateLimitAttempts+1 {
		t.Fatalf("want %d attempts, got %d", maxRateLimitAttempts+1, calls)
	}
}

func TestDoHonorsNonZeroRetryAfter(t *testing.T) {
	var calls int
	var firstRetryAfter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			firstRetryAfter = "1"
			w.Header().Set("Retry-After", firstRetryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("live playlist"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "cid", "token", nil)

	start := time.Now()
	_, err := c.GetLiveVariantPlaylist(context.Background(), Channel{Name: "foo", ID: "1"})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("GetLiveVariantPlaylist: %v", err)
	}
	wantWait, _ := strconv.Atoi(firstRetryAfter)
	if elapsed < time.Duration(wantWait)*time.Second {
		t.Fatalf("want at least %ds elapsed honoring Retry-After, got %v", wantWait, elapsed)
	}
}
