// Package twitchapi defines the thin contract the core subsystems require
// from the upstream platform's HTTP API (spec.md §6). It is deliberately
// minimal: a real adapter (Helix/v5, or any other live-streaming platform
// with an equivalent surface) implements Client. The value types below are
// immutable snapshots: plain value structs rather than mutable records
// (spec.md §9).
package twitchapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Channel is the primary key for trackers: a case-folded channel name paired
// with the opaque upstream user id. Name<->ID mapping is cached by the
// Client implementation.
type Channel struct {
	Name string
	ID   string
}

// StreamInfo is a snapshot of one live broadcast.
type StreamInfo struct {
	ChannelName string
	ChannelID   string
	GameName    string
	Status      string
	StartedAt   time.Time
	Raw         map[string]any
}

// Equal reports whether two StreamInfo values are equal for change-detection
// purposes. Raw is deliberately excluded, per spec.md §3.
func (s StreamInfo) Equal(o StreamInfo) bool {
	return s.ChannelName == o.ChannelName &&
		s.ChannelID == o.ChannelID &&
		s.GameName == o.GameName &&
		s.Status == o.Status &&
		s.StartedAt.Equal(o.StartedAt)
}

// VideoType enumerates the kinds of recorded broadcast the upstream platform
// can report.
type VideoType string

const (
	VideoArchive   VideoType = "archive"
	VideoHighlight VideoType = "highlight"
	VideoUpload    VideoType = "upload"
)

// VideoInfo is a recorded or currently-recording broadcast.
type VideoInfo struct {
	ID        string
	Title     string
	Type      VideoType
	Channel   Channel
	CreatedAt time.Time
	Duration  time.Duration
	Raw       map[string]any
}

// IsRecording reports whether the video is believed to still be actively
// recording, using only the heuristic from spec.md §4.4.1: a video is
// considered finished once now is more than 5 minutes past its reported end
// (CreatedAt + Duration). No upstream status field is consulted.
func (v VideoInfo) IsRecording(now time.Time) bool {
	end := v.CreatedAt.Add(v.Duration)
	return now.Sub(end) < 5*time.Minute
}

// ParseDuration parses the compact upstream duration format, e.g. "1h23m45s",
// "45m", "30s", "2h". At least one of the hour/minute/second components must
// be present. This both resolves spec.md §3's note that duration "may be
// reported in a compact form" and spec.md §8 testable property 7 (parsing is
// a bijection over strings matching (Nh)?(Nm)?(Ns)? with at least one
// component).
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("twitchapi: empty duration string")
	}

	rest := s
	var total time.Duration
	matched := false

	consume := func(suffix string, unit time.Duration) error {
		idx := strings.IndexByte(rest, suffix[0])
		if idx < 0 {
			return nil
		}
		n, err := strconv.Atoi(rest[:idx])
		if err != nil {
			return fmt.Errorf("twitchapi: invalid %s component in %q: %w", suffix, s, err)
		}
		total += time.Duration(n) * unit
		rest = rest[idx+1:]
		matched = true
		return nil
	}

	if err := consume("h", time.Hour); err != nil {
		return 0, err
	}
	if err := consume("m", time.Minute); err != nil {
		return 0, err
	}
	if err := consume("s", time.Second); err != nil {
		return 0, err
	}

	if !matched || rest != "" {
		return 0, fmt.Errorf("twitchapi: malformed duration %q", s)
	}
	return total, nil
}

// FormatDuration is the inverse of ParseDuration: it renders d in the same
// "1h23m45s" compact form, omitting zero-valued leading components the way
// the upstream platform does (e.g. 45 seconds formats as "45s", not
// "0h0m45s").
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 || h > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	fmt.Fprintf(&b, "%ds", s)
	return b.String()
}
