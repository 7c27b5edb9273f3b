package hls

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// MaxLiveSegments bounds the live sliding-window FIFO: roughly 10 minutes of
// 2-second segments (spec.md §4.2).
const MaxLiveSegments = 300

// Mode selects between VOD (growing, stable prefix) and Live (sliding
// window) refresh semantics.
type Mode int

const (
	VOD Mode = iota
	Live
)

// VariantFetcher retrieves the raw variant-playlist text for whatever the
// View was constructed to track (a video id or a live channel). It is
// supplied by the caller so the View stays independent of the concrete
// twitchapi.Client method used.
type VariantFetcher func(ctx context.Context) (string, error)

// TextFetcher retrieves raw text from an absolute or base-relative URL; used
// to fetch the resolved media playlist.
type TextFetcher func(ctx context.Context, url string) (string, error)

// View wraps a variant + media playlist URL pair and yields ordered new
// segments since a marker (spec.md §4.2).
type View struct {
	quality        string
	mode           Mode
	variantFetcher VariantFetcher
	textFetcher    TextFetcher

	mu      sync.Mutex
	url     string
	baseURI string
	endlist bool

	// VOD: the full, growing-prefix segment list as of the last refresh.
	vodSegments []Segment

	// Live: a FIFO of at most MaxLiveSegments segments.
	window         []Segment
	lastStored     int64
	haveLastStored bool
}

// NewView constructs a View for the given quality. mode selects VOD or Live
// refresh semantics.
func NewView(quality string, mode Mode, variantFetcher VariantFetcher, textFetcher TextFetcher) *View {
	return &View{
		quality:        quality,
		mode:           mode,
		variantFetcher: variantFetcher,
		textFetcher:    textFetcher,
	}
}

// URL returns the currently resolved media-playlist URL, or "" if Refresh
// has never successfully resolved one.
func (v *View) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url
}

// BaseURI returns the directory portion of URL(), used to resolve
// segment names that are relative paths.
func (v *View) BaseURI() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.baseURI
}

// IsEndlist reports whether the most recent refresh observed an
// EXT-X-ENDLIST tag.
func (v *View) IsEndlist() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.endlist
}

// resolveURL fetches the variant playlist and adopts the rendition matching
// quality. Must be called with v.mu held.
func (v *View) resolveURL(ctx context.Context) error {
	raw, err := v.variantFetcher(ctx)
	if err != nil {
		return fmt.Errorf("hls: fetch variant playlist: %w", err)
	}
	renditions, err := ParseVariantPlaylist(raw)
	if err != nil {
		return err
	}
	r, err := SelectRendition(renditions, v.quality)
	if err != nil {
		return err
	}
	v.url = r.URI
	v.baseURI = baseURIOf(r.URI)
	return nil
}

func baseURIOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		idx := strings.LastIndex(rawURL, "/")
		if idx < 0 {
			return ""
		}
		return rawURL[:idx+1]
	}
	dir := path.Dir(u.Path)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	u.Path = dir
	return u.String()
}

// Refresh re-fetches the media playlist. When useCachedURL is false, or no
// URL has been resolved yet, the variant playlist is re-resolved first
// (spec.md §4.2's "on first use or when invalidated").
//
// Refresh may return a *SegmentGapError: this is not fatal. It means the
// live sliding window slipped past what had been stored, and downloading
// should continue from the new first available segment (spec.md §4.4.2
// step 6).
func (v *View) Refresh(ctx context.Context, useCachedURL bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !useCachedURL || v.url == "" {
		if err := v.resolveURL(ctx); err != nil {
			return err
		}
	}

	raw, err := v.textFetcher(ctx, v.url)
	if err != nil {
		return fmt.Errorf("hls: fetch media playlist: %w", err)
	}
	media, err := ParseMediaPlaylist(raw)
	if err != nil {
		return err
	}
	v.endlist = media.EndList

	switch v.mode {
	case VOD:
		v.vodSegments = media.Segments
		return nil
	default:
		return v.mergeLiveWindow(media.Segments)
	}
}

// mergeLiveWindow appends newly observed segments to the sliding window,
// detecting a window slip. Must be called with v.mu held.
func (v *View) mergeLiveWindow(segments []Segment) error {
	var gapErr error

	for _, seg := range segments {
		if !v.haveLastStored {
			v.window = append(v.window, seg)
			v.lastStored = seg.SeqNo
			v.haveLastStored = true
			continue
		}
		if seg.SeqNo <= v.lastStored {
			continue // already have it
		}
		if seg.SeqNo > v.lastStored+1 && gapErr == nil {
			gapErr = &SegmentGapError{From: v.lastStored, To: seg.SeqNo}
		}
		v.window = append(v.window, seg)
		v.lastStored = seg.SeqNo
	}

	if over := len(v.window) - MaxLiveSegments; over > 0 {
		v.window = v.window[over:]
	}

	return gapErr
}

// SegmentsAfter returns the segments strictly after marker, in increasing
// media-sequence order (spec.md §4.2, testable property 2). An unset marker
// returns every segment currently known.
func (v *View) SegmentsAfter(marker Marker) []Segment {
	v.mu.Lock()
	defer v.mu.Unlock()

	source := v.vodSegments
	if v.mode == Live {
		source = v.window
	}

	n, ok := marker.Value()
	if !ok {
		out := make([]Segment, len(source))
		copy(out, source)
		return out
	}

	var out []Segment
	for _, s := range source {
		if s.SeqNo > n {
			out = append(out, s)
		}
	}
	return out
}

// Total returns the number of segments currently known (used for
// PlaylistUpdated{total, ...} events).
func (v *View) Total() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == Live {
		return len(v.window)
	}
	return len(v.vodSegments)
}
