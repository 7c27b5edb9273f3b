package hls

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

// Segment is one entry of a media playlist.
type Segment struct {
	SeqNo    int64
	Name     string
	Duration float64
}

// MediaPlaylist is an ordered sequence of segments, parsed from raw .m3u8
// text (spec.md §3).
type MediaPlaylist struct {
	Segments []Segment
	EndList  bool
}

// ParseMediaPlaylist parses raw media-playlist text into segments whose
// SeqNo starts at the playlist's EXT-X-MEDIA-SEQUENCE value and increases by
// one per segment, matching the HLS spec's sequencing rule.
func ParseMediaPlaylist(raw string) (MediaPlaylist, error) {
	p, listType, err := m3u8.DecodeFrom(strings.NewReader(raw), true)
	if err != nil {
		return MediaPlaylist{}, fmt.Errorf("hls: decode media playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return MediaPlaylist{}, fmt.Errorf("hls: expected a media playlist, got master playlist")
	}
	media, ok := p.(*m3u8.MediaPlaylist)
	if !ok {
		return MediaPlaylist{}, fmt.Errorf("hls: unexpected playlist type %T", p)
	}

	out := MediaPlaylist{EndList: media.Closed}
	seq := media.SeqNo
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		out.Segments = append(out.Segments, Segment{
			SeqNo:    int64(seq),
			Name:     seg.URI,
			Duration: seg.Duration,
		})
		seq++
	}
	return out, nil
}

// ParseSegmentNumber recovers the numeric media-sequence prefix from an HLS
// segment name following the "<n>[-muted].ts" convention (spec.md §3),
// stripping a trailing "-muted" marker and the ".ts" suffix.
func ParseSegmentNumber(name string) (int64, error) {
	base := strings.TrimSuffix(name, ".ts")
	base = strings.TrimSuffix(base, "-muted")
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("hls: cannot parse segment number from %q: %w", name, err)
	}
	return n, nil
}

// Marker identifies a position in a media playlist: either a raw
// media-sequence number, or a segment name to be resolved via
// ParseSegmentNumber (spec.md §4.2). The zero Marker (NoMarker) represents
// "no marker yet" (i.e. cursor == none).
type Marker struct {
	set bool
	n   int64
}

// NoMarker represents an absent cursor (i.e. "download from the start").
var NoMarker = Marker{}

// MarkerFromSeqNo builds a Marker from a raw media-sequence number.
func MarkerFromSeqNo(n int64) Marker { return Marker{set: true, n: n} }

// MarkerFromName builds a Marker by parsing a segment name.
func MarkerFromName(name string) (Marker, error) {
	n, err := ParseSegmentNumber(name)
	if err != nil {
		return Marker{}, err
	}
	return Marker{set: true, n: n}, nil
}

// Value returns the underlying media-sequence number and whether the marker
// is set at all.
func (m Marker) Value() (int64, bool) { return m.n, m.set }

// SegmentGapError signals that a live playlist's sliding window slipped past
// the cursor (spec.md §4.2, §7): the gap is permanent and non-fatal.
type SegmentGapError struct {
	From int64
	To   int64
}

func (e *SegmentGapError) Error() string {
	return fmt.Sprintf("hls: segment gap: window slipped from %d to %d", e.From, e.To)
}
