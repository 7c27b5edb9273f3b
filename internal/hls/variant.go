// Package hls implements the Playlist View (spec.md §4.2): it wraps a
// variant + media playlist URL pair and yields ordered new segments since a
// marker. Parsing of raw .m3u8 text is delegated to github.com/grafov/m3u8;
// this package adapts that library's generic HLS model onto the narrower
// domain vocabulary spec.md §3 needs (renditions selected by group_id,
// segments addressed by media-sequence number).
package hls

import (
	"fmt"
	"strings"

	"github.com/grafov/m3u8"
)

// Rendition describes one entry of a variant (master) playlist: a group_id
// (e.g. "chunked", "720p60") and the URI of its media playlist.
type Rendition struct {
	GroupID string
	URI     string
}

// ParseVariantPlaylist parses raw master-playlist text and extracts the
// renditions relevant to quality selection. A variant's group id is the
// first non-empty one of: its VIDEO group attribute, the NAME of its first
// alternative (EXT-X-MEDIA) rendition that has one, and its own NAME
// attribute. Variants without a URI are skipped.
func ParseVariantPlaylist(raw string) ([]Rendition, error) {
	p, listType, err := m3u8.DecodeFrom(strings.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("hls: decode variant playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("hls: expected a master playlist, got media playlist")
	}
	master, ok := p.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("hls: unexpected playlist type %T", p)
	}

	var out []Rendition
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		groupID := v.Video
		if groupID == "" {
			for _, alt := range v.Alternatives {
				if alt.Name != "" {
					groupID = alt.Name
					break
				}
			}
		}
		if groupID == "" {
			groupID = v.Name
		}
		out = append(out, Rendition{GroupID: groupID, URI: v.URI})
	}
	return out, nil
}

// SelectRendition returns the rendition whose GroupID equals quality.
// UnknownQualityError is returned, carrying the observed set, when no
// rendition matches (spec.md §4.2).
func SelectRendition(renditions []Rendition, quality string) (Rendition, error) {
	for _, r := range renditions {
		if r.GroupID == quality {
			return r, nil
		}
	}
	observed := make([]string, len(renditions))
	for i, r := range renditions {
		observed[i] = r.GroupID
	}
	return Rendition{}, &UnknownQualityError{Expected: quality, Observed: observed}
}

// UnknownQualityError is returned when a requested rendition quality is not
// present in a variant playlist (spec.md §4.2, §7).
type UnknownQualityError struct {
	Expected string
	Observed []string
}

func (e *UnknownQualityError) Error() string {
	return fmt.Sprintf("hls: unknown quality %q (have %v)", e.Expected, e.Observed)
}
