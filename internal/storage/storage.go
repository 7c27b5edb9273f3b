// Package storage defines the thin contracts the Stream Downloader Facade
// needs from the out-of-scope storage layer (spec.md §1, §4.7): where a
// completed capture goes, where a failed one goes, and a read-only dedup
// collaborator. None of the concrete persistence (file moves, a real
// broadcast-id registry) is implemented here; production code supplies an
// adapter satisfying these interfaces.
package storage

import (
	"context"

	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// Finalizer receives a completed capture: the upstream metadata describing
// what was recorded, and the path of the temp file holding the concatenated
// segment bytes. Implementations typically move/rename the file into its
// permanent location and record it in a persistent broadcast-id index.
type Finalizer interface {
	Finalize(ctx context.Context, video twitchapi.VideoInfo, tempFilePath string) error
}

// ErrorSink receives the temp file path of a capture that failed at any
// state-machine transition (spec.md §4.7), for operator inspection. The
// file itself is left in place; ErrorSink is only told about it.
type ErrorSink interface {
	CaptureFailed(channel twitchapi.Channel, tempFilePath string, err error)
}

// BroadcastIndex is a read-only dedup collaborator a Finalizer may be backed
// by. It reports whether a given broadcast id has already been recorded, so
// callers can skip re-finalizing the same VOD. The persistent index itself
// is the Finalizer's concern; this interface exists so the Facade/Download
// Manager layer can consult it without depending on concrete storage.
type BroadcastIndex interface {
	Contains(videoType twitchapi.VideoType, id string) bool
}

// InMemoryIndex is a trivial BroadcastIndex for tests and small deployments.
type InMemoryIndex struct {
	ids map[twitchapi.VideoType]map[string]struct{}
}

// NewInMemoryIndex returns an empty InMemoryIndex.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{ids: make(map[twitchapi.VideoType]map[string]struct{})}
}

// Add records id as seen for videoType.
func (idx *InMemoryIndex) Add(videoType twitchapi.VideoType, id string) {
	if idx.ids[videoType] == nil {
		idx.ids[videoType] = make(map[string]struct{})
	}
	idx.ids[videoType][id] = struct{}{}
}

// Contains implements BroadcastIndex.
func (idx *InMemoryIndex) Contains(videoType twitchapi.VideoType, id string) bool {
	_, ok := idx.ids[videoType][id]
	return ok
}
