// Package eventbus implements a typed publish/subscribe fabric that decouples
// the stream trackers and download manager from their consumers (storage
// finalizer, notifiers, progress views): one buffered delivery queue (256
// events) per subscriber, fed by any publisher. A publish into a full queue
// blocks until that subscriber has taken an event off it.
package eventbus

import (
	"time"

	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// Event is the root interface every published value implements. Concrete
// event types implement it by embedding Base, giving a routing hierarchy of
// bounded depth (Base -> at most one category -> concrete, see bus.go),
// never deeper.
type Event interface {
	// EventTimestamp returns the moment the event was constructed.
	EventTimestamp() time.Time
}

// Base is embedded by every concrete event type. It stamps the creation time
// and anchors the type hierarchy used for routing.
type Base struct {
	Timestamp time.Time
}

// NewBase returns a Base stamped with the current time. Concrete event
// constructors call this so Timestamp is always set at construction.
func NewBase() Base {
	return Base{Timestamp: time.Now()}
}

// EventTimestamp implements Event.
func (b Base) EventTimestamp() time.Time { return b.Timestamp }

// Channel identifies a tracked channel by its case-folded name and the
// upstream platform's opaque user id.
type Channel = twitchapi.Channel

// StreamInfo is a snapshot of one live broadcast. Two StreamInfo values are
// equal iff every field below (excluding Raw) matches.
type StreamInfo = twitchapi.StreamInfo

// StreamOnline is emitted on an offline -> online transition.
type StreamOnline struct {
	Base
	Stream StreamInfo
}

// StreamOffline is emitted on an online -> absent transition.
type StreamOffline struct {
	Base
	Channel Channel
}

// StreamChanged is emitted when a channel stays online but its StreamInfo
// changes (title or game).
type StreamChanged struct {
	Base
	Previous StreamInfo
	Current  StreamInfo
}

// BeginDownloading is emitted when the archive (VOD) Download Manager starts
// a download loop.
type BeginDownloading struct {
	Base
	VideoID string
	Channel Channel
	Quality string
}

// EndDownloading is emitted when the archive Download Manager's loop
// terminates, successfully or not.
type EndDownloading struct {
	Base
	VideoID string
	Channel Channel
	Err     error
}

// BeginDownloadingLive is emitted when the live Download Manager starts.
type BeginDownloadingLive struct {
	Base
	Channel Channel
	Quality string
}

// EndDownloadingLive is emitted when the live Download Manager's loop
// terminates.
type EndDownloadingLive struct {
	Base
	Channel Channel
	Err     error
}

// PlaylistUpdated is emitted after every playlist refresh.
type PlaylistUpdated struct {
	Base
	Total  int
	ToLoad int
}

// DownloadedChunk is emitted after each chunk the Segment Fetcher writes.
type DownloadedChunk struct {
	Base
	Progress ProgressData
}

// ProgressData accumulates optional fields about a download's progress. Each
// field is optional; callers accumulate whichever ones they need.
type ProgressData struct {
	FirstSegment   *int64
	LastSegment    *int64
	DataSize       *int64
	CompleteSegment *int64
	WriteSegment   *int64
}

// SegmentGap is emitted when a live playlist's sliding window slips past the
// cursor. The gap is permanent: the missing segments can never be recovered.
type SegmentGap struct {
	Base
	Channel Channel
	From    int64
	To      int64
}

// AwaitingStream is emitted by the Stream Downloader Facade while it waits
// for a VOD matching a just-started broadcast to appear.
type AwaitingStream struct {
	Base
	Channel   Channel
	SleepTime time.Duration
}

// ExceptionEvent is published whenever a tracker- or download-level error is
// caught and suppressed so that notifier subscribers can surface it.
type ExceptionEvent struct {
	Base
	Message string
	Err     error
}
