// Package download implements the Download Manager (spec.md §4.4): it
// orchestrates a Playlist View (internal/hls) and a Segment Fetcher
// (internal/fetcher) for one broadcast, in either Archive (VOD) or Live
// mode, publishing progress onto an internal/eventbus.Bus.
package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/fetcher"
	"github.com/tausackhn/twlived-go/internal/hls"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// PlaylistUpdatesToFinish is the size of the rolling "did this refresh find
// anything to load" window the Archive loop uses to decide the broadcast
// has truly ended (spec.md §4.4.1 step 6). Default 10.
const PlaylistUpdatesToFinish = 10

// PlaylistUpdatePeriod is the Archive loop's refresh interval when there is
// nothing new to load (spec.md §4.4.1 step 7).
const PlaylistUpdatePeriod = 60 * time.Second

// LivePlaylistUpdatePeriod is the Live loop's refresh interval (spec.md
// §4.4.2 step 1).
const LivePlaylistUpdatePeriod = 2 * time.Second

// Options bounds the Segment Fetcher behavior used by both modes, plus the
// loop timing spec.md §4.4 names. Zero values fall back to the package
// defaults (PlaylistUpdatePeriod, LivePlaylistUpdatePeriod,
// PlaylistUpdatesToFinish); tests override them to avoid waiting out real
// minute-scale periods.
type Options struct {
	Concurrency       int
	PerSegmentRetries int
	ChunkBudget       time.Duration

	PlaylistUpdatePeriod     time.Duration
	LivePlaylistUpdatePeriod time.Duration
	PlaylistUpdatesToFinish  int
}

func (o Options) fetcherOptions() fetcher.Options {
	return fetcher.Options{
		Concurrency:       o.Concurrency,
		PerSegmentRetries: o.PerSegmentRetries,
		ChunkBudget:       o.ChunkBudget,
	}
}

func (o Options) playlistUpdatePeriod() time.Duration {
	if o.PlaylistUpdatePeriod > 0 {
		return o.PlaylistUpdatePeriod
	}
	return PlaylistUpdatePeriod
}

func (o Options) livePlaylistUpdatePeriod() time.Duration {
	if o.LivePlaylistUpdatePeriod > 0 {
		return o.LivePlaylistUpdatePeriod
	}
	return LivePlaylistUpdatePeriod
}

func (o Options) playlistUpdatesToFinish() int {
	if o.PlaylistUpdatesToFinish > 0 {
		return o.PlaylistUpdatesToFinish
	}
	return PlaylistUpdatesToFinish
}

// Manager runs one download (Archive or Live) against a Bus, an API client,
// and a Segment Fetcher.
type Manager struct {
	bus    *eventbus.Bus
	client twitchapi.Client
	fetch  fetcher.SegmentFetcher
	opts   Options
}

// New constructs a Manager. fetch is typically fetcher.NewHTTPSegmentFetcher.
func New(bus *eventbus.Bus, client twitchapi.Client, fetch fetcher.SegmentFetcher, opts Options) *Manager {
	return &Manager{bus: bus, client: client, fetch: fetch, opts: opts}
}

// RunArchive downloads videoID into sink at quality, looping per spec.md
// §4.4.1 until the broadcast is judged to have ended, loading only segments
// after resume. It returns nil once the broadcast is judged finished, or the
// error that ended the loop; the same error is carried on EndDownloading.
func (m *Manager) RunArchive(ctx context.Context, videoID string, channel eventbus.Channel, quality string, sink io.Writer, resume hls.Marker) error {
	m.bus.Publish(eventbus.BeginDownloading{Base: eventbus.NewBase(), VideoID: videoID, Channel: channel, Quality: quality})

	cursor := resume
	forceReResolve := false
	window := newBoolWindow(m.opts.playlistUpdatesToFinish())

	view := hls.NewView(quality, hls.VOD,
		func(ctx context.Context) (string, error) { return m.client.GetVariantPlaylist(ctx, videoID) },
		func(ctx context.Context, url string) (string, error) { return fetchText(ctx, m.fetch, url) },
	)

	runErr := m.archiveLoop(ctx, videoID, view, &cursor, &forceReResolve, window, sink)

	m.bus.Publish(eventbus.EndDownloading{Base: eventbus.NewBase(), VideoID: videoID, Channel: channel, Err: runErr})
	return runErr
}

func (m *Manager) archiveLoop(ctx context.Context, videoID string, view *hls.View, cursor *hls.Marker, forceReResolve *bool, window *boolWindow, sink io.Writer) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info, err := m.client.GetVideo(ctx, videoID)
		if err != nil {
			return err
		}
		isRecording := info.IsRecording(time.Now())

		if err := view.Refresh(ctx, !*forceReResolve); err != nil {
			var gap *hls.SegmentGapError
			if !asSegmentGap(err, &gap) {
				slog.Warn("archive playlist refresh failed", "video_id", videoID, "error", err)
				return err
			}
		}
		*forceReResolve = false

		toLoad := view.SegmentsAfter(*cursor)
		m.bus.Publish(eventbus.PlaylistUpdated{Base: eventbus.NewBase(), Total: view.Total(), ToLoad: len(toLoad)})

		window.push(len(toLoad) > 0)

		if len(toLoad) > 0 {
			marker, ferr := fetcher.Download(ctx, toLoad, sink, view.BaseURI(), m.fetch, m.opts.fetcherOptions())
			if v, ok := marker.Value(); ok {
				*cursor = hls.MarkerFromSeqNo(v)
				m.bus.Publish(eventbus.DownloadedChunk{Base: eventbus.NewBase(), Progress: eventbus.ProgressData{
					LastSegment: &v,
				}})
			} else {
				// The Fetcher wrote nothing even though there was something
				// to load: the playlist URL may have expired.
				*forceReResolve = true
			}
			if ferr != nil {
				slog.Warn("segment fetch error", "video_id", videoID, "error", ferr)
			}
		}

		if !isRecording && window.allFalse() {
			return nil
		}

		if len(toLoad) == 0 {
			select {
			case <-time.After(m.opts.playlistUpdatePeriod()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// RunLive downloads a live channel into sink at quality, looping per
// spec.md §4.4.2 until an EXT-X-ENDLIST is observed.
func (m *Manager) RunLive(ctx context.Context, channel eventbus.Channel, quality string, sink io.Writer) error {
	m.bus.Publish(eventbus.BeginDownloadingLive{Base: eventbus.NewBase(), Channel: channel, Quality: quality})

	cursor := hls.NoMarker
	view := hls.NewView(quality, hls.Live,
		func(ctx context.Context) (string, error) { return m.client.GetLiveVariantPlaylist(ctx, channel) },
		func(ctx context.Context, url string) (string, error) { return fetchText(ctx, m.fetch, url) },
	)

	runErr := m.liveLoop(ctx, channel, view, &cursor, sink)

	m.bus.Publish(eventbus.EndDownloadingLive{Base: eventbus.NewBase(), Channel: channel, Err: runErr})
	return runErr
}

func (m *Manager) liveLoop(ctx context.Context, channel eventbus.Channel, view *hls.View, cursor *hls.Marker, sink io.Writer) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		refreshErr := view.Refresh(ctx, true)
		var gap *hls.SegmentGapError
		var unknownQuality *hls.UnknownQualityError
		if refreshErr != nil && !asSegmentGap(refreshErr, &gap) {
			if errors.As(refreshErr, &unknownQuality) {
				return refreshErr
			}
			slog.Warn("live playlist refresh failed", "channel", channel.Name, "error", refreshErr)
			select {
			case <-time.After(m.opts.livePlaylistUpdatePeriod()):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if gap != nil {
			m.bus.Publish(eventbus.SegmentGap{Base: eventbus.NewBase(), Channel: channel, From: gap.From, To: gap.To})
		}

		toLoad := view.SegmentsAfter(*cursor)
		m.bus.Publish(eventbus.PlaylistUpdated{Base: eventbus.NewBase(), Total: view.Total(), ToLoad: len(toLoad)})

		if len(toLoad) > 0 {
			marker, ferr := fetcher.Download(ctx, toLoad, sink, view.BaseURI(), m.fetch, m.opts.fetcherOptions())
			if v, ok := marker.Value(); ok {
				*cursor = hls.MarkerFromSeqNo(v)
				m.bus.Publish(eventbus.DownloadedChunk{Base: eventbus.NewBase(), Progress: eventbus.ProgressData{LastSegment: &v}})
			}
			if ferr != nil {
				slog.Warn("segment fetch error", "channel", channel.Name, "error", ferr)
			}
		}

		if view.IsEndlist() {
			return nil
		}

		if len(toLoad) == 0 {
			select {
			case <-time.After(m.opts.livePlaylistUpdatePeriod()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func asSegmentGap(err error, out **hls.SegmentGapError) bool {
	gap, ok := err.(*hls.SegmentGapError)
	if !ok {
		return false
	}
	*out = gap
	return true
}

func fetchText(ctx context.Context, fetch fetcher.SegmentFetcher, url string) (string, error) {
	data, err := fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// boolWindow is a fixed-size rolling window of booleans (spec.md §4.4.1 step
// 6): "push" evicts the oldest entry once full; "allFalse" reports whether
// the window is full and every entry is false.
type boolWindow struct {
	size int
	buf  []bool
}

func newBoolWindow(size int) *boolWindow {
	return &boolWindow{size: size}
}

func (w *boolWindow) push(v bool) {
	w.buf = append(w.buf, v)
	if len(w.buf) > w.size {
		w.buf = w.buf[len(w.buf)-w.size:]
	}
}

func (w *boolWindow) allFalse() bool {
	if len(w.buf) < w.size {
		return false
	}
	for _, v := range w.buf {
		if v {
			return false
		}
	}
	return true
}
