// Package capture implements the Stream Downloader Facade (spec.md §4.7):
// the glue between a StreamOnline event and one full download attempt,
// including VOD-discovery polling, temp-file allocation, and handoff to the
// storage finalizer.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tausackhn/twlived-go/internal/download"
	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/hls"
	"github.com/tausackhn/twlived-go/internal/storage"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

// DefaultWaitVODDelay is the poll interval used while waiting for a VOD
// matching a just-started broadcast to appear (spec.md §4.7).
const DefaultWaitVODDelay = 10 * time.Second

// vodMatchWindow bounds how close a video's CreatedAt must be to a stream's
// StartedAt to be considered the same broadcast.
const vodMatchWindow = time.Minute

// StreamType selects which Download Manager mode the Facade drives once a
// StreamOnline event fires.
type StreamType string

const (
	TypeVOD  StreamType = "vod"
	TypeLive StreamType = "live"
)

// Options configures a Facade.
type Options struct {
	TempDir      string
	StreamType   StreamType
	Quality      string
	WaitVODDelay time.Duration
}

func (o Options) waitVODDelay() time.Duration {
	if o.WaitVODDelay <= 0 {
		return DefaultWaitVODDelay
	}
	return o.WaitVODDelay
}

// Facade subscribes to StreamOnline and drives one Download Manager
// invocation per distinct (channel_id, started_at) broadcast.
type Facade struct {
	bus        *eventbus.Bus
	client     twitchapi.Client
	downloader *download.Manager
	finalizer  storage.Finalizer
	errSink    storage.ErrorSink
	opts       Options

	inFlight *dedupSet
}

// New constructs a Facade. errSink may be nil, in which case failures are
// only reported as an ExceptionEvent on the bus.
func New(bus *eventbus.Bus, client twitchapi.Client, downloader *download.Manager, finalizer storage.Finalizer, errSink storage.ErrorSink, opts Options) *Facade {
	return &Facade{
		bus:        bus,
		client:     client,
		downloader: downloader,
		finalizer:  finalizer,
		errSink:    errSink,
		opts:       opts,
		inFlight:   newDedupSet(),
	}
}

// Subscribe registers the Facade as a StreamOnline handler on bus.
func (f *Facade) Subscribe() {
	f.bus.Subscribe(f, eventbus.TypeOf[eventbus.StreamOnline]())
}

// OnEvent implements eventbus.Handler.
func (f *Facade) OnEvent(e eventbus.Event) {
	online, ok := e.(eventbus.StreamOnline)
	if !ok {
		return
	}
	stream := online.Stream

	if !f.inFlight.addIfAbsent(stream.ChannelID, stream.StartedAt) {
		slog.Debug("capture facade: duplicate StreamOnline, ignoring", "channel", stream.ChannelName)
		return
	}

	go f.capture(context.Background(), stream)
}

// capture runs the full idle -> waiting_for_vod|downloading -> finalizing ->
// done|failed state machine for one broadcast (spec.md §4.7).
func (f *Facade) capture(ctx context.Context, stream twitchapi.StreamInfo) {
	defer f.inFlight.remove(stream.ChannelID, stream.StartedAt)

	sessionID := uuid.NewString()
	channel := eventbus.Channel{Name: stream.ChannelName, ID: stream.ChannelID}
	log := slog.With("session", sessionID, "channel", channel.Name)

	if err := os.MkdirAll(f.opts.TempDir, 0o755); err != nil {
		f.fail(channel, "", err)
		return
	}
	file, err := os.CreateTemp(f.opts.TempDir, fmt.Sprintf("capture-%s-*.ts", sessionID))
	if err != nil {
		log.Error("capture facade: failed to allocate temp file", "error", err)
		f.fail(channel, "", err)
		return
	}
	tempPath := file.Name()
	defer file.Close()

	log.Info("capture facade: starting", "temp_file", tempPath, "mode", f.opts.StreamType)

	var video twitchapi.VideoInfo
	switch f.opts.StreamType {
	case TypeLive:
		err = f.downloader.RunLive(ctx, channel, f.opts.Quality, file)
		video = twitchapi.VideoInfo{
			ID:        "", // the live download has no upstream VOD id
			Type:      twitchapi.VideoArchive,
			Channel:   channel,
			CreatedAt: stream.StartedAt,
		}
	default:
		video, err = f.awaitVOD(ctx, channel, stream)
		if err == nil {
			err = f.downloader.RunArchive(ctx, video.ID, channel, f.opts.Quality, file, hls.NoMarker)
		}
	}

	if err != nil {
		log.Warn("capture facade: download failed", "error", err)
		file.Close()
		f.fail(channel, tempPath, err)
		return
	}

	if err := file.Close(); err != nil {
		f.fail(channel, tempPath, err)
		return
	}

	if f.finalizer != nil {
		if err := f.finalizer.Finalize(ctx, video, tempPath); err != nil {
			log.Warn("capture facade: finalize failed", "error", err)
			f.fail(channel, tempPath, err)
			return
		}
	}

	log.Info("capture facade: done", "temp_file", tempPath)
}

// awaitVOD polls GetVideos until a video whose CreatedAt is within one
// minute of stream.StartedAt appears (spec.md §4.7), publishing
// AwaitingStream on the bus between polls.
func (f *Facade) awaitVOD(ctx context.Context, channel eventbus.Channel, stream twitchapi.StreamInfo) (twitchapi.VideoInfo, error) {
	delay := f.opts.waitVODDelay()
	for {
		videos, err := f.client.GetVideos(ctx, channel, twitchapi.VideoArchive, 5)
		if err != nil {
			f.bus.Publish(eventbus.ExceptionEvent{Base: eventbus.NewBase(), Message: "capture facade: GetVideos failed", Err: err})
		} else {
			for _, v := range videos {
				if absDuration(v.CreatedAt.Sub(stream.StartedAt)) <= vodMatchWindow {
					return v, nil
				}
			}
		}

		f.bus.Publish(eventbus.AwaitingStream{Base: eventbus.NewBase(), Channel: channel, SleepTime: delay})

		select {
		case <-ctx.Done():
			return twitchapi.VideoInfo{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (f *Facade) fail(channel eventbus.Channel, tempPath string, err error) {
	f.bus.Publish(eventbus.ExceptionEvent{Base: eventbus.NewBase(), Message: "capture facade: capture failed", Err: err})
	if f.errSink != nil && tempPath != "" {
		f.errSink.CaptureFailed(channel, tempPath, err)
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
