// Package fetcher implements the Segment Fetcher (spec.md §4.3): a
// concurrent, bounded downloader that turns an ordered list of playlist
// segments into bytes appended to a single sink, in the exact order the
// segments were given regardless of which fetch finished first.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tausackhn/twlived-go/internal/hls"
)

// SegmentFetcher retrieves the raw bytes of one segment. Implementations
// should follow HTTP redirects themselves (net/http's default client does
// this already) and classify errors so Download can decide whether a retry
// is worthwhile; see IsTransient.
type SegmentFetcher func(ctx context.Context, url string) ([]byte, error)

// Options configures a single Download call. Zero values are replaced with
// the spec's defaults by Download.
type Options struct {
	// Concurrency is the chunk size: how many segments are fetched in
	// parallel at a time. Default 10.
	Concurrency int
	// PerSegmentRetries bounds retries of a single segment fetch on a
	// transient error. Default 3.
	PerSegmentRetries int
	// RetryBackoff is the fixed delay between per-segment retries.
	// Default 1s.
	RetryBackoff time.Duration
	// ChunkBudget bounds the wall-clock time a single chunk may take;
	// exceeding it after a chunk completes stops further chunks. Default
	// 10x Concurrency seconds; a ChunkBudget of 0 in Options means "use the
	// default". Pass a negative value to disable the budget, or use
	// WithZeroChunkBudget to stop after the very first chunk (spec.md §8).
	ChunkBudget time.Duration
	// chunkBudgetZero distinguishes "not given, use default" from
	// "explicitly zero" for ChunkBudget; set via WithZeroChunkBudget.
	chunkBudgetZero bool
}

// WithZeroChunkBudget returns a copy of opts whose ChunkBudget is the
// explicit value 0 (stop after the first chunk), as distinct from the zero
// Options value which means "use the default budget".
func (opts Options) WithZeroChunkBudget() Options {
	opts.ChunkBudget = 0
	opts.chunkBudgetZero = true
	return opts
}

func (opts Options) withDefaults() Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.PerSegmentRetries <= 0 {
		opts.PerSegmentRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.ChunkBudget == 0 && !opts.chunkBudgetZero {
		opts.ChunkBudget = time.Duration(10*opts.Concurrency) * time.Second
	}
	return opts
}

type fetchResult struct {
	data []byte
	err  error
}

// Download fetches segments in order and writes their bytes to sink,
// honoring opts.Concurrency, opts.PerSegmentRetries and opts.ChunkBudget. It
// returns the marker of the last segment that was both fetched and written;
// NoMarker if none were. A non-nil error means a segment failed permanently
// (retries exhausted); a nil error with fewer than len(segments) consumed
// means the chunk budget was exceeded.
func Download(ctx context.Context, segments []hls.Segment, sink io.Writer, baseURI string, fetch SegmentFetcher, opts Options) (hls.Marker, error) {
	opts = opts.withDefaults()
	marker := hls.NoMarker

	for start := 0; start < len(segments); start += opts.Concurrency {
		end := start + opts.Concurrency
		if end > len(segments) {
			end = len(segments)
		}
		chunk := segments[start:end]

		chunkStart := time.Now()
		written, lastErr := downloadChunk(ctx, chunk, sink, baseURI, fetch, opts)
		if written > 0 {
			marker = hls.MarkerFromSeqNo(chunk[written-1].SeqNo)
		}
		if lastErr != nil {
			return marker, lastErr
		}
		if written < len(chunk) {
			// Should not happen without an error, but guard against it.
			return marker, nil
		}
		if opts.ChunkBudget >= 0 && time.Since(chunkStart) > opts.ChunkBudget {
			return marker, nil
		}
	}
	return marker, nil
}

// downloadChunk fetches every segment in chunk concurrently, then writes
// the results to sink in chunk order, stopping at the first failure. It
// returns how many segments were written and, if a fetch failed
// permanently, the wrapped error.
func downloadChunk(ctx context.Context, chunk []hls.Segment, sink io.Writer, baseURI string, fetch SegmentFetcher, opts Options) (int, error) {
	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]fetchResult, len(chunk))
	var wg sync.WaitGroup
	for i, seg := range chunk {
		wg.Add(1)
		go func(i int, seg hls.Segment) {
			defer wg.Done()
			url := resolveSegmentURL(baseURI, seg.Name)
			data, err := fetchWithRetry(chunkCtx, fetch, url, opts)
			if err != nil {
				results[i] = fetchResult{err: err}
				cancel() // abort sibling fetches still in flight
				return
			}
			results[i] = fetchResult{data: data}
		}(i, seg)
	}
	wg.Wait()

	written := 0
	for i, r := range results {
		if r.err != nil {
			return written, fmt.Errorf("fetcher: segment %q: %w", chunk[i].Name, r.err)
		}
		if _, err := sink.Write(r.data); err != nil {
			return written, fmt.Errorf("fetcher: sink write for segment %q: %w", chunk[i].Name, err)
		}
		written++
	}
	return written, nil
}

func fetchWithRetry(ctx context.Context, fetch SegmentFetcher, url string, opts Options) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.PerSegmentRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(opts.RetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		data, err := fetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func resolveSegmentURL(baseURI, name string) string {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name
	}
	return baseURI + name
}
