package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// segmentStatusError records a non-2xx response from a segment fetch so
// IsTransient can classify it without re-parsing a formatted string.
type segmentStatusError struct {
	statusCode int
}

func (e *segmentStatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d", e.statusCode)
}

// IsTransient reports whether err is worth retrying: network-level errors
// and 5xx responses are transient; 4xx responses are not (spec.md §4.3).
func IsTransient(err error) bool {
	var statusErr *segmentStatusError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// NewHTTPSegmentFetcher returns a SegmentFetcher backed by client (or
// http.DefaultClient if nil). net/http follows redirects automatically, so
// no additional handling is needed for that part of the contract.
func NewHTTPSegmentFetcher(client *http.Client) SegmentFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("fetcher: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetcher: do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &segmentStatusError{statusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetcher: read body: %w", err)
		}
		return body, nil
	}
}
