package capture

import (
	"sync"
	"time"
)

// dedupSet tracks (channel_id, started_at) pairs currently being captured,
// per spec.md §5 "the dedup set in C7 is a map channel_id -> set<started_at>".
type dedupSet struct {
	mu      sync.Mutex
	started map[string]map[time.Time]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{started: make(map[string]map[time.Time]struct{})}
}

// addIfAbsent records (channelID, startedAt) and reports whether it was not
// already present.
func (d *dedupSet) addIfAbsent(channelID string, startedAt time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.started[channelID]
	if !ok {
		set = make(map[time.Time]struct{})
		d.started[channelID] = set
	}
	if _, exists := set[startedAt]; exists {
		return false
	}
	set[startedAt] = struct{}{}
	return true
}

// remove clears the dedup entry once a capture finishes, successfully or not.
func (d *dedupSet) remove(channelID string, startedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.started[channelID]
	if !ok {
		return
	}
	delete(set, startedAt)
	if len(set) == 0 {
		delete(d.started, channelID)
	}
}
