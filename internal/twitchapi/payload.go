package twitchapi

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// streamPayload is the raw upstream shape of one entry in GET /streams.
type streamPayload struct {
	UserName  string         `json:"user_name"`
	UserID    string         `json:"user_id"`
	GameName  string         `json:"game_name"`
	Title     string         `json:"title"`
	StartedAt time.Time      `json:"started_at"`
	Extra     map[string]any `json:"-"`
}

func (p streamPayload) toStreamInfo() StreamInfo {
	return StreamInfo{
		ChannelName: strings.ToLower(p.UserName),
		ChannelID:   p.UserID,
		GameName:    p.GameName,
		Status:      p.Title,
		StartedAt:   p.StartedAt,
		Raw:         p.rawMap(),
	}
}

func (p streamPayload) rawMap() map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// videoPayload is the raw upstream shape of one entry in GET /videos. The
// upstream reports Duration in the compact "1h23m45s" form (spec.md §3),
// parsed via ParseDuration.
type videoPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	UserName  string    `json:"user_name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Duration  string    `json:"duration"`
}

func (p videoPayload) toVideoInfo() (VideoInfo, error) {
	d, err := ParseDuration(p.Duration)
	if err != nil {
		return VideoInfo{}, err
	}
	b, _ := json.Marshal(p)
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)

	return VideoInfo{
		ID:        p.ID,
		Title:     p.Title,
		Type:      VideoType(p.Type),
		Channel:   Channel{Name: strings.ToLower(p.UserName), ID: p.UserID},
		CreatedAt: p.CreatedAt,
		Duration:  d,
		Raw:       raw,
	}, nil
}

// userPayload is the raw upstream shape of one entry in GET /users.
type userPayload struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// userCache is instance-scoped login<->id caching, replacing the source's
// global mutable cache (spec.md §9).
type userCache struct {
	mu       sync.RWMutex
	byLoginM map[string]Channel
	byIDM    map[string]Channel
}

func newUserCache() userCache {
	return userCache{
		byLoginM: make(map[string]Channel),
		byIDM:    make(map[string]Channel),
	}
}

func (c *userCache) byLogin(login string) (Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byLoginM[strings.ToLower(login)]
	return ch, ok
}

func (c *userCache) byID(id string) (Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byIDM[id]
	return ch, ok
}

func (c *userCache) put(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLoginM[ch.Name] = ch
	c.byIDM[ch.ID] = ch
}
