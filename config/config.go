// Package config loads the service's settings from the environment,
// following the teacher's getEnv/getEnvAsInt pattern, then validates the
// result against struct tags so missing required settings surface as one
// aggregated ConfigError at startup (spec.md §7) instead of a panic deep
// inside a constructor.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TrackingMode selects which Tracker main.go wires up.
type TrackingMode string

const (
	ModePoll    TrackingMode = "poll"
	ModeWebhook TrackingMode = "webhook"
)

// StreamType selects the Stream Downloader Facade's download mode.
type StreamType string

const (
	StreamTypeVOD  StreamType = "vod"
	StreamTypeLive StreamType = "live"
)

// Config holds every setting the service needs to run.
type Config struct {
	ClientID    string `validate:"required"`
	AccessToken string `validate:"required"`
	APIBaseURL  string `validate:"required,url"`

	Channels []string `validate:"required,min=1"`
	Quality  string   `validate:"required"`

	Mode            TrackingMode `validate:"required,oneof=poll webhook"`
	PollPeriod      time.Duration
	WebhookAddr     string `validate:"required_if=Mode webhook"`
	CallbackBaseURL string `validate:"required_if=Mode webhook,omitempty,url"`
	LeaseSeconds    int

	StreamType   StreamType `validate:"required,oneof=vod live"`
	StorageDir   string     `validate:"required"`
	WaitVODDelay time.Duration

	Concurrency int
}

// ConfigError aggregates every validation failure found while loading Config,
// so an operator sees every missing setting at once rather than one at a
// time across repeated restarts.
type ConfigError struct {
	Failures []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %d invalid setting(s): %s", len(e.Failures), strings.Join(e.Failures, "; "))
}

// Load reads environment variables with defaults, then validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ClientID:    getEnv("TWITCH_CLIENT_ID", ""),
		AccessToken: getEnv("TWITCH_ACCESS_TOKEN", ""),
		APIBaseURL:  getEnv("TWITCH_API_BASE_URL", "https://api.twitch.tv/helix"),

		Channels: getEnvAsList("CHANNELS", nil),
		Quality:  getEnv("QUALITY", "chunked"),

		Mode:            TrackingMode(getEnv("MODE", string(ModePoll))),
		PollPeriod:      getEnvAsDuration("POLL_PERIOD", 60*time.Second),
		WebhookAddr:     getEnv("WEBHOOK_ADDR", ""),
		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", ""),
		LeaseSeconds:    getEnvAsInt("LEASE_SECONDS", 86400),

		StreamType:   StreamType(getEnv("STREAM_TYPE", string(StreamTypeVOD))),
		StorageDir:   getEnv("STORAGE_DIR", "./downloads"),
		WaitVODDelay: getEnvAsDuration("WAIT_VOD_DELAY", 10*time.Second),

		Concurrency: getEnvAsInt("CONCURRENCY", 10),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, toConfigError(err)
	}
	return cfg, nil
}

func toConfigError(err error) error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ConfigError{Failures: []string{err.Error()}}
	}
	failures := make([]string, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, fmt.Sprintf("%s: failed %q validation", fe.Field(), fe.Tag()))
	}
	return &ConfigError{Failures: failures}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsList(name string, defaultVal []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists || valueStr == "" {
		return defaultVal
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
