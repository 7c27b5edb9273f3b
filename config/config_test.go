package config

import (
	"testing"
)

func TestLoad_MissingRequiredSettingsAggregateIntoOneError(t *testing.T) {
	for _, k := range []string{
		"TWITCH_CLIENT_ID", "TWITCH_ACCESS_TOKEN", "CHANNELS",
		"MODE", "STREAM_TYPE", "STORAGE_DIR", "TWITCH_API_BASE_URL", "QUALITY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("TWITCH_API_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected a ConfigError for missing required settings")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("got %T, want *ConfigError", err)
	}
	if len(cfgErr.Failures) == 0 {
		t.Fatal("expected at least one aggregated failure")
	}
}

func TestLoad_ValidSettingsSucceed(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_ACCESS_TOKEN", "token")
	t.Setenv("TWITCH_API_BASE_URL", "https://api.twitch.tv/helix")
	t.Setenv("CHANNELS", "alice, bob")
	t.Setenv("QUALITY", "chunked")
	t.Setenv("MODE", "poll")
	t.Setenv("STREAM_TYPE", "vod")
	t.Setenv("STORAGE_DIR", "/tmp/capture")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != "alice" || cfg.Channels[1] != "bob" {
		t.Fatalf("Channels = %#v", cfg.Channels)
	}
}

func TestLoad_WebhookModeRequiresCallbackSettings(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_ACCESS_TOKEN", "token")
	t.Setenv("TWITCH_API_BASE_URL", "https://api.twitch.tv/helix")
	t.Setenv("CHANNELS", "alice")
	t.Setenv("QUALITY", "chunked")
	t.Setenv("MODE", "webhook")
	t.Setenv("STREAM_TYPE", "vod")
	t.Setenv("STORAGE_DIR", "/tmp/capture")
	t.Setenv("WEBHOOK_ADDR", "")
	t.Setenv("CALLBACK_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected webhook mode without WEBHOOK_ADDR/CALLBACK_BASE_URL to fail validation")
	}
}
