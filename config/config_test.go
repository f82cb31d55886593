package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "")
	t.Setenv("COMMAND_PREFIX", "")
	t.Setenv("INDEX_MARKOV", "")
	t.Setenv("TRACK_OFFLINERS", "")
	t.Setenv("DB_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Prefix != '$' {
		t.Errorf("prefix %q, want $", cfg.Prefix)
	}
	if !cfg.IndexMarkov || !cfg.TrackOffliners {
		t.Error("feature flags should default to enabled")
	}
	if cfg.DBDsn == "" {
		t.Error("missing default DSN")
	}
	if err := cfg.ValidateChatReady(); err == nil {
		t.Error("ValidateChatReady should fail without credentials")
	}
}

func TestLoadCustomPrefix(t *testing.T) {
	t.Setenv("COMMAND_PREFIX", "'")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Prefix != '\'' {
		t.Errorf("prefix %q", cfg.Prefix)
	}

	t.Setenv("COMMAND_PREFIX", "$$")
	if _, err := Load(); err == nil {
		t.Error("multi-character prefix accepted")
	}
}

func TestLoadFlagsDisabled(t *testing.T) {
	t.Setenv("INDEX_MARKOV", "0")
	t.Setenv("TRACK_OFFLINERS", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IndexMarkov || cfg.TrackOffliners {
		t.Error("flags not disabled by 0")
	}
}

func TestDisregardedUsers(t *testing.T) {
	t.Setenv("DISREGARDED_USERS", "NightBot, streamelements")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsDisregarded("nightbot") || !cfg.IsDisregarded("NIGHTBOT") {
		t.Error("disregard matching must be case-insensitive")
	}
	if !cfg.IsDisregarded("streamelements") {
		t.Error("second entry missed")
	}
	if cfg.IsDisregarded("viewer") {
		t.Error("unlisted user disregarded")
	}
}

func TestChannelListParsing(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "one, two ,,three")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Channels) != 3 || cfg.Channels[0] != "one" || cfg.Channels[1] != "two" || cfg.Channels[2] != "three" {
		t.Fatalf("channels %v", cfg.Channels)
	}
}
