package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "db", "test.db"))
	t.Setenv("TEMP_DIR", filepath.Join(dir, "tmp"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Audio.RatePerMinute != 0.006 {
		t.Errorf("expected rate 0.006, got %v", cfg.Audio.RatePerMinute)
	}
	if cfg.Audio.ChunkThresholdBytes != 25*1024*1024 {
		t.Errorf("expected 25MB threshold, got %d", cfg.Audio.ChunkThresholdBytes)
	}
	if cfg.Audio.TranscribeConcurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Audio.TranscribeConcurrency)
	}
	if cfg.Transcript.RaceWidth != 4 {
		t.Errorf("expected race width 4, got %d", cfg.Transcript.RaceWidth)
	}
	if cfg.Analysis.ChunkChars != 6000 {
		t.Errorf("expected chunk chars 6000, got %d", cfg.Analysis.ChunkChars)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Bias.AdjustmentEnabled {
		t.Errorf("expected bias adjustment enabled by default")
	}
	if len(cfg.Transcript.FallbackLanguages) != 10 {
		t.Errorf("expected 10 fallback languages, got %v", cfg.Transcript.FallbackLanguages)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "test.db"))
	t.Setenv("TEMP_DIR", dir)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("READ_TIMEOUT", "10s")
	t.Setenv("AUDIO_MAX_COST_USD", "0.25")
	t.Setenv("TRANSCRIPT_FALLBACK_LANGUAGES", "es, fr ,de")
	t.Setenv("BIAS_ADJUSTMENT_ENABLED", "false")
	t.Setenv("RETRY_INITIAL_BACKOFF", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("expected 9090, got %s", cfg.ServerPort)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("expected 10s, got %s", cfg.ReadTimeout)
	}
	if cfg.Audio.MaxCostUSD != 0.25 {
		t.Errorf("expected 0.25, got %v", cfg.Audio.MaxCostUSD)
	}
	want := []string{"es", "fr", "de"}
	if len(cfg.Transcript.FallbackLanguages) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Transcript.FallbackLanguages)
	}
	for i := range want {
		if cfg.Transcript.FallbackLanguages[i] != want[i] {
			t.Errorf("expected %v, got %v", want, cfg.Transcript.FallbackLanguages)
		}
	}
	if cfg.Bias.AdjustmentEnabled {
		t.Errorf("expected bias adjustment disabled")
	}
	if cfg.Retry.InitialBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.Retry.InitialBackoff)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, true},
		{"negative rate", func(c *Config) { c.Audio.RatePerMinute = -1 }, true},
		{"zero concurrency", func(c *Config) { c.Audio.TranscribeConcurrency = 0 }, true},
		{"zero chunk size", func(c *Config) { c.Analysis.ChunkChars = 0 }, true},
		{"spaces without keys", func(c *Config) { c.Spaces.Enabled = true }, true},
		{"inverted backoff", func(c *Config) { c.Retry.MaxBackoff = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.TempDir = dir
			cfg.Database.Path = filepath.Join(dir, "test.db")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
