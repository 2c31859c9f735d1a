package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir  string `json:"log_dir"`
	TempDir string `json:"temp_dir"`

	Log        LogConfig        `json:"log"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Database   DatabaseConfig   `json:"database"`
	Transcript TranscriptConfig `json:"transcript"`
	Audio      AudioConfig      `json:"audio"`
	Whisper    WhisperConfig    `json:"whisper"`
	LLM        LLMConfig        `json:"llm"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Bias       BiasConfig       `json:"bias"`
	Metadata   MetadataConfig   `json:"metadata"`
	Retry      RetryConfig      `json:"retry"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Spaces     SpacesConfig     `json:"spaces"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

type DatabaseConfig struct {
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type TranscriptConfig struct {
	DefaultLanguage   string   `json:"default_language"`
	FallbackLanguages []string `json:"fallback_languages"`
	RaceWidth         int      `json:"race_width"`
}

type AudioConfig struct {
	FallbackEnabled       bool    `json:"fallback_enabled"`
	RatePerMinute         float64 `json:"rate_per_minute"`
	MaxCostUSD            float64 `json:"max_cost_usd"`
	MaxDurationMinutes    float64 `json:"max_duration_minutes"`
	ChunkThresholdBytes   int64   `json:"chunk_threshold_bytes"`
	ChunkSeconds          int     `json:"chunk_seconds"`
	TranscribeConcurrency int     `json:"transcribe_concurrency"`
	Quality               string  `json:"quality"`
	YtDlpPath             string  `json:"ytdlp_path"`
	FFmpegPath            string  `json:"ffmpeg_path"`
}

type WhisperConfig struct {
	APIKey  string        `json:"-"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

type LLMConfig struct {
	APIKey            string        `json:"-"`
	BaseURL           string        `json:"base_url"`
	Model             string        `json:"model"`
	Timeout           time.Duration `json:"timeout"`
	RequestsPerMinute int           `json:"requests_per_minute"`
}

type AnalysisConfig struct {
	ChunkChars       int    `json:"chunk_chars"`
	Concurrency      int    `json:"concurrency"`
	PromptConfigPath string `json:"prompt_config_path"`
}

type BiasConfig struct {
	AdjustmentEnabled bool `json:"adjustment_enabled"`
}

type MetadataConfig struct {
	YouTubeAPIKey string        `json:"-"`
	Timeout       time.Duration `json:"timeout"`
}

type RetryConfig struct {
	MaxAttempts    int           `json:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
}

type PipelineConfig struct {
	ReuseUnchanged bool `json:"reuse_unchanged"`
}

type SpacesConfig struct {
	Enabled   bool   `json:"enabled"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

var defaultFallbackLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := Default()

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.Debug = getEnvAsBool("DEBUG", cfg.Debug)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.TempDir = getEnv("TEMP_DIR", cfg.TempDir)
	cfg.Version = getEnv("VERSION", cfg.Version)
	cfg.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", cfg.Log.Level),
		Format: getEnv("LOG_FORMAT", cfg.Log.Format),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled),
		RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute),
		BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize),
	}

	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.MaxConnections = getEnvAsInt("DB_MAX_CONNECTIONS", cfg.Database.MaxConnections)

	cfg.Transcript = TranscriptConfig{
		DefaultLanguage:   getEnv("TRANSCRIPT_DEFAULT_LANGUAGE", cfg.Transcript.DefaultLanguage),
		FallbackLanguages: getEnvAsStringSlice("TRANSCRIPT_FALLBACK_LANGUAGES", cfg.Transcript.FallbackLanguages),
		RaceWidth:         getEnvAsInt("TRANSCRIPT_RACE_WIDTH", cfg.Transcript.RaceWidth),
	}

	cfg.Audio = AudioConfig{
		FallbackEnabled:       getEnvAsBool("AUDIO_FALLBACK_ENABLED", cfg.Audio.FallbackEnabled),
		RatePerMinute:         getEnvAsFloat("AUDIO_RATE_PER_MINUTE", cfg.Audio.RatePerMinute),
		MaxCostUSD:            getEnvAsFloat("AUDIO_MAX_COST_USD", cfg.Audio.MaxCostUSD),
		MaxDurationMinutes:    getEnvAsFloat("AUDIO_MAX_DURATION_MINUTES", cfg.Audio.MaxDurationMinutes),
		ChunkThresholdBytes:   getEnvAsInt64("AUDIO_CHUNK_THRESHOLD_BYTES", cfg.Audio.ChunkThresholdBytes),
		ChunkSeconds:          getEnvAsInt("AUDIO_CHUNK_SECONDS", cfg.Audio.ChunkSeconds),
		TranscribeConcurrency: getEnvAsInt("AUDIO_TRANSCRIBE_CONCURRENCY", cfg.Audio.TranscribeConcurrency),
		Quality:               getEnv("AUDIO_QUALITY", cfg.Audio.Quality),
		YtDlpPath:             getEnv("YTDLP_PATH", cfg.Audio.YtDlpPath),
		FFmpegPath:            getEnv("FFMPEG_PATH", cfg.Audio.FFmpegPath),
	}

	cfg.Whisper = WhisperConfig{
		APIKey:  getEnv("WHISPER_API_KEY", getEnv("LLM_API_KEY", "")),
		BaseURL: getEnv("WHISPER_BASE_URL", cfg.Whisper.BaseURL),
		Model:   getEnv("WHISPER_MODEL", cfg.Whisper.Model),
		Timeout: getEnvAsDuration("WHISPER_TIMEOUT", cfg.Whisper.Timeout),
	}

	cfg.LLM = LLMConfig{
		APIKey:            getEnv("LLM_API_KEY", ""),
		BaseURL:           getEnv("LLM_BASE_URL", cfg.LLM.BaseURL),
		Model:             getEnv("LLM_MODEL", cfg.LLM.Model),
		Timeout:           getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout),
		RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", cfg.LLM.RequestsPerMinute),
	}

	cfg.Analysis = AnalysisConfig{
		ChunkChars:       getEnvAsInt("ANALYSIS_CHUNK_CHARS", cfg.Analysis.ChunkChars),
		Concurrency:      getEnvAsInt("ANALYSIS_CONCURRENCY", cfg.Analysis.Concurrency),
		PromptConfigPath: getEnv("PROMPT_CONFIG_PATH", cfg.Analysis.PromptConfigPath),
	}

	cfg.Bias.AdjustmentEnabled = getEnvAsBool("BIAS_ADJUSTMENT_ENABLED", cfg.Bias.AdjustmentEnabled)

	cfg.Metadata = MetadataConfig{
		YouTubeAPIKey: getEnv("YOUTUBE_API_KEY", ""),
		Timeout:       getEnvAsDuration("METADATA_TIMEOUT", cfg.Metadata.Timeout),
	}

	cfg.Retry = RetryConfig{
		MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts),
		InitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", cfg.Retry.InitialBackoff),
		MaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", cfg.Retry.MaxBackoff),
	}

	cfg.Pipeline.ReuseUnchanged = getEnvAsBool("PIPELINE_REUSE_UNCHANGED", cfg.Pipeline.ReuseUnchanged)

	cfg.Spaces = SpacesConfig{
		Enabled:   getEnvAsBool("SPACES_ENABLED", false),
		AccessKey: getEnv("SPACES_ACCESS_KEY", ""),
		SecretKey: getEnv("SPACES_SECRET_KEY", ""),
		Region:    getEnv("SPACES_REGION", cfg.Spaces.Region),
		Endpoint:  getEnv("SPACES_ENDPOINT", cfg.Spaces.Endpoint),
		Bucket:    getEnv("SPACES_BUCKET", cfg.Spaces.Bucket),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		ServerPort:      "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Minute,
		IdleTimeout:     60 * time.Second,
		LogDir:          "",
		TempDir:         filepath.Join(os.TempDir(), "yt-sentiment"),
		Version:         "1.0.0",
		RequestTimeout:  15 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		Log:             LogConfig{Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Database: DatabaseConfig{
			Path:               "./data/analyses.db",
			MaxConnections:     10,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    time.Hour,
		},
		Transcript: TranscriptConfig{
			DefaultLanguage:   "en",
			FallbackLanguages: append([]string(nil), defaultFallbackLanguages...),
			RaceWidth:         4,
		},
		Audio: AudioConfig{
			FallbackEnabled:       true,
			RatePerMinute:         0.006,
			MaxCostUSD:            1.00,
			MaxDurationMinutes:    90,
			ChunkThresholdBytes:   25 * 1024 * 1024,
			ChunkSeconds:          600,
			TranscribeConcurrency: 3,
			Quality:               "64K",
			YtDlpPath:             "yt-dlp",
			FFmpegPath:            "ffmpeg",
		},
		Whisper: WhisperConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
			Timeout: 5 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:           "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			Timeout:           90 * time.Second,
			RequestsPerMinute: 60,
		},
		Analysis: AnalysisConfig{
			ChunkChars:  6000,
			Concurrency: 1,
		},
		Bias:     BiasConfig{AdjustmentEnabled: true},
		Metadata: MetadataConfig{Timeout: 15 * time.Second},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
		},
		Pipeline: PipelineConfig{ReuseUnchanged: true},
		Spaces: SpacesConfig{
			Region:   "us-east-1",
			Endpoint: "https://nyc3.digitaloceanspaces.com",
			Bucket:   "yt-sentiment",
		},
	}
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.TempDir, "temp directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}
	if c.LogDir != "" {
		paths = append(paths, struct {
			path string
			name string
		}{c.LogDir, "log directory"})
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry backoff window is invalid")
	}
	return nil
}

func validateServices(c *Config) error {
	if c.Audio.RatePerMinute < 0 {
		return fmt.Errorf("audio rate per minute must not be negative")
	}
	if c.Audio.MaxCostUSD < 0 || c.Audio.MaxDurationMinutes <= 0 {
		return fmt.Errorf("audio budgets must be positive")
	}
	if c.Audio.TranscribeConcurrency <= 0 {
		return fmt.Errorf("audio transcribe concurrency must be positive")
	}
	if c.Audio.ChunkSeconds <= 0 || c.Audio.ChunkThresholdBytes <= 0 {
		return fmt.Errorf("audio chunking settings must be positive")
	}
	if c.Transcript.RaceWidth <= 0 {
		return fmt.Errorf("transcript race width must be positive")
	}
	if strings.TrimSpace(c.Transcript.DefaultLanguage) == "" {
		return fmt.Errorf("transcript default language is required")
	}
	if c.Analysis.ChunkChars <= 0 {
		return fmt.Errorf("analysis chunk size must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive")
	}
	if c.Spaces.Enabled && (c.Spaces.AccessKey == "" || c.Spaces.SecretKey == "") {
		return fmt.Errorf("spaces archive enabled without credentials")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	return defaultValue
}
