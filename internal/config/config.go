package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendLocal     = "local"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
)

type Config struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	APIToken    string `yaml:"api_token"`

	ModelServerURL        string `yaml:"model_server_url"`
	OpenAIAPIKey          string `yaml:"openai_api_key"`
	OpenAIBaseURL         string `yaml:"openai_base_url"`
	OpenAISummaryModel    string `yaml:"openai_summary_model"`
	OpenAITranscribeModel string `yaml:"openai_transcribe_model"`
	AnthropicAPIKey       string `yaml:"anthropic_api_key"`
	AnthropicModel        string `yaml:"anthropic_model"`
	SummaryBackend        string `yaml:"summary_backend"`
	TranscribeBackend     string `yaml:"transcribe_backend"`

	UploadDir      string        `yaml:"upload_dir"`
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	SummaryThreshold  int `yaml:"summary_threshold"`
	SummaryChunkWords int `yaml:"summary_chunk_words"`
	SummaryOverlap    int `yaml:"summary_overlap"`
	SummaryMaxPasses  int `yaml:"summary_max_passes"`

	WindowSeconds int     `yaml:"window_seconds"`
	SilenceRMS    float64 `yaml:"silence_rms"`

	GenerateStepTokens    int `yaml:"generate_step_tokens"`
	GenerateContextTokens int `yaml:"generate_context_tokens"`
	GenerateMaxLength     int `yaml:"generate_max_length"`
}

func defaults() Config {
	return Config{
		Port:                  8760,
		LogLevel:              "info",
		ModelServerURL:        "http://localhost:8761",
		AnthropicModel:        "claude-3-5-haiku-latest",
		OpenAISummaryModel:    "gpt-4o-mini",
		OpenAITranscribeModel: "whisper-1",
		SummaryBackend:        BackendLocal,
		TranscribeBackend:     BackendLocal,
		UploadDir:             "uploads",
		FFmpegPath:            "ffmpeg",
		MaxUploadMB:           50,
		RequestTimeout:        10 * time.Minute,
		SummaryThreshold:      500,
		SummaryChunkWords:     1024,
		SummaryOverlap:        100,
		SummaryMaxPasses:      5,
		WindowSeconds:         30,
		GenerateStepTokens:    100,
		GenerateContextTokens: 1024,
		GenerateMaxLength:     500,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// LUMEN_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envInt("LUMEN_PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.APIToken = envStr("LUMEN_API_TOKEN", cfg.APIToken)

	cfg.ModelServerURL = envStr("MODEL_SERVER_URL", cfg.ModelServerURL)
	cfg.OpenAIAPIKey = envStr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envStr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAISummaryModel = envStr("OPENAI_SUMMARY_MODEL", cfg.OpenAISummaryModel)
	cfg.OpenAITranscribeModel = envStr("OPENAI_TRANSCRIBE_MODEL", cfg.OpenAITranscribeModel)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envStr("LUMEN_ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.SummaryBackend = envStr("LUMEN_SUMMARY_BACKEND", cfg.SummaryBackend)
	cfg.TranscribeBackend = envStr("LUMEN_TRANSCRIBE_BACKEND", cfg.TranscribeBackend)

	cfg.UploadDir = envStr("LUMEN_UPLOAD_DIR", cfg.UploadDir)
	cfg.FFmpegPath = envStr("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.MaxUploadMB = envInt("LUMEN_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.RequestTimeout = envDuration("LUMEN_REQUEST_TIMEOUT", cfg.RequestTimeout)

	cfg.SummaryThreshold = envInt("LUMEN_SUMMARY_THRESHOLD", cfg.SummaryThreshold)
	cfg.SummaryChunkWords = envInt("LUMEN_SUMMARY_CHUNK_WORDS", cfg.SummaryChunkWords)
	cfg.SummaryOverlap = envInt("LUMEN_SUMMARY_OVERLAP", cfg.SummaryOverlap)
	cfg.SummaryMaxPasses = envInt("LUMEN_SUMMARY_MAX_PASSES", cfg.SummaryMaxPasses)

	cfg.WindowSeconds = envInt("LUMEN_WINDOW_SECONDS", cfg.WindowSeconds)
	cfg.SilenceRMS = envFloat("LUMEN_SILENCE_RMS", cfg.SilenceRMS)

	cfg.GenerateStepTokens = envInt("LUMEN_GENERATE_STEP_TOKENS", cfg.GenerateStepTokens)
	cfg.GenerateContextTokens = envInt("LUMEN_GENERATE_CONTEXT_TOKENS", cfg.GenerateContextTokens)
	cfg.GenerateMaxLength = envInt("LUMEN_GENERATE_MAX_LENGTH", cfg.GenerateMaxLength)

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	switch c.SummaryBackend {
	case BackendLocal:
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai summary backend"))
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic summary backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown summary backend %q", c.SummaryBackend))
	}
	switch c.TranscribeBackend {
	case BackendLocal:
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai transcribe backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transcribe backend %q", c.TranscribeBackend))
	}

	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.SummaryThreshold <= 0 || c.SummaryChunkWords <= 0 || c.SummaryMaxPasses <= 0 {
		errs = append(errs, errors.New("summary threshold, chunk words and max passes must be positive"))
	}
	if c.SummaryOverlap < 0 || c.SummaryOverlap >= c.SummaryChunkWords {
		errs = append(errs, fmt.Errorf("summary overlap %d must be in [0, %d)", c.SummaryOverlap, c.SummaryChunkWords))
	}
	if c.WindowSeconds <= 0 {
		errs = append(errs, errors.New("window seconds must be positive"))
	}
	if c.SilenceRMS < 0 {
		errs = append(errs, errors.New("silence rms must not be negative"))
	}
	if c.GenerateStepTokens <= 0 || c.GenerateContextTokens <= 0 {
		errs = append(errs, errors.New("generate step and context tokens must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
