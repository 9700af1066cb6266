// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Interviewer backends.
const (
	BackendGemini = "gemini"
	BackendGRPC   = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	AppEnv      string
	DBPath      string
	Debug       bool

	Session     SessionConfig
	Voice       VoiceConfig
	Interviewer InterviewerConfig

	// GenerateURL is where generate calls post their requests.
	// Empty means questions are generated in-process.
	GenerateURL           string
	GenerateRatePerMinute int
	MaxCallDuration       time.Duration
}

// SessionConfig controls ID-token verification and session cookies.
type SessionConfig struct {
	Secret          string
	TTL             time.Duration
	IDTokenSecret   string
	IDTokenIssuer   string
	IDTokenAudience string
}

// VoiceConfig points at the voice-agent platform.
type VoiceConfig struct {
	URL         string
	APIKey      string
	AssistantID string
}

// InterviewerConfig selects and configures the question/feedback backend.
type InterviewerConfig struct {
	Backend      string
	GeminiAPIKey string
	GeminiModel  string
	Addr         string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	ratePerMinute := getEnvInt("GENERATE_RATE_PER_MINUTE", 5)
	if ratePerMinute <= 0 {
		ratePerMinute = 5
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		AppEnv:      getEnv("APP_ENV", "development"),
		DBPath:      getEnv("DB_PATH", "./data/prepwise.db"),
		Debug:       getEnvBool("DEBUG", false),
		Session: SessionConfig{
			Secret:          getEnv("SESSION_SECRET", ""),
			TTL:             getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			IDTokenSecret:   getEnv("ID_TOKEN_SECRET", ""),
			IDTokenIssuer:   getEnv("ID_TOKEN_ISSUER", ""),
			IDTokenAudience: getEnv("ID_TOKEN_AUDIENCE", ""),
		},
		Voice: VoiceConfig{
			URL:         getEnv("VOICE_WS_URL", ""),
			APIKey:      getEnv("VOICE_API_KEY", ""),
			AssistantID: getEnv("VOICE_ASSISTANT_ID", ""),
		},
		Interviewer: InterviewerConfig{
			Backend:      strings.ToLower(getEnv("INTERVIEWER_BACKEND", BackendGemini)),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Addr:         getEnv("INTERVIEWER_ADDR", ""),
		},
		GenerateURL:           getEnv("GENERATE_URL", ""),
		GenerateRatePerMinute: ratePerMinute,
		MaxCallDuration:       getEnvDuration("MAX_CALL_DURATION", 30*time.Minute),
	}

	if cfg.Session.Secret == "" && cfg.IsDevelopment() {
		cfg.Session.Secret = "dev-session-secret"
	}
	if cfg.Session.IDTokenSecret == "" && cfg.IsDevelopment() {
		cfg.Session.IDTokenSecret = "dev-id-token-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.Session.Secret == "" {
		return errors.New("SESSION_SECRET cannot be empty")
	}
	if c.Session.IDTokenSecret == "" {
		return errors.New("ID_TOKEN_SECRET cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.MaxCallDuration <= 0 {
		return errors.New("MAX_CALL_DURATION must be > 0")
	}
	switch c.Interviewer.Backend {
	case BackendGemini:
		if c.Interviewer.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini backend")
		}
	case BackendGRPC:
		if c.Interviewer.Addr == "" {
			return errors.New("INTERVIEWER_ADDR is required for the grpc backend")
		}
	default:
		return fmt.Errorf("INTERVIEWER_BACKEND must be %q or %q, got %q", BackendGemini, BackendGRPC, c.Interviewer.Backend)
	}
	return nil
}

// InterviewerServerConfig configures the standalone interviewer gRPC server.
type InterviewerServerConfig struct {
	ListenAddr   string
	GeminiAPIKey string
	GeminiModel  string
	Debug        bool
}

// LoadInterviewerServer reads the interviewer server configuration from
// environment variables.
func LoadInterviewerServer() (*InterviewerServerConfig, error) {
	cfg := &InterviewerServerConfig{
		ListenAddr:   getEnv("INTERVIEWER_LISTEN_ADDR", ":50051"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		Debug:        getEnvBool("DEBUG", false),
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("INTERVIEWER_LISTEN_ADDR cannot be empty")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY cannot be empty")
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if c.AppEnv != "" {
		return c.AppEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// VoiceEnabled reports whether live interviews can be started.
func (c *Config) VoiceEnabled() bool {
	return c.Voice.URL != "" && c.Voice.AssistantID != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
