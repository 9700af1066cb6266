package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port, got %q", cfg.Port)
	}
	if cfg.Session.TTL != 7*24*time.Hour {
		t.Errorf("expected one-week session TTL, got %v", cfg.Session.TTL)
	}
	if cfg.Session.Secret == "" || cfg.Session.IDTokenSecret == "" {
		t.Error("expected development secrets to be filled in")
	}
	if cfg.Interviewer.Backend != BackendGemini {
		t.Errorf("expected gemini backend, got %q", cfg.Interviewer.Backend)
	}
	if cfg.GenerateRatePerMinute != 5 {
		t.Errorf("expected default rate 5, got %d", cfg.GenerateRatePerMinute)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode")
	}
	if cfg.VoiceEnabled() {
		t.Error("expected voice to be disabled without URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("ID_TOKEN_SECRET", "i")
	t.Setenv("INTERVIEWER_BACKEND", "GRPC")
	t.Setenv("INTERVIEWER_ADDR", "interviewer:9090")
	t.Setenv("MAX_CALL_DURATION", "45m")
	t.Setenv("GENERATE_RATE_PER_MINUTE", "-3")
	t.Setenv("VOICE_WS_URL", "wss://voice.example/ws")
	t.Setenv("VOICE_ASSISTANT_ID", "asst")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Interviewer.Backend != BackendGRPC {
		t.Errorf("expected grpc backend, got %q", cfg.Interviewer.Backend)
	}
	if cfg.MaxCallDuration != 45*time.Minute {
		t.Errorf("expected 45m, got %v", cfg.MaxCallDuration)
	}
	if cfg.GenerateRatePerMinute != 5 {
		t.Errorf("expected invalid rate to fall back to 5, got %d", cfg.GenerateRatePerMinute)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
	if !cfg.VoiceEnabled() {
		t.Error("expected voice to be enabled")
	}
}

func TestLoadRequiresSecretsInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "key")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Fatalf("expected SESSION_SECRET error, got %v", err)
	}
}

func TestValidateBackend(t *testing.T) {
	base := Config{
		Port:            "8080",
		DBPath:          "db",
		Session:         SessionConfig{Secret: "s", IDTokenSecret: "i", TTL: time.Hour},
		MaxCallDuration: time.Minute,
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"gemini without key", func(c *Config) { c.Interviewer.Backend = BackendGemini }, "GEMINI_API_KEY"},
		{"grpc without addr", func(c *Config) { c.Interviewer.Backend = BackendGRPC }, "INTERVIEWER_ADDR"},
		{"unknown backend", func(c *Config) { c.Interviewer.Backend = "openai" }, "INTERVIEWER_BACKEND"},
		{"ok", func(c *Config) { c.Interviewer = InterviewerConfig{Backend: BackendGRPC, Addr: "x:1"} }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q error, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("PREPWISE_FLAG", "true")
	if !getEnvBool("PREPWISE_FLAG", false) {
		t.Error("expected true")
	}
	t.Setenv("PREPWISE_FLAG", "not-a-bool")
	if !getEnvBool("PREPWISE_FLAG", true) {
		t.Error("expected fallback for invalid value")
	}
	if getEnvBool("PREPWISE_UNSET_FLAG", false) {
		t.Error("expected fallback for unset key")
	}
}

func TestLoadInterviewerServer(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := LoadInterviewerServer(); err == nil {
		t.Fatal("expected error without GEMINI_API_KEY")
	}

	t.Setenv("GEMINI_API_KEY", "key")
	cfg, err := LoadInterviewerServer()
	if err != nil {
		t.Fatalf("LoadInterviewerServer failed: %v", err)
	}
	if cfg.ListenAddr != ":50051" || cfg.GeminiModel == "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
