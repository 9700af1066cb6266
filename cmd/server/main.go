// PrepWise - AI Mock Interview Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/prepwise/internal/api"
	"github.com/ashureev/prepwise/internal/auth"
	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/callstream"
	"github.com/ashureev/prepwise/internal/config"
	"github.com/ashureev/prepwise/internal/identity"
	"github.com/ashureev/prepwise/internal/interviewer"
	"github.com/ashureev/prepwise/internal/middleware"
	"github.com/ashureev/prepwise/internal/store"
	"github.com/ashureev/prepwise/internal/voice"
	"github.com/ashureev/prepwise/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize interviewer backend", "error", err, "backend", cfg.Interviewer.Backend)
		os.Exit(1)
	}
	interviews := interviewer.NewService(backend, repo, logger)
	defer func() {
		if closeErr := interviews.Close(); closeErr != nil {
			slog.Warn("Failed to close interviewer backend", "error", closeErr)
		}
	}()

	authSvc := auth.NewService(repo,
		auth.NewIDTokenVerifier(cfg.Session.IDTokenSecret, cfg.Session.IDTokenIssuer, cfg.Session.IDTokenAudience),
		auth.NewSessionIssuer(cfg.Session.Secret, cfg.Session.TTL),
	)

	// Generate calls go through the remote endpoint when one is configured.
	var generator call.Generator = interviews
	if cfg.GenerateURL != "" {
		generator = call.NewHTTPGenerator(cfg.GenerateURL)
		slog.Info("Generate calls use remote endpoint", "url", cfg.GenerateURL)
	}

	var newVoice callstream.VoiceFactory
	if cfg.VoiceEnabled() {
		newVoice = func() call.VoiceSession {
			return voice.NewClient(voice.Config{
				URL:    cfg.Voice.URL,
				APIKey: cfg.Voice.APIKey,
				Logger: logger,
			})
		}
	} else {
		slog.Info("Voice calls disabled (VOICE_WS_URL or VOICE_ASSISTANT_ID not set)")
	}

	sm := callstream.NewSessionManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg.IsDevelopment())
	healthHandler := api.NewHealthHandler(repo, cfg.VoiceEnabled())
	authHandler := api.NewAuthHandler(baseHandler, authSvc)
	authHandler.OnSignOut(sm.CloseUser)
	interviewHandler := api.NewInterviewHandler(baseHandler)
	generateHandler := api.NewGenerateHandler(baseHandler, interviews, cfg.GenerateRatePerMinute)
	wsHandler := callstream.NewWebSocketHandler(callstream.Config{
		Store:         repo,
		Generator:     generator,
		Feedback:      interviews,
		NewVoice:      newVoice,
		AssistantID:   cfg.Voice.AssistantID,
		Sessions:      sm,
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(authSvc))

	// Public routes.
	healthHandler.RegisterRoutes(r)
	authHandler.RegisterRoutes(r)
	generateHandler.RegisterRoutes(r)

	// Signed-in routes.
	interviewHandler.RegisterRoutes(r)
	r.With(middleware.RequireUser).Get("/ws/call", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// WebSocket calls are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	callstream.StartSweeper(ctx, sm, cfg.MaxCallDuration)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "active_calls", sm.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Upgraded call sockets are not tracked by the HTTP server. End the calls
	// and let their feedback reach the store before it is closed.
	if err := sm.CloseAll(shutdownCtx); err != nil {
		slog.Error("Calls did not finish before shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

// newBackend builds the configured interviewer backend.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (interviewer.Backend, error) {
	if cfg.Interviewer.Backend == config.BackendGRPC {
		slog.Info("Connecting to interviewer service via gRPC", "address", cfg.Interviewer.Addr)
		backend, err := interviewer.NewGRPCBackend(interviewer.DefaultGRPCConfig(cfg.Interviewer.Addr), logger)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}

	backend, err := interviewer.NewGeminiBackend(ctx, interviewer.GeminiConfig{
		APIKey: cfg.Interviewer.GeminiAPIKey,
		Model:  cfg.Interviewer.GeminiModel,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
