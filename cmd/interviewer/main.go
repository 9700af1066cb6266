// PrepWise interviewer service: serves question generation and feedback
// synthesis over gRPC for servers running with INTERVIEWER_BACKEND=grpc.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/prepwise/internal/config"
	"github.com/ashureev/prepwise/internal/interviewer"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadInterviewerServer()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := interviewer.NewGeminiBackend(ctx, interviewer.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
		Logger: logger,
	})
	if err != nil {
		slog.Error("Failed to initialize Gemini backend", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		slog.Error("Failed to listen", "error", err, "addr", cfg.ListenAddr)
		os.Exit(1)
	}

	srv := grpc.NewServer()
	interviewer.RegisterInterviewerServer(srv, interviewer.NewBackendServer(backend, logger))

	go func() {
		slog.Info("Interviewer service listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			slog.Error("Interviewer service failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down interviewer service...")
	srv.GracefulStop()
	slog.Info("Interviewer service stopped")
}
