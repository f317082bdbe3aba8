package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/quizforge"
	"github.com/brunobiangulo/quizforge/queue"
	"github.com/brunobiangulo/quizforge/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := quizforge.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}
	cfg.LoadProvidersFromEnv(os.Getenv)

	// Override from environment variables not covered by LoadProvidersFromEnv.
	if v := os.Getenv("QUIZ_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	apiKey := os.Getenv("QUIZ_API_KEY")
	corsOrigins := os.Getenv("QUIZ_CORS_ORIGINS")

	s, err := store.New(cfg.ResolveDBPath())
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":" + cfg.RedisPort})
	q := queue.New(rdb)
	svc := quizforge.NewService(s, q)

	h := newHandler(svc)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /quizzes", h.handleUpload)
	mux.HandleFunc("GET /quizzes", h.handleListQuizzes)
	mux.HandleFunc("GET /quizzes/{id}", h.handleGetQuiz)
	mux.HandleFunc("DELETE /quizzes/{id}", h.handleDeleteQuiz)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // uploads can take a while to stream
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
