// Command quizworker consumes quiz-processing jobs from the durable
// Redis-backed queue and runs them through the parse/orchestrate/persist
// pipeline (SPEC_FULL §4.6, §4.7). Structured logging, config loading, and
// graceful shutdown mirror cmd/server/main.go.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brunobiangulo/quizforge"
	"github.com/brunobiangulo/quizforge/cache"
	"github.com/brunobiangulo/quizforge/orchestrator"
	"github.com/brunobiangulo/quizforge/parser"
	"github.com/brunobiangulo/quizforge/pipeline"
	"github.com/brunobiangulo/quizforge/queue"
	"github.com/brunobiangulo/quizforge/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	flag.Parse()

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
	if v := os.Getenv("QUIZ_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BULLMQ_QUIZ_CONCURRENCY"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.QuizWorkerConcurrency = n
		}
	}

	s, err := store.New(cfg.ResolveDBPath())
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	blobs, err := quizforge.NewLocalBlobStore(cfg.LocalBlobDir)
	if err != nil {
		slog.Error("creating blob store", "error", err)
		os.Exit(1)
	}

	c := cache.New(s)
	providers := cfg.Adapters().Build()
	orch := orchestrator.New(c, providers, orchestrator.Config{
		ChunkSize:          cfg.ChunkSize,
		MaxRetriesPerChunk: cfg.MaxRetriesPerChunk,
		PromptMaxChars:     cfg.PromptMaxChars,
	})
	p := pipeline.New(parser.NewRegistry(), orch, s, blobs)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":" + cfg.RedisPort})
	q := queue.New(rdb)

	// ParserError is terminal and never retried: the document itself is
	// broken, so a retry would just reproduce the same failure (SPEC_FULL
	// §4.7 cleanup-on-terminal-failure, reserved for parser errors).
	handler := func(ctx context.Context, j queue.Job) error {
		format := parserFormatFromURL(j.DocumentURL)
		localPath := stripFileScheme(j.DocumentURL)
		err := p.Process(ctx, j.QuizID, localPath, format)
		if err == nil {
			return nil
		}
		if !quizforge.IsParserError(err) {
			return err
		}
		if rmErr := os.Remove(localPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("quizworker: failed to remove source file after parser error", "quiz_id", j.QuizID, "error", rmErr)
		}
		if delErr := s.SoftDeleteQuiz(ctx, j.QuizID); delErr != nil {
			slog.Error("quizworker: failed to soft-delete quiz after parser error", "quiz_id", j.QuizID, "error", delErr)
		}
		slog.Warn("quizworker: parser error, quiz and source cleaned up", "quiz_id", j.QuizID, "error", err)
		return nil
	}

	wp := queue.NewWorkerPool(q, s, handler, cfg.JobMaxAttempts, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("quizworker starting", "concurrency", cfg.QuizWorkerConcurrency, "redis", cfg.RedisHost+":"+cfg.RedisPort)
	wp.Start(ctx, cfg.QuizWorkerConcurrency)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	<-done

	slog.Info("quizworker shutting down...")
	cancel()
	wp.Wait()
	slog.Info("quizworker stopped")
}

// stripFileScheme resolves a documentUrl by stripping any file:// prefix
// (SPEC_FULL §4.6 step 2).
func stripFileScheme(url string) string {
	const scheme = "file://"
	if len(url) >= len(scheme) && url[:len(scheme)] == scheme {
		return url[len(scheme):]
	}
	return url
}

// parserFormatFromURL derives the parser registry's dispatch key from the
// job's document URL extension. This is computed fresh rather than trusted
// off the job's DocumentType field: DocumentType is set at enqueue time
// from the same extension, but deriving it again here means a stale or
// mistagged job still routes to the right parser.
func parserFormatFromURL(documentURL string) string {
	switch strings.ToLower(filepath.Ext(stripFileScheme(documentURL))) {
	case ".pdf":
		return "pdf"
	case ".docx", ".doc", ".odt":
		return "docx"
	case ".xlsx", ".xls":
		return "xlsx"
	default:
		return "txt"
	}
}
