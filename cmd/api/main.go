// Package main implements the Vendex retrieval API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendexa/vendex/engine/domain"
	"github.com/vendexa/vendex/engine/embed"
	"github.com/vendexa/vendex/engine/search"
	"github.com/vendexa/vendex/engine/semantic"
	"github.com/vendexa/vendex/pkg/blob"
	"github.com/vendexa/vendex/pkg/metrics"
	"github.com/vendexa/vendex/pkg/mid"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	MetricsPort int
	CORSOrigin  string

	EmbedURL      string
	EmbedKey      string
	EmbedModel    string
	FallbackURL   string
	FallbackKey   string
	FallbackModel string

	NATSURL    string
	QdrantURL  string
	Collection string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool

	IndexDir    string
	IndexName   string
	VendorsPath string
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		MetricsPort: envInt("METRICS_PORT", 9090),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),

		EmbedURL:      envOr("EMBED_URL", "https://api.cohere.com"),
		EmbedKey:      envOr("COHERE_API_KEY", ""),
		EmbedModel:    envOr("EMBED_MODEL", "embed-english-v3.0"),
		FallbackURL:   envOr("EMBED_FALLBACK_URL", ""),
		FallbackKey:   envOr("EMBED_FALLBACK_KEY", ""),
		FallbackModel: envOr("EMBED_FALLBACK_MODEL", ""),

		NATSURL:    envOr("NATS_URL", ""),
		QdrantURL:  envOr("QDRANT_URL", ""),
		Collection: envOr("QDRANT_COLLECTION", "vendors"),

		S3Endpoint:  envOr("S3_ENDPOINT", ""),
		S3AccessKey: envOr("S3_ACCESS_KEY", ""),
		S3SecretKey: envOr("S3_SECRET_KEY", ""),
		S3Bucket:    envOr("S3_BUCKET", ""),
		S3Prefix:    envOr("S3_PREFIX", "indexes"),
		S3UseSSL:    envOr("S3_USE_SSL", "true") == "true",

		IndexDir:    envOr("INDEX_DIR", "./data/indexes"),
		IndexName:   envOr("INDEX_NAME", "vendors"),
		VendorsPath: envOr("VENDORS_PATH", "./data/vendors.json"),
	}
}

func envOr(key, fallback string) string {
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

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Embedding providers ---
	names := []string{"primary"}
	providers := []embed.Provider{embed.NewClient(cfg.EmbedURL, cfg.EmbedKey, cfg.EmbedModel, logger)}
	if cfg.FallbackURL != "" {
		names = append(names, "fallback")
		providers = append(providers, embed.NewClient(cfg.FallbackURL, cfg.FallbackKey, cfg.FallbackModel, logger))
	}
	embedder := embed.NewFallback(logger, names, providers...)

	// --- Optional NATS ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("vendex-api"))
		if err != nil {
			logger.Warn("nats connect failed, events disabled", "err", err)
		} else {
			nc = conn
			defer nc.Drain()
		}
	}

	// --- Service dependencies ---
	reg := metrics.New()
	deps := search.Deps{
		Embedder: embedder,
		Blob:     blob.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Prefix, cfg.S3UseSSL, logger),
		NATS:     nc,
		Metrics:  reg,
		Logger:   logger,
	}

	if cfg.QdrantURL != "" {
		mirror, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			logger.Warn("qdrant connect failed, mirror disabled", "err", err)
		} else {
			deps.Mirror = mirror
			defer mirror.Close()
		}
	}

	svc := search.New(deps, search.Options{
		BaseDir:     cfg.IndexDir,
		IndexName:   cfg.IndexName,
		VendorsPath: cfg.VendorsPath,
	})

	if sub, err := svc.StartRebuildConsumer(); err != nil {
		logger.Warn("rebuild consumer failed to start", "err", err)
	} else if sub != nil {
		defer sub.Unsubscribe()
	}

	reg.ServeAsync(cfg.MetricsPort, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /api/v1/index", handleBuild(svc, logger))
	mux.HandleFunc("POST /api/v1/query", handleQuery(svc, logger))
	mux.HandleFunc("POST /api/v1/search", handleQuery(svc, logger))
	mux.HandleFunc("POST /api/v1/eval", handleEval(svc, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("vendex-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleBuild(svc *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.BuildRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.BuildIndex(r.Context(), req)
		if err != nil {
			logger.Error("index build failed", "err", err)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, resp)
	}
}

func handleQuery(svc *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.QueryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		results, err := svc.Query(r.Context(), req)
		if err != nil {
			logger.Error("query failed", "err", err)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, map[string]any{"results": results, "count": len(results)})
	}
}

func handleEval(svc *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.EvalRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Evaluate(r.Context(), req)
		if err != nil {
			logger.Error("evaluation failed", "err", err)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, resp)
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
