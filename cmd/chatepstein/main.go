package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/config"
	dbRedis "github.com/BrennenFa/ChatEpstein/internal/db/redis"
	"github.com/BrennenFa/ChatEpstein/internal/domain"
	logpkg "github.com/BrennenFa/ChatEpstein/internal/logger"
	"github.com/BrennenFa/ChatEpstein/internal/metrics"
	"github.com/BrennenFa/ChatEpstein/internal/repository/embcache"
	"github.com/BrennenFa/ChatEpstein/internal/repository/links"
	passagerepo "github.com/BrennenFa/ChatEpstein/internal/repository/passage"
	sessionrepo "github.com/BrennenFa/ChatEpstein/internal/repository/session"
	chiTransport "github.com/BrennenFa/ChatEpstein/internal/transport/chi"
	"github.com/BrennenFa/ChatEpstein/internal/transport/crossenc"
	openaiT "github.com/BrennenFa/ChatEpstein/internal/transport/openai"
	"github.com/BrennenFa/ChatEpstein/internal/transport/spacy"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/assembly"
	chatuc "github.com/BrennenFa/ChatEpstein/internal/usecase/chat"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/citation"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/entity"
	healthuc "github.com/BrennenFa/ChatEpstein/internal/usecase/health"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/rerank"
	"github.com/BrennenFa/ChatEpstein/internal/usecase/retrieval"
	"github.com/BrennenFa/ChatEpstein/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chatepstein API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	// Embedder chain: OpenAI -> Cached -> Instruction (outermost, so the cache
	// key includes the instruction prefix)
	baseEmbedder := openaiT.NewEmbedder(&openaiT.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	var queryEmbedder domain.Embedder = embcache.New(
		baseEmbedder, store,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	if cfg.Embedding.QueryInstruction != "" {
		queryEmbedder = domain.NewInstructionEmbedder(queryEmbedder, cfg.Embedding.QueryInstruction)
	}

	generator := openaiT.NewGenerator(&openaiT.GeneratorConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	nerClient := spacy.New(cfg.NER.BaseURL, time.Duration(cfg.NER.CallTimeoutSec)*time.Second)
	rerankClient := crossenc.New(cfg.Reranker.BaseURL, cfg.Reranker.Model,
		time.Duration(cfg.Reranker.CallTimeoutSec)*time.Second)

	linkResolver := buildLinkResolver(ctx, &cfg, logger)

	// Repositories and use case services
	passageRepo := passagerepo.New(store, cfg.Retrieval.IndexName)
	sessions := sessionrepo.New(cfg.Sessions.MaxSessions, cfg.Sessions.MaxMessages)

	entitySvc := entity.New(nerClient, logger)
	retrievalSvc := retrieval.New(passageRepo, queryEmbedder,
		cfg.Retrieval.EntityK, cfg.Retrieval.CandidateK, logger)
	rerankSvc := rerank.New(rerankClient, cfg.Retrieval.RerankTopN, logger)
	assemblySvc := assembly.New(linkResolver)
	citationSvc := citation.New(logger)

	chatSvc := chatuc.New(
		entitySvc, retrievalSvc, rerankSvc, assemblySvc,
		generator, citationSvc, sessions,
		time.Duration(cfg.LLM.CallTimeoutSec)*time.Second,
		logger,
	)

	healthSvc := healthuc.New(store, map[string]healthuc.Checker{
		"llm":      generator,
		"ner":      nerClient,
		"reranker": rerankClient,
	})

	server := chiTransport.NewServer(chatSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())

	var apiMiddlewares []func(http.Handler) http.Handler
	if cfg.RateLimit.RequestsPerMinute > 0 {
		apiMiddlewares = append(apiMiddlewares, httprate.Limit(
			cfg.RateLimit.RequestsPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "rate_limited",
					"message": "rate limit exceeded",
				})
			}),
		))
	}
	server.Register(r, apiMiddlewares...)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildLinkResolver creates the document link resolver. Without a configured
// bucket every link resolves as unavailable and chat still works.
func buildLinkResolver(ctx context.Context, cfg *config.Config, logger *zap.Logger) assembly.LinkResolver {
	if cfg.Storage.Bucket == "" {
		logger.Info("Document storage not configured, links disabled")
		return links.NoopResolver{}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		logger.Warn("Failed to load AWS config, links disabled", zap.Error(err))
		return links.NoopResolver{}
	}

	return links.NewS3Resolver(
		s3.NewFromConfig(awsCfg),
		cfg.Storage.Bucket,
		time.Duration(cfg.Storage.PresignExpirySec)*time.Second,
		logger,
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
