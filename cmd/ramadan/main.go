package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/api"
	"github.com/felipepmaragno/ramadan-companion/internal/auth"
	"github.com/felipepmaragno/ramadan-companion/internal/cache"
	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/config"
	"github.com/felipepmaragno/ramadan-companion/internal/crypto"
	"github.com/felipepmaragno/ramadan-companion/internal/gemini"
	"github.com/felipepmaragno/ramadan-companion/internal/httputil"
	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/felipepmaragno/ramadan-companion/internal/notifications"
	"github.com/felipepmaragno/ramadan-companion/internal/prayer"
	"github.com/felipepmaragno/ramadan-companion/internal/queue"
	"github.com/felipepmaragno/ramadan-companion/internal/quran"
	"github.com/felipepmaragno/ramadan-companion/internal/ratelimit"
	"github.com/felipepmaragno/ramadan-companion/internal/repository"
	"github.com/felipepmaragno/ramadan-companion/internal/secrets"
	"github.com/felipepmaragno/ramadan-companion/internal/tajweed"
	"github.com/felipepmaragno/ramadan-companion/internal/telemetry"
	"github.com/felipepmaragno/ramadan-companion/internal/worker"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const serviceName = "ramadan-companion"

func main() {
	hashToken := flag.String("hash-token", "", "print the bcrypt hash of an admin token and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := auth.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash token:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting Ramadan Companion", "addr", cfg.Addr, "version", cfg.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.Version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Warn("failed to initialize tracing", "error", err)
	}
	metrics.InitInstanceMetrics(cfg.Version)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not reachable at startup", "error", err)
		}
	}

	pool, err := buildPool(ctx, cfg, redisClient)
	if err != nil {
		slog.Error("failed to load gemini keys", "error", err)
		os.Exit(1)
	}
	metrics.SetCredentialPoolSize(pool.Size())
	if pool.Size() == 0 {
		slog.Warn("no gemini keys configured, tajweed endpoints will answer 503")
	} else {
		slog.Info("gemini key pool loaded", "size", pool.Size(), "fingerprints", pool.Fingerprints())
	}

	dispatcher := gemini.New(pool, gemini.Config{
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httputil.GeminiClient(cfg.UpstreamTimeout),
	})

	var notifier notifications.Notifier
	if cfg.SNSTopicARN != "" {
		notifier, err = notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Error("failed to create sns notifier", "error", err)
			os.Exit(1)
		}
		slog.Info("using sns notifier", "topic", cfg.SNSTopicARN)
	} else {
		notifier = notifications.NewInMemoryNotifier()
	}
	var dedup notifications.Deduplicator = notifications.NewInMemoryDeduplicator(5 * time.Minute)
	if redisClient != nil {
		dedup = notifications.NewRedisDeduplicator(redisClient, 5*time.Minute)
	}
	notifier = notifications.NewThrottled(notifier, dedup)

	tajweedService := tajweed.NewService(dispatcher, notifier)

	var breakerOpts []circuitbreaker.ManagerOption
	if redisClient != nil {
		breakerOpts = append(breakerOpts, circuitbreaker.WithRedisClient(redisClient))
	}
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), breakerOpts...)

	var contentCache cache.Cache
	if redisClient != nil {
		contentCache = cache.NewRedisCache(redisClient)
		slog.Info("using redis cache")
	} else {
		memCache := cache.NewInMemoryCache()
		defer memCache.Close()
		contentCache = memCache
		slog.Info("using in-memory cache")
	}

	aladhan := httputil.NewUpstream("aladhan", cfg.AladhanBaseURL, nil, breakers.Get("aladhan"))
	alquran := httputil.NewUpstream("alquran", cfg.AlquranBaseURL, nil, breakers.Get("alquran"))

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, time.Minute)
		slog.Info("using redis rate limiter", "rpm", cfg.TajweedRateLimitRPM)
	} else {
		limiter = ratelimit.NewInMemoryLimiter(time.Minute)
		slog.Info("using in-memory rate limiter", "rpm", cfg.TajweedRateLimitRPM)
	}

	var jobs queue.Queue
	if cfg.SQSAnalysisQueueURL != "" {
		jobs, err = queue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.SQSAnalysisQueueURL)
		if err != nil {
			slog.Error("failed to create sqs queue", "error", err)
			os.Exit(1)
		}
		slog.Info("using sqs analysis queue")
	} else {
		jobs = queue.NewInMemoryQueue()
	}

	checkers := []api.HealthChecker{}
	if redisClient != nil {
		checkers = append(checkers, api.NewRedisHealthChecker(redisClient))
	}

	var analyses repository.AnalysisRepository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := repository.NewPostgresAnalysisRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		analyses = repo
		checkers = append(checkers, api.NewPostgresHealthChecker(db))
		slog.Info("using postgres analysis repository")
	} else {
		analyses = repository.NewInMemoryAnalysisRepository()
	}

	tokenAuth, err := auth.NewTokenAuth(cfg.AdminTokenHash)
	if err != nil {
		slog.Error("invalid admin token hash", "error", err)
		os.Exit(1)
	}
	if tokenAuth == nil {
		slog.Info("admin endpoints disabled, ADMIN_TOKEN_HASH not set")
	}

	handler := api.NewHandler(api.HandlerConfig{
		Tajweed:       tajweedService,
		Prayer:        prayer.NewClient(aladhan, contentCache),
		Quran:         quran.NewClient(alquran, contentCache),
		Analyses:      analyses,
		Queue:         jobs,
		RateLimiter:   limiter,
		TajweedRPM:    cfg.TajweedRateLimitRPM,
		Admin:         tokenAuth.Require(api.NewAdminHandler(pool, breakers)),
		Pool:          pool,
		Breakers:      breakers,
		Checkers:      checkers,
		HealthTimeout: 2 * time.Second,
		Version:       cfg.Version,
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		worker.New(jobs, analyses, tajweedService, notifier, cfg.AnalysisWorkers).Run(workerCtx)
	}()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	stopWorkers()
	workers.Wait()

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
	if redisClient != nil {
		redisClient.Close()
	}

	slog.Info("server stopped")
}

// buildPool loads keys from the environment and, when configured, from
// Secrets Manager, then picks a shared or local rotation cursor.
func buildPool(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*gemini.Pool, error) {
	src := secrets.KeySource{EnvKeys: cfg.GeminiKeys}

	if cfg.EncryptionKey != "" {
		enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("create encryptor: %w", err)
		}
		src.Encryptor = enc
	}

	if cfg.GeminiKeysSecret != "" {
		store, err := secrets.NewAWSStore(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("create secrets store: %w", err)
		}
		src.Store = store
		src.SecretName = cfg.GeminiKeysSecret
	}

	keys, err := secrets.LoadGeminiKeys(ctx, src)
	if err != nil {
		return nil, err
	}

	var cursor gemini.Cursor = gemini.NewInMemoryCursor()
	if redisClient != nil {
		cursor = gemini.NewRedisCursor(redisClient, "ramadan:gemini:cursor")
	}

	return gemini.NewPool(keys, cursor), nil
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
