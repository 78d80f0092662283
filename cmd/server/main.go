package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HanTheDev/oncoassist/internal/admin"
	"github.com/HanTheDev/oncoassist/internal/auth"
	"github.com/HanTheDev/oncoassist/internal/cache"
	"github.com/HanTheDev/oncoassist/internal/config"
	"github.com/HanTheDev/oncoassist/internal/db"
	"github.com/HanTheDev/oncoassist/internal/handlers"
	"github.com/HanTheDev/oncoassist/internal/inference"
	"github.com/HanTheDev/oncoassist/internal/llm"
	"github.com/HanTheDev/oncoassist/internal/logging"
	"github.com/HanTheDev/oncoassist/internal/metrics"
	"github.com/HanTheDev/oncoassist/internal/quota"
)

func main() {
	bootstrap, _ := zap.NewProduction()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.AnonStore == config.StoreRedis || cfg.PredictionCacheTTL > 0 {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	// Anonymous counters live in the caller's cookie unless Redis is configured.
	anonymous := quota.CookieStores(cfg.CookieSecure)
	var sessions admin.SessionResetter
	if cfg.AnonStore == config.StoreRedis {
		redisStore := quota.NewRedisStoreFromClient(redisClient)
		anonymous = quota.SharedStore(redisStore)
		sessions = redisStore
	}

	var classifier handlers.Classifier = inference.NewClient(cfg.InferenceURL, cfg.InferenceTimeout)
	if cfg.PredictionCacheTTL > 0 {
		classifier = cache.NewPredictionCache(classifier, redisClient, cfg.PredictionCacheTTL, logger.Named("cache"))
	}

	policy := quota.NewPolicy(map[quota.Operation]int64{
		quota.OpChat:          int64(cfg.ChatAnonLimit),
		quota.OpImageAnalysis: int64(cfg.AnalyzeAnonLimit),
	})
	gate := quota.NewGate(policy, quota.NewUserStore(database), anonymous, logger.Named("quota"))

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret, cfg.CookieSecure, logger.Named("auth"))

	chat := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, logger.Named("llm"))

	handler := handlers.NewHandler(handlers.Options{
		Gate:           gate,
		Store:          database,
		Chat:           chat,
		Classifier:     classifier,
		Auth:           authMiddleware,
		JWTSecret:      cfg.JWTSecret,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger.Named("handlers"),
	})

	router := mux.NewRouter()
	router.Use(authMiddleware.Resolve)
	router.Use(logging.Middleware(logger.Named("http"), identityFields))

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	handler.RegisterRoutes(router)
	if cfg.AdminToken != "" {
		admin.NewAdminHandler(database, sessions, cfg.AdminToken, logger.Named("admin")).RegisterRoutes(router)
	} else {
		logger.Warn("ADMIN_TOKEN not set, admin API disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("anon_counter_store", cfg.AnonStore),
			zap.Duration("prediction_cache_ttl", cfg.PredictionCacheTTL),
			zap.Int("chat_anon_limit", cfg.ChatAnonLimit),
			zap.Int("analyze_anon_limit", cfg.AnalyzeAnonLimit),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func identityFields(r *http.Request) []zap.Field {
	return []zap.Field{zap.String("identity", auth.IdentityFromContext(r.Context()).Kind())}
}
