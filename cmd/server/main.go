package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/freeeve/battleodds/internal/auth"
	"github.com/freeeve/battleodds/internal/config"
	"github.com/freeeve/battleodds/internal/dispatch"
	"github.com/freeeve/battleodds/internal/handler"
	"github.com/freeeve/battleodds/internal/logger"
	"github.com/freeeve/battleodds/internal/middleware"
	"github.com/freeeve/battleodds/internal/repository"
	"github.com/freeeve/battleodds/internal/repository/postgres"
	redisrepo "github.com/freeeve/battleodds/internal/repository/redis"
	"github.com/freeeve/battleodds/internal/simulate"
	"github.com/freeeve/battleodds/internal/telemetry"
	"github.com/freeeve/battleodds/pkg/odds"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a service token for this client and exit")
	admin := flag.Bool("admin", false, "grant the admin scope to the issued token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	if *issueToken != "" {
		scopes := []string{auth.ScopeOdds}
		if *admin {
			scopes = append(scopes, auth.ScopeAdmin)
		}
		token, err := jwtMgr.GenerateToken(*issueToken, scopes...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logFile := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.Dev})
	defer logFile.Close()
	log.Info().
		Str("policy", cfg.Policy).
		Int("diceSides", cfg.DiceSides).
		Int("poolSize", cfg.PoolSize).
		Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	shutdownTracing, err := telemetry.Setup(ctx, "battleodds", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Telemetry setup failed")
	}

	// Result cache
	var resultCache repository.ResultCache
	var redisClient *redisrepo.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisrepo.NewClient(ctx, cfg.RedisURL, cfg.ResultCacheTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		resultCache = redisClient
	}

	// Evaluation log
	var evaluations repository.EvaluationRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		evaluations = postgres.NewEvaluationRepo(db)
	}

	policy, err := dispatch.ParsePolicy(cfg.Policy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid odds policy")
	}

	// Distributions are shared by every engine in the pool.
	cache, err := odds.NewCache(cfg.DiceSides)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dice configuration")
	}
	monitor := telemetry.Monitors{
		telemetry.NewTraceMonitor(otel.Tracer("github.com/freeeve/battleodds/pkg/odds")),
		telemetry.NewLogMonitor(log.Logger),
	}
	engineCfg := odds.Config{
		SignificanceThreshold: cfg.Significance,
		PruneThreshold:        cfg.Prune,
		Monitor:               monitor,
	}
	seed := time.Now().UnixNano()
	pool := dispatch.NewPool(cfg.PoolSize, func(counters *dispatch.Counters) *dispatch.Dispatcher {
		seed++
		return dispatch.New(
			odds.NewEngine(cache, engineCfg),
			simulate.New(cache, cfg.RunCount, seed),
			dispatch.Options{
				Policy:      policy,
				SampleEvery: cfg.SampleEvery,
				Dice:        cache,
				Cache:       resultCache,
				Evaluations: evaluations,
				Monitor:     monitor,
				Counters:    counters,
			},
		)
	})

	// Handlers
	hub := handler.NewHub()
	oddsHandler := handler.NewOddsHandler(pool, cache, evaluations)
	liveHandler := handler.NewLiveHandler(hub, pool, jwtMgr)

	// Router
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"redis unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	api := http.NewServeMux()
	api.HandleFunc("POST /odds", oddsHandler.Compute)
	api.HandleFunc("GET /stats", oddsHandler.Stats)
	api.HandleFunc("GET /evaluations", oddsHandler.ListEvaluations)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr, auth.ScopeOdds)(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", liveHandler.ServeWS)

	root := middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	hub.CancelAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Tracer shutdown error")
	}
	stats := pool.Stats()
	log.Info().
		Int64("total", stats.Total).
		Int64("handled", stats.Handled).
		Int64("fallbacks", stats.Fallbacks).
		Msg("Server stopped")
}
