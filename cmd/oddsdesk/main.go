package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/config"
	"github.com/oddsdesk/oddsdesk/internal/detector"
	"github.com/oddsdesk/oddsdesk/internal/handlers"
	"github.com/oddsdesk/oddsdesk/internal/hub"
	"github.com/oddsdesk/oddsdesk/internal/ledger"
	"github.com/oddsdesk/oddsdesk/internal/metrics"
	"github.com/oddsdesk/oddsdesk/internal/providers/theodds"
	"github.com/oddsdesk/oddsdesk/internal/retry"
)

func main() {
	fmt.Println("=== OddsDesk v0 ===")

	// Load .env if present (no-op in production)
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger store: Postgres when configured, in-memory otherwise
	var ledgerStore ledger.Store
	if cfg.PostgresDSN != "" {
		pg, err := ledger.NewPostgres(cfg.PostgresDSN, cfg.StartBankroll)
		if err != nil {
			fmt.Printf("❌ Failed to connect to Postgres: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			fmt.Printf("❌ Failed to ensure schema: %v\n", err)
			os.Exit(1)
		}
		ledgerStore = pg
		fmt.Println("✓ Connected to Postgres")
	} else {
		ledgerStore = ledger.NewMemory(cfg.StartBankroll)
		fmt.Println("⚠️  No POSTGRES_DSN set, using in-memory ledger store")
	}

	// Cache store: Redis when configured, in-memory otherwise
	var cacheStore cache.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Printf("❌ Failed to parse Redis URL: %v\n", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			fmt.Printf("❌ Failed to connect to Redis: %v\n", err)
			os.Exit(1)
		}
		cacheStore = cache.NewRedisStore(redisClient)
		fmt.Println("✓ Connected to Redis")
	} else {
		cacheStore = cache.NewMemoryStore()
		fmt.Println("⚠️  No REDIS_URL set, using in-memory cache store")
	}

	// Core wiring
	provider := theodds.New(cfg.Provider)
	retryPolicy := retry.NewPolicy(cfg.Provider.RetryAttempts, cfg.Provider.RetryInitialDelay)
	orchestrator := cache.NewOrchestrator(cacheStore, provider, cfg.Freshness, cfg.RefreshTimeout, retryPolicy)
	det := detector.New(orchestrator, cfg.Detector)
	settler := ledger.NewSettler(ledgerStore)

	signalHub := hub.New()
	go signalHub.Run(ctx)

	handler := handlers.New(orchestrator, det, settler, signalHub)

	// Router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/ws/signals", handler.ServeSignals)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Get("/data/{domain}", handler.GetData)
		r.Get("/discrepancies", handler.GetDiscrepancies)
		r.Get("/signals", handler.GetSharpSignals)

		r.Post("/bets", handler.CreateBet)
		r.Get("/bets", handler.GetBets)
		r.Get("/bets/summary", handler.GetBetSummary)
		r.Post("/bets/settle", handler.SettleBet)

		r.Get("/bankroll", handler.GetBankroll)
		r.Post("/bankroll/adjustments", handler.CreateAdjustment)
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("✓ Listening on %s\n", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Server error: %v\n", err)
			stop()
		}
	}()

	<-ctx.Done()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("❌ Shutdown error: %v\n", err)
	}

	fmt.Println("✓ Shutdown complete")
}
