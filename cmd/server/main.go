package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/featureflags"
	"github.com/aryan0dhankhar/insightdash/internal/handler"
	"github.com/aryan0dhankhar/insightdash/internal/infrastructure/assistant"
	"github.com/aryan0dhankhar/insightdash/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/insightdash/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/observability/tracing"
	"github.com/aryan0dhankhar/insightdash/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/insightdash/internal/reliability/retry"
	"github.com/aryan0dhankhar/insightdash/internal/repository"
	"github.com/aryan0dhankhar/insightdash/internal/security"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
	"github.com/aryan0dhankhar/insightdash/internal/security/auth"
	"github.com/aryan0dhankhar/insightdash/internal/security/middleware"
	"github.com/aryan0dhankhar/insightdash/internal/security/ratelimit"
	"github.com/aryan0dhankhar/insightdash/internal/service"
	"github.com/aryan0dhankhar/insightdash/internal/worker"
	"github.com/aryan0dhankhar/insightdash/pkg/cache"
	"github.com/aryan0dhankhar/insightdash/pkg/config"
	"github.com/aryan0dhankhar/insightdash/pkg/database"
)

func main() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: %s\n\nThe server is configured through the environment (or CONFIG_FILE).\n\n", os.Args[0])
		desc, err := config.Usage()
		if err != nil {
			fmt.Fprintf(out, "failed to describe configuration: %v\n", err)
			return
		}
		fmt.Fprintln(out, desc)
	}
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting InsightDash server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "insightdash", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Connect to PostgreSQL and migrate
	if cfg.Database.AutoMigrate {
		_, err := retry.Do(ctx, retry.StartupConfig(), log, "run migrations", func(context.Context) (struct{}, error) {
			return struct{}{}, database.RunMigrations(cfg.Database.DSN(), log)
		})
		if err != nil {
			log.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	pool, err := retry.Do(ctx, retry.StartupConfig(), log, "connect database", func(ctx context.Context) (*database.ConnectionPool, error) {
		return database.NewConnectionPool(ctx, &cfg.Database, log)
	})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 4. Dashboard cache: Redis when configured, in-process otherwise
	var (
		store     cache.Store
		sweeper   worker.Sweeper
		redisPing handler.Check
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		store, redisPing = redisClient, redisClient.Ping
	} else {
		local := cache.New()
		store, sweeper = local, local
	}

	// 5. Initialize repositories
	users := repository.NewPostgresUserRepository(db, log)
	sessions := repository.NewPostgresSessionRepository(db, log)
	warehouses := repository.NewPostgresWarehouseRepository(db, log)
	dataSources := repository.NewPostgresDataSourceRepository(db, log)
	queryHistory := repository.NewPostgresQueryHistoryRepository(db, log)
	charts := repository.NewPostgresChartRepository(db, log)
	dashboards := repository.NewPostgresDashboardRepository(db, log)
	conversations := repository.NewPostgresConversationRepository(db, log)
	companies := repository.NewPostgresCompanyRepository(db, log)

	// 6. Initialize services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, "insightdash")
	cookies := auth.NewCookieStore(cfg.Auth.SessionSecret, cfg.Auth.CookieName, cfg.Auth.CookieSecure, cfg.Auth.SessionTTL)
	authService := service.NewAuthService(users, sessions, tokenManager, cfg.Auth.SessionTTL, log)
	dashboardService := service.NewDashboardService(companies, store, cfg.Dashboard.CacheTTL, log)

	ingestService := service.NewIngestService(dataSources, cfg.Upload.Dir, cfg.Upload.Workers, log)
	if err := ingestService.Start(ctx); err != nil {
		log.Error("failed to start ingestion", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var replier service.Assistant
	if cfg.Assistant.IsAvailable() {
		client, err := assistant.NewClient(assistant.Config{
			APIKey:  cfg.Assistant.APIKey,
			BaseURL: cfg.Assistant.BaseURL,
			Model:   cfg.Assistant.Model,
			Timeout: cfg.Assistant.Timeout,
		}, log)
		if err != nil {
			log.Error("failed to configure assistant", slog.String("error", err.Error()))
			os.Exit(1)
		}
		replier = client
	} else {
		log.Warn("assistant disabled: ASSISTANT_API_KEY not set")
	}
	breaker := circuitbreaker.NewCircuitBreaker(int32(cfg.Assistant.BreakerThreshold), 1, cfg.Assistant.BreakerCooldown)
	assistantService := service.NewAssistantService(conversations, replier, breaker, log)

	// 7. Initialize security components
	authz := security.NewAuthorizationService(log)
	auditLogger := audit.NewLogger(log)
	loginLimiter := ratelimit.NewLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)
	requireSession := middleware.RequireSession(authService, tokenManager, cookies, log)
	gate := func(perm security.Permission, h http.Handler) http.Handler {
		return requireSession(middleware.RequirePermission(authz, perm, auditLogger)(h))
	}

	// 8. Setup HTTP routes
	router := &handler.Router{
		Session:       requireSession,
		Gate:          gate,
		LoginLimit:    middleware.LoginRateLimit(loginLimiter, log),
		RegisterLimit: middleware.RegisterRateLimit(loginLimiter, log),
		Auth:          handler.NewAuthHandler(authService, cookies, log),
		Admin:         handler.NewAdminHandler(authService, log),
		Dashboard:     handler.NewDashboardHandler(dashboardService, log),
		Upload:        handler.NewUploadHandler(ingestService, log),
		Messages:      handler.NewMessagesHandler(assistantService, log),
		Schema:        handler.NewSchemaHandler(),
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"database": pool.Health,
			"redis":    redisPing,
		}, log),
		Resources: map[string]handler.Mountable{
			"/api/warehouses": handler.NewResourceHandler(
				service.NewResourceService[domain.Warehouse, *domain.Warehouse](domain.WarehouseEntity, warehouses,
					service.ResourceOptions[domain.Warehouse]{}, log), log),
			"/api/data-sources": handler.NewResourceHandler(
				service.NewResourceService[domain.DataSource, *domain.DataSource](domain.DataSourceEntity, dataSources,
					service.ResourceOptions[domain.DataSource]{Guard: service.DataSourceGuard}, log), log),
			"/api/query-history": handler.NewResourceHandler(
				service.NewResourceService[domain.QueryHistory, *domain.QueryHistory](domain.QueryHistoryEntity, queryHistory,
					service.ResourceOptions[domain.QueryHistory]{Guard: service.QueryHistoryGuard(warehouses)}, log), log),
			"/api/charts": handler.NewResourceHandler(
				service.NewResourceService[domain.Chart, *domain.Chart](domain.ChartEntity, charts,
					service.ResourceOptions[domain.Chart]{Guard: service.ChartGuard(dataSources)}, log), log),
			"/api/dashboards": handler.NewResourceHandler(
				service.NewResourceService[domain.Dashboard, *domain.Dashboard](domain.DashboardEntity, dashboards,
					service.ResourceOptions[domain.Dashboard]{}, log), log),
			"/api/ai/conversations": handler.NewResourceHandler(
				service.NewResourceService[domain.AIConversation, *domain.AIConversation](domain.AIConversationEntity, conversations,
					service.ResourceOptions[domain.AIConversation]{Guard: service.ConversationGuard}, log), log),
			"/api/companies": handler.NewResourceHandler(
				service.NewResourceService[domain.Company, *domain.Company](domain.CompanyEntity, companies,
					service.ResourceOptions[domain.Company]{OnChange: dashboardService.Invalidate}, log), log),
		},
	}
	if featureflags.Enabled(featureflags.LiveMetrics) {
		router.Live = handler.NewLiveHandler(dashboardService, authService, cfg.Dashboard.LiveInterval, cfg.CORSAllowedOrigins, log)
	}

	mux := http.NewServeMux()
	router.Mount(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain middleware: request ID -> CORS -> tracing -> body checks -> metrics -> routes
	rootHandler := middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
		middleware.RequestID(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		func(h http.Handler) http.Handler { return tracing.Middleware(h, "insightdash") },
		middleware.LimitBody(cfg.Upload.MaxBytes),
		middleware.ValidateJSONContentType(log, handler.UploadPath),
	)

	// 9. Start session sweeper in background
	cleanupWorker := worker.NewCleanupWorker(sessions, sweeper, log, cfg.Auth.SessionSweepInterval)
	go cleanupWorker.Start(ctx)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("assistant", replier != nil),
		slog.Bool("live_metrics", router.Live != nil),
		slog.Int("login_rate_limit", cfg.Auth.LoginRateLimit),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop sweeper and ingestion workers
	ingestService.Wait()
	loginLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
