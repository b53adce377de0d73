package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // IANA зоны для дашборда в distroless-образе

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/dlp-guard/internal/console/handler"
	"github.com/xela07ax/dlp-guard/internal/console/server"
	"github.com/xela07ax/dlp-guard/internal/console/service"
	"github.com/xela07ax/dlp-guard/internal/dashboard"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"github.com/xela07ax/dlp-guard/internal/logstore"
	"github.com/xela07ax/dlp-guard/internal/repository/postgres"
	"github.com/xela07ax/dlp-guard/internal/retention"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Ключи подписи токенов консоли
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to load private key", zap.Error(err))
	}
	publicKey := &privateKey.PublicKey
	if len(cfg.Auth.PublicKey) > 0 {
		if publicKey, err = auth.ParseRSAPublicKey(cfg.Auth.PublicKey); err != nil {
			logger.Fatal("failed to load public key", zap.Error(err))
		}
	}

	// 3. Postgres: миграции и пул
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}
	startCtx, cancel := context.WithTimeout(appCtx, 10*time.Second)
	pool, err := postgres.NewPool(startCtx, cfg.Database)
	cancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer pool.Close()
	repo := postgres.NewRepo(pool)

	// 4. Redis: сигналы шлюзам и блокировка очистки
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(appCtx).Err(); err != nil {
		// Консоль работает и без Redis, шлюзы подтянут изменения при переподключении
		logger.Warn("redis unreachable, policy signals will be lost", zap.Error(err))
	}

	// 5. Журнал детекций
	store, err := logstore.New(logstore.Options{
		URL:        cfg.Elastic.URL,
		Username:   cfg.Elastic.Username,
		Password:   cfg.Elastic.Password,
		Index:      cfg.Elastic.IndexName(),
		Timeout:    cfg.Elastic.QueryTimeout,
		MaxRetries: cfg.Elastic.MaxRetries,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create log store", zap.Error(err))
	}
	defer store.Close()

	startCtx, cancel = context.WithTimeout(appCtx, 10*time.Second)
	err = store.Init(startCtx)
	cancel()
	if err != nil {
		logger.Fatal("log store unreachable", zap.Error(err))
	}

	// 6. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 7. Сервисы (Dependency Injection)
	validator := auth.NewBaseValidator(publicKey, cfg.Auth.Issuer)
	authSvc := service.NewAuthService(repo, validator, privateKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL, logger)

	dashMetrics := dashboard.NewMetrics(reg)
	dashSvc := dashboard.NewService(
		dashboard.NewAggregator(store, cfg.Dashboard.FacetTimeout, cfg.Dashboard.Concurrency, dashMetrics, logger),
		dashboard.NewRecentFetcher(store, cfg.Dashboard.FacetTimeout, dashMetrics, logger),
		dashMetrics,
		logger,
	)
	settingsSvc := service.NewSettingsService(repo, infra.NewRedisNotifier(rdb), logger)

	srv := server.NewConsoleServer(logger, authSvc, reg, server.Handlers{
		Auth:      handler.NewAuthHandler(authSvc, logger),
		Dashboard: handler.NewDashboardHandler(dashSvc, logger),
		Logs:      handler.NewLogHandler(service.NewLogService(store, logger), logger),
		Projects:  handler.NewProjectHandler(service.NewProjectService(repo, logger), logger),
		Rules:     handler.NewRuleHandler(service.NewRuleService(repo), logger),
		Settings:  handler.NewSettingsHandler(settingsSvc, logger),
	})

	// 8. Фоновая очистка журнала
	if cfg.Retention.Enabled {
		cleaner := retention.NewCleaner(repo, store, retention.NewRedisLocker(rdb), cfg.Retention.Interval, logger)
		go cleaner.Start(appCtx)
	}

	// 9. HTTP сервер
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("console API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-appCtx.Done()
	logger.Info("console API stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
