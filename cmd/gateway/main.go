package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xela07ax/dlp-guard/internal/audit"
	"github.com/xela07ax/dlp-guard/internal/detector"
	"github.com/xela07ax/dlp-guard/internal/engine"
	"github.com/xela07ax/dlp-guard/internal/events"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"github.com/xela07ax/dlp-guard/internal/logstore"
	"github.com/xela07ax/dlp-guard/internal/policy"
	"github.com/xela07ax/dlp-guard/internal/repository/postgres"
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

	// Контекст жизненного цикла фоновых горутин: SIGTERM остановит слушателей
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Control Plane: политики меток и переключатели из Postgres
	startCtx, cancel := context.WithTimeout(appCtx, 10*time.Second)
	pool, err := postgres.NewPool(startCtx, cfg.Database)
	cancel()
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer pool.Close()

	pdp := policy.NewMemoEnforcer(postgres.NewRepo(pool), logger)
	if err := pdp.Refresh(appCtx); err != nil {
		logger.Fatal("failed to load detection policies", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	go policy.Listen(appCtx, rdb, logger, infra.RedisChanPolicyUpdate, pdp.Refresh)

	// 3. Execution Layer: модель + кэш + надёжность
	var base detector.Detector = detector.Stub{}
	if cfg.Detector.Addr != "" {
		conn, err := grpc.NewClient(cfg.Detector.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Fatal("failed to connect to detector", zap.Error(err))
		}
		defer conn.Close()
		base = detector.NewGRPCDetector(conn, cfg.Detector.ModelName, cfg.Detector.Timeout)
	} else {
		logger.Warn("detector.addr is empty, using stub detector")
	}

	cached, err := detector.NewCachingDetector(base, cfg.Detector.CacheSize)
	if err != nil {
		logger.Fatal("failed to create detector cache", zap.Error(err))
	}
	safeDetector := engine.NewReliabilityWrapper(cached, engine.ReliabilityOptions{
		RateLimit:   cfg.Detector.RateLimit,
		RateBurst:   cfg.Detector.RateBurst,
		MaxRequests: cfg.Engine.CBMaxRequests,
		Interval:    cfg.Engine.CBInterval,
		OpenTimeout: cfg.Engine.CBTimeout,
		Failures:    cfg.Engine.CBFailures,
		Attempts:    cfg.Engine.RetryAttempts,
		CallTimeout: cfg.Detector.Timeout,
	}, metrics)

	// 4. Журнал: асинхронная запись пачками в Elasticsearch
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

	recorder := audit.NewRecorder(store, audit.Options{
		BufferSize:    cfg.Engine.RecorderBufferSize,
		BatchSize:     cfg.Engine.RecorderBatchSize,
		FlushInterval: cfg.Engine.RecorderFlushInterval,
	}, audit.NewMetrics(reg), logger)
	recorder.Start()

	// 5. События детекций (опционально)
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.Timeout, logger)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer nc.Close()
		publisher = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, logger)
	}

	// 6. Core
	core := engine.NewDetectionCore(safeDetector, pdp, recorder, publisher, metrics, cfg.Detector.Threshold, logger)

	// Токены консоли проверяются, только если задан публичный ключ
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("failed to load public key", zap.Error(err))
		}
		validator = auth.NewBaseValidator(pub, cfg.Auth.Issuer)
	}

	// 7. HTTP
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Gateway.HTTPPort),
		Handler: engine.NewHTTPHandler(engine.RouterDeps{
			Core:      core,
			Policies:  pdp,
			Validator: validator,
			Breaker:   safeDetector,
			ModelName: cfg.Detector.ModelName,
			Logger:    logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. gRPC
	var opts []grpc.ServerOption
	if validator != nil {
		opts = append(opts, grpc.UnaryInterceptor(engine.UnaryAuthInterceptor(validator, logger)))
	}
	grpcSrv := grpc.NewServer(opts...)
	grpcSrv.RegisterService(&engine.GatewayServiceDesc, engine.NewGRPCGatewayServer(core, logger))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Gateway.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.Error(err))
		}
		logger.Info("gateway gRPC server started", zap.String("addr", addr))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// 9. Метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gateway.MetricsPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 10. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("gateway stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	_ = metricsSrv.Shutdown(shutdownCtx)

	// Дописываем буфер журнала после остановки приёма запросов
	recorder.Stop()
	logger.Info("gateway exited properly")
}

