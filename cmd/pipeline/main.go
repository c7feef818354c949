package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/audit"
	"github.com/xela07ax/pricegate/internal/bus"
	"github.com/xela07ax/pricegate/internal/connectors"
	"github.com/xela07ax/pricegate/internal/infra"
	"github.com/xela07ax/pricegate/internal/ledger"
	"github.com/xela07ax/pricegate/internal/ops"
	"github.com/xela07ax/pricegate/internal/pipeline"
	"github.com/xela07ax/pricegate/internal/policy"
	"github.com/xela07ax/pricegate/internal/repository/postgres"
	"github.com/xela07ax/pricegate/internal/retry"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин: SIGTERM останавливает слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Хранилище леджера: Postgres либо внутрипамятный (dev-режим)
	var store ledger.Ledger
	var trailStorage audit.StorageInterface
	if cfg.Database.URL != "" {
		repo, err := postgres.NewDecisionRepo(appCtx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			logger.Fatal("failed to init decision repo", zap.Error(err))
		}
		defer repo.Close()
		if err := repo.Ping(appCtx); err != nil {
			logger.Fatal("postgres unreachable", zap.Error(err))
		}
		store = repo
		trailStorage = postgres.NewTrailRepo(repo)
	} else {
		logger.Warn("no database url configured, using in-memory ledger")
		store = ledger.NewMemory()
		trailStorage = discardTrail{}
	}

	// 3. RetryExecutor для временных сбоев транспорта и apply-операции
	retrier := retry.New(retry.Policy{
		Attempts:  cfg.Pipeline.RetryAttempts,
		Base:      cfg.Pipeline.RetryBase,
		Cap:       cfg.Pipeline.RetryCap,
		Retryable: connectors.IsTransient,
	})

	// 4. Шина: локальная всегда; при наличии Redis поверх нее — брокер
	localBus := bus.New(logger)
	var broker bus.Broker = localBus

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisBroker := bus.NewRedisBroker(rdb, localBus, retrier, infra.BrokerChannelPrefix, logger)
		defer redisBroker.Close()
		broker = redisBroker
	}

	// 5. Метрики
	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)

	// 6. Стоп-кран автоцен (требует Redis)
	var freeze *pipeline.FreezeManager
	if cfg.Pipeline.FreezeEnabled && rdb != nil {
		freeze = pipeline.NewFreezeManager(rdb, logger)
		if err := freeze.Init(appCtx); err != nil {
			logger.Fatal("failed to init freeze manager", zap.Error(err))
		}
		go freeze.StartListener(appCtx)
	}

	// 7. Аудит-трейл: решения и тики с шины уходят в базу пачками
	trail := audit.NewTrail(trailStorage,
		cfg.Pipeline.TrailBufferSize,
		cfg.Pipeline.TrailBatchSize,
		cfg.Pipeline.TrailFlushInterval,
		logger,
	)
	trail.Start()
	broker.Subscribe(infra.TopicDecisionRecorded, trail.BusHandler())
	broker.Subscribe(infra.TopicMarketTick, trail.BusHandler())

	// 8. Конвейер решений: guardrails + леджер + надежный применитель
	applier := pipeline.NewReliable(&connectors.MockApplier{}, retrier, metrics)
	pipe := pipeline.New(
		broker,
		store,
		cfg.Guardrails,
		policy.NewestWins{},
		applier,
		metrics,
		logger,
		pipeline.Options{AutoApply: cfg.Pipeline.AutoApply, Freeze: freeze},
	)
	pipe.Register()

	// 9. Стенды внешних коллабораторов: коннектор рынка и оптимизатор.
	// В проде их заменяют реальные продьюсеры, публикующие в те же топики.
	market := connectors.NewMockMarket(2 * time.Second)
	optimizer := &connectors.MockOptimizer{Actor: "mock-optimizer"}
	go func() {
		for tick := range market.Stream(appCtx) {
			if err := broker.Publish(appCtx, infra.TopicMarketTick, tick); err != nil {
				logger.Error("failed to publish tick", zap.Error(err))
			}
			if prop := optimizer.React(tick); prop != nil {
				if err := broker.Publish(appCtx, infra.TopicProposalReceived, *prop); err != nil {
					logger.Error("failed to publish proposal", zap.Error(err))
				}
			}
		}
	}()

	// 10. Ops HTTP Server (health, metrics, выборки леджера)
	opsServer := ops.NewServer(store, reg, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      opsServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("pricegate pipeline started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 11. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop // Ждем сигнал

	logger.Info("pricegate pipeline stopping...")
	cancel() // Останавливаем продьюсеров и слушателей

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Финальный flush аудит-трейла — потерь при перезагрузке быть не должно
	trail.Stop()
	logger.Info("pricegate pipeline exited properly")
}

// discardTrail — заглушка хранилища трейла для запуска без базы.
type discardTrail struct{}

func (discardTrail) WriteBatch(ctx context.Context, events []audit.TrailEvent) error {
	return nil
}
