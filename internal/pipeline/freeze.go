package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/infra"
)

// FreezeManager — оперативный стоп-кран автоцен по SKU.
// L1 (RAM) кэш греется из Redis Set при старте и обновляется сигналами
// Pub/Sub; конвейер в Hot Path смотрит только в память.
type FreezeManager struct {
	mu     sync.RWMutex
	frozen map[string]struct{}
	rdb    *redis.Client
	logger *zap.Logger
}

func NewFreezeManager(rdb *redis.Client, logger *zap.Logger) *FreezeManager {
	return &FreezeManager{
		frozen: make(map[string]struct{}),
		rdb:    rdb,
		logger: logger.Named("freeze"),
	}
}

// Init загружает текущее множество замороженных SKU при старте сервиса
func (m *FreezeManager) Init(ctx context.Context) error {
	skus, err := m.rdb.SMembers(ctx, infra.RedisKeyFrozenSKUs).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.frozen = make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		m.frozen[sku] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

func (m *FreezeManager) IsFrozen(sku string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, frozen := m.frozen[sku]
	return frozen
}

func (m *FreezeManager) mark(sku string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.frozen[sku] = struct{}{}
	} else {
		delete(m.frozen, sku)
	}
}

// StartListener — живучая подписка на сигналы заморозки.
// Каждая итерация внешнего цикла — свежая подписка; при (пере)подключении
// кэш синхронизируется через Init.
func (m *FreezeManager) StartListener(ctx context.Context) {
	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanFreezeSignal)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			m.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanFreezeSignal), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		// Синхронизация при каждом успешном коннекте
		if err := m.Init(ctx); err != nil {
			m.logger.Error("freeze sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				// Разбор формата "sku:on|off"
				parts := strings.Split(msg.Payload, ":")
				if len(parts) != 2 {
					m.logger.Error("invalid freeze signal format", zap.String("payload", msg.Payload))
					continue
				}

				sku := parts[0]
				on := parts[1] == "true" || parts[1] == "on"
				m.mark(sku, on)

				m.logger.Info("freeze signal applied",
					zap.String("sku", sku), zap.Bool("frozen", on))
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
