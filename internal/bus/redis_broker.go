package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/retry"
)

// RedisBroker — реализация Broker поверх Redis Pub/Sub.
// Локальная доставка остается за внутрипроцессной шиной: брокер публикует
// в канал Redis, а слушатель канала вбрасывает сообщения обратно в Bus.
//
// Подключается лениво при первой публикации; при каждом (пере)подключении
// заново подписывает все ранее зарегистрированные топики. Connect и publish
// обернуты retry.Executor для временных сбоев транспорта.
type RedisBroker struct {
	rdb     *redis.Client
	local   *Bus
	retrier *retry.Executor
	logger  *zap.Logger
	prefix  string // префикс каналов, изолирует проект в общем Redis

	mu        sync.Mutex
	connected bool
	topics    map[string]struct{} // топики, для которых уже крутится слушатель

	runCtx context.Context
	stop   context.CancelFunc
}

func NewRedisBroker(rdb *redis.Client, local *Bus, retrier *retry.Executor, prefix string, logger *zap.Logger) *RedisBroker {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBroker{
		rdb:     rdb,
		local:   local,
		retrier: retrier,
		logger:  logger.Named("redis-broker"),
		prefix:  prefix,
		topics:  make(map[string]struct{}),
		runCtx:  ctx,
		stop:    cancel,
	}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + topic
}

// Subscribe регистрирует обработчик в локальной шине. Слушатель канала
// Redis поднимется при подключении (лениво, на первой публикации).
func (b *RedisBroker) Subscribe(topic string, h Handler) {
	b.local.Subscribe(topic, h)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; ok {
		return
	}
	b.topics[topic] = struct{}{}
	if b.connected {
		go b.listen(b.runCtx, topic)
	}
}

// Unsubscribe снимает локальную регистрацию. Слушатель канала остается:
// пустой топик в локальной шине — легальный no-op при доставке.
func (b *RedisBroker) Unsubscribe(topic string, h Handler) {
	b.local.Unsubscribe(topic, h)
}

// Publish сериализует payload (JSON, времена в ISO-8601 UTC) и отправляет
// его в канал Redis. Доставка локальным подписчикам произойдет через
// слушателя канала — так все потребители видят одинаковый проводной формат.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload any) error {
	if err := b.ensureConnected(ctx); err != nil {
		return err
	}

	data, err := Encode(payload)
	if err != nil {
		return fmt.Errorf("broker: encode payload for %s: %w", topic, err)
	}

	return b.retrier.Do(ctx, func() error {
		return b.rdb.Publish(ctx, b.channel(topic), data).Err()
	})
}

// Close останавливает слушателей. Повторный Close безопасен.
func (b *RedisBroker) Close() {
	b.stop()
}

// ensureConnected лениво устанавливает соединение и поднимает слушателей
// для всех топиков, зарегистрированных до подключения.
func (b *RedisBroker) ensureConnected(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return nil
	}

	if err := b.retrier.Do(ctx, func() error {
		return b.rdb.Ping(ctx).Err()
	}); err != nil {
		return fmt.Errorf("broker: connect: %w", err)
	}

	b.connected = true
	for topic := range b.topics {
		go b.listen(b.runCtx, topic)
	}
	b.logger.Info("connected", zap.Int("topics", len(b.topics)))
	return nil
}

// listen — живучий цикл подписки на канал топика.
// Обрабатывает переподключения: каждая итерация внешнего цикла — это
// свежая подписка, чем и достигается re-subscribe после обрыва.
func (b *RedisBroker) listen(ctx context.Context, topic string) {
	for {
		pubsub := b.rdb.Subscribe(ctx, b.channel(topic))

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			b.logger.Error("failed to subscribe", zap.String("topic", topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
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

				var payload map[string]any
				if err := Decode([]byte(msg.Payload), &payload); err != nil {
					b.logger.Error("invalid wire payload",
						zap.String("topic", topic), zap.Error(err))
					continue
				}

				_ = b.local.Publish(ctx, topic, payload)
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
