package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus — внутрипроцессный publish/subscribe диспетчер.
// Publish раскидывает payload по всем обработчикам топика конкурентно и
// возвращается только когда каждый из них завершился (успехом или ошибкой) —
// это барьер синхронизации, а не fire-and-forget.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]Handler
	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]Handler),
		logger: logger.Named("bus"),
	}
}

// Subscribe регистрирует обработчик топика. Повторная регистрация той же
// идентичности — no-op: на один Publish обработчик будет вызван один раз.
func (b *Bus) Subscribe(topic string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.subs[topic] {
		if existing == h {
			return
		}
	}
	b.subs[topic] = append(b.subs[topic], h)
}

// Unsubscribe снимает регистрацию, если она есть. Отсутствующая — не ошибка.
func (b *Bus) Unsubscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subs[topic]
	for i, existing := range handlers {
		if existing == h {
			b.subs[topic] = append(handlers[:i:i], handlers[i+1:]...)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			return
		}
	}
}

// Publish вызывает все текущие обработчики топика с payload.
// Запуск — в порядке регистрации, порядок завершения не гарантирован.
// Ошибка (или паника) отдельного обработчика логируется с привязкой к
// топику и имени обработчика, не прерывает соседей и не выходит наружу.
// Публикация в топик без подписчиков — легальный no-op.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.RLock()
	registered := b.subs[topic]
	handlers := make([]Handler, len(registered))
	copy(handlers, registered)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	e := Event{Topic: topic, Payload: payload}

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("handler panic",
						zap.String("topic", topic),
						zap.String("handler", h.Name()),
						zap.Any("panic", r),
					)
				}
			}()

			if err := h.Handle(ctx, e); err != nil {
				b.logger.Error("handler failed",
					zap.String("topic", topic),
					zap.String("handler", h.Name()),
					zap.Error(err),
				)
			}
		}(h)
	}

	wg.Wait()
	return nil
}
