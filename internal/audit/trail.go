package audit

/*
Файл trail.go реализует асинхронный аудит-трейл конвейера.

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал между Hot Path конвейера и
  воркером записи — задержки БД не влияют на время Publish.
- Batching: накопление событий в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита.
- Drain Pattern: при остановке сервиса буфер вычитывается полностью,
  финальный flush гарантирует отсутствие потерь при перезагрузке.
*/

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/bus"
	"github.com/xela07ax/pricegate/internal/domain"
)

// StorageInterface определяет, куда физически сохраняются события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []TrailEvent) error
}

type Trail struct {
	ch     chan TrailEvent  // Буфер для асинхронности
	repo   StorageInterface // Postgres (или иное хранилище)
	logger *zap.Logger
	wg     sync.WaitGroup

	batchSize int
	interval  time.Duration

	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTrail(repo StorageInterface, bufferSize, batchSize int, interval time.Duration, logger *zap.Logger) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Trail{
		ch:        make(chan TrailEvent, bufferSize),
		repo:      repo,
		logger:    logger.With(zap.String("mod", "trail")),
		batchSize: batchSize,
		interval:  interval,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

func (t *Trail) Log(event TrailEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("trail event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Стратегия Load Shedding: при переполнении буфера событие уходит
	// в обычный лог, чтобы не блокировать издателя
	select {
	case t.ch <- event:
	default:
		t.logger.Error("trail_buffer_overflow",
			zap.String("topic", event.Topic),
			zap.String("proposal_id", event.ProposalID),
		)
	}
}

// BusHandler — адаптер подписчика: решения и тики, опубликованные на шине,
// складываются в трейл пачками.
func (t *Trail) BusHandler() bus.Handler {
	return bus.HandlerFunc("audit-trail", func(_ context.Context, e bus.Event) error {
		t.Log(fromBusEvent(e))
		return nil
	})
}

func fromBusEvent(e bus.Event) TrailEvent {
	ev := TrailEvent{Topic: e.Topic}

	switch p := e.Payload.(type) {
	case domain.DecisionRecord:
		ev.ProposalID = p.ProposalID
		ev.SKU = p.ProductID
		ev.Status = string(p.Status)
		if p.Reason != nil {
			ev.Reason = *p.Reason
		}
	case *domain.DecisionRecord:
		ev.ProposalID = p.ProposalID
		ev.SKU = p.ProductID
		ev.Status = string(p.Status)
		if p.Reason != nil {
			ev.Reason = *p.Reason
		}
	case domain.Tick:
		ev.SKU = p.SKU
		ev.Status = "TICK"
	case map[string]any:
		// Payload пришел с провода: вытаскиваем известные поля без паники
		ev.ProposalID, _ = p["proposal_id"].(string)
		if sku, ok := p["sku"].(string); ok {
			ev.SKU = sku
		} else if pid, ok := p["product_id"].(string); ok {
			ev.SKU = pid
		}
		ev.Status, _ = p["status"].(string)
		ev.Reason, _ = p["reason"].(string)
		ev.Payload = p
	}

	if ev.Payload == nil {
		ev.Payload = toMap(e.Payload)
	}
	return ev
}

func toMap(v any) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]TrailEvent, 0, t.batchSize)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к этому моменту может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("trail flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки — финальный flush и выход
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
