package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/pricegate/internal/connectors"
	"github.com/xela07ax/pricegate/internal/retry"
)

// Reliable оборачивает PriceApplier контуром надежности:
// Rate Limiter -> Circuit Breaker -> RetryExecutor -> вызов.
// Конвейеру наружу уходит исходная ошибка apply после исчерпания попыток.
type Reliable struct {
	next    connectors.PriceApplier
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	retrier *retry.Executor
	metrics *Metrics
}

func NewReliable(next connectors.PriceApplier, retrier *retry.Executor, metrics *Metrics) *Reliable {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "price-applier",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerState.Set(1)
			} else {
				metrics.BreakerState.Set(0)
			}
		},
	})

	// Лимитер внешнего прайс-API (100 применений в секунду)
	limiter := rate.NewLimiter(rate.Limit(100), 20)

	return &Reliable{
		next:    next,
		cb:      cb,
		limiter: limiter,
		retrier: retrier,
		metrics: metrics,
	}
}

func (w *Reliable) Apply(ctx context.Context, sku string, price float64) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker + 3. Retries
	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.retrier.Do(ctx, func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			return w.next.Apply(tCtx, sku, price)
		})
	})
	return err
}
