package connectors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/xela07ax/pricegate/internal/domain"
)

// PriceApplier — операция применения цены во внешней системе (карточка
// товара, прайс-фид). Реальная реализация живет за пределами ядра.
type PriceApplier interface {
	Apply(ctx context.Context, sku string, price float64) error
}

// MockApplier имитирует внешний прайс-API с сетевой задержкой.
// SKU с префиксом "unstable." всегда падают временной ошибкой — удобно
// прогонять ветку APPLY_FAILED и ретраи.
type MockApplier struct{}

func (a *MockApplier) Apply(ctx context.Context, sku string, price float64) error {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.IntN(250)) * time.Millisecond

	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return ctx.Err()
	}

	if strings.HasPrefix(sku, "unstable.") {
		return fmt.Errorf("price api: %w", ErrTransient)
	}
	if price <= 0 {
		return fmt.Errorf("price api: refused non-positive price %.2f for %s", price, sku)
	}
	return nil
}

// MockMarket — заглушка внешнего коннектора рыночных данных: периодически
// выдает нормализованные тики по фиксированному набору SKU.
type MockMarket struct {
	interval time.Duration
	base     map[string]float64
}

func NewMockMarket(interval time.Duration) *MockMarket {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &MockMarket{
		interval: interval,
		base: map[string]float64{
			"widget.alpha":  120.00,
			"widget.beta":   89.90,
			"gadget.gamma":  45.50,
			"unstable.zeta": 230.00,
		},
	}
}

// Stream отдает канал тиков; закрывается при отмене контекста.
func (m *MockMarket) Stream(ctx context.Context) <-chan domain.Tick {
	out := make(chan domain.Tick)

	go func() {
		defer close(out)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for sku, price := range m.base {
					tick := domain.Tick{
						SKU:      sku,
						OurPrice: price,
						Source:   "mock",
						Market:   "default",
						TS:       time.Now().UTC(),
					}
					// Время от времени конкурент «подрезает» нашу цену
					if rand.IntN(3) == 0 {
						cp := price * (0.85 + 0.1*rand.Float64())
						tick.CompetitorPrice = &cp
					}
					select {
					case out <- tick:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}

// MockOptimizer — стенд внешнего прайс-оптимизатора: реагирует на подрез
// конкурента предложением подвинуть цену. Ядро не решает, какую цену
// предлагать — это его работа.
type MockOptimizer struct {
	Actor string
}

// React возвращает предложение цены или nil, если повода нет.
func (o *MockOptimizer) React(t domain.Tick) *domain.PriceProposal {
	if t.CompetitorPrice == nil || *t.CompetitorPrice >= t.OurPrice {
		return nil
	}

	current := t.OurPrice
	cost := t.OurPrice * 0.78 // условная себестоимость стенда
	proposed := *t.CompetitorPrice * 0.995

	actor := o.Actor
	if actor == "" {
		actor = "mock-optimizer"
	}

	return &domain.PriceProposal{
		SKU:           t.SKU,
		CurrentPrice:  &current,
		ProposedPrice: proposed,
		Cost:          &cost,
		Actor:         actor,
		Reason:        "competitor undercut",
	}
}
