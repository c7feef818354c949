package guard

import "fmt"

// Guardrails — числовые пределы безопасности для автоматической смены цены.
// Конфигурация, не мутируется валидатором в рантайме.
type Guardrails struct {
	MinMargin float64 `json:"min_margin" mapstructure:"min_margin"`
	MaxDelta  float64 `json:"max_delta" mapstructure:"max_delta"`
}

// Defaults — значения по умолчанию, если settings store молчит.
func Defaults() Guardrails {
	return Guardrails{MinMargin: 0.12, MaxDelta: 0.10}
}

// Check валидирует границы конфигурации: обе доли обязаны лежать в [0,1].
func (g Guardrails) Check() error {
	if g.MinMargin < 0 || g.MinMargin > 1 {
		return fmt.Errorf("guardrails: min_margin %.3f out of [0,1]", g.MinMargin)
	}
	if g.MaxDelta < 0 || g.MaxDelta > 1 {
		return fmt.Errorf("guardrails: max_delta %.3f out of [0,1]", g.MaxDelta)
	}
	return nil
}

// Validate — чистая функция: безопасна ли предложенная цена.
// Порядок проверок фиксирован и является контрактом: сначала маржа,
// потом дельта; побеждает первая провалившаяся проверка.
// Отказ — это не ошибка, а нормальный бизнес-результат (false, reason).
func Validate(current *float64, proposed float64, cost *float64, g Guardrails) (bool, string) {
	// 1. Маржа: (цена - себестоимость) / цена
	if cost != nil && proposed > 0 {
		margin := (proposed - *cost) / proposed
		if margin < g.MinMargin {
			return false, fmt.Sprintf("margin %.3f < %.3f", margin, g.MinMargin)
		}
	}

	// 2. Дельта: относительное отклонение от текущей цены
	if current != nil && *current > 0 {
		delta := proposed - *current
		if delta < 0 {
			delta = -delta
		}
		delta /= *current
		if delta > g.MaxDelta {
			return false, fmt.Sprintf("delta %.3f > %.3f", delta, g.MaxDelta)
		}
	}

	// Когда ни цены, ни себестоимости нет — проверять нечего, пропускаем
	return true, "ok"
}
