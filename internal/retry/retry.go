package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/xela07ax/pricegate/internal/connectors"
)

// Коэффициент роста задержки: каждый следующий сон — предыдущий × [2.0, 2.2).
// Небольшой рандомизированный джиттер разводит конкурирующие ретраи по времени.
const (
	factorMin = 2.0
	factorMax = 2.2
)

// Policy задает границы повторов для одной категории операций.
type Policy struct {
	Attempts  uint            // всего вызовов, >= 1; при 1 — обычный вызов без ретраев
	Base      time.Duration   // первая задержка
	Cap       time.Duration   // потолок задержки
	Retryable func(error) bool // какие сбои считаем временными; nil — все
}

// Executor — обертка над avast/retry-go с нашим расписанием задержек.
type Executor struct {
	policy Policy
}

func New(p Policy) *Executor {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	return &Executor{policy: p}
}

// Do исполняет op с ограниченными повторами.
//   - невременный сбой возвращается немедленно, без сна;
//   - после исчерпания попыток наружу уходит последняя (исходная) ошибка
//     без оберток (LastErrorOnly);
//   - сон между попытками уважает контекст.
func (e *Executor) Do(ctx context.Context, op func() error) error {
	// Расписание stateful: храним «следующую» задержку между вызовами DelayType
	next := e.policy.Base
	if e.policy.Cap > 0 && next > e.policy.Cap {
		next = e.policy.Cap
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(e.policy.Attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if e.policy.Retryable == nil {
				return true
			}
			return e.policy.Retryable(err)
		}),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			// Если зависимость вернула ThrottleError — верим ее Retry-After
			var tErr *connectors.ThrottleError
			if errors.As(err, &tErr) {
				return tErr.RetryAfter
			}

			d := next
			next = nextDelay(next, e.policy.Cap, factor())
			return d
		}),
	)

	return r.Do(op)
}

func factor() float64 {
	return factorMin + (factorMax-factorMin)*rand.Float64()
}

// nextDelay — чистая функция расписания: prev × factor, не выше cap.
func nextDelay(prev, cap time.Duration, factor float64) time.Duration {
	d := time.Duration(float64(prev) * factor)
	if cap > 0 && d > cap {
		d = cap
	}
	return d
}
