package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscribeIsIdempotentByIdentity(t *testing.T) {
	b := New(zap.NewNop())

	var calls int64
	h := HandlerFunc("counter", func(context.Context, Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	// Дважды одна и та же идентичность — одна регистрация
	b.Subscribe("market.tick", h)
	b.Subscribe("market.tick", h)

	require.NoError(t, b.Publish(context.Background(), "market.tick", "payload"))
	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestSubscribeDistinctWrappersAreDistinct(t *testing.T) {
	b := New(zap.NewNop())

	var calls int64
	fn := func(context.Context, Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}

	// Две разные обертки — две регистрации
	b.Subscribe("market.tick", HandlerFunc("a", fn))
	b.Subscribe("market.tick", HandlerFunc("b", fn))

	require.NoError(t, b.Publish(context.Background(), "market.tick", nil))
	require.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := New(zap.NewNop())
	require.NoError(t, b.Publish(context.Background(), "empty.topic", "anything"))
}

func TestPublishIsolatesFailingHandlers(t *testing.T) {
	b := New(zap.NewNop())

	var good int64
	b.Subscribe("t", HandlerFunc("failing", func(context.Context, Event) error {
		return errors.New("handler exploded")
	}))
	b.Subscribe("t", HandlerFunc("panicking", func(context.Context, Event) error {
		panic("handler panicked")
	}))
	b.Subscribe("t", HandlerFunc("good", func(context.Context, Event) error {
		atomic.AddInt64(&good, 1)
		return nil
	}))

	// Ошибки и паники соседей не выходят из Publish и не мешают остальным
	require.NoError(t, b.Publish(context.Background(), "t", nil))
	require.Equal(t, int64(1), atomic.LoadInt64(&good))
}

func TestPublishWaitsForAllHandlers(t *testing.T) {
	b := New(zap.NewNop())

	var done int64
	for i := 0; i < 5; i++ {
		b.Subscribe("slow", HandlerFunc("slow", func(context.Context, Event) error {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&done, 1)
			return nil
		}))
	}

	// Publish — барьер синхронизации: возвращается после всех обработчиков
	require.NoError(t, b.Publish(context.Background(), "slow", nil))
	require.Equal(t, int64(5), atomic.LoadInt64(&done))
}

func TestUnsubscribeRemovesRegistration(t *testing.T) {
	b := New(zap.NewNop())

	var calls int64
	h := HandlerFunc("h", func(context.Context, Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	b.Subscribe("t", h)
	b.Unsubscribe("t", h)

	require.NoError(t, b.Publish(context.Background(), "t", nil))
	require.Equal(t, int64(0), atomic.LoadInt64(&calls))

	// Снятие отсутствующей регистрации — не ошибка
	b.Unsubscribe("t", h)
	b.Unsubscribe("never.registered", h)
}

func TestPublishDeliversPayloadAndTopic(t *testing.T) {
	b := New(zap.NewNop())

	var got Event
	var mu sync.Mutex
	b.Subscribe("price.proposal.received", HandlerFunc("capture", func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = e
		return nil
	}))

	require.NoError(t, b.Publish(context.Background(), "price.proposal.received", 42))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "price.proposal.received", got.Topic)
	require.Equal(t, 42, got.Payload)
}

func TestSubscribeExactMatchOnly(t *testing.T) {
	b := New(zap.NewNop())

	var calls int64
	b.Subscribe("market.tick", HandlerFunc("h", func(context.Context, Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}))

	// Никаких wildcard: соседний топик не доставляется
	require.NoError(t, b.Publish(context.Background(), "market", nil))
	require.NoError(t, b.Publish(context.Background(), "market.tick.extra", nil))
	require.Equal(t, int64(0), atomic.LoadInt64(&calls))
}
