package bus

import "context"

// Broker — транспорт за шиной. Позволяет гонять события чисто в процессе
// или через внешний брокер, не меняя код издателей и подписчиков.
// Контракты идемпотентности/no-op те же, что у Bus.
type Broker interface {
	Subscribe(topic string, h Handler)
	Unsubscribe(topic string, h Handler)
	Publish(ctx context.Context, topic string, payload any) error
}
