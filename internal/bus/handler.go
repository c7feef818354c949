package bus

import "context"

// Event — единица доставки: топик плюс произвольный payload,
// сериализуемый в JSON-совместимое дерево.
type Event struct {
	Topic   string
	Payload any
}

// Handler — единая абстракция подписчика. Синхронная или асинхронная
// внутри — снаружи это всегда вызов, завершение которого шина умеет ждать.
// (Де)регистрация идемпотентна и сравнивает обработчики по идентичности.
type Handler interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

// HandlerFunc оборачивает функцию в Handler. Каждый вызов создает новую
// идентичность подписчика: повторная подписка того же значения — no-op,
// подписка двух разных оберток — две регистрации.
func HandlerFunc(name string, fn func(ctx context.Context, e Event) error) Handler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Handle(ctx context.Context, e Event) error { return h.fn(ctx, e) }
