package ledger

import (
	"context"
	"errors"

	"github.com/xela07ax/pricegate/internal/domain"
)

var (
	ErrNotFound  = errors.New("decision not found")
	ErrDuplicate = errors.New("proposal_id already recorded")
	// ErrConflict — запись существует, но ее текущий статус не совпал с
	// ожидаемым: конкурирующий писатель успел раньше.
	ErrConflict = errors.New("decision is not in the expected status")
)

// Update — поля, которые разрешено продвигать вместе со статусом.
// nil означает «не трогать».
type Update struct {
	FinalPrice *float64
	Reason     *string
}

// Ledger — durable, append-mostly журнал решений по предложениям цены.
// Строки никогда не удаляются; mutация — это только легальный переход
// конечного автомата. Конкурирующие переходы по одному proposal_id
// сериализуются условным обновлением по ожидаемому текущему статусу.
type Ledger interface {
	// Create заводит запись. Статус всегда RECEIVED, независимо от того,
	// что стоит в rec.
	Create(ctx context.Context, rec *domain.DecisionRecord) error

	Get(ctx context.Context, proposalID string) (*domain.DecisionRecord, error)

	// List возвращает свежие записи; пустой статус — без фильтра.
	List(ctx context.Context, status domain.DecisionStatus, limit int) ([]*domain.DecisionRecord, error)

	// ActiveByProduct — все «живые» (RECEIVED/APPROVED) записи товара.
	ActiveByProduct(ctx context.Context, productID string) ([]*domain.DecisionRecord, error)

	// Transition продвигает запись from -> to. Нелегальный переход
	// отклоняется без мутации (domain.ErrInvalidTransition); несовпадение
	// фактического статуса с from — ErrConflict. processed_at проставляется
	// ровно один раз, на терминальном переходе.
	Transition(ctx context.Context, proposalID string, from, to domain.DecisionStatus, upd Update) (*domain.DecisionRecord, error)
}
