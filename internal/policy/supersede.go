package policy

import "github.com/xela07ax/pricegate/internal/domain"

// Supersede решает, какое из конкурирующих предложений по одному товару
// вытесняет другое в STALE. Правило вынесено в явную политику, чтобы
// конвейер не зашивал в себя определение «новее».
type Supersede interface {
	// ShouldSupersede — должно ли existing уйти в STALE при появлении incoming.
	ShouldSupersede(existing, incoming *domain.DecisionRecord) bool
}

// NewestWins — политика по умолчанию: по каждому product_id побеждает
// предложение с самым свежим received_at. Одинаковое время не вытесняет.
type NewestWins struct{}

func (NewestWins) ShouldSupersede(existing, incoming *domain.DecisionRecord) bool {
	if existing.ProductID != incoming.ProductID {
		return false
	}
	if existing.ProposalID == incoming.ProposalID {
		return false
	}
	if !existing.Status.Active() {
		return false
	}
	return existing.ReceivedAt.Before(incoming.ReceivedAt)
}
