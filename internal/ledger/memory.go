package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/pricegate/internal/domain"
)

// Memory — внутрипамятная реализация Ledger. Используется в тестах и
// в односервисном запуске без Postgres; семантика переходов та же.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]*domain.DecisionRecord
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		m:   make(map[string]*domain.DecisionRecord),
		now: time.Now,
	}
}

func clone(rec *domain.DecisionRecord) *domain.DecisionRecord {
	out := *rec
	if rec.FinalPrice != nil {
		v := *rec.FinalPrice
		out.FinalPrice = &v
	}
	if rec.Reason != nil {
		v := *rec.Reason
		out.Reason = &v
	}
	if rec.ProcessedAt != nil {
		v := *rec.ProcessedAt
		out.ProcessedAt = &v
	}
	return &out
}

func (s *Memory) Create(_ context.Context, rec *domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[rec.ProposalID]; ok {
		return ErrDuplicate
	}

	stored := clone(rec)
	stored.Status = domain.StatusReceived
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = s.now().UTC()
	}
	s.m[rec.ProposalID] = stored
	return nil
}

func (s *Memory) Get(_ context.Context, proposalID string) (*domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.m[proposalID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (s *Memory) List(_ context.Context, status domain.DecisionStatus, limit int) ([]*domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.DecisionRecord, 0)
	for _, rec := range s.m {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, clone(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) ActiveByProduct(_ context.Context, productID string) ([]*domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.DecisionRecord, 0)
	for _, rec := range s.m {
		if rec.ProductID == productID && rec.Status.Active() {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

func (s *Memory) Transition(_ context.Context, proposalID string, from, to domain.DecisionStatus, upd Update) (*domain.DecisionRecord, error) {
	// Легальность перехода проверяем до какой-либо мутации
	if err := from.CanTransitionTo(to); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.m[proposalID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != from {
		return nil, ErrConflict
	}

	rec.Status = to
	if upd.FinalPrice != nil {
		v := *upd.FinalPrice
		rec.FinalPrice = &v
	}
	if upd.Reason != nil {
		v := *upd.Reason
		rec.Reason = &v
	}
	if to.Terminal() && rec.ProcessedAt == nil {
		ts := s.now().UTC()
		rec.ProcessedAt = &ts
	}

	return clone(rec), nil
}
