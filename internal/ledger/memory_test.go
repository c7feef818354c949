package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/pricegate/internal/domain"
)

func newRecord(id, sku string) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ProposalID:    id,
		ProductID:     sku,
		PreviousPrice: 100,
		ProposedPrice: 108,
		Actor:         "optimizer",
		Status:        domain.StatusReceived,
		ReceivedAt:    time.Now().UTC(),
	}
}

func TestMemoryCreateForcesReceived(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := newRecord("p-1", "widget.alpha")
	rec.Status = domain.StatusApproved // попытка родиться сразу одобренным
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, got.Status)
	require.Nil(t, got.ProcessedAt)
}

func TestMemoryCreateRejectsDuplicate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))
	require.ErrorIs(t, s.Create(ctx, newRecord("p-1", "widget.beta")), ErrDuplicate)
}

func TestMemoryGetNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryHappyPathToAppliedAuto(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))

	rec, err := s.Transition(ctx, "p-1", domain.StatusReceived, domain.StatusApproved, Update{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, rec.Status)
	require.Nil(t, rec.ProcessedAt, "APPROVED не терминален")

	final := 108.0
	rec, err = s.Transition(ctx, "p-1", domain.StatusApproved, domain.StatusAppliedAuto,
		Update{FinalPrice: &final})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAppliedAuto, rec.Status)
	require.NotNil(t, rec.FinalPrice)
	require.Equal(t, 108.0, *rec.FinalPrice)
	require.NotNil(t, rec.ProcessedAt, "терминальный статус фиксирует processed_at")
}

func TestMemoryTransitionIllegalLeavesRecordUntouched(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))

	// Перескок RECEIVED -> APPLIED_AUTO запрещен и ничего не меняет
	_, err := s.Transition(ctx, "p-1", domain.StatusReceived, domain.StatusAppliedAuto, Update{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := s.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, got.Status)
}

func TestMemoryTransitionConflictOnWrongExpectedStatus(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))

	reason := "margin too thin"
	_, err := s.Transition(ctx, "p-1", domain.StatusReceived, domain.StatusRejected,
		Update{Reason: &reason})
	require.NoError(t, err)

	// Второй писатель ожидает RECEIVED, но запись уже REJECTED
	_, err = s.Transition(ctx, "p-1", domain.StatusReceived, domain.StatusStale, Update{})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryTransitionNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Transition(context.Background(), "ghost",
		domain.StatusReceived, domain.StatusApproved, Update{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProcessedAtSetOnce(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))
	reason := "stale"
	rec, err := s.Transition(ctx, "p-1", domain.StatusReceived, domain.StatusStale,
		Update{Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, fixed, *rec.ProcessedAt)
}

func TestMemoryListFiltersAndOrders(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"p-1", "p-2", "p-3"} {
		rec := newRecord(id, "widget.alpha")
		rec.ReceivedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, rec))
	}
	_, err := s.Transition(ctx, "p-2", domain.StatusReceived, domain.StatusApproved, Update{})
	require.NoError(t, err)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Свежие первыми
	require.Equal(t, "p-3", all[0].ProposalID)

	received, err := s.List(ctx, domain.StatusReceived, 0)
	require.NoError(t, err)
	require.Len(t, received, 2)

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestMemoryActiveByProduct(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))
	require.NoError(t, s.Create(ctx, newRecord("p-2", "widget.alpha")))
	require.NoError(t, s.Create(ctx, newRecord("p-3", "widget.beta")))

	reason := "rejected"
	_, err := s.Transition(ctx, "p-2", domain.StatusReceived, domain.StatusRejected,
		Update{Reason: &reason})
	require.NoError(t, err)

	active, err := s.ActiveByProduct(ctx, "widget.alpha")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "p-1", active[0].ProposalID)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newRecord("p-1", "widget.alpha")))

	got, err := s.Get(ctx, "p-1")
	require.NoError(t, err)
	got.Status = domain.StatusAppliedAuto // мутация копии не трогает хранилище

	again, err := s.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, again.Status)
}
