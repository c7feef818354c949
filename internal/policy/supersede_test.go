package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/pricegate/internal/domain"
)

func rec(id, sku string, status domain.DecisionStatus, at time.Time) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ProposalID: id,
		ProductID:  sku,
		Status:     status,
		ReceivedAt: at,
	}
}

func TestNewestWinsSupersedesOlderActive(t *testing.T) {
	p := NewestWins{}
	now := time.Now().UTC()

	older := rec("p-1", "widget.alpha", domain.StatusReceived, now.Add(-time.Minute))
	newer := rec("p-2", "widget.alpha", domain.StatusReceived, now)

	require.True(t, p.ShouldSupersede(older, newer))
	// В обратную сторону — нет
	require.False(t, p.ShouldSupersede(newer, older))
}

func TestNewestWinsIgnoresOtherProducts(t *testing.T) {
	p := NewestWins{}
	now := time.Now().UTC()

	other := rec("p-1", "widget.beta", domain.StatusReceived, now.Add(-time.Minute))
	incoming := rec("p-2", "widget.alpha", domain.StatusReceived, now)

	require.False(t, p.ShouldSupersede(other, incoming))
}

func TestNewestWinsTieDoesNotSupersede(t *testing.T) {
	p := NewestWins{}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := rec("p-1", "widget.alpha", domain.StatusReceived, at)
	b := rec("p-2", "widget.alpha", domain.StatusReceived, at)

	// Одинаковое received_at — никто никого не вытесняет
	require.False(t, p.ShouldSupersede(a, b))
	require.False(t, p.ShouldSupersede(b, a))
}

func TestNewestWinsSkipsTerminalRecords(t *testing.T) {
	p := NewestWins{}
	now := time.Now().UTC()
	incoming := rec("p-9", "widget.alpha", domain.StatusReceived, now)

	for _, s := range []domain.DecisionStatus{
		domain.StatusRejected, domain.StatusAppliedAuto,
		domain.StatusApplyFailed, domain.StatusStale,
	} {
		existing := rec("p-1", "widget.alpha", s, now.Add(-time.Hour))
		require.False(t, p.ShouldSupersede(existing, incoming), "status %s", s)
	}
}

func TestNewestWinsApprovedIsStillActive(t *testing.T) {
	p := NewestWins{}
	now := time.Now().UTC()

	approved := rec("p-1", "widget.alpha", domain.StatusApproved, now.Add(-time.Minute))
	incoming := rec("p-2", "widget.alpha", domain.StatusReceived, now)

	require.True(t, p.ShouldSupersede(approved, incoming))
}

func TestNewestWinsSameProposalNeverSupersedesItself(t *testing.T) {
	p := NewestWins{}
	now := time.Now().UTC()

	a := rec("p-1", "widget.alpha", domain.StatusReceived, now.Add(-time.Minute))
	b := rec("p-1", "widget.alpha", domain.StatusReceived, now)

	require.False(t, p.ShouldSupersede(a, b))
}
