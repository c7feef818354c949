package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionToLegalPaths(t *testing.T) {
	legal := []struct {
		from, to DecisionStatus
	}{
		{StatusReceived, StatusApproved},
		{StatusReceived, StatusRejected},
		{StatusReceived, StatusStale},
		{StatusApproved, StatusAppliedAuto},
		{StatusApproved, StatusApplyFailed},
		{StatusApproved, StatusStale},
	}

	for _, tc := range legal {
		require.NoError(t, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionToRejectsShortcuts(t *testing.T) {
	// Перескок мимо APPROVED запрещен
	require.ErrorIs(t, StatusReceived.CanTransitionTo(StatusAppliedAuto), ErrInvalidTransition)
	require.ErrorIs(t, StatusReceived.CanTransitionTo(StatusApplyFailed), ErrInvalidTransition)
	require.ErrorIs(t, StatusApproved.CanTransitionTo(StatusRejected), ErrInvalidTransition)
	require.ErrorIs(t, StatusApproved.CanTransitionTo(StatusReceived), ErrInvalidTransition)
}

func TestCanTransitionToTerminalIsImmutable(t *testing.T) {
	for _, s := range []DecisionStatus{StatusRejected, StatusAppliedAuto, StatusApplyFailed, StatusStale} {
		require.True(t, s.Terminal())
		require.ErrorIs(t, s.CanTransitionTo(StatusApproved), ErrAlreadyProcessed)
	}
}

func TestStatusClassification(t *testing.T) {
	require.True(t, StatusReceived.Active())
	require.True(t, StatusApproved.Active())
	require.False(t, StatusStale.Active())

	require.False(t, StatusReceived.Terminal())
	require.False(t, StatusApproved.Terminal())

	require.True(t, StatusReceived.Valid())
	require.False(t, DecisionStatus("PENDING").Valid())
}
