package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestValidateAcceptsSafeProposal(t *testing.T) {
	g := Guardrails{MinMargin: 0.12, MaxDelta: 0.10}

	// margin = 18/108 ≈ 0.167 >= 0.12, delta = 8/100 = 0.08 <= 0.10
	ok, reason := Validate(f(100), 108, f(90), g)
	require.True(t, ok)
	require.Equal(t, "ok", reason)
}

func TestValidateRejectsThinMargin(t *testing.T) {
	g := Guardrails{MinMargin: 0.12, MaxDelta: 0.10}

	// margin = 5/95 ≈ 0.053 < 0.12
	ok, reason := Validate(f(100), 95, f(90), g)
	require.False(t, ok)
	require.Equal(t, "margin 0.053 < 0.120", reason)
}

func TestValidateRejectsLargeDelta(t *testing.T) {
	g := Guardrails{MinMargin: 0.12, MaxDelta: 0.10}

	// margin = 65/115 ≈ 0.565 проходит, delta = 15/100 = 0.15 > 0.10
	ok, reason := Validate(f(100), 115, f(50), g)
	require.False(t, ok)
	require.Equal(t, "delta 0.150 > 0.100", reason)
}

func TestValidateMarginCheckedBeforeDelta(t *testing.T) {
	g := Guardrails{MinMargin: 0.12, MaxDelta: 0.10}

	// Обе проверки провалены: margin = 5/200 = 0.025, delta = 100/100 = 1.0.
	// Побеждает первая — причина про маржу, не про дельту.
	ok, reason := Validate(f(100), 200, f(195), g)
	require.False(t, ok)
	require.Contains(t, reason, "margin")
	require.NotContains(t, reason, "delta")
}

func TestValidateDeltaDirectionIgnored(t *testing.T) {
	g := Guardrails{MinMargin: 0, MaxDelta: 0.10}

	// Снижение цены на 15% — тоже дельта
	ok, reason := Validate(f(100), 85, nil, g)
	require.False(t, ok)
	require.Equal(t, "delta 0.150 > 0.100", reason)
}

func TestValidateAcceptsWithoutContext(t *testing.T) {
	// Ни цены, ни себестоимости — проверять нечего, пропускаем по умолчанию
	ok, reason := Validate(nil, 42, nil, Defaults())
	require.True(t, ok)
	require.Equal(t, "ok", reason)
}

func TestValidateSkipsMarginOnNonPositivePrice(t *testing.T) {
	g := Guardrails{MinMargin: 0.12, MaxDelta: 0.10}

	// proposed == 0: маржа не вычислима, дельта = 1.0 > 0.10
	ok, reason := Validate(f(100), 0, f(90), g)
	require.False(t, ok)
	require.Contains(t, reason, "delta")
}

func TestValidateDeterministic(t *testing.T) {
	g := Defaults()
	for i := 0; i < 5; i++ {
		ok, reason := Validate(f(100), 108, f(90), g)
		require.True(t, ok)
		require.Equal(t, "ok", reason)
	}
}

func TestGuardrailsCheckBounds(t *testing.T) {
	require.NoError(t, Defaults().Check())
	require.NoError(t, Guardrails{MinMargin: 0, MaxDelta: 1}.Check())

	require.Error(t, Guardrails{MinMargin: 1.5, MaxDelta: 0.1}.Check())
	require.Error(t, Guardrails{MinMargin: 0.1, MaxDelta: -0.2}.Check())
}
