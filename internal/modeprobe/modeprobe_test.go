package modeprobe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/testutil"
)

func obs(symbol string, affinity Affinity, resolved, sane bool) Observation {
	return Observation{Symbol: symbol, Affinity: affinity, Resolved: resolved, ValueSane: sane}
}

func TestProbeTacticalDominance(t *testing.T) {
	resolver := NewResolver(testutil.NewLogForTesting(t.Name()))

	result := resolver.Probe([]Observation{
		obs("tactical_credits_value", AffinityTactical, true, true),
		obs("unit_cap_value", AffinityTactical, true, false),
		obs("credits_value", AffinityGalactic, true, false),
	}, profile.ModeUnknown)

	require.Equal(t, profile.ModeTactical, result.Mode)
	require.Equal(t, ReasonTacticalSignals, result.ReasonCode)
	require.Equal(t, 5, result.TacticalScore)
	require.Equal(t, 2, result.GalacticScore)
}

func TestProbeGalacticDominance(t *testing.T) {
	resolver := NewResolver(testutil.NewLogForTesting(t.Name()))

	result := resolver.Probe([]Observation{
		obs("galactic_timer_value", AffinityGalactic, true, true),
	}, profile.ModeUnknown)

	require.Equal(t, profile.ModeGalactic, result.Mode)
	require.Equal(t, ReasonGalacticSignals, result.ReasonCode)
}

func TestProbeAmbiguousKeepsHint(t *testing.T) {
	resolver := NewResolver(testutil.NewLogForTesting(t.Name()))

	// Equal non-zero scores with a hint: the hint survives.
	result := resolver.Probe([]Observation{
		obs("tactical_credits_value", AffinityTactical, true, true),
		obs("credits_value", AffinityGalactic, true, true),
	}, profile.ModeGalactic)
	require.Equal(t, profile.ModeGalactic, result.Mode)
	require.Equal(t, ReasonAmbiguousHint, result.ReasonCode)

	// Same tie without a hint stays Unknown.
	result = resolver.Probe([]Observation{
		obs("tactical_credits_value", AffinityTactical, true, true),
		obs("credits_value", AffinityGalactic, true, true),
	}, profile.ModeUnknown)
	require.Equal(t, profile.ModeUnknown, result.Mode)
	require.Equal(t, ReasonAmbiguousHint, result.ReasonCode)
}

func TestProbeNoSignals(t *testing.T) {
	resolver := NewResolver(testutil.NewLogForTesting(t.Name()))

	// Unresolved observations carry no weight.
	unresolvedOnly := []Observation{
		obs("tactical_credits_value", AffinityTactical, false, false),
	}

	result := resolver.Probe(unresolvedOnly, profile.ModeTactical)
	require.Equal(t, profile.ModeTactical, result.Mode)
	require.Equal(t, ReasonNoSignalsUseHint, result.ReasonCode)

	result = resolver.Probe(nil, profile.ModeUnknown)
	require.Equal(t, profile.ModeUnknown, result.Mode)
	require.Equal(t, ReasonNoSignalsUnknown, result.ReasonCode)

	// Any/Auto are not real modes and never come back from a hint.
	result = resolver.Probe(nil, profile.ModeAuto)
	require.Equal(t, profile.ModeUnknown, result.Mode)
}

func TestProbeDiagnosticsTrail(t *testing.T) {
	resolver := NewResolver(testutil.NewLogForTesting(t.Name()))

	result := resolver.Probe([]Observation{
		obs("unit_cap_value", AffinityTactical, true, true),
	}, profile.ModeGalactic)

	require.Equal(t, "3", result.Diagnostics["tacticalScore"])
	require.Equal(t, "0", result.Diagnostics["galacticScore"])
	require.Equal(t, "Galactic", result.Diagnostics["hint"])
}
