// Package modeprobe infers the effective runtime mode (tactical vs. galactic)
// from live symbol presence and value sanity. Launch parameters never
// participate: a mod flag on the command line says nothing about what screen
// the player is on right now.
package modeprobe

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

// Reason codes are exhaustive and stable; downstream safety gates key off them.
const (
	ReasonTacticalSignals  = "mode_probe_tactical_signals"
	ReasonGalacticSignals  = "mode_probe_galactic_signals"
	ReasonAmbiguousHint    = "mode_probe_ambiguous_keep_hint"
	ReasonNoSignalsUseHint = "mode_probe_no_signals_use_hint"
	ReasonNoSignalsUnknown = "mode_probe_no_signals_unknown"
)

// Affinity ties an observation to one of the two mode families.
type Affinity string

const (
	AffinityTactical Affinity = "tactical"
	AffinityGalactic Affinity = "galactic"
)

// Observation is one live signal: a mode-associated symbol, whether it
// resolved, and whether its current value passed its sanity rule.
type Observation struct {
	Symbol    string
	Affinity  Affinity
	Resolved  bool
	ValueSane bool
}

// Result is the probe outcome with the full scoring trail.
type Result struct {
	Mode          profile.Mode
	ReasonCode    string
	TacticalScore int
	GalacticScore int
	Diagnostics   map[string]string
}

const (
	resolvedWeight  = 2
	valueSaneWeight = 1
)

type Resolver struct {
	log logr.Logger
}

func NewResolver(log logr.Logger) *Resolver {
	return &Resolver{log: log.WithName("modeprobe")}
}

// Probe scores the observations and classifies the effective mode. A clearly
// dominant score selects that mode; a tie keeps the caller-supplied hint; no
// observations and no hint yields Unknown. A single signal never decides
// against a hint pointing the other way unless it actually dominates.
func (r *Resolver) Probe(observations []Observation, hint profile.Mode) Result {
	tactical, galactic := 0, 0
	for _, obs := range observations {
		if !obs.Resolved {
			continue
		}
		weight := resolvedWeight
		if obs.ValueSane {
			weight += valueSaneWeight
		}
		switch obs.Affinity {
		case AffinityTactical:
			tactical += weight
		case AffinityGalactic:
			galactic += weight
		}
	}

	result := Result{
		TacticalScore: tactical,
		GalacticScore: galactic,
		Diagnostics: map[string]string{
			"tacticalScore": fmt.Sprintf("%d", tactical),
			"galacticScore": fmt.Sprintf("%d", galactic),
			"hint":          string(hint),
		},
	}

	hasHint := hint == profile.ModeTactical || hint == profile.ModeGalactic

	switch {
	case tactical == 0 && galactic == 0:
		if hasHint {
			result.Mode = hint
			result.ReasonCode = ReasonNoSignalsUseHint
		} else {
			result.Mode = profile.ModeUnknown
			result.ReasonCode = ReasonNoSignalsUnknown
		}
	case tactical > galactic:
		result.Mode = profile.ModeTactical
		result.ReasonCode = ReasonTacticalSignals
	case galactic > tactical:
		result.Mode = profile.ModeGalactic
		result.ReasonCode = ReasonGalacticSignals
	default:
		// Equal non-zero scores: ambiguous, never guess over a hint.
		if hasHint {
			result.Mode = hint
		} else {
			result.Mode = profile.ModeUnknown
		}
		result.ReasonCode = ReasonAmbiguousHint
	}

	r.log.V(1).Info("mode probe",
		"mode", result.Mode, "reason", result.ReasonCode,
		"tacticalScore", tactical, "galacticScore", galactic)
	return result
}

// Default mode-associated symbol sets for the FOC family.
var (
	DefaultTacticalSymbols = []string{"tactical_credits_value", "unit_cap_value", "fog_reveal_toggle"}
	DefaultGalacticSymbols = []string{"credits_value", "galactic_timer_value"}
)
