package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/discovery"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/fingerprint"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/modeprobe"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/signature"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/memaccess"
)

const (
	// capabilityFreshness bounds how long a probed capability report is
	// reused before a fresh probe is required.
	capabilityFreshness = 30 * time.Second

	// telemetryFreshness bounds how long an external telemetry mode hint
	// outranks a live probe.
	telemetryFreshness = 15 * time.Second
)

// AttachSession binds one profile to one live process for its lifetime.
type AttachSession struct {
	adapter    *RuntimeAdapter
	prof       *profile.Profile
	proc       *discovery.ProcessMetadata
	fp         fingerprint.Fingerprint
	mem        memaccess.ProcessMemory
	module     *signature.Module
	attachedAt time.Time
	log        logr.Logger

	mu            sync.Mutex
	symbols       signature.SymbolMap
	manualMode    profile.Mode
	telemetryHint profile.Mode
	telemetryAt   time.Time
	capReport     *capability.Report
	lastRun       map[string]time.Time
}

func (s *AttachSession) Profile() *profile.Profile            { return s.prof }
func (s *AttachSession) Process() *discovery.ProcessMetadata  { return s.proc }
func (s *AttachSession) Fingerprint() fingerprint.Fingerprint { return s.fp }
func (s *AttachSession) AttachedAt() time.Time                { return s.attachedAt }

// Symbols returns the current symbol snapshot.
func (s *AttachSession) Symbols() signature.SymbolMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbols
}

// SetManualMode pins the effective mode until cleared with ModeUnknown.
func (s *AttachSession) SetManualMode(mode profile.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualMode = mode
}

// SetTelemetryHint records a mode hint from an external telemetry source.
// Hints expire; a stale hint never outranks a live probe.
func (s *AttachSession) SetTelemetryHint(mode profile.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetryHint = mode
	s.telemetryAt = time.Now()
}

// ModeDecision is the resolved effective mode with its full derivation chain.
type ModeDecision struct {
	Requested  profile.Mode
	Hint       profile.Mode
	Probe      profile.Mode
	Effective  profile.Mode
	Source     string
	ReasonCode string
}

func (d ModeDecision) diagnostics() map[string]string {
	return map[string]string{
		"mode.requested": string(d.Requested),
		"mode.hint":      string(d.Hint),
		"mode.probe":     string(d.Probe),
		"mode.effective": string(d.Effective),
		"mode.source":    d.Source,
		"mode.reason":    d.ReasonCode,
	}
}

func definite(mode profile.Mode) bool {
	return mode != "" && mode != profile.ModeUnknown && mode != profile.ModeAuto
}

// ResolveMode computes the effective mode by strict priority: manual override,
// then a fresh telemetry hint, then a live probe, then the requested mode.
// Auto at any level defers to the next.
func (s *AttachSession) ResolveMode(ctx context.Context, requested profile.Mode) ModeDecision {
	s.mu.Lock()
	manual := s.manualMode
	hint := s.telemetryHint
	hintFresh := time.Since(s.telemetryAt) <= telemetryFreshness
	s.mu.Unlock()

	decision := ModeDecision{Requested: requested}
	if hintFresh {
		decision.Hint = hint
	}

	if definite(manual) {
		decision.Effective = manual
		decision.Source = "manual_override"
		decision.ReasonCode = "mode_manual_override"
		return decision
	}
	if hintFresh && definite(hint) {
		decision.Effective = hint
		decision.Source = "telemetry_hint"
		decision.ReasonCode = "mode_telemetry_hint"
		return decision
	}

	probe := s.probeMode(ctx)
	decision.Probe = probe.Mode
	if definite(probe.Mode) {
		decision.Effective = probe.Mode
		decision.Source = "live_probe"
		decision.ReasonCode = probe.ReasonCode
		return decision
	}
	if definite(requested) {
		decision.Effective = requested
		decision.Source = "request"
		decision.ReasonCode = "mode_from_request"
		return decision
	}
	decision.Effective = profile.ModeUnknown
	decision.Source = "none"
	decision.ReasonCode = probe.ReasonCode
	return decision
}

// probeMode samples the mode-affine symbols and scores the live signals.
func (s *AttachSession) probeMode(_ context.Context) modeprobe.Result {
	s.mu.Lock()
	symbols := s.symbols
	s.mu.Unlock()

	var observations []modeprobe.Observation
	appendObservations := func(names []string, affinity modeprobe.Affinity) {
		for _, name := range names {
			sym, found := symbols[name]
			if !found {
				continue
			}
			obs := modeprobe.Observation{Symbol: name, Affinity: affinity}
			if sym.Address != 0 {
				obs.Resolved = true
				obs.ValueSane = s.symbolValueSane(sym)
			}
			observations = append(observations, obs)
		}
	}
	appendObservations(modeprobe.DefaultTacticalSymbols, modeprobe.AffinityTactical)
	appendObservations(modeprobe.DefaultGalacticSymbols, modeprobe.AffinityGalactic)

	return s.adapter.modeprobe.Probe(observations, s.proc.LastKnownMode)
}

// symbolValueSane reads the symbol's current value and checks it against the
// profile's declared rule for it, when one exists. A readable value with no
// rule counts as sane.
func (s *AttachSession) symbolValueSane(sym signature.SymbolInfo) bool {
	val, _, err := s.readSymbolValue(sym)
	if err != nil {
		return false
	}
	rule, found := s.prof.SymbolValidationRules()[sym.Name]
	if !found {
		return true
	}
	return val >= rule.Min && val <= rule.Max
}

// Capabilities is CapabilitiesCtx with a background context.
func (s *AttachSession) Capabilities() *capability.Report {
	return s.CapabilitiesCtx(context.Background())
}

// CapabilitiesCtx returns the session's capability report, probing the
// extender bridge when the cached report is stale. Probing is always explicit;
// there is no background refresh.
func (s *AttachSession) CapabilitiesCtx(ctx context.Context) *capability.Report {
	s.mu.Lock()
	cached := s.capReport
	s.mu.Unlock()
	if cached != nil && time.Since(cached.ProbedAt) <= capabilityFreshness {
		return cached
	}
	return s.RefreshCapabilitiesCtx(ctx)
}

// RefreshCapabilities is RefreshCapabilitiesCtx with a background context.
func (s *AttachSession) RefreshCapabilities() *capability.Report {
	return s.RefreshCapabilitiesCtx(context.Background())
}

func (s *AttachSession) RefreshCapabilitiesCtx(ctx context.Context) *capability.Report {
	report := s.adapter.extender.ProbeCapabilities(ctx, s.prof.ID)
	s.mu.Lock()
	s.capReport = &report
	s.mu.Unlock()
	s.log.V(1).Info("capability report refreshed",
		"reasonCode", report.ReasonCode, "features", len(report.Features))
	return &report
}

// RefreshSymbols re-reads the main module and re-resolves every signature.
// Used after a failed write to a critical symbol, where the game may have
// relocated state under us.
func (s *AttachSession) RefreshSymbols(_ context.Context) error {
	raw, err := s.mem.ReadBytes(s.module.Base, int(s.module.Size))
	if err != nil {
		return fmt.Errorf("re-reading main module: %w", err)
	}
	module := &signature.Module{
		Name:  s.module.Name,
		Base:  s.module.Base,
		Size:  s.module.Size,
		Bytes: raw,
	}
	resolved := s.adapter.resolver.Resolve(module, s.prof.Signatures, s.prof.FallbackOffsets)
	s.mu.Lock()
	s.module = module
	s.symbols = resolved
	s.mu.Unlock()
	return nil
}

// ReadSymbol is ReadSymbolCtx with a background context.
func (s *AttachSession) ReadSymbol(name string) (float64, error) {
	return s.ReadSymbolCtx(context.Background(), name)
}

func (s *AttachSession) ReadSymbolCtx(_ context.Context, name string) (float64, error) {
	sym, err := s.resolvedSymbol(name)
	if err != nil {
		return 0, err
	}
	val, _, err := s.readSymbolValue(sym)
	return val, err
}

// WriteSymbol is WriteSymbolCtx with a background context.
func (s *AttachSession) WriteSymbol(name string, value float64) error {
	return s.WriteSymbolCtx(context.Background(), name, value)
}

func (s *AttachSession) WriteSymbolCtx(_ context.Context, name string, value float64) error {
	sym, err := s.resolvedSymbol(name)
	if err != nil {
		return err
	}
	return s.writeSymbolValue(sym, value)
}

// readSymbolValue reads one symbol according to its declared value type. It
// returns the numeric value plus the rendering used in diagnostics.
func (s *AttachSession) readSymbolValue(sym signature.SymbolInfo) (float64, string, error) {
	switch sym.ValueType {
	case profile.ValueTypeFloat:
		val, err := memaccess.ReadFloat32(s.mem, sym.Address)
		return float64(val), fmt.Sprintf("%g", val), err
	case profile.ValueTypeByte:
		val, err := memaccess.ReadUint8(s.mem, sym.Address)
		return float64(val), fmt.Sprintf("%d", val), err
	case profile.ValueTypePointer:
		val, err := memaccess.ReadUint32(s.mem, sym.Address)
		return float64(val), fmt.Sprintf("0x%X", val), err
	default:
		val, err := memaccess.ReadInt32(s.mem, sym.Address)
		return float64(val), fmt.Sprintf("%d", val), err
	}
}

// writeSymbolValue stores a value with the symbol's declared width and
// encoding. Pointer symbols are navigation data, never a write target.
func (s *AttachSession) writeSymbolValue(sym signature.SymbolInfo, value float64) error {
	switch sym.ValueType {
	case profile.ValueTypeFloat:
		return memaccess.WriteFloat32(s.mem, sym.Address, float32(value))
	case profile.ValueTypeByte:
		if value < 0 || value > 255 {
			return fmt.Errorf("value %g does not fit byte symbol %s", value, sym.Name)
		}
		return memaccess.WriteUint8(s.mem, sym.Address, uint8(value))
	case profile.ValueTypePointer:
		return fmt.Errorf("symbol %s is pointer-typed and read-only", sym.Name)
	default:
		return memaccess.WriteInt32(s.mem, sym.Address, int32(value))
	}
}

func (s *AttachSession) resolvedSymbol(name string) (signature.SymbolInfo, error) {
	s.mu.Lock()
	sym, found := s.symbols[name]
	s.mu.Unlock()
	if !found || sym.Address == 0 {
		return signature.SymbolInfo{}, fmt.Errorf("symbol %q is not resolved", name)
	}
	return sym, nil
}
