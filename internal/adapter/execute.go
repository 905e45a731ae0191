package adapter

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/ipc"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/routing"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/signature"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/slices"
)

// Adapter-level reason codes. Routing and capability codes pass through
// unchanged; these cover failures the pipeline detects before or after the
// backend call.
const (
	ReasonModeMismatch       = "MODE_MISMATCH"
	ReasonCooldownActive     = "COOLDOWN_ACTIVE"
	ReasonSymbolUnresolved   = "SYMBOL_UNRESOLVED"
	ReasonInvalidPayload     = "INVALID_PAYLOAD"
	ReasonReadbackOutOfRange = "READBACK_OUT_OF_RANGE"
	ReasonWriteFailed        = "WRITE_FAILED"
)

// Execute is ExecuteCtx with a background context.
func (s *AttachSession) Execute(req ExecutionRequest) ExecutionResult {
	return s.ExecuteCtx(context.Background(), req)
}

// ExecuteCtx runs one action through the full pipeline: effective-mode
// resolution, mode gate, capability probe, routing, dispatch, and diagnostics
// merge. A disallowed routing decision returns without any backend call.
func (s *AttachSession) ExecuteCtx(ctx context.Context, req ExecutionRequest) ExecutionResult {
	result := ExecutionResult{
		ActionID:    req.ActionID,
		Diagnostics: map[string]string{},
	}

	action, found := s.prof.Actions[req.ActionID]
	if !found {
		result.ReasonCode = routing.ReasonSafetyFailClosed
		result.HookState = "invalid_command"
		result.Message = fmt.Sprintf("profile %s declares no action %q", s.prof.ID, req.ActionID)
		return result
	}

	if remaining := s.cooldownRemaining(action); remaining > 0 {
		result.ReasonCode = ReasonCooldownActive
		result.Message = fmt.Sprintf("action is cooling down for another %s", remaining.Round(time.Millisecond))
		result.Diagnostics["cooldownMs"] = fmt.Sprintf("%d", action.CooldownMs)
		return result
	}

	mode := s.ResolveMode(ctx, req.Mode)
	result.EffectiveMode = mode.Effective
	mergeDiagnostics(result.Diagnostics, mode.diagnostics())

	if !modeSatisfied(action, mode.Effective) {
		result.ReasonCode = ReasonModeMismatch
		result.Message = fmt.Sprintf("action requires mode %s, effective mode is %s",
			action.Mode, mode.Effective)
		return result
	}

	report := s.CapabilitiesCtx(ctx)
	capResult := s.adapter.caps.ResolveOperation(s.fp, s.prof, action.ID, s.Symbols().ResolvedAnchors())
	result.Diagnostics["capability.state"] = string(capResult.State)
	result.Diagnostics["capability.reason"] = capResult.ReasonCode

	decision := s.adapter.router.Resolve(routing.Request{
		Action:             action,
		CapabilityMapHints: capResult.SourceHint,
	}, s.prof, s.proc, report)
	mergeDiagnostics(result.Diagnostics, decision.Diagnostics)
	result.Backend = strings.ToLower(string(decision.Backend))
	result.ReasonCode = decision.ReasonCode

	if !decision.Allowed {
		result.Message = decision.Message
		s.log.Info("action blocked by routing",
			"action", action.ID, "reasonCode", decision.ReasonCode)
		return result
	}

	switch decision.Backend {
	case routing.BackendExtender:
		s.dispatchBridge(ctx, s.adapter.extender, action, req, mode, &result)
	case routing.BackendHelper:
		s.dispatchBridge(ctx, s.adapter.helper, action, req, mode, &result)
	case routing.BackendMemory:
		s.executeMemory(ctx, action, req, &result)
	}

	// A verify-readback action stays unverified until the target symbol is
	// re-read, no matter which backend claimed success.
	if result.Succeeded && action.VerifyReadback && decision.Backend != routing.BackendMemory {
		if sym, err := s.resolvedSymbol(action.TargetSymbol); err == nil {
			s.applyReadback(sym, &result)
		}
	}

	if result.Succeeded {
		s.markRun(action.ID)
	}
	return result
}

func (s *AttachSession) cooldownRemaining(action profile.ActionSpec) time.Duration {
	if action.CooldownMs <= 0 {
		return 0
	}
	s.mu.Lock()
	last, found := s.lastRun[action.ID]
	s.mu.Unlock()
	if !found {
		return 0
	}
	deadline := last.Add(time.Duration(action.CooldownMs) * time.Millisecond)
	return time.Until(deadline)
}

func (s *AttachSession) markRun(actionID string) {
	s.mu.Lock()
	s.lastRun[actionID] = time.Now()
	s.mu.Unlock()
}

// modeSatisfied gates the action against the effective mode. Unknown effective
// mode satisfies only non-strict actions.
func modeSatisfied(action profile.ActionSpec, effective profile.Mode) bool {
	if effective == profile.ModeUnknown {
		return !action.StrictMode
	}
	if action.Mode == "" || action.Mode == profile.ModeAny {
		return true
	}
	return action.Mode == effective
}

func (s *AttachSession) dispatchBridge(
	ctx context.Context,
	backend ipc.Backend,
	action profile.ActionSpec,
	req ExecutionRequest,
	mode ModeDecision,
	result *ExecutionResult,
) {
	resp := backend.Execute(ctx, ipc.Request{
		FeatureID:   action.ID,
		ProfileID:   s.prof.ID,
		Mode:        string(mode.Effective),
		RequestedBy: req.RequestedBy,
		Payload:     req.Payload,
	})
	result.Succeeded = resp.Succeeded
	result.HookState = resp.HookState
	result.Message = resp.Message
	if resp.ReasonCode != "" {
		result.ReasonCode = resp.ReasonCode
	}
	result.Diagnostics["commandId"] = resp.CommandID
	mergeDiagnostics(result.Diagnostics, resp.Diagnostics)
}

// executeMemory services the legacy direct-memory route: inspection reads, and
// the narrow set of writes routing has explicitly allowed there.
func (s *AttachSession) executeMemory(
	ctx context.Context,
	action profile.ActionSpec,
	req ExecutionRequest,
	result *ExecutionResult,
) {
	sym, err := s.resolvedSymbol(action.TargetSymbol)
	if err != nil {
		result.Succeeded = false
		result.ReasonCode = ReasonSymbolUnresolved
		result.Message = err.Error()
		return
	}
	result.Diagnostics["symbol"] = sym.Name
	result.Diagnostics["symbolSource"] = string(sym.Source)
	result.Diagnostics["symbolConfidence"] = fmt.Sprintf("%.2f", sym.Confidence)

	if !action.Mutates() {
		_, rendered, err := s.readSymbolValue(sym)
		if err != nil {
			result.Succeeded = false
			result.Message = fmt.Sprintf("reading %s: %v", sym.Name, err)
			return
		}
		result.Succeeded = true
		result.Diagnostics["value"] = rendered
		return
	}

	value, err := payloadNumber(req.Payload)
	if err == nil {
		err = payloadFitsSymbol(sym, value)
	}
	if err != nil {
		result.Succeeded = false
		result.ReasonCode = ReasonInvalidPayload
		result.Message = err.Error()
		return
	}

	writeErr := s.writeSymbolValue(sym, value)
	if writeErr != nil && slices.Contains(s.prof.CriticalSymbols(), action.TargetSymbol) {
		// Exactly one re-resolve-and-retry for critical symbols.
		s.log.Info("write failed on critical symbol, re-resolving once",
			"symbol", sym.Name, "error", writeErr.Error())
		if err := s.RefreshSymbols(ctx); err == nil {
			if sym, err = s.resolvedSymbol(action.TargetSymbol); err == nil {
				writeErr = s.writeSymbolValue(sym, value)
				result.Diagnostics["retriedAfterResolve"] = "true"
			}
		}
	}
	if writeErr != nil {
		result.Succeeded = false
		result.ReasonCode = ReasonWriteFailed
		result.Message = fmt.Sprintf("writing %s: %v", sym.Name, writeErr)
		return
	}

	result.Succeeded = true
	if action.VerifyReadback {
		s.applyReadback(sym, result)
	}
}

// applyReadback re-reads the symbol through its declared value type and holds
// the result against the profile's sanity rule. A write that landed wrong is a
// failure, not a success with a caveat.
func (s *AttachSession) applyReadback(sym signature.SymbolInfo, result *ExecutionResult) {
	got, rendered, err := s.readSymbolValue(sym)
	if err != nil {
		result.Succeeded = false
		result.ReasonCode = ReasonReadbackOutOfRange
		result.Message = fmt.Sprintf("readback of %s failed: %v", sym.Name, err)
		return
	}
	result.Diagnostics["readbackValue"] = rendered
	if !s.readbackSane(sym.Name, got) {
		result.Succeeded = false
		result.ReasonCode = ReasonReadbackOutOfRange
		result.Message = fmt.Sprintf("readback value %s violates the sanity rule for %s", rendered, sym.Name)
	}
}

func (s *AttachSession) readbackSane(symbol string, value float64) bool {
	rule, found := s.prof.SymbolValidationRules()[symbol]
	if !found {
		return true
	}
	return value >= rule.Min && value <= rule.Max
}

func payloadNumber(payload map[string]any) (float64, error) {
	raw, found := payload["value"]
	if !found {
		return 0, fmt.Errorf("payload has no %q entry", "value")
	}
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("payload value %v (%T) is not numeric", raw, raw)
	}
}

// payloadFitsSymbol rejects values the symbol's declared type cannot hold
// before anything touches process memory.
func payloadFitsSymbol(sym signature.SymbolInfo, value float64) error {
	switch sym.ValueType {
	case profile.ValueTypePointer:
		return fmt.Errorf("symbol %s is pointer-typed and read-only", sym.Name)
	case profile.ValueTypeByte:
		if value < 0 || value > 255 {
			return fmt.Errorf("value %g does not fit byte symbol %s", value, sym.Name)
		}
	case profile.ValueTypeFloat:
		// Any finite float64 narrows to float32 acceptably for game state.
	default:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return fmt.Errorf("value %g does not fit int32 symbol %s", value, sym.Name)
		}
	}
	return nil
}

func mergeDiagnostics(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
