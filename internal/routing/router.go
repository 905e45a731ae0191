// Package routing decides, per action, which backend may execute it and
// whether execution is allowed at all. Decisions are deterministic, computed
// fresh per invocation, and fail closed: any branch that cannot prove safety
// blocks rather than guessing.
package routing

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/discovery"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/slices"
)

// BackendKind names an execution backend.
type BackendKind string

const (
	BackendExtender BackendKind = "Extender"
	BackendHelper   BackendKind = "Helper"
	BackendMemory   BackendKind = "Memory"
)

// Routing reason codes.
const (
	ReasonProbePass          = capability.ReasonProbePass
	ReasonRequiredMissing    = capability.ReasonRequiredMissing
	ReasonSafetyFailClosed   = "SAFETY_FAIL_CLOSED"
	ReasonMutationBlocked    = "SAFETY_MUTATION_BLOCKED"
	ReasonPanicDisabled      = "SAFETY_PANIC_DISABLED"
	ReasonLegacyDirectMemory = "LEGACY_DIRECT_MEMORY"
	ReasonReadOnlyRoute      = "READ_ONLY_ROUTE"
	ReasonHelperRoute        = "HELPER_ROUTE_VERIFIED"
	ReasonExpertOverride     = "EXPERT_OVERRIDE_ACCEPTED"
)

// PromotedActionIDs are extender-authoritative: once the extender model exists
// for the executable family, these ids never route through a legacy backend.
var PromotedActionIDs = []string{
	"freeze_timer",
	"toggle_fog_reveal",
	"toggle_ai",
	"set_unit_cap",
	"toggle_instant_build_patch",
}

func IsPromoted(actionID string) bool {
	return slices.Contains(PromotedActionIDs, actionID)
}

// Decision is the routing outcome. Never cached.
type Decision struct {
	Allowed     bool
	Backend     BackendKind
	ReasonCode  string
	Message     string
	Diagnostics map[string]string
}

// Request is the routing input for one action invocation.
type Request struct {
	Action profile.ActionSpec

	// CapabilityMapHints carries the capability map's own declared state
	// through to diagnostics for audit. It never influences the decision.
	CapabilityMapHints map[string]string
}

type Router struct {
	cfg config.RuntimeConfig
	log logr.Logger
}

func NewRouter(cfg config.RuntimeConfig, log logr.Logger) *Router {
	return &Router{cfg: cfg, log: log.WithName("routing")}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (r *Router) baseDiagnostics(req Request, promoted bool) map[string]string {
	diags := map[string]string{
		"hybridExecution":        "false",
		"promotedExtenderAction": boolString(promoted),
		"expertOverride":         boolString(r.cfg.ExpertMutationOverride),
		"panicDisable":           boolString(r.cfg.PanicDisable),
	}
	for key, value := range req.CapabilityMapHints {
		diags["capabilityMap."+key] = value
	}
	return diags
}

func blocked(reason, message string, diags map[string]string) Decision {
	return Decision{
		Allowed:     false,
		Backend:     BackendMemory,
		ReasonCode:  reason,
		Message:     message,
		Diagnostics: diags,
	}
}

// Resolve decides whether and where one action may execute.
func (r *Router) Resolve(
	req Request,
	prof *profile.Profile,
	proc *discovery.ProcessMetadata,
	report *capability.Report,
) Decision {
	promoted := IsPromoted(req.Action.ID)
	diags := r.baseDiagnostics(req, promoted)
	if proc != nil {
		diags["processId"] = fmt.Sprintf("%d", proc.Pid)
		diags["processExeTarget"] = string(proc.ExeTarget)
	}

	decision := r.resolve(req, prof, report, promoted, diags)
	r.log.V(1).Info("route resolved",
		"action", req.Action.ID,
		"allowed", decision.Allowed,
		"backend", decision.Backend,
		"reason", decision.ReasonCode)
	return decision
}

func (r *Router) resolve(
	req Request,
	prof *profile.Profile,
	report *capability.Report,
	promoted bool,
	diags map[string]string,
) Decision {
	mutates := req.Action.Mutates()

	// Panic disable blocks every mutation unconditionally.
	if mutates && r.cfg.PanicDisable {
		return blocked(ReasonPanicDisabled, "Panic disable is active; all mutating actions are blocked.", diags)
	}

	if promoted {
		return r.resolvePromoted(req, prof, report, diags)
	}

	// Read-only inspection is unaffected by capability state.
	if !mutates {
		return Decision{
			Allowed:     true,
			Backend:     r.readBackend(prof),
			ReasonCode:  ReasonReadOnlyRoute,
			Message:     "Read-only action routed without capability gating.",
			Diagnostics: diags,
		}
	}

	if req.Action.ExecutionKind == profile.ExecutionKindHelper {
		return r.resolveHelper(req, report, diags)
	}

	return r.resolveMutating(req, prof, report, diags)
}

func (r *Router) readBackend(prof *profile.Profile) BackendKind {
	if prof.BackendPreference == profile.BackendPreferenceExtender {
		return BackendExtender
	}
	return BackendMemory
}

// resolvePromoted enforces extender authority for the fixed promoted set.
// The single exception is the executable family that never had the hybrid
// model: there the legacy direct-memory route remains valid.
func (r *Router) resolvePromoted(
	req Request,
	prof *profile.Profile,
	report *capability.Report,
	diags map[string]string,
) Decision {
	if !prof.ExeTarget.HasHybridBackend() {
		return Decision{
			Allowed:     true,
			Backend:     BackendMemory,
			ReasonCode:  ReasonLegacyDirectMemory,
			Message:     "Executable family predates the extender model; legacy memory route applies.",
			Diagnostics: diags,
		}
	}

	entry, found := report.Feature(req.Action.ID)
	if !found || entry.State == capability.ConfidenceUnknown || !entry.Available {
		return blocked(ReasonRequiredMissing,
			"Promoted action requires a verified extender capability that was not probed as present.", diags)
	}

	if entry.State != capability.ConfidenceVerified {
		return blocked(ReasonSafetyFailClosed,
			"Promoted action capability is present but not verified; failing closed.", diags)
	}

	diags["hybridExecution"] = "true"
	return Decision{
		Allowed:     true,
		Backend:     BackendExtender,
		ReasonCode:  ReasonProbePass,
		Message:     "Promoted action routed to extender with verified capability.",
		Diagnostics: diags,
	}
}

func (r *Router) resolveHelper(req Request, report *capability.Report, diags map[string]string) Decision {
	entry, found := report.Feature(req.Action.ID)
	if !found {
		return blocked(ReasonMutationBlocked,
			"Helper action has no probed capability entry; mutation blocked.", diags)
	}
	if entry.State != capability.ConfidenceVerified || !entry.Available {
		return blocked(ReasonSafetyFailClosed,
			"Helper action capability is not verified; failing closed.", diags)
	}

	return Decision{
		Allowed:     true,
		Backend:     BackendHelper,
		ReasonCode:  ReasonHelperRoute,
		Message:     "Helper action routed to helper bridge with verified capability.",
		Diagnostics: diags,
	}
}

// resolveMutating gates non-promoted mutating actions. A profile's
// required-capability list gates only the entry relevant to this action,
// never the whole repository of capabilities.
func (r *Router) resolveMutating(
	req Request,
	prof *profile.Profile,
	report *capability.Report,
	diags map[string]string,
) Decision {
	entry, found := report.Feature(req.Action.ID)

	if !found {
		// A capability the profile explicitly requires blocks harder than a
		// generic mutation: the expert override never lifts it.
		if slices.Contains(prof.RequiredCapabilities, req.Action.ID) {
			return blocked(ReasonRequiredMissing,
				"Profile requires this capability and the probe did not report it.", diags)
		}
		if r.cfg.ExpertMutationOverride {
			diags["expertOverrideApplied"] = "true"
			return Decision{
				Allowed:     true,
				Backend:     BackendMemory,
				ReasonCode:  ReasonExpertOverride,
				Message:     "Expert mutation override accepted; routing to legacy memory backend.",
				Diagnostics: diags,
			}
		}
		return blocked(ReasonMutationBlocked,
			"Mutating action has no probed extender capability; mutation blocked.", diags)
	}

	if entry.State == capability.ConfidenceVerified && entry.Available {
		return Decision{
			Allowed:     true,
			Backend:     BackendExtender,
			ReasonCode:  ReasonProbePass,
			Message:     "Mutating action routed to extender with verified capability.",
			Diagnostics: diags,
		}
	}

	if entry.State == capability.ConfidenceExperimental && entry.Available && r.cfg.ExperimentalFeatures {
		diags["experimentalGate"] = "true"
		return Decision{
			Allowed:     true,
			Backend:     BackendExtender,
			ReasonCode:  ReasonProbePass,
			Message:     "Experimental capability admitted by explicit experimental gate.",
			Diagnostics: diags,
		}
	}

	return blocked(ReasonSafetyFailClosed,
		"Mutating action capability is present but not verified; failing closed.", diags)
}
