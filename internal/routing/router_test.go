package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/discovery"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/testutil"
)

func newTestRouter(cfg config.RuntimeConfig) *Router {
	return NewRouter(cfg, testutil.NewLogForTesting("routing"))
}

func hybridProfile() *profile.Profile {
	return &profile.Profile{ID: "roe_3447786229_swfoc", ExeTarget: profile.ExeTargetStarWarsG}
}

func gameProcess() *discovery.ProcessMetadata {
	return &discovery.ProcessMetadata{Pid: 4242, ExeTarget: profile.ExeTargetStarWarsG}
}

func reportWith(featureID string, cap capability.BackendCapability) *capability.Report {
	return &capability.Report{Features: map[string]capability.BackendCapability{featureID: cap}}
}

func mutatingAction(id string) Request {
	return Request{Action: profile.ActionSpec{
		ID:            id,
		Category:      "mutation",
		ExecutionKind: profile.ExecutionKindMemory,
	}}
}

func TestPromotedVerifiedRoutesToExtender(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})
	report := reportWith("freeze_timer", capability.BackendCapability{
		Available: true, State: capability.ConfidenceVerified,
	})

	decision := router.Resolve(mutatingAction("freeze_timer"), hybridProfile(), gameProcess(), report)
	require.True(t, decision.Allowed)
	require.Equal(t, BackendExtender, decision.Backend)
	require.Equal(t, ReasonProbePass, decision.ReasonCode)
	require.Equal(t, "true", decision.Diagnostics["hybridExecution"])
	require.Equal(t, "true", decision.Diagnostics["promotedExtenderAction"])
}

func TestPromotedUnknownCapabilityBlocksRequiredMissing(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})

	// Absent entirely.
	decision := router.Resolve(mutatingAction("freeze_timer"), hybridProfile(), gameProcess(),
		&capability.Report{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonRequiredMissing, decision.ReasonCode)
	require.Equal(t, "false", decision.Diagnostics["hybridExecution"])

	// Present but Unknown counts as missing for promoted actions.
	decision = router.Resolve(mutatingAction("freeze_timer"), hybridProfile(), gameProcess(),
		reportWith("freeze_timer", capability.BackendCapability{Available: true, State: capability.ConfidenceUnknown}))
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonRequiredMissing, decision.ReasonCode)
}

func TestPromotedUnverifiedFailsClosed(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})
	report := reportWith("toggle_ai", capability.BackendCapability{
		Available: true, State: capability.ConfidenceExperimental,
	})

	decision := router.Resolve(mutatingAction("toggle_ai"), hybridProfile(), gameProcess(), report)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonSafetyFailClosed, decision.ReasonCode)
}

func TestPromotedLegacyFamilyUsesDirectMemory(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})
	empire := &profile.Profile{ID: "base_sweaw", ExeTarget: profile.ExeTargetSweaw}

	decision := router.Resolve(mutatingAction("freeze_timer"), empire,
		&discovery.ProcessMetadata{Pid: 7, ExeTarget: profile.ExeTargetSweaw}, &capability.Report{})
	require.True(t, decision.Allowed)
	require.Equal(t, BackendMemory, decision.Backend)
	require.Equal(t, ReasonLegacyDirectMemory, decision.ReasonCode)
}

func TestPromotedNeverAllowedOutsideExtenderOnHybridFamily(t *testing.T) {
	// Property: whatever the capability report says, an allowed promoted
	// action on a hybrid-family profile only ever lands on the extender.
	router := newTestRouter(config.RuntimeConfig{ExpertMutationOverride: true, ExperimentalFeatures: true})
	states := []capability.BackendCapability{
		{},
		{Available: true},
		{Available: false, State: capability.ConfidenceVerified},
		{Available: true, State: capability.ConfidenceExperimental},
		{Available: true, State: capability.ConfidenceVerified},
	}
	for _, id := range PromotedActionIDs {
		for _, state := range states {
			decision := router.Resolve(mutatingAction(id), hybridProfile(), gameProcess(),
				reportWith(id, state))
			if decision.Allowed {
				require.Equal(t, BackendExtender, decision.Backend, "action %s state %+v", id, state)
			}
		}
	}
}

func TestMutatingRequiresVerifiedCapability(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})

	// Verified: allowed on the extender.
	decision := router.Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(),
		reportWith("set_credits", capability.BackendCapability{Available: true, State: capability.ConfidenceVerified}))
	require.True(t, decision.Allowed)
	require.Equal(t, BackendExtender, decision.Backend)

	// Absent: blocked as a generic mutation.
	decision = router.Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(),
		&capability.Report{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonMutationBlocked, decision.ReasonCode)

	// Present but Unknown state: present-unverified fails closed.
	decision = router.Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(),
		reportWith("set_credits", capability.BackendCapability{Available: true, State: capability.ConfidenceUnknown}))
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonSafetyFailClosed, decision.ReasonCode)
}

func TestMutatingExperimentalGate(t *testing.T) {
	report := reportWith("set_credits", capability.BackendCapability{
		Available: true, State: capability.ConfidenceExperimental,
	})

	// Without the gate, experimental fails closed.
	decision := newTestRouter(config.RuntimeConfig{}).
		Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(), report)
	require.False(t, decision.Allowed)

	// With the gate it routes to the extender.
	decision = newTestRouter(config.RuntimeConfig{ExperimentalFeatures: true}).
		Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(), report)
	require.True(t, decision.Allowed)
	require.Equal(t, BackendExtender, decision.Backend)
	require.Equal(t, "true", decision.Diagnostics["experimentalGate"])
}

func TestExpertOverrideLiftsOnlyGenericMutationBlock(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{ExpertMutationOverride: true})

	// Generic missing capability: override routes to legacy memory.
	decision := router.Resolve(mutatingAction("set_credits"), hybridProfile(), gameProcess(),
		&capability.Report{})
	require.True(t, decision.Allowed)
	require.Equal(t, BackendMemory, decision.Backend)
	require.Equal(t, ReasonExpertOverride, decision.ReasonCode)

	// A profile-required capability is never lifted by the override.
	demanding := hybridProfile()
	demanding.RequiredCapabilities = []string{"set_credits"}
	decision = router.Resolve(mutatingAction("set_credits"), demanding, gameProcess(),
		&capability.Report{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonRequiredMissing, decision.ReasonCode)

	// Promoted gates are never lifted either.
	decision = router.Resolve(mutatingAction("freeze_timer"), hybridProfile(), gameProcess(),
		&capability.Report{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonRequiredMissing, decision.ReasonCode)
}

func TestPanicDisableBlocksAllMutation(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{PanicDisable: true, ExpertMutationOverride: true})

	verified := reportWith("freeze_timer", capability.BackendCapability{
		Available: true, State: capability.ConfidenceVerified,
	})
	decision := router.Resolve(mutatingAction("freeze_timer"), hybridProfile(), gameProcess(), verified)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonPanicDisabled, decision.ReasonCode)

	// Inspection stays unaffected.
	inspection := Request{Action: profile.ActionSpec{ID: "get_credits", Category: "inspection"}}
	decision = router.Resolve(inspection, hybridProfile(), gameProcess(), &capability.Report{})
	require.True(t, decision.Allowed)
	require.Equal(t, ReasonReadOnlyRoute, decision.ReasonCode)
}

func TestHelperRouteRequiresVerifiedCapability(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})
	helperAction := Request{Action: profile.ActionSpec{
		ID:            "spawn_unit_script",
		Category:      "mutation",
		ExecutionKind: profile.ExecutionKindHelper,
	}}

	decision := router.Resolve(helperAction, hybridProfile(), gameProcess(),
		reportWith("spawn_unit_script", capability.BackendCapability{Available: true, State: capability.ConfidenceVerified}))
	require.True(t, decision.Allowed)
	require.Equal(t, BackendHelper, decision.Backend)
	require.Equal(t, ReasonHelperRoute, decision.ReasonCode)

	decision = router.Resolve(helperAction, hybridProfile(), gameProcess(), &capability.Report{})
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonMutationBlocked, decision.ReasonCode)
}

func TestCapabilityMapHintsPassThrough(t *testing.T) {
	router := newTestRouter(config.RuntimeConfig{})
	req := Request{
		Action:             profile.ActionSpec{ID: "get_credits", Category: "inspection"},
		CapabilityMapHints: map[string]string{"declaredState": "Verified"},
	}

	decision := router.Resolve(req, hybridProfile(), gameProcess(), &capability.Report{})
	require.Equal(t, "Verified", decision.Diagnostics["capabilityMap.declaredState"])
	require.Equal(t, "4242", decision.Diagnostics["processId"])
}
