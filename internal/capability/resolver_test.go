package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/fingerprint"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/testutil"
)

const testFingerprintID = "starwarsg_0123456789abcdef"

func testFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{FingerprintID: testFingerprintID, ModuleName: "starwarsg.exe"}
}

func focProfile() *profile.Profile {
	return &profile.Profile{ID: "roe_3447786229_swfoc", ExeTarget: profile.ExeTargetStarWarsG}
}

func writeMap(t *testing.T, dir, doc string) {
	t.Helper()
	path := filepath.Join(dir, testFingerprintID+".capabilitymap.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestResolveMissingMapFailsClosedRegardlessOfProfile(t *testing.T) {
	resolver := NewResolver(t.TempDir(), testutil.NewLogForTesting(t.Name()))

	for _, prof := range []*profile.Profile{
		focProfile(),
		{ID: "base_sweaw", ExeTarget: profile.ExeTargetSweaw},
	} {
		result := resolver.ResolveOperation(testFP(), prof, "freeze_timer", []string{"timer_tick"})
		require.Equal(t, StateUnavailable, result.State, prof.ID)
		require.Equal(t, ReasonFingerprintMapMissing, result.ReasonCode, prof.ID)
		require.Zero(t, result.Confidence, prof.ID)
	}
}

func TestResolveProfileFamilyMismatch(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, `{"profileFamily": "sweaw", "operations": {"freeze_timer": {"requiredAnchors": []}}}`)
	resolver := NewResolver(dir, testutil.NewLogForTesting(t.Name()))

	result := resolver.ResolveOperation(testFP(), focProfile(), "freeze_timer", nil)
	require.Equal(t, StateUnavailable, result.State)
	require.Equal(t, ReasonProfileFamilyMismatch, result.ReasonCode)
}

func TestResolveOperationsShape(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, `{
  "profileFamily": "starwarsg",
  "operations": {
    "freeze_timer": {"requiredAnchors": ["timer_tick", "timer_freeze_flag"]}
  }
}`)
	resolver := NewResolver(dir, testutil.NewLogForTesting(t.Name()))

	// All anchors observed.
	result := resolver.ResolveOperation(testFP(), focProfile(), "freeze_timer",
		[]string{"timer_freeze_flag", "timer_tick", "unrelated"})
	require.Equal(t, StateAvailable, result.State)
	require.Equal(t, ReasonAnchorsSatisfied, result.ReasonCode)
	require.Equal(t, 0.95, result.Confidence)
	require.Equal(t, []string{"timer_freeze_flag", "timer_tick"}, result.MatchedAnchors)

	// One anchor missing degrades, never silently passes.
	result = resolver.ResolveOperation(testFP(), focProfile(), "freeze_timer", []string{"timer_tick"})
	require.Equal(t, StateDegraded, result.State)
	require.Equal(t, ReasonRequiredAnchorsMissing, result.ReasonCode)
	require.Equal(t, []string{"timer_freeze_flag"}, result.MissingAnchors)

	// Operation absent from the map.
	result = resolver.ResolveOperation(testFP(), focProfile(), "toggle_ai", nil)
	require.Equal(t, StateUnavailable, result.State)
	require.Equal(t, ReasonOperationNotInMap, result.ReasonCode)
}

func TestResolveCapabilitiesArrayShape(t *testing.T) {
	dir := t.TempDir()
	writeMap(t, dir, `{
  "profileFamily": "starwarsg",
  "capabilities": [
    {"featureId": "toggle_fog_reveal", "available": true, "state": "Verified",
     "reasonCode": "CAPABILITY_PROBE_PASS", "requiredAnchors": ["fog_reveal_toggle"]},
    {"featureId": "toggle_instant_build_patch", "available": false, "state": "Unavailable",
     "reasonCode": "patch_site_not_found", "requiredAnchors": ["instant_build_patch_site"]}
  ]
}`)
	resolver := NewResolver(dir, testutil.NewLogForTesting(t.Name()))

	// Declared available + anchors observed.
	result := resolver.ResolveOperation(testFP(), focProfile(), "toggle_fog_reveal",
		[]string{"fog_reveal_toggle"})
	require.Equal(t, StateAvailable, result.State)
	require.Equal(t, "true", result.SourceHint["declaredAvailable"])
	require.Equal(t, "Verified", result.SourceHint["declaredState"])

	// Declared unavailable + anchors missing: the declared verdict stands.
	result = resolver.ResolveOperation(testFP(), focProfile(), "toggle_instant_build_patch", nil)
	require.Equal(t, StateUnavailable, result.State)
	require.Equal(t, ReasonDeclaredUnavailable, result.ReasonCode)
	require.Equal(t, 0.90, result.Confidence)

	// A declared-available capability whose anchors did not resolve degrades;
	// the declaration is a hint, never trusted over live anchors.
	result = resolver.ResolveOperation(testFP(), focProfile(), "toggle_fog_reveal", nil)
	require.Equal(t, StateDegraded, result.State)
	require.Equal(t, ReasonRequiredAnchorsMissing, result.ReasonCode)
}

func TestReportFeatureNilSafe(t *testing.T) {
	var report *Report
	_, found := report.Feature("freeze_timer")
	require.False(t, found)

	report = &Report{Features: map[string]BackendCapability{
		"freeze_timer": {Available: true, State: ConfidenceVerified},
	}}
	feature, found := report.Feature("freeze_timer")
	require.True(t, found)
	require.Equal(t, ConfidenceVerified, feature.State)
}
