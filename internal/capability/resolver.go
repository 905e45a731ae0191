package capability

import (
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/fingerprint"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/signature"
)

const mapSuffix = ".capabilitymap.json"

type Resolver struct {
	mapDir string
	log    logr.Logger
}

func NewResolver(mapDir string, log logr.Logger) *Resolver {
	return &Resolver{
		mapDir: mapDir,
		log:    log.WithName("capability"),
	}
}

// locateMapPath finds the map file for a fingerprint: exact fingerprint
// filename first, then the artifact-index/newest-pack selection shared with
// symbol packs (pack files carry a capabilities array).
func (r *Resolver) locateMapPath(fingerprintID string) string {
	exact := filepath.Join(r.mapDir, fingerprintID+mapSuffix)
	if _, err := os.Stat(exact); err == nil {
		return exact
	}

	packPath, err := signature.SelectBestGhidraPackPath(r.mapDir, fingerprintID)
	if err != nil {
		return ""
	}
	return packPath
}

func failClosed(prof *profile.Profile, operationID, fingerprintID, reason string) ResolutionResult {
	return ResolutionResult{
		ProfileID:     prof.ID,
		OperationID:   operationID,
		State:         StateUnavailable,
		ReasonCode:    reason,
		Confidence:    0,
		FingerprintID: fingerprintID,
	}
}

// ResolveOperation resolves one operation's capability for one binary build.
// observedAnchors are the anchor ids the live symbol resolution actually
// produced; declared availability in the map is recorded as a hint but anchors
// are always re-validated.
func (r *Resolver) ResolveOperation(
	fp fingerprint.Fingerprint,
	prof *profile.Profile,
	operationID string,
	observedAnchors []string,
) ResolutionResult {
	mapPath := r.locateMapPath(fp.FingerprintID)
	if mapPath == "" {
		return failClosed(prof, operationID, fp.FingerprintID, ReasonFingerprintMapMissing)
	}

	doc, err := LoadMap(mapPath)
	if err != nil {
		r.log.V(1).Info("capability map unreadable", "path", mapPath, "error", err.Error())
		return failClosed(prof, operationID, fp.FingerprintID, ReasonFingerprintMapMissing)
	}

	if doc.ProfileFamily != "" && doc.ProfileFamily != prof.ExeTarget.Family() {
		return failClosed(prof, operationID, fp.FingerprintID, ReasonProfileFamilyMismatch)
	}

	observed := map[string]struct{}{}
	for _, anchor := range observedAnchors {
		observed[anchor] = struct{}{}
	}

	// The operations dictionary shape takes precedence when it declares the operation.
	if decl, found := doc.Operations[operationID]; found {
		return r.resolveFromAnchors(prof, operationID, fp.FingerprintID, decl.RequiredAnchors, observed, nil)
	}

	for _, decl := range doc.Capabilities {
		if decl.FeatureID != operationID {
			continue
		}

		hint := map[string]string{
			"declaredState":      decl.State,
			"declaredReasonCode": decl.ReasonCode,
		}
		if decl.Available {
			hint["declaredAvailable"] = "true"
		} else {
			hint["declaredAvailable"] = "false"
		}

		var declaredUnavailable *bool
		unavailable := !decl.Available
		declaredUnavailable = &unavailable

		result := r.resolveFromAnchors(prof, operationID, fp.FingerprintID, decl.RequiredAnchors, observed, declaredUnavailable)
		result.SourceHint = hint
		return result
	}

	return failClosed(prof, operationID, fp.FingerprintID, ReasonOperationNotInMap)
}

func (r *Resolver) resolveFromAnchors(
	prof *profile.Profile,
	operationID string,
	fingerprintID string,
	required []string,
	observed map[string]struct{},
	declaredUnavailable *bool,
) ResolutionResult {
	matched, missing := splitAnchors(required, observed)

	result := ResolutionResult{
		ProfileID:      prof.ID,
		OperationID:    operationID,
		FingerprintID:  fingerprintID,
		MatchedAnchors: matched,
		MissingAnchors: missing,
	}

	switch {
	case len(missing) == 0:
		result.State = StateAvailable
		result.ReasonCode = ReasonAnchorsSatisfied
		result.Confidence = 0.95
	case declaredUnavailable != nil && *declaredUnavailable:
		// The source itself declared the capability unavailable; anchors agree
		// something is missing, so the declared verdict stands.
		result.State = StateUnavailable
		result.ReasonCode = ReasonDeclaredUnavailable
		result.Confidence = 0.90
	default:
		result.State = StateDegraded
		result.ReasonCode = ReasonRequiredAnchorsMissing
		result.Confidence = 0.40
	}

	return result
}

// ObservedAnchorsFromSymbols is a convenience bridge from a resolved symbol map.
func ObservedAnchorsFromSymbols(symbols signature.SymbolMap) []string {
	return symbols.ResolvedAnchors()
}
