// Package capability resolves per-operation capability state from
// fingerprint-scoped map files. Resolution is fail-closed: a missing map or a
// profile outside the map's declared family immediately yields Unavailable.
package capability

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// State is the resolved capability state for one operation.
type State string

const (
	StateAvailable   State = "Available"
	StateDegraded    State = "Degraded"
	StateUnavailable State = "Unavailable"
)

// ConfidenceState grades a backend-probed capability.
type ConfidenceState string

const (
	ConfidenceVerified     ConfidenceState = "Verified"
	ConfidenceExperimental ConfidenceState = "Experimental"
	ConfidenceUnknown      ConfidenceState = "Unknown"
)

// Stable reason codes for map-based resolution.
const (
	ReasonFingerprintMapMissing  = "FingerprintMapMissing"
	ReasonProfileFamilyMismatch  = "ProfileFamilyMismatch"
	ReasonOperationNotInMap      = "OperationNotInMap"
	ReasonAnchorsSatisfied       = "AnchorsSatisfied"
	ReasonRequiredAnchorsMissing = "RequiredAnchorsMissing"
	ReasonDeclaredUnavailable    = "DeclaredUnavailable"
)

// Wire-level reason codes shared with the extender bridge.
const (
	ReasonProbePass          = "CAPABILITY_PROBE_PASS"
	ReasonRequiredMissing    = "CAPABILITY_REQUIRED_MISSING"
	ReasonBackendUnavailable = "CAPABILITY_BACKEND_UNAVAILABLE"
)

// ResolutionResult is the outcome of resolving one operation against one fingerprint.
type ResolutionResult struct {
	ProfileID      string
	OperationID    string
	State          State
	ReasonCode     string
	Confidence     float64
	FingerprintID  string
	MatchedAnchors []string
	MissingAnchors []string

	// SourceHint preserves what the map itself declared (state, reason,
	// availability) verbatim for audit. It is never trusted in place of
	// anchor re-validation.
	SourceHint map[string]string
}

// BackendCapability is one feature's state as probed from a live backend.
type BackendCapability struct {
	Available  bool
	State      ConfidenceState
	ReasonCode string
}

// Report is a backend capability probe snapshot, cached per attach session
// within a short freshness window.
type Report struct {
	ProfileID   string
	ProbedAt    time.Time
	Features    map[string]BackendCapability
	ReasonCode  string
	Diagnostics map[string]string
}

// Feature returns the probed capability for a feature id, if present.
func (r *Report) Feature(featureID string) (BackendCapability, bool) {
	if r == nil || r.Features == nil {
		return BackendCapability{}, false
	}
	cap, found := r.Features[featureID]
	return cap, found
}

// Map document shapes. Both are supported without normalizing the source:
// an operations dictionary with anchor lists, and a flat capabilities array
// produced by the analysis pipeline.
type operationDecl struct {
	RequiredAnchors []string `json:"requiredAnchors"`
	OptionalAnchors []string `json:"optionalAnchors"`
}

type capabilityDecl struct {
	FeatureID       string   `json:"featureId"`
	Available       bool     `json:"available"`
	State           string   `json:"state"`
	ReasonCode      string   `json:"reasonCode"`
	RequiredAnchors []string `json:"requiredAnchors"`
}

type MapDocument struct {
	SchemaVersion     string                   `json:"schemaVersion"`
	ProfileFamily     string                   `json:"profileFamily"`
	BinaryFingerprint struct {
		FingerprintID string `json:"fingerprintId"`
	} `json:"binaryFingerprint"`
	Operations   map[string]operationDecl `json:"operations"`
	Capabilities []capabilityDecl         `json:"capabilities"`
}

// LoadMap reads one capability map document.
func LoadMap(path string) (*MapDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability map %s: %w", path, err)
	}

	var doc MapDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capability map %s: %w", path, err)
	}
	return &doc, nil
}

func splitAnchors(required []string, observed map[string]struct{}) (matched, missing []string) {
	for _, anchor := range required {
		if _, found := observed[anchor]; found {
			matched = append(matched, anchor)
		} else {
			missing = append(missing, anchor)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return matched, missing
}
