// Package profile models the flattened trainer-profile document this core consumes.
// Profile inheritance is resolved by the external profile repository; the documents
// loaded here are already flat and are read-only after loading.
package profile

// ExeTarget classifies the executable family a profile targets.
type ExeTarget string

const (
	ExeTargetUnknown   ExeTarget = "Unknown"
	ExeTargetSweaw     ExeTarget = "Sweaw"
	ExeTargetSwfoc     ExeTarget = "Swfoc"
	ExeTargetStarWarsG ExeTarget = "StarWarsG"
)

// HasHybridBackend reports whether the executable family ever shipped the
// extender model. The base game executable never did, so the legacy
// direct-memory route remains valid for it.
func (t ExeTarget) HasHybridBackend() bool {
	return t == ExeTargetSwfoc || t == ExeTargetStarWarsG
}

// Family is the lowercase token used by capability maps and launch context.
func (t ExeTarget) Family() string {
	switch t {
	case ExeTargetSweaw:
		return "sweaw"
	case ExeTargetSwfoc:
		return "swfoc"
	case ExeTargetStarWarsG:
		return "starwarsg"
	default:
		return "unknown"
	}
}

// Mode is a game runtime mode, plus the Auto/Any pseudo-modes used by
// requests and action specs respectively.
type Mode string

const (
	ModeUnknown  Mode = "Unknown"
	ModeTactical Mode = "Tactical"
	ModeGalactic Mode = "Galactic"

	// ModeAny on an action spec means the action runs in every mode.
	ModeAny Mode = "Any"

	// ModeAuto on a request means "defer to the next mode-resolution priority".
	ModeAuto Mode = "Auto"
)

// ExecutionKind is how an action takes effect.
type ExecutionKind string

const (
	ExecutionKindMemory    ExecutionKind = "Memory"
	ExecutionKindCodePatch ExecutionKind = "CodePatch"
	ExecutionKindHelper    ExecutionKind = "Helper"
	ExecutionKindSave      ExecutionKind = "Save"
	ExecutionKindSdk       ExecutionKind = "Sdk"
	ExecutionKindFreeze    ExecutionKind = "Freeze"
)

// AddressMode selects how a signature hit is turned into a final address.
type AddressMode string

const (
	// AddressModePatternOffset: final address is pattern hit plus offset.
	AddressModePatternOffset AddressMode = "PatternOffset"
	// AddressModeAbsolutePointer: read an absolute 32-bit pointer at hit+offset.
	AddressModeAbsolutePointer AddressMode = "AbsolutePointer"
	// AddressModeRelativeDisplacement: decode a 32-bit relative displacement at hit+offset.
	AddressModeRelativeDisplacement AddressMode = "RelativeDisplacement"
)

type ValueType string

const (
	ValueTypeInt32   ValueType = "Int32"
	ValueTypeFloat   ValueType = "Float"
	ValueTypeByte    ValueType = "Byte"
	ValueTypePointer ValueType = "Pointer"
)

// BackendPreference is a profile's declared routing preference.
type BackendPreference string

const (
	BackendPreferenceAutomatic BackendPreference = "Automatic"
	BackendPreferenceExtender  BackendPreference = "Extender"
	BackendPreferenceHelper    BackendPreference = "Helper"
	BackendPreferenceMemory    BackendPreference = "Memory"
)

// SignatureSpec declares one named byte pattern.
type SignatureSpec struct {
	Name        string      `json:"name"`
	Pattern     string      `json:"pattern"`
	Offset      int         `json:"offset"`
	ValueType   ValueType   `json:"valueType"`
	AddressMode AddressMode `json:"addressMode"`
}

// ActionSpec declares one runtime action.
type ActionSpec struct {
	ID             string        `json:"id"`
	Category       string        `json:"category"`
	Mode           Mode          `json:"mode"`
	ExecutionKind  ExecutionKind `json:"executionKind"`
	PayloadSchema  string        `json:"payloadSchema"`
	VerifyReadback bool          `json:"verifyReadback"`
	CooldownMs     int           `json:"cooldownMs"`
	// StrictMode makes the action unavailable under Unknown effective mode.
	StrictMode bool `json:"strictMode"`
	// TargetSymbol names the symbol a memory-kind action reads or writes.
	TargetSymbol string `json:"targetSymbol"`
}

const categoryInspection = "inspection"

// Mutates reports whether the action changes game state. Inspection actions
// only read and are never gated by mutation safety rules.
func (a ActionSpec) Mutates() bool {
	return a.Category != categoryInspection
}
