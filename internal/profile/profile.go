package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Profile is one flattened trainer profile. Loaded once per attach,
// read-only thereafter.
type Profile struct {
	ID              string                `json:"id"`
	DisplayName     string                `json:"displayName"`
	Parent          string                `json:"parent,omitempty"`
	ExeTarget       ExeTarget             `json:"exeTarget"`
	SteamWorkshopID string                `json:"steamWorkshopId,omitempty"`
	Signatures      []SignatureSpec       `json:"signatures"`
	FallbackOffsets map[string]uint64     `json:"fallbackOffsets"`
	Actions         map[string]ActionSpec `json:"actions"`
	FeatureFlags    map[string]bool       `json:"featureFlags"`

	// Metadata carries free-form string values; list-valued entries are
	// comma-separated, matching the external profile repository's convention.
	Metadata map[string]string `json:"metadata"`

	BackendPreference    BackendPreference `json:"backendPreference"`
	RequiredCapabilities []string          `json:"requiredCapabilities"`
	HostPreference       string            `json:"hostPreference"`
}

// ValidationRule is a readback sanity rule for one symbol.
type ValidationRule struct {
	Symbol string
	Min    float64
	Max    float64
}

func (p *Profile) metadataCSV(key string) []string {
	raw, found := p.Metadata[key]
	if !found || strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RequiredWorkshopIDs is the declared workshop id plus any metadata-listed ids,
// deduplicated and sorted.
func (p *Profile) RequiredWorkshopIDs() []string {
	seen := map[string]struct{}{}
	if p.SteamWorkshopID != "" {
		seen[p.SteamWorkshopID] = struct{}{}
	}
	for _, key := range []string{"requiredWorkshopIds", "requiredWorkshopId"} {
		for _, id := range p.metadataCSV(key) {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *Profile) LocalPathHints() []string {
	return p.metadataCSV("localPathHints")
}

func (p *Profile) ProfileAliases() []string {
	return p.metadataCSV("profileAliases")
}

func (p *Profile) DependencySensitiveActions() []string {
	return p.metadataCSV("dependencySensitiveActions")
}

func (p *Profile) CriticalSymbols() []string {
	return p.metadataCSV("criticalSymbols")
}

func (p *Profile) RequiredMarkerFile() string {
	return p.Metadata["requiredMarkerFile"]
}

// SymbolValidationRules parses entries of the form "symbol:min:max" from the
// symbolValidationRules metadata value.
func (p *Profile) SymbolValidationRules() map[string]ValidationRule {
	rules := map[string]ValidationRule{}
	for _, entry := range p.metadataCSV("symbolValidationRules") {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			continue
		}
		minVal, minErr := strconv.ParseFloat(parts[1], 64)
		maxVal, maxErr := strconv.ParseFloat(parts[2], 64)
		if minErr != nil || maxErr != nil {
			continue
		}
		symbol := strings.TrimSpace(parts[0])
		rules[symbol] = ValidationRule{Symbol: symbol, Min: minVal, Max: maxVal}
	}
	return rules
}

// Load reads a single flattened profile document.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("profile %s has no id", path)
	}

	if p.ExeTarget == "" {
		p.ExeTarget = ExeTargetUnknown
	}
	if p.BackendPreference == "" {
		p.BackendPreference = BackendPreferenceAutomatic
	}

	return &p, nil
}

// LoadDir loads every *.json profile under root/profiles, sorted by id.
// Documents without an id are skipped, matching the external tooling.
func LoadDir(root string) ([]*Profile, error) {
	profilesDir := filepath.Join(root, "profiles")
	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("missing profiles directory %s: %w", profilesDir, err)
	}

	var out []*Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p, err := Load(filepath.Join(profilesDir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
