// Package launchctx infers how the game process was launched and which trainer
// profile fits that launch. Resolution is a pure function of the observed process
// fields and the loaded profile list; the standalone swfoc-launchctx tool produces
// byte-identical profile id / reason code / launch kind output for the same input.
package launchctx

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/slices"
)

// Kind classifies the launch.
type Kind string

const (
	KindUnknown      Kind = "Unknown"
	KindBaseGame     Kind = "BaseGame"
	KindWorkshop     Kind = "Workshop"
	KindLocalModPath Kind = "LocalModPath"
	KindMixed        Kind = "Mixed"
)

// ProcessInput is the observable surface of one process.
type ProcessInput struct {
	ProcessName string
	ProcessPath string
	CommandLine string
}

// Recommendation is the profile recommendation with a stable reason code.
// An empty ProfileID means no recommendation.
type Recommendation struct {
	ProfileID  string
	ReasonCode string
	Confidence float64
}

// Context is the resolved launch context. Computed fresh per call, never mutated.
type Context struct {
	Kind                 Kind
	CommandLineAvailable bool
	SteamModIDs          []string
	ModPathRaw           string
	ModPathNormalized    string
	DetectedVia          string
	Recommendation       Recommendation
}

// Options carries the forced-context overrides for controlled evidence runs.
// Either override only activates when the command line has no authentic mod
// markers, so it can never mask a real detection.
type Options struct {
	ForcedWorkshopID string
	ForcedProfileID  string
}

var (
	steamModRe = regexp.MustCompile(`(?i)steammod\s*=\s*(\d+)`)
	modPathRe  = regexp.MustCompile(`(?i)modpath\s*=\s*(?:"([^"]+)"|(\S+))`)
)

// NormalizeToken lowercases, strips quotes and collapses path separators.
func NormalizeToken(value string) string {
	if value == "" {
		return ""
	}
	out := strings.Trim(strings.TrimSpace(value), `"`)
	out = strings.ReplaceAll(out, `\`, "/")
	for strings.Contains(out, "//") {
		out = strings.ReplaceAll(out, "//", "/")
	}
	return strings.ToLower(out)
}

// ParseSteamModIDs extracts every STEAMMOD=<id> token, deduplicated and sorted.
func ParseSteamModIDs(commandLine string) []string {
	if commandLine == "" {
		return nil
	}

	seen := map[string]struct{}{}
	for _, match := range steamModRe.FindAllStringSubmatch(commandLine, -1) {
		seen[match[1]] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseModPath extracts the MODPATH=<path> token, quoted or unquoted.
func ParseModPath(commandLine string) string {
	if commandLine == "" {
		return ""
	}

	match := modPathRe.FindStringSubmatch(commandLine)
	if match == nil {
		return ""
	}
	value := match[1]
	if value == "" {
		value = match[2]
	}
	return strings.Trim(strings.TrimSpace(value), `"`)
}

// DetectExeHint classifies the executable family from the process's own fields.
func DetectExeHint(input ProcessInput) string {
	name := strings.ToLower(input.ProcessName)
	path := strings.ToLower(input.ProcessPath)
	cmd := strings.ToLower(input.CommandLine)

	switch {
	case strings.Contains(name, "sweaw") || strings.Contains(path, "sweaw.exe") || strings.Contains(cmd, "sweaw.exe"):
		return "sweaw"
	case strings.Contains(name, "swfoc") || strings.Contains(path, "swfoc.exe") || strings.Contains(cmd, "swfoc.exe"):
		return "swfoc"
	case strings.Contains(name, "starwarsg") || strings.Contains(path, "starwarsg.exe") || strings.Contains(cmd, "starwarsg.exe"):
		return "starwarsg"
	default:
		return "unknown"
	}
}

func inferKind(steamIDs []string, modPathNorm, exeHint string) Kind {
	switch {
	case len(steamIDs) > 0 && modPathNorm != "":
		return KindMixed
	case len(steamIDs) > 0:
		return KindWorkshop
	case modPathNorm != "":
		return KindLocalModPath
	case exeHint == "sweaw" || exeHint == "swfoc" || exeHint == "starwarsg":
		return KindBaseGame
	default:
		return KindUnknown
	}
}

func gatherHints(p *profile.Profile) []string {
	seen := map[string]struct{}{
		strings.ToLower(p.ID): {},
	}
	if p.SteamWorkshopID != "" {
		seen[p.SteamWorkshopID] = struct{}{}
	}
	for _, hint := range append(p.LocalPathHints(), p.ProfileAliases()...) {
		if norm := NormalizeToken(hint); norm != "" {
			seen[norm] = struct{}{}
		}
	}

	hints := make([]string, 0, len(seen))
	for hint := range seen {
		hints = append(hints, hint)
	}
	sort.Strings(hints)
	return hints
}

func reasonCodeForProfile(profileID, source string) string {
	pid := strings.ToLower(profileID)
	switch source {
	case "steam":
		switch {
		case strings.Contains(pid, "roe_"):
			return "steammod_exact_roe"
		case strings.Contains(pid, "aotr_"):
			return "steammod_exact_aotr"
		default:
			return "steammod_exact_profile"
		}
	case "modpath":
		switch {
		case strings.Contains(pid, "roe_"):
			return "modpath_hint_roe"
		case strings.Contains(pid, "aotr_"):
			return "modpath_hint_aotr"
		default:
			return "modpath_hint_profile"
		}
	default:
		return "unknown"
	}
}

// familyRank orders matching profiles: roe_ first, then aotr_, then lexicographic id.
func familyRank(profileID string) (int, string) {
	pid := strings.ToLower(profileID)
	switch {
	case strings.Contains(pid, "roe_"):
		return 0, pid
	case strings.Contains(pid, "aotr_"):
		return 1, pid
	default:
		return 2, pid
	}
}

func recommend(profiles []*profile.Profile, steamIDs []string, modPathNorm, exeHint string) Recommendation {
	byID := map[string]*profile.Profile{}
	for _, p := range profiles {
		byID[p.ID] = p
	}

	// 1: exact workshop-id match.
	var steamMatches []*profile.Profile
	for _, p := range profiles {
		if p.SteamWorkshopID != "" && slices.Contains(steamIDs, p.SteamWorkshopID) {
			steamMatches = append(steamMatches, p)
		}
	}
	if len(steamMatches) > 0 {
		sort.Slice(steamMatches, func(i, j int) bool {
			ri, ki := familyRank(steamMatches[i].ID)
			rj, kj := familyRank(steamMatches[j].ID)
			if ri != rj {
				return ri < rj
			}
			return ki < kj
		})
		best := steamMatches[0]
		return Recommendation{
			ProfileID:  best.ID,
			ReasonCode: reasonCodeForProfile(best.ID, "steam"),
			Confidence: 1.0,
		}
	}

	// 2: mod-path hint match against declared path hints, longest hint wins.
	if modPathNorm != "" {
		type hintMatch struct {
			score   int
			profile *profile.Profile
		}
		var matches []hintMatch
		for _, p := range profiles {
			score := 0
			for _, hint := range gatherHints(p) {
				if hint != "" && strings.Contains(modPathNorm, hint) && len(hint) > score {
					score = len(hint)
				}
			}
			if score > 0 {
				matches = append(matches, hintMatch{score: score, profile: p})
			}
		}
		if len(matches) > 0 {
			sort.Slice(matches, func(i, j int) bool {
				if matches[i].score != matches[j].score {
					return matches[i].score > matches[j].score
				}
				ri, ki := familyRank(matches[i].profile.ID)
				rj, kj := familyRank(matches[j].profile.ID)
				if ri != rj {
					return ri < rj
				}
				return ki < kj
			})
			best := matches[0].profile
			return Recommendation{
				ProfileID:  best.ID,
				ReasonCode: reasonCodeForProfile(best.ID, "modpath"),
				Confidence: 0.90,
			}
		}
	}

	// 3: base executable with no mod markers.
	if exeHint == "sweaw" {
		if _, found := byID["base_sweaw"]; found {
			return Recommendation{ProfileID: "base_sweaw", ReasonCode: "exe_target_sweaw", Confidence: 0.80}
		}
	}

	// 4: ambiguous host, safe default below 0.70.
	if exeHint == "swfoc" || exeHint == "starwarsg" {
		if _, found := byID["base_swfoc"]; found {
			confidence := 0.65
			if exeHint == "starwarsg" {
				confidence = 0.55
			}
			return Recommendation{ProfileID: "base_swfoc", ReasonCode: "foc_safe_starwarsg_fallback", Confidence: confidence}
		}
	}

	// 5: no signal at all.
	return Recommendation{ProfileID: "", ReasonCode: "unknown", Confidence: 0.20}
}

// Resolve computes the launch context and profile recommendation for one process.
func Resolve(input ProcessInput, profiles []*profile.Profile, opts Options) Context {
	steamIDs := ParseSteamModIDs(input.CommandLine)
	modPathRaw := ParseModPath(input.CommandLine)
	modPathNorm := NormalizeToken(modPathRaw)
	exeHint := DetectExeHint(input)

	detectedVia := "command_line"
	if strings.TrimSpace(input.CommandLine) == "" {
		detectedVia = "command_line_unavailable"
	}

	// An authentic marker always beats a forced override.
	hasAuthenticMarkers := len(steamIDs) > 0 || modPathNorm != ""
	if !hasAuthenticMarkers && opts.ForcedWorkshopID != "" {
		steamIDs = []string{opts.ForcedWorkshopID}
		detectedVia = "forced_override"
	}

	kind := inferKind(steamIDs, modPathNorm, exeHint)

	var rec Recommendation
	if opts.ForcedProfileID != "" && !hasAuthenticMarkers {
		rec = Recommendation{ProfileID: opts.ForcedProfileID, ReasonCode: "forced_profile_override", Confidence: 0.99}
	} else {
		rec = recommend(profiles, steamIDs, modPathNorm, exeHint)
	}

	return Context{
		Kind:                 kind,
		CommandLineAvailable: strings.TrimSpace(input.CommandLine) != "",
		SteamModIDs:          steamIDs,
		ModPathRaw:           modPathRaw,
		ModPathNormalized:    modPathNorm,
		DetectedVia:          detectedVia,
		Recommendation:       rec,
	}
}
