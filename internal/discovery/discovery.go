// Package discovery enumerates OS processes and selects the best host process
// for a target executable family. Classification uses only a process's own
// name, path and command line; a process that merely mentions another
// executable's path in its arguments is never classified as that executable.
package discovery

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	ps "github.com/shirou/gopsutil/v4/process"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/launchctx"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

// HostRole distinguishes the launcher executables from the real game host.
type HostRole string

const (
	HostRoleUnknown  HostRole = "unknown"
	HostRoleLauncher HostRole = "launcher"
	HostRoleGameHost HostRole = "game_host"
)

// ProcessMetadata is an immutable snapshot of one discovered process.
// It is created per discovery scan and discarded after selection.
type ProcessMetadata struct {
	Pid                  int32
	Name                 string
	Path                 string
	CommandLine          string
	CommandLineAvailable bool
	ExeTarget            profile.ExeTarget
	LastKnownMode        profile.Mode
	Metadata             map[string]string
	LaunchContext        *launchctx.Context
	HostRole             HostRole
	MainModuleSize       uint64
	WorkshopMatches      int
	SelectionScore       int
}

// Input returns the process surface the launch-context resolver consumes.
func (m *ProcessMetadata) Input() launchctx.ProcessInput {
	return launchctx.ProcessInput{
		ProcessName: m.Name,
		ProcessPath: m.Path,
		CommandLine: m.CommandLine,
	}
}

// classify maps a process to its executable family. Only the process's own
// name and executable path participate; the command line is consulted solely
// for its first token (the invoked image), never for embedded argument text.
func classify(name, path, commandLine string) profile.ExeTarget {
	candidates := []string{strings.ToLower(name), strings.ToLower(path)}
	if fields := strings.Fields(commandLine); len(fields) > 0 {
		candidates = append(candidates, strings.ToLower(fields[0]))
	}

	for _, candidate := range candidates {
		switch {
		case strings.Contains(candidate, "starwarsg"):
			return profile.ExeTargetStarWarsG
		case strings.Contains(candidate, "swfoc"):
			return profile.ExeTargetSwfoc
		case strings.Contains(candidate, "sweaw"):
			return profile.ExeTargetSweaw
		}
	}

	return profile.ExeTargetUnknown
}

func hostRoleFor(target profile.ExeTarget) HostRole {
	switch target {
	case profile.ExeTargetStarWarsG:
		return HostRoleGameHost
	case profile.ExeTargetSwfoc, profile.ExeTargetSweaw:
		return HostRoleLauncher
	default:
		return HostRoleUnknown
	}
}

// sharedFamily groups the FOC-era executables: swfoc.exe is the Steam launcher
// stub whose real game host is StarWarsG.exe.
func sharedFamily(target profile.ExeTarget) string {
	switch target {
	case profile.ExeTargetSwfoc, profile.ExeTargetStarWarsG:
		return "swfoc"
	case profile.ExeTargetSweaw:
		return "sweaw"
	default:
		return "unknown"
	}
}

type Scanner struct {
	log         logr.Logger
	knownIDs    []string
	moduleSizer func(path string) uint64
}

func NewScanner(log logr.Logger, knownWorkshopIDs []string) *Scanner {
	return &Scanner{
		log:      log.WithName("discovery"),
		knownIDs: knownWorkshopIDs,
		moduleSizer: func(path string) uint64 {
			info, err := os.Stat(path)
			if err != nil {
				return 0
			}
			return uint64(info.Size())
		},
	}
}

// FindSupportedProcesses enumerates OS processes and returns metadata for every
// process that classifies into a supported executable family.
func (s *Scanner) FindSupportedProcesses(ctx context.Context) ([]*ProcessMetadata, error) {
	procs, err := ps.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var out []*ProcessMetadata
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}

		// Exe and Cmdline can be unavailable without elevation; both are optional.
		path, _ := proc.ExeWithContext(ctx)
		cmdline, cmdlineErr := proc.CmdlineWithContext(ctx)

		target := classify(name, path, cmdline)
		if target == profile.ExeTargetUnknown {
			continue
		}

		meta := &ProcessMetadata{
			Pid:                  proc.Pid,
			Name:                 name,
			Path:                 path,
			CommandLine:          cmdline,
			CommandLineAvailable: cmdlineErr == nil && strings.TrimSpace(cmdline) != "",
			ExeTarget:            target,
			LastKnownMode:        profile.ModeUnknown,
			Metadata:             map[string]string{},
			HostRole:             hostRoleFor(target),
			MainModuleSize:       s.moduleSizer(path),
		}
		meta.WorkshopMatches = s.countWorkshopMatches(cmdline)

		s.log.V(1).Info("classified process",
			"pid", meta.Pid, "name", meta.Name, "exeTarget", meta.ExeTarget, "hostRole", meta.HostRole)
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Pid < out[j].Pid })
	return out, nil
}

func (s *Scanner) countWorkshopMatches(commandLine string) int {
	ids := launchctx.ParseSteamModIDs(commandLine)
	matches := 0
	for _, id := range ids {
		for _, known := range s.knownIDs {
			if id == known {
				matches++
				break
			}
		}
	}
	return matches
}

const (
	workshopMatchWeight = 200
	hostRoleWeight      = 400
	moduleSizeDivisor   = 1 << 20 // one score point per MiB of main module
)

func score(m *ProcessMetadata) int {
	total := m.WorkshopMatches * workshopMatchWeight
	total += int(m.MainModuleSize / moduleSizeDivisor)
	if m.HostRole == HostRoleGameHost {
		total += hostRoleWeight
	}
	return total
}

// SelectBestMatch deterministically picks the process to attach to.
// Within a shared family a game host always beats a launcher; otherwise the
// highest weighted score wins, ties broken by lowest pid. The winner's
// metadata carries a processSelectionReason token.
func SelectBestMatch(target profile.ExeTarget, candidates []*ProcessMetadata) *ProcessMetadata {
	family := sharedFamily(target)

	var inFamily []*ProcessMetadata
	for _, candidate := range candidates {
		if sharedFamily(candidate.ExeTarget) == family {
			inFamily = append(inFamily, candidate)
		}
	}
	if len(inFamily) == 0 {
		return nil
	}

	if len(inFamily) == 1 {
		winner := inFamily[0]
		winner.SelectionScore = score(winner)
		winner.Metadata["processSelectionReason"] = "single_candidate"
		return winner
	}

	hosts := 0
	for _, candidate := range inFamily {
		if candidate.HostRole == HostRoleGameHost {
			hosts++
		}
	}

	// A launcher that shares a family with a live game host never wins.
	if hosts > 0 && hosts < len(inFamily) {
		var hostOnly []*ProcessMetadata
		for _, candidate := range inFamily {
			if candidate.HostRole == HostRoleGameHost {
				hostOnly = append(hostOnly, candidate)
			}
		}
		winner := pickByScore(hostOnly)
		if winner.Metadata["processSelectionReason"] == "" {
			winner.Metadata["processSelectionReason"] = "host_role_preferred"
		}
		return winner
	}

	winner := pickByScore(inFamily)
	if winner.Metadata["processSelectionReason"] == "" {
		winner.Metadata["processSelectionReason"] = "score_highest"
	}
	return winner
}

func pickByScore(candidates []*ProcessMetadata) *ProcessMetadata {
	for _, candidate := range candidates {
		candidate.SelectionScore = score(candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SelectionScore != candidates[j].SelectionScore {
			return candidates[i].SelectionScore > candidates[j].SelectionScore
		}
		return candidates[i].Pid < candidates[j].Pid
	})

	winner := candidates[0]
	if len(candidates) > 1 && candidates[1].SelectionScore == winner.SelectionScore {
		winner.Metadata["processSelectionReason"] = "tie_lowest_pid"
	}
	return winner
}
