package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

func TestClassify(t *testing.T) {
	require.Equal(t, profile.ExeTargetStarWarsG,
		classify("StarWarsG.exe", `C:\Games\FoC\StarWarsG.exe`, ""))
	require.Equal(t, profile.ExeTargetSwfoc,
		classify("swfoc.exe", "", ""))
	require.Equal(t, profile.ExeTargetSweaw,
		classify("sweaw.exe", "", ""))
	require.Equal(t, profile.ExeTargetUnknown,
		classify("notepad.exe", `C:\Windows\notepad.exe`, ""))
}

func TestClassifyIgnoresArgumentMentions(t *testing.T) {
	// A process that merely mentions the game binary in its arguments is not
	// the game. Only the invoked image participates.
	target := classify("cmd.exe", `C:\Windows\cmd.exe`,
		`cmd.exe /c copy C:\Games\FoC\StarWarsG.exe C:\backup\`)
	require.Equal(t, profile.ExeTargetUnknown, target)
}

func TestHostRole(t *testing.T) {
	require.Equal(t, HostRoleGameHost, hostRoleFor(profile.ExeTargetStarWarsG))
	require.Equal(t, HostRoleLauncher, hostRoleFor(profile.ExeTargetSwfoc))
	require.Equal(t, HostRoleLauncher, hostRoleFor(profile.ExeTargetSweaw))
}

func candidate(pid int32, target profile.ExeTarget, moduleMiB uint64, workshopMatches int) *ProcessMetadata {
	return &ProcessMetadata{
		Pid:             pid,
		Name:            string(target),
		ExeTarget:       target,
		HostRole:        hostRoleFor(target),
		MainModuleSize:  moduleMiB << 20,
		WorkshopMatches: workshopMatches,
		Metadata:        map[string]string{},
	}
}

func TestSelectBestMatchHostBeatsLauncher(t *testing.T) {
	launcher := candidate(100, profile.ExeTargetSwfoc, 500, 2)
	host := candidate(200, profile.ExeTargetStarWarsG, 30, 0)

	// The launcher outscores the host on module size and workshop matches,
	// but within a shared family a live game host always wins.
	winner := SelectBestMatch(profile.ExeTargetSwfoc, []*ProcessMetadata{launcher, host})
	require.Same(t, host, winner)
	require.Equal(t, "host_role_preferred", winner.Metadata["processSelectionReason"])
}

func TestSelectBestMatchSingleCandidate(t *testing.T) {
	only := candidate(42, profile.ExeTargetStarWarsG, 30, 0)
	winner := SelectBestMatch(profile.ExeTargetSwfoc, []*ProcessMetadata{only})
	require.Same(t, only, winner)
	require.Equal(t, "single_candidate", winner.Metadata["processSelectionReason"])
}

func TestSelectBestMatchScoreThenPidTie(t *testing.T) {
	bigger := candidate(300, profile.ExeTargetStarWarsG, 40, 0)
	smaller := candidate(100, profile.ExeTargetStarWarsG, 30, 0)
	winner := SelectBestMatch(profile.ExeTargetStarWarsG, []*ProcessMetadata{smaller, bigger})
	require.Same(t, bigger, winner)
	require.Equal(t, "score_highest", winner.Metadata["processSelectionReason"])

	// Equal scores fall back to the lowest pid.
	twinA := candidate(900, profile.ExeTargetStarWarsG, 30, 0)
	twinB := candidate(400, profile.ExeTargetStarWarsG, 30, 0)
	winner = SelectBestMatch(profile.ExeTargetStarWarsG, []*ProcessMetadata{twinA, twinB})
	require.Same(t, twinB, winner)
	require.Equal(t, "tie_lowest_pid", winner.Metadata["processSelectionReason"])
}

func TestSelectBestMatchRespectsFamily(t *testing.T) {
	empire := candidate(10, profile.ExeTargetSweaw, 25, 0)
	require.Nil(t, SelectBestMatch(profile.ExeTargetSwfoc, []*ProcessMetadata{empire}))

	// swfoc and starwarsg share a family; sweaw stands alone.
	winner := SelectBestMatch(profile.ExeTargetSweaw, []*ProcessMetadata{empire})
	require.Same(t, empire, winner)
}
