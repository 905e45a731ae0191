package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/discovery"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/launchctx"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

type discoveredProcess struct {
	Pid             int32  `json:"pid"`
	Name            string `json:"name"`
	Path            string `json:"path,omitempty"`
	ExeTarget       string `json:"exeTarget"`
	HostRole        string `json:"hostRole"`
	WorkshopMatches int    `json:"workshopMatches"`
	SelectionScore  int    `json:"selectionScore"`

	ContextKind       string   `json:"contextKind,omitempty"`
	SteamModIDs       []string `json:"steamModIds,omitempty"`
	ModPath           string   `json:"modPath,omitempty"`
	RecommendedID     string   `json:"recommendedProfileId,omitempty"`
	RecommendedReason string   `json:"recommendedReason,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
}

func NewDiscoverCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   "discover",
		Short: "Lists running game processes with their resolved launch context.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			profiles, err := profile.LoadDir(cfg.ProfileRoot)
			if err != nil {
				return fmt.Errorf("loading profiles from %s: %w", cfg.ProfileRoot, err)
			}
			var workshopIDs []string
			for _, prof := range profiles {
				workshopIDs = append(workshopIDs, prof.RequiredWorkshopIDs()...)
			}

			scanner := discovery.NewScanner(rootCmdLogger.Logger, workshopIDs)
			procs, err := scanner.FindSupportedProcesses(cmd.Context())
			if err != nil {
				return err
			}

			opts := launchctx.Options{
				ForcedWorkshopID: cfg.ForcedWorkshopID,
				ForcedProfileID:  cfg.ForcedProfileID,
			}
			out := make([]discoveredProcess, 0, len(procs))
			for _, proc := range procs {
				lc := launchctx.Resolve(proc.Input(), profiles, opts)
				proc.LaunchContext = &lc
				entry := discoveredProcess{
					Pid:             proc.Pid,
					Name:            proc.Name,
					Path:            proc.Path,
					ExeTarget:       string(proc.ExeTarget),
					HostRole:        string(proc.HostRole),
					WorkshopMatches: proc.WorkshopMatches,
					SelectionScore:  proc.SelectionScore,
				}
				if lc := proc.LaunchContext; lc != nil {
					entry.ContextKind = string(lc.Kind)
					entry.SteamModIDs = lc.SteamModIDs
					entry.ModPath = lc.ModPathNormalized
					entry.RecommendedID = lc.Recommendation.ProfileID
					entry.RecommendedReason = lc.Recommendation.ReasonCode
					entry.Confidence = lc.Recommendation.Confidence
				}
				out = append(out, entry)
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(out)
		},
	}, nil
}
