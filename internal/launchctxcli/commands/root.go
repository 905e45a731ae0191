// Package commands defines the swfoc-launchctx command, a standalone
// diagnostic that resolves launch context for observed processes and prints
// deterministic JSON. Its output is byte-comparable across runs so downstream
// tooling can diff detection results between builds.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/launchctx"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/logger"
)

var rootCmdLogger *logger.Logger

// processCase is one detection input, either from flags or a batch file.
type processCase struct {
	ProcessName string `json:"processName"`
	ProcessPath string `json:"processPath"`
	CommandLine string `json:"commandLine"`
}

type detectionResult struct {
	ProcessName          string   `json:"processName"`
	Kind                 string   `json:"kind"`
	CommandLineAvailable bool     `json:"commandLineAvailable"`
	SteamModIDs          []string `json:"steamModIds"`
	ModPathNormalized    string   `json:"modPathNormalized,omitempty"`
	DetectedVia          string   `json:"detectedVia"`
	ProfileID            string   `json:"profileId,omitempty"`
	ReasonCode           string   `json:"reasonCode"`
	Confidence           float64  `json:"confidence"`
}

func NewRootCmd() (*cobra.Command, error) {
	var (
		processName      string
		processPath      string
		commandLine      string
		fromProcessJSON  string
		profileRoot      string
		forcedWorkshopID string
		forcedProfileID  string
	)

	rootCmd := &cobra.Command{
		Use:   "swfoc-launchctx",
		Short: "Resolves mod launch context for Forces of Corruption processes.",
		Long: `swfoc-launchctx inspects a process command line for STEAMMOD and MODPATH
markers and recommends the trainer profile for what is actually running.
Cases come from flags, or in batch from a JSON file of process records.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdLogger.Flush()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if profileRoot == "" {
				cfg, err := config.FromEnv()
				if err != nil {
					return err
				}
				profileRoot = cfg.ProfileRoot
			}
			profiles, err := profile.LoadDir(profileRoot)
			if err != nil {
				return fmt.Errorf("loading profiles from %s: %w", profileRoot, err)
			}

			var cases []processCase
			if fromProcessJSON != "" {
				raw, err := os.ReadFile(fromProcessJSON)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &cases); err != nil {
					return fmt.Errorf("parsing %s: %w", fromProcessJSON, err)
				}
			} else {
				cases = []processCase{{
					ProcessName: processName,
					ProcessPath: processPath,
					CommandLine: commandLine,
				}}
			}

			opts := launchctx.Options{
				ForcedWorkshopID: forcedWorkshopID,
				ForcedProfileID:  forcedProfileID,
			}
			results := make([]detectionResult, 0, len(cases))
			for _, c := range cases {
				lc := launchctx.Resolve(launchctx.ProcessInput{
					ProcessName: c.ProcessName,
					ProcessPath: c.ProcessPath,
					CommandLine: c.CommandLine,
				}, profiles, opts)
				results = append(results, detectionResult{
					ProcessName:          c.ProcessName,
					Kind:                 string(lc.Kind),
					CommandLineAvailable: lc.CommandLineAvailable,
					SteamModIDs:          lc.SteamModIDs,
					ModPathNormalized:    lc.ModPathNormalized,
					DetectedVia:          lc.DetectedVia,
					ProfileID:            lc.Recommendation.ProfileID,
					ReasonCode:           lc.Recommendation.ReasonCode,
					Confidence:           lc.Recommendation.Confidence,
				})
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if fromProcessJSON == "" {
				return encoder.Encode(results[0])
			}
			return encoder.Encode(results)
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.Flags().StringVar(&processName, "process-name", "", "Process image name (e.g. StarWarsG.exe)")
	rootCmd.Flags().StringVar(&processPath, "process-path", "", "Full executable path")
	rootCmd.Flags().StringVar(&commandLine, "command-line", "", "Observed process command line")
	rootCmd.Flags().StringVar(&fromProcessJSON, "from-process-json", "", "Batch mode: JSON file with an array of {processName,processPath,commandLine} records")
	rootCmd.Flags().StringVar(&profileRoot, "profile-root", "", "Profile repository root (defaults to the configured location)")
	rootCmd.Flags().StringVar(&forcedWorkshopID, "forced-workshop-id", "", "Workshop id override for controlled evidence runs")
	rootCmd.Flags().StringVar(&forcedProfileID, "forced-profile-id", "", "Profile id override for controlled evidence runs")

	rootCmdLogger = logger.New("swfoc-launchctx")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd, nil
}
