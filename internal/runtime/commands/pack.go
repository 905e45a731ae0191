package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/signature"
)

type packOutput struct {
	Path           string `json:"path"`
	SchemaVersion  string `json:"schemaVersion"`
	FingerprintID  string `json:"fingerprintId"`
	Module         string `json:"module"`
	GeneratedAtUtc string `json:"generatedAtUtc"`
	Anchors        int    `json:"anchors"`
	Capabilities   int    `json:"capabilities"`
}

func NewPackCommand() (*cobra.Command, error) {
	var (
		dir           string
		fingerprintID string
	)

	packCmd := &cobra.Command{
		Use:   "pack",
		Short: "Selects and summarizes the best symbol pack for a build fingerprint.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := config.FromEnv()
				if err != nil {
					return err
				}
				dir = cfg.SymbolPackDir
			}
			path, err := signature.SelectBestGhidraPackPath(dir, fingerprintID)
			if err != nil {
				return err
			}
			pack, err := signature.LoadSymbolPack(path)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(packOutput{
				Path:           path,
				SchemaVersion:  pack.SchemaVersion,
				FingerprintID:  pack.BinaryFingerprint.FingerprintID,
				Module:         pack.BinaryFingerprint.ModuleName,
				GeneratedAtUtc: pack.BuildMetadata.GeneratedAtUtc,
				Anchors:        len(pack.Anchors),
				Capabilities:   len(pack.Capabilities),
			})
		},
	}

	packCmd.Flags().StringVarP(&dir, "dir", "d", "", "Symbol pack directory (defaults to the configured location)")
	packCmd.Flags().StringVarP(&fingerprintID, "fingerprint", "f", "", "Expected build fingerprint id")
	return packCmd, nil
}
