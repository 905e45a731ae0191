package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/version"
)

func NewVersionCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(version.Version())
		},
	}, nil
}
