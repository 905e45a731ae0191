package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/adapter"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

func NewExecCommand() (*cobra.Command, error) {
	var (
		profileID   string
		actionID    string
		mode        string
		value       int32
		hasValue    bool
		requestedBy string
	)

	execCmd := &cobra.Command{
		Use:   "exec",
		Short: "Executes one action against the attached process and prints the result.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, _, err := newRuntime()
			if err != nil {
				return err
			}
			session, err := runtime.AttachCtx(cmd.Context(), profileID)
			if err != nil {
				return err
			}
			defer runtime.DetachCtx(cmd.Context()) //nolint:errcheck

			payload := map[string]any{}
			hasValue = cmd.Flags().Changed("value")
			if hasValue {
				payload["value"] = value
			}
			result := session.ExecuteCtx(cmd.Context(), adapter.ExecutionRequest{
				ActionID:    actionID,
				Mode:        profile.Mode(mode),
				Payload:     payload,
				RequestedBy: requestedBy,
			})

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			if !result.Succeeded {
				return fmt.Errorf("action %s failed: %s (%s)", actionID, result.Message, result.ReasonCode)
			}
			return nil
		},
	}

	execCmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile id to attach with")
	execCmd.Flags().StringVarP(&actionID, "action", "a", "", "Action id to execute")
	execCmd.Flags().StringVarP(&mode, "mode", "m", string(profile.ModeAuto), "Requested runtime mode (Tactical, Galactic, Auto)")
	execCmd.Flags().Int32Var(&value, "value", 0, "Numeric payload value for write actions")
	execCmd.Flags().StringVar(&requestedBy, "requested-by", "swfoc-runtime-cli", "Requester identity recorded on the bridge request")
	for _, flag := range []string{"profile", "action"} {
		if err := execCmd.MarkFlagRequired(flag); err != nil {
			return nil, err
		}
	}
	return execCmd, nil
}
