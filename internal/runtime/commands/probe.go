package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

type probedSymbol struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Source     string  `json:"source"`
	Health     string  `json:"health"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
}

type probedCapability struct {
	Available bool   `json:"available"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
}

type probeOutput struct {
	ProfileID     string                      `json:"profileId"`
	Pid           int32                       `json:"pid"`
	ExeTarget     string                      `json:"exeTarget"`
	FingerprintID string                      `json:"fingerprintId"`
	EffectiveMode string                      `json:"effectiveMode"`
	ModeSource    string                      `json:"modeSource"`
	ModeReason    string                      `json:"modeReason"`
	Symbols       []probedSymbol              `json:"symbols"`
	CapabilityRC  string                      `json:"capabilityReasonCode"`
	Capabilities  map[string]probedCapability `json:"capabilities"`
}

func NewProbeCommand() (*cobra.Command, error) {
	var profileID string

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Attaches to the best matching process and reports symbols, mode and capabilities.",
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

			mode := session.ResolveMode(cmd.Context(), profile.ModeAuto)
			report := session.CapabilitiesCtx(cmd.Context())

			out := probeOutput{
				ProfileID:     session.Profile().ID,
				Pid:           session.Process().Pid,
				ExeTarget:     string(session.Process().ExeTarget),
				FingerprintID: session.Fingerprint().FingerprintID,
				EffectiveMode: string(mode.Effective),
				ModeSource:    mode.Source,
				ModeReason:    mode.ReasonCode,
				CapabilityRC:  report.ReasonCode,
				Capabilities:  map[string]probedCapability{},
			}
			symbols := session.Symbols()
			for _, name := range symbols.Names() {
				sym := symbols[name]
				out.Symbols = append(out.Symbols, probedSymbol{
					Name:       sym.Name,
					Address:    fmt.Sprintf("0x%X", sym.Address),
					Source:     string(sym.Source),
					Health:     string(sym.Health),
					Reason:     sym.HealthReason,
					Confidence: sym.Confidence,
				})
			}
			for id, feature := range report.Features {
				out.Capabilities[id] = probedCapability{
					Available: feature.Available,
					State:     string(feature.State),
					Reason:    feature.ReasonCode,
				}
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(out)
		},
	}

	probeCmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile id to attach with")
	if err := probeCmd.MarkFlagRequired("profile"); err != nil {
		return nil, err
	}
	return probeCmd, nil
}
