// Package config holds the explicit runtime configuration for the execution core.
// Every environment-driven safety gate and override is parsed exactly once here and
// injected into the router and the runtime adapter at construction; nothing else in
// the core reads the environment directly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type RuntimeConfig struct {
	// Named-pipe endpoints for the two out-of-process backends.
	ExtenderPipeName string `env:"SWFOC_EXTENDER_PIPE_NAME" envDefault:"SwfocExtenderBridge"`
	HelperPipeName   string `env:"SWFOC_HELPER_PIPE_NAME" envDefault:"SwfocHelperBridge"`

	// PipeTimeout bounds a single request/response round trip.
	PipeTimeout time.Duration `env:"SWFOC_RUNTIME_PIPE_TIMEOUT" envDefault:"5s"`

	// ExperimentalFeatures gates features whose capability state is Experimental.
	ExperimentalFeatures bool `env:"SWFOC_RUNTIME_EXPERIMENTAL" envDefault:"false"`

	// ExpertMutationOverride lifts the mutation block for non-promoted actions.
	// It never lifts promoted-action capability gates.
	ExpertMutationOverride bool `env:"SWFOC_RUNTIME_EXPERT_MUTATION_OVERRIDE" envDefault:"false"`

	// PanicDisable blocks every mutating action regardless of capability state.
	PanicDisable bool `env:"SWFOC_RUNTIME_PANIC_DISABLE" envDefault:"false"`

	// Forced launch-context overrides for controlled evidence runs. They only take
	// effect when the observed command line carries no authentic mod markers.
	ForcedWorkshopID string `env:"SWFOC_RUNTIME_FORCE_WORKSHOP_ID"`
	ForcedProfileID  string `env:"SWFOC_RUNTIME_FORCE_PROFILE_ID"`

	// On-disk locations for profile documents, symbol packs and capability maps.
	ProfileRoot   string `env:"SWFOC_RUNTIME_PROFILE_ROOT" envDefault:"profiles/default"`
	SymbolPackDir string `env:"SWFOC_RUNTIME_SYMBOL_PACK_DIR" envDefault:"artifacts/ghidra"`
	CapabilityDir string `env:"SWFOC_RUNTIME_CAPABILITY_DIR" envDefault:"artifacts/capability"`
}

// FromEnv parses the runtime configuration from environment variables.
func FromEnv() (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := env.Parse(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("parse runtime config from env: %w", err)
	}
	return cfg, nil
}
