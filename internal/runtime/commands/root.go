// Package commands defines the swfoc-runtime command tree.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/adapter"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/ipc"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/logger"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/resiliency"
)

var rootCmdLogger *logger.Logger

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "swfoc-runtime",
		Short: "Runtime execution and safety core for Empire at War: Forces of Corruption",
		Long: `swfoc-runtime attaches to a running Forces of Corruption process, resolves
its trainer symbols from byte signatures, probes backend capabilities and
executes actions through the fail-closed routing layer.`,
		SilenceUsage: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			// zap's Sync can block on some stderr targets; don't hang exit on it.
			resiliency.RunWithTimeout(rootCmdLogger.Flush, time.Second)
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	builders := []struct {
		name  string
		build func() (*cobra.Command, error)
	}{
		{"discover", NewDiscoverCommand},
		{"probe", NewProbeCommand},
		{"exec", NewExecCommand},
		{"pack", NewPackCommand},
		{"version", NewVersionCommand},
	}
	for _, b := range builders {
		cmd, err := b.build()
		if err != nil {
			return nil, fmt.Errorf("could not set up '%s' command: %w", b.name, err)
		}
		rootCmd.AddCommand(cmd)
	}

	rootCmdLogger = logger.New("swfoc-runtime")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd, nil
}

// newRuntime assembles the adapter stack from environment configuration.
func newRuntime() (*adapter.RuntimeAdapter, config.RuntimeConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, config.RuntimeConfig{}, err
	}
	profiles, err := profile.LoadDir(cfg.ProfileRoot)
	if err != nil {
		return nil, config.RuntimeConfig{}, fmt.Errorf("loading profiles from %s: %w", cfg.ProfileRoot, err)
	}
	log := rootCmdLogger.Logger
	extender := ipc.NewExtenderBackend(
		ipc.NewPipeClient(cfg.ExtenderPipeName, cfg.PipeTimeout, log), log)
	helper := ipc.NewHelperBridgeBackend(
		ipc.NewPipeClient(cfg.HelperPipeName, cfg.PipeTimeout, log), log)
	return adapter.NewRuntimeAdapter(cfg, profiles, extender, helper, log), cfg, nil
}
