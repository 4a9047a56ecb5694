package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/monitor-provider/pkg/config"
	"github.com/openfroyo/monitor-provider/pkg/policy"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Global flags
var (
	configPath string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "monitor-provider",
		Short: "Resource provider for Example::Monitoring::Website",
		Long: `monitor-provider reconciles website monitors against the monitoring
control plane.

It implements the Create, Read, Update and Delete lifecycle for the
Example::Monitoring::Website resource type and ships a local control-plane
simulator for development.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(newInvokeCommand())
	rootCmd.AddCommand(newSimulateCommand())
	rootCmd.AddCommand(newSchemaCommand())

	return rootCmd
}

// loadRuntime loads configuration and builds telemetry from it.
func loadRuntime() (*config.Config, *telemetry.Telemetry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	return cfg, tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		tel.Logger.WithError(err).Warn("telemetry shutdown failed")
	}
}

// loadPolicies builds the admission policy engine: the built-ins plus
// whatever the configuration points at.
func loadPolicies(ctx context.Context, cfg config.PolicyConfig, tel *telemetry.Telemetry) (*policy.Engine, error) {
	eng, err := policy.NewEngine(*tel.Logger.NewComponentLogger("policy").Zerolog())
	if err != nil {
		return nil, err
	}
	if len(cfg.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Paths); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	return eng, nil
}
