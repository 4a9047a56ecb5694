package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/monitor-provider/pkg/controlplane"
	"github.com/openfroyo/monitor-provider/pkg/stores"
)

func newSimulateCommand() *cobra.Command {
	var (
		listen   string
		database string
		apiKeys  []string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a local control-plane simulator",
		Long: `Serve the /v3/monitors API locally, backed by SQLite.

The simulator requires an Api-Key header on every request. When API keys are
configured only those keys are accepted. A monitor name that is already taken
is rejected with 400 and an unknown id with 404, matching the real control
plane. Monitors that violate an error-severity admission policy are
rejected with 422. Prometheus metrics are served on /metrics.`,
		Example: `  # Serve on the configured address with a file database
  monitor-provider simulate

  # Serve in memory and accept one key
  monitor-provider simulate --db :memory: --api-key dev-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tel, err := loadRuntime()
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)
			if err := tel.StartMetricsServer(); err != nil {
				return err
			}

			simCfg := cfg.Simulator
			if listen != "" {
				simCfg.ListenAddress = listen
			}
			if database != "" {
				simCfg.DatabasePath = database
			}
			if len(apiKeys) > 0 {
				simCfg.APIKeys = apiKeys
			}

			store, err := stores.NewSQLiteStore(stores.Config{Path: simCfg.DatabasePath})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to open simulator database: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			policies, err := loadPolicies(ctx, cfg.Policies, tel)
			if err != nil {
				return err
			}
			if cfg.Policies.Watch && len(cfg.Policies.Paths) > 0 {
				if err := policies.Watch(ctx, cfg.Policies.Paths); err != nil {
					return fmt.Errorf("failed to watch policies: %w", err)
				}
			}

			log.Info().
				Str("listen", simCfg.ListenAddress).
				Str("database", simCfg.DatabasePath).
				Int("api_keys", len(simCfg.APIKeys)).
				Int("policies", len(policies.ListPolicies())).
				Msg("Starting control-plane simulator")

			server := controlplane.NewServer(store, controlplane.Config{
				APIKeys:  simCfg.APIKeys,
				Admitter: policies,
			}, tel)
			return server.ListenAndServe(ctx, simCfg.ListenAddress)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&database, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "accepted API key (repeatable)")

	return cmd
}
