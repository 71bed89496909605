package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thermlab/thermctl/internal/config"
	"github.com/thermlab/thermctl/internal/link"
	"github.com/thermlab/thermctl/internal/observability"
	"github.com/thermlab/thermctl/internal/plant"
	"github.com/thermlab/thermctl/internal/recorder"
	"github.com/thermlab/thermctl/internal/state"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "plantctl",
		Short:         "Run the simulated thermal plant node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "cmd/plantctl/config.toml", "path to plant config")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "plantctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadPlantConfig(configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger("plant", cfg.LogLevel)
	logger.Info().Str("path", configPath).Msg("loaded plant config")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lk, err := link.NewUDP(cfg.ListenAddr, cfg.PeerAddr)
	if err != nil {
		return err
	}
	defer lk.Close()

	var rec *recorder.Recorder
	if cfg.RecordPath != "" {
		rec, err = recorder.Open(cfg.RecordPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		logger.Info().Str("path", cfg.RecordPath).Str("run_id", rec.RunID()).Msg("flight recording enabled")
	}
	if cfg.MetricsAddr != "" {
		observability.ServeMetrics(cfg.MetricsAddr, logger)
	}

	bridge := state.NewBridge(cfg.Physics.Ambient, cfg.GuardWait())
	node, err := plant.New(plant.Config{
		Name:         cfg.Name,
		TickInterval: cfg.TickInterval(),
		Physics:      cfg.Physics,
		Seed:         cfg.Seed,
	}, bridge, lk, rec, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("peer", cfg.PeerAddr).
		Msg("plant node up")
	return node.Run(ctx)
}
