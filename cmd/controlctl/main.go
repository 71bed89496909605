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
	"github.com/thermlab/thermctl/internal/controller"
	"github.com/thermlab/thermctl/internal/link"
	"github.com/thermlab/thermctl/internal/observability"
	"github.com/thermlab/thermctl/internal/recorder"
	"github.com/thermlab/thermctl/internal/state"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "controlctl",
		Short:         "Run the controller node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "cmd/controlctl/config.toml", "path to controller config")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "controlctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadControllerConfig(configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger("controller", cfg.LogLevel)
	logger.Info().Str("path", configPath).Msg("loaded controller config")

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

	bridge := state.NewBridge(0, cfg.GuardWait())
	node := controller.New(controller.Config{
		Name:            cfg.Name,
		SendInterval:    cfg.SendInterval(),
		ControlInterval: cfg.ControlInterval(),
		Target:          cfg.Control.Target,
		Band:            cfg.Control.Band,
		ModulePath:      cfg.Sandbox.ModulePath,
		Entry:           cfg.Sandbox.Entry,
		StackBytes:      cfg.Sandbox.StackBytes,
		HeapBytes:       cfg.Sandbox.HeapBytes,
		Watch:           cfg.Sandbox.Watch,
		RetryInterval:   cfg.RetryInterval(),
	}, bridge, lk, rec, logger)

	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("peer", cfg.PeerAddr).
		Str("module", cfg.Sandbox.ModulePath).
		Msg("controller node up")
	return node.Run(ctx)
}
