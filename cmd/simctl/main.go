package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thermlab/thermctl/internal/observability"
	"github.com/thermlab/thermctl/internal/plant"
	"github.com/thermlab/thermctl/internal/sim"
)

func main() {
	var (
		duration time.Duration
		loss     float64
		seed     int64
		target   float64
		band     float64
		module   string
		record   string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "simctl",
		Short:         "Run plant and controller in one process over a lossy in-memory link",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			logger := observability.InitLogger("sim", logLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := sim.Run(ctx, sim.Config{
				Duration:     duration,
				LossRate:     loss,
				Seed:         seed,
				Physics:      plant.DefaultPhysics(),
				TickInterval: 50 * time.Millisecond,
				Target:       target,
				Band:         band,
				ModulePath:   module,
				RecordPath:   record,
			}, logger)
			if err != nil {
				return err
			}
			logger.Info().
				Float64("final_temp", res.FinalTemperature).
				Uint64("controller_lost", res.ControllerLost).
				Uint64("plant_lost", res.PlantLost).
				Msg("run complete")
			return nil
		},
	}

	root.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to run the loop")
	root.Flags().Float64Var(&loss, "loss", 0.1, "per-datagram drop probability in [0,1]")
	root.Flags().Int64Var(&seed, "seed", 1, "seed for loss and sensor noise")
	root.Flags().Float64Var(&target, "target", 50, "temperature setpoint")
	root.Flags().Float64Var(&band, "band", 1, "hysteresis dead band")
	root.Flags().StringVar(&module, "module", "", "wasm control program (empty for native fallback)")
	root.Flags().StringVar(&record, "record", "", "sqlite flight log path")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "simctl: %v\n", err)
		os.Exit(1)
	}
}
