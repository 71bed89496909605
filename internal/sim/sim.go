// Package sim wires a plant node and a controller node over an
// in-process lossy link, so the whole closed loop can run in one
// process for bench experiments and end-to-end tests.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thermlab/thermctl/internal/controller"
	"github.com/thermlab/thermctl/internal/link"
	"github.com/thermlab/thermctl/internal/plant"
	"github.com/thermlab/thermctl/internal/recorder"
	"github.com/thermlab/thermctl/internal/state"
)

// Config describes one closed-loop run.
type Config struct {
	Duration time.Duration
	LossRate float64
	Seed     int64

	Physics      plant.Physics
	TickInterval time.Duration

	Target          float64
	Band            float64
	SendInterval    time.Duration
	ControlInterval time.Duration

	// ModulePath selects a sandboxed control program; empty keeps the
	// controller on its native fallback law.
	ModulePath string
	Entry      string
	StackBytes int
	HeapBytes  int

	RecordPath string
}

// Result summarizes one run.
type Result struct {
	FinalTemperature float64

	PlantReceived      uint64
	PlantLost          uint64
	ControllerReceived uint64
	ControllerLost     uint64
}

// Run drives the loop until cfg.Duration elapses or ctx is done.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) (Result, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}

	var rec *recorder.Recorder
	if cfg.RecordPath != "" {
		var err error
		rec, err = recorder.Open(cfg.RecordPath)
		if err != nil {
			return Result{}, err
		}
		defer rec.Close()
	}

	plantEnd, ctrlEnd := link.NewMemPair(cfg.LossRate, cfg.Seed)
	defer plantEnd.Close()
	defer ctrlEnd.Close()

	// Each node owns its bridge; they share nothing but the link.
	plantBridge := state.NewBridge(cfg.Physics.Ambient, 0)
	ctrlBridge := state.NewBridge(cfg.Physics.Ambient, 0)

	p, err := plant.New(plant.Config{
		Name:         "sim-plant",
		TickInterval: cfg.TickInterval,
		Physics:      cfg.Physics,
		Seed:         cfg.Seed,
	}, plantBridge, plantEnd, rec, logger)
	if err != nil {
		return Result{}, err
	}

	c := controller.New(controller.Config{
		Name:            "sim-controller",
		SendInterval:    cfg.SendInterval,
		ControlInterval: cfg.ControlInterval,
		Target:          cfg.Target,
		Band:            cfg.Band,
		ModulePath:      cfg.ModulePath,
		Entry:           cfg.Entry,
		StackBytes:      cfg.StackBytes,
		HeapBytes:       cfg.HeapBytes,
	}, ctrlBridge, ctrlEnd, rec, logger)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := p.Run(runCtx); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.Run(runCtx); err != nil {
			errs <- err
		}
	}()
	wg.Wait()

	select {
	case err := <-errs:
		return Result{}, err
	default:
	}

	var res Result
	res.FinalTemperature = p.Temperature()
	res.PlantReceived, res.PlantLost = p.LossSnapshot()
	res.ControllerReceived, res.ControllerLost = c.LossSnapshot()
	logger.Info().
		Float64("final_temp", res.FinalTemperature).
		Uint64("plant_received", res.PlantReceived).
		Uint64("controller_received", res.ControllerReceived).
		Uint64("controller_lost", res.ControllerLost).
		Msg("simulation finished")
	return res, nil
}
