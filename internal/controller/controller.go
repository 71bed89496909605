package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/thermlab/thermctl/internal/link"
	"github.com/thermlab/thermctl/internal/observability"
	"github.com/thermlab/thermctl/internal/protocol"
	"github.com/thermlab/thermctl/internal/recorder"
	"github.com/thermlab/thermctl/internal/sandbox"
	"github.com/thermlab/thermctl/internal/state"
)

// Config drives one controller node. An empty ModulePath selects the
// native hysteresis fallback instead of the sandbox.
type Config struct {
	Name            string
	SendInterval    time.Duration
	ControlInterval time.Duration

	Target float64
	Band   float64

	ModulePath    string
	Entry         string
	StackBytes    int
	HeapBytes     int
	Watch         bool
	RetryInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "controller"
	}
	if c.SendInterval <= 0 {
		c.SendInterval = 100 * time.Millisecond
	}
	if c.ControlInterval <= 0 {
		c.ControlInterval = 100 * time.Millisecond
	}
	if c.Entry == "" {
		c.Entry = "main"
	}
	if c.StackBytes <= 0 {
		c.StackBytes = 16 * 1024
	}
	if c.HeapBytes <= 0 {
		c.HeapBytes = 64 * 1024
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
}

// Controller is the node computing and sending the actuator command.
// The receive handler and the control loop meet only at the state
// bridge.
type Controller struct {
	cfg    Config
	bridge *state.Bridge
	link   link.Link
	engine *sandbox.Engine
	loss   *observability.LossMonitor
	rec    *recorder.Recorder
	logger zerolog.Logger

	seq    atomic.Uint32
	reload chan struct{}
}

// New builds a controller node. rec may be nil to disable recording.
func New(cfg Config, bridge *state.Bridge, lk link.Link, rec *recorder.Recorder, logger zerolog.Logger) *Controller {
	cfg.applyDefaults()
	nodeLogger := logger.With().Str("node", cfg.Name).Logger()

	c := &Controller{
		cfg:    cfg,
		bridge: bridge,
		link:   lk,
		loss:   &observability.LossMonitor{},
		rec:    rec,
		logger: nodeLogger,
		reload: make(chan struct{}, 1),
	}

	// The capability table is the guest's entire view of the node.
	caps := sandbox.Capabilities{
		ProcessVariable: bridge.ProcessVariable,
		SetActuator: func(v float64) {
			bridge.SetActuatorCommand(v)
		},
		Log: func(msg string) {
			nodeLogger.Info().Str("origin", "guest").Msg(msg)
		},
	}
	c.engine = sandbox.New(caps, nodeLogger)
	return c
}

// HandleFrame is the link receive path: deposit the reading, feed the
// loss monitor, return. Control decisions never happen here.
func (c *Controller) HandleFrame(b []byte) {
	pkt, err := protocol.Decode(b)
	if err != nil {
		observability.RecordPacketRejected(c.cfg.Name)
		return
	}
	if pkt.Origin != protocol.RolePlant || pkt.Kind != protocol.KindSensorReading {
		// Valid on the wire, but nothing here consumes it.
		return
	}
	observability.RecordPacketReceived(c.cfg.Name)
	c.loss.Observe(pkt.Sequence)
	if !c.bridge.SetProcessVariable(float64(pkt.Value)) {
		c.logger.Debug().Msg("reading deposit dropped on guard timeout")
	}
	observability.SetProcessVariable(c.cfg.Name, float64(pkt.Value))
}

// Run drives the sender and control loops until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.link.SetHandler(c.HandleFrame)
	if err := c.link.Start(ctx); err != nil {
		return err
	}

	if c.cfg.ModulePath != "" && c.cfg.Watch {
		w := sandbox.NewWatcher(c.cfg.ModulePath, 0, c.logger)
		if err := w.Start(ctx); err != nil {
			return err
		}
		go c.forwardReloads(ctx, w)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go c.senderLoop(ctx, &wg)
	if c.cfg.ModulePath != "" {
		go c.sandboxLoop(ctx, &wg)
	} else {
		go c.fallbackLoop(ctx, &wg)
	}
	wg.Wait()
	c.engine.Close()

	received, lost := c.loss.Snapshot()
	c.logger.Info().Uint64("received", received).Uint64("lost", lost).Msg("controller stopped")
	return nil
}

func (c *Controller) forwardReloads(ctx context.Context, w *sandbox.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Events():
			select {
			case c.reload <- struct{}{}:
			default:
			}
			// The reload signal is buffered; Stop lands at the guest's
			// next host call and the supervision loop picks it up.
			c.engine.Stop()
		}
	}
}

// senderLoop streams the current actuator command at a fixed cadence.
// Losses are absorbed by the cadence itself; nothing is retried.
func (c *Controller) senderLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(c.cfg.SendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmd := c.bridge.ActuatorCommand()
			pkt := protocol.Packet{
				Origin:   protocol.RoleController,
				Kind:     protocol.KindActuatorCommand,
				Value:    float32(cmd),
				Sequence: c.seq.Add(1) - 1,
			}
			if err := c.link.Send(protocol.Encode(pkt)); err != nil {
				observability.RecordSendError(c.cfg.Name)
				c.logger.Warn().Err(err).Msg("command transmit failed")
			} else {
				observability.RecordPacketSent(c.cfg.Name)
			}
			observability.SetActuatorCommand(c.cfg.Name, cmd)
			if c.rec != nil {
				c.rec.Record(recorder.Sample{
					TimestampMS:     time.Now().UnixMilli(),
					Node:            c.cfg.Name,
					ProcessVariable: c.bridge.ProcessVariable(),
					ActuatorCommand: cmd,
					Sequence:        pkt.Sequence,
				})
			}
		}
	}
}

// fallbackLoop is the native control law used when no control program
// is configured.
func (c *Controller) fallbackLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	hyst := &Hysteresis{Target: c.cfg.Target, Band: c.cfg.Band}
	c.logger.Info().
		Float64("target", hyst.Target).
		Float64("band", hyst.Band).
		Msg("native hysteresis control active")

	ticker := time.NewTicker(c.cfg.ControlInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmd := 0.0
			if hyst.Update(c.bridge.ProcessVariable()) {
				cmd = 1.0
			}
			c.bridge.SetActuatorCommand(cmd)
		}
	}
}

// sandboxLoop supervises the control program: load, instantiate, run,
// report, and fail toward a de-energized actuator between attempts. The
// node never exits because the program faulted.
func (c *Controller) sandboxLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	stopDone := make(chan struct{})
	defer close(stopDone)
	go func() {
		select {
		case <-ctx.Done():
			c.engine.Stop()
		case <-stopDone:
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		// Drain any reload signal that raced a previous teardown.
		select {
		case <-c.reload:
		default:
		}

		rep, err := c.runProgram()
		if err != nil {
			c.logger.Error().Err(err).Msg("control program unavailable")
		} else {
			observability.RecordSandboxRun(c.cfg.Name, rep.Outcome.String())
			c.reportRun(rep)
		}

		// Between programs the actuator fails safe.
		c.bridge.SetActuatorCommand(0)

		select {
		case <-ctx.Done():
			return
		case <-c.reload:
			c.logger.Info().Str("path", c.cfg.ModulePath).Msg("reloading control program")
		case <-time.After(c.cfg.RetryInterval):
		}
	}
}

func (c *Controller) runProgram() (sandbox.Report, error) {
	buf, err := sandbox.LoadFile(c.cfg.ModulePath)
	if err != nil {
		return sandbox.Report{}, err
	}
	if err := c.engine.Load(buf); err != nil {
		return sandbox.Report{}, err
	}
	if err := c.engine.Instantiate(c.cfg.StackBytes, c.cfg.HeapBytes); err != nil {
		return sandbox.Report{}, err
	}
	c.logger.Info().Str("entry", c.cfg.Entry).Int("bytes", len(buf)).Msg("starting control program")
	return c.engine.Run(c.cfg.Entry), nil
}

func (c *Controller) reportRun(rep sandbox.Report) {
	switch rep.Outcome {
	case sandbox.OutcomeCompleted:
		c.logger.Info().Msg("control program completed")
	case sandbox.OutcomeNotFound:
		c.logger.Error().Str("entry", rep.Entry).Msg("control program has no entry point")
	case sandbox.OutcomeTerminated:
		c.logger.Info().Msg("control program stopped by host")
	case sandbox.OutcomeTrapped:
		c.logger.Error().Str("detail", rep.Detail).Msg("control program trapped")
	default:
		c.logger.Error().Err(rep.Err).Str("detail", rep.Detail).Msg("control program failed")
	}
}

// LossSnapshot reports packets received from the plant and the estimated
// count lost in transit.
func (c *Controller) LossSnapshot() (received, lost uint64) {
	return c.loss.Snapshot()
}

// Sent reports how many command packets the sender loop has emitted.
func (c *Controller) Sent() uint32 {
	return c.seq.Load()
}
