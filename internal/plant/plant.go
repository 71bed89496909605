package plant

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/thermlab/thermctl/internal/link"
	"github.com/thermlab/thermctl/internal/observability"
	"github.com/thermlab/thermctl/internal/protocol"
	"github.com/thermlab/thermctl/internal/recorder"
	"github.com/thermlab/thermctl/internal/state"
)

// Config drives one plant node.
type Config struct {
	Name         string
	TickInterval time.Duration
	Physics      Physics
	Seed         int64
}

// Plant is the node simulating the physical process. The physics tick
// and the link receive handler share nothing but the state bridge.
type Plant struct {
	cfg    Config
	model  *Model
	bridge *state.Bridge
	link   link.Link
	loss   *observability.LossMonitor
	rec    *recorder.Recorder
	logger zerolog.Logger

	seq uint32
}

// New builds a plant node. rec may be nil to disable flight recording.
func New(cfg Config, bridge *state.Bridge, lk link.Link, rec *recorder.Recorder, logger zerolog.Logger) (*Plant, error) {
	if cfg.Name == "" {
		cfg.Name = "plant"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	var rng *rand.Rand
	if cfg.Physics.NoiseRange > 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	model, err := NewModel(cfg.Physics, rng)
	if err != nil {
		return nil, err
	}
	return &Plant{
		cfg:    cfg,
		model:  model,
		bridge: bridge,
		link:   lk,
		loss:   &observability.LossMonitor{},
		rec:    rec,
		logger: logger.With().Str("node", cfg.Name).Logger(),
	}, nil
}

// HandleFrame is the link receive path. It deposits the actuator command
// and returns; control decisions never happen here.
func (p *Plant) HandleFrame(b []byte) {
	pkt, err := protocol.Decode(b)
	if err != nil {
		observability.RecordPacketRejected(p.cfg.Name)
		return
	}
	if pkt.Origin != protocol.RoleController || pkt.Kind != protocol.KindActuatorCommand {
		// Valid on the wire, but nothing here consumes it.
		return
	}
	observability.RecordPacketReceived(p.cfg.Name)
	p.loss.Observe(pkt.Sequence)
	if !p.bridge.SetActuatorCommand(float64(pkt.Value)) {
		p.logger.Debug().Msg("actuator deposit dropped on guard timeout")
	}
}

// Run drives the physics tick until ctx is done.
func (p *Plant) Run(ctx context.Context) error {
	p.link.SetHandler(p.HandleFrame)
	if err := p.link.Start(ctx); err != nil {
		return err
	}

	p.logger.Info().
		Float64("ambient", p.cfg.Physics.Ambient).
		Float64("heating_rate", p.cfg.Physics.HeatingRate).
		Float64("cooling_rate", p.cfg.Physics.CoolingRate).
		Float64("thermal_mass", p.cfg.Physics.ThermalMass).
		Dur("tick", p.cfg.TickInterval).
		Msg("physics simulation running")

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			received, lost := p.loss.Snapshot()
			p.logger.Info().Uint64("received", received).Uint64("lost", lost).Msg("plant stopped")
			return nil
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Plant) tick() {
	cmd := p.bridge.ActuatorCommand()
	reading := p.model.Step(cmd)
	p.bridge.SetProcessVariable(reading)

	pkt := protocol.Packet{
		Origin:   protocol.RolePlant,
		Kind:     protocol.KindSensorReading,
		Value:    float32(reading),
		Sequence: p.seq,
	}
	p.seq++

	if err := p.link.Send(protocol.Encode(pkt)); err != nil {
		// The next tick carries a fresh reading anyway.
		observability.RecordSendError(p.cfg.Name)
		p.logger.Warn().Err(err).Msg("sensor transmit failed")
	} else {
		observability.RecordPacketSent(p.cfg.Name)
	}

	observability.SetProcessVariable(p.cfg.Name, reading)
	observability.SetActuatorCommand(p.cfg.Name, cmd)

	if p.rec != nil {
		p.rec.Record(recorder.Sample{
			TimestampMS:     time.Now().UnixMilli(),
			Node:            p.cfg.Name,
			ProcessVariable: reading,
			ActuatorCommand: cmd,
			Sequence:        pkt.Sequence,
		})
	}

	p.logger.Debug().
		Float64("temp", p.model.Temperature()).
		Float64("reading", reading).
		Float64("actuator", cmd).
		Msg("tick")
}

// LossSnapshot reports packets received from the controller and the
// estimated count lost in transit.
func (p *Plant) LossSnapshot() (received, lost uint64) {
	return p.loss.Snapshot()
}

// Temperature exposes the model's internal state for the sim harness.
func (p *Plant) Temperature() float64 {
	return p.model.Temperature()
}
