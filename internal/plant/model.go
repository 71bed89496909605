// Package plant simulates the physical thermal process and runs the
// plant node: a periodic physics tick whose noisy reading is published
// over the bench link, driven by the actuator command deposited by the
// controller.
package plant

import (
	"fmt"
	"math/rand"
)

// Physics holds the thermal model constants. Defaults match the bench
// this simulator stands in for.
type Physics struct {
	Ambient        float64 `toml:"ambient"`
	MaxTemperature float64 `toml:"max_temperature"`
	HeatingRate    float64 `toml:"heating_rate"`
	CoolingRate    float64 `toml:"cooling_rate"`
	ThermalMass    float64 `toml:"thermal_mass"`
	NoiseRange     float64 `toml:"noise_range"`
}

func DefaultPhysics() Physics {
	return Physics{
		Ambient:        25.0,
		MaxTemperature: 100.0,
		HeatingRate:    0.8,
		CoolingRate:    0.02,
		ThermalMass:    0.95,
		NoiseRange:     0.3,
	}
}

func (p Physics) Validate() error {
	if p.ThermalMass <= 0 || p.ThermalMass >= 1 {
		return fmt.Errorf("physics: thermal_mass %v outside (0,1)", p.ThermalMass)
	}
	if p.MaxTemperature < p.Ambient {
		return fmt.Errorf("physics: max_temperature %v below ambient %v", p.MaxTemperature, p.Ambient)
	}
	if p.HeatingRate < 0 || p.CoolingRate < 0 {
		return fmt.Errorf("physics: negative rate")
	}
	if p.NoiseRange < 0 {
		return fmt.Errorf("physics: negative noise_range")
	}
	return nil
}

// Model is a deterministic-plus-noise integrator: a first-order lag
// toward the energy balance of heater input against ambient cooling.
// The internal temperature is never published directly; readings carry
// sensor noise.
type Model struct {
	phys Physics
	temp float64
	rng  *rand.Rand
}

// NewModel starts the model at ambient. rng may be nil when NoiseRange
// is zero.
func NewModel(phys Physics, rng *rand.Rand) (*Model, error) {
	if err := phys.Validate(); err != nil {
		return nil, err
	}
	if phys.NoiseRange > 0 && rng == nil {
		return nil, fmt.Errorf("physics: noise enabled without a random source")
	}
	return &Model{phys: phys, temp: phys.Ambient, rng: rng}, nil
}

// Step advances one tick under the given actuator command and returns
// the noisy sensor reading.
func (m *Model) Step(actuator float64) float64 {
	if actuator < 0 {
		actuator = 0
	}
	if actuator > 1 {
		actuator = 1
	}

	energyIn := actuator * m.phys.HeatingRate
	energyOut := (m.temp - m.phys.Ambient) * m.phys.CoolingRate
	target := m.temp + energyIn - energyOut
	m.temp = m.temp*m.phys.ThermalMass + target*(1-m.phys.ThermalMass)

	if m.temp > m.phys.MaxTemperature {
		m.temp = m.phys.MaxTemperature
	}
	if m.temp < m.phys.Ambient {
		m.temp = m.phys.Ambient
	}

	reading := m.temp
	if m.phys.NoiseRange > 0 {
		reading += (m.rng.Float64()*2 - 1) * m.phys.NoiseRange
	}
	return reading
}

// Temperature exposes the internal state for tests and recording only.
func (m *Model) Temperature() float64 {
	return m.temp
}
