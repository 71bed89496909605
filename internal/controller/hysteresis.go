// Package controller runs the controller node: it deposits readings
// received from the plant, computes an actuator command through the
// sandboxed control program (or the native fallback law), and streams
// the command back over the link.
package controller

// Hysteresis is the native fallback control law: a thermostat with a
// dead band around the target. The output holds its last state until
// the reading crosses the band on the opposite side.
type Hysteresis struct {
	Target float64
	Band   float64

	on bool
}

// Update folds in one reading and returns the resulting actuator state.
func (h *Hysteresis) Update(reading float64) bool {
	switch {
	case reading < h.Target-h.Band:
		h.on = true
	case reading > h.Target+h.Band:
		h.on = false
	}
	return h.on
}

// On reports the current actuator state without consuming a reading.
func (h *Hysteresis) On() bool {
	return h.on
}
