package tile

import (
	"github.com/Zhaoxian-Wu/aihwkit/internal/accel"
	"github.com/Zhaoxian-Wu/aihwkit/internal/analog"
)

// Config holds the device parameters of a simulated tile.
type Config struct {
	// LR is the learning rate applied to pulsed updates.
	LR float32
	// DWMin is the weight change caused by a single pulse.
	DWMin float32
	// WMax bounds every weight to [-WMax, WMax].
	WMax float32
	// MaxPulses caps the number of pulses one weight receives per update.
	MaxPulses int
	// OutNoise is the standard deviation of Gaussian noise added to the
	// forward output during training. Zero disables it.
	OutNoise float32
	// Runtime is the offload policy the tile reports to the dispatcher.
	Runtime analog.RuntimeConfig
	// Seed seeds weight initialization and output noise.
	Seed uint64
	// Probe decides whether the tile may move to an accelerator.
	// Defaults to accel.Available.
	Probe accel.Prober
}

// DefaultConfig returns the default device parameters.
func DefaultConfig() Config {
	return Config{
		LR:        0.01,
		DWMin:     0.001,
		WMax:      1.0,
		MaxPulses: 31,
		Seed:      1,
		Probe:     accel.Available,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LR == 0 {
		c.LR = d.LR
	}
	if c.DWMin <= 0 {
		c.DWMin = d.DWMin
	}
	if c.WMax <= 0 {
		c.WMax = d.WMax
	}
	if c.MaxPulses <= 0 {
		c.MaxPulses = d.MaxPulses
	}
	if c.Probe == nil {
		c.Probe = d.Probe
	}
	return c
}
