package actuator

import (
	"fmt"

	"github.com/eytandecker/mavbridge/pkg/types"
)

// Mixer maps an actuator command to motor outputs.
type Mixer interface {
	Mix(cmd types.ActuatorCommand) []float64
}

// LinearMixer maps each control with
//
//	out = (in + offset) * scaling + zeroPositionArmed
//
// while armed and outputs zero while disarmed. Missing array entries default
// to offset 0, scaling 1 and zero position 0.
type LinearMixer struct {
	Offset            []float64 `yaml:"offset"`
	Scaling           []float64 `yaml:"scaling"`
	ZeroPositionArmed []float64 `yaml:"zero_position_armed"`
}

// Validate checks that no array is longer than the thruster count.
func (m *LinearMixer) Validate(thrusters int) error {
	for name, arr := range map[string][]float64{
		"offset":              m.Offset,
		"scaling":             m.Scaling,
		"zero_position_armed": m.ZeroPositionArmed,
	} {
		if len(arr) > thrusters {
			return fmt.Errorf("%w: %s has %d entries for %d thrusters", ErrMixerSize, name, len(arr), thrusters)
		}
	}
	return nil
}

func (m *LinearMixer) Mix(cmd types.ActuatorCommand) []float64 {
	out := make([]float64, len(cmd.Controls))
	if !cmd.Armed {
		return out
	}
	for i, in := range cmd.Controls {
		out[i] = (in+at(m.Offset, i, 0))*at(m.Scaling, i, 1) + at(m.ZeroPositionArmed, i, 0)
	}
	return out
}

func at(arr []float64, i int, def float64) float64 {
	if i < len(arr) {
		return arr[i]
	}
	return def
}
