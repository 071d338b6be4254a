package types

// ActuatorCommand is the latest control output received from the autopilot.
type ActuatorCommand struct {
	Controls []float64 // normalized, one per thruster
	Armed    bool
	Mode     uint8
	Flags    uint64
	TimeUsec uint64
}

// Clone returns a copy that does not share the Controls slice.
func (c ActuatorCommand) Clone() ActuatorCommand {
	out := c
	out.Controls = append([]float64(nil), c.Controls...)
	return out
}
