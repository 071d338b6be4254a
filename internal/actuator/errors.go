package actuator

import "errors"

var (
	// ErrNoCommand is returned when no actuator command has been received yet.
	ErrNoCommand = errors.New("actuator: no command received")

	// ErrMixerSize is returned when a mixer array is longer than the thruster count.
	ErrMixerSize = errors.New("actuator: mixer array exceeds thruster count")
)
