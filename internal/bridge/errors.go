package bridge

import "errors"

var (
	// ErrConnection is returned by Start when the endpoint cannot be opened.
	ErrConnection = errors.New("bridge: connection failed")

	// ErrHandshakeTimeout ends a session whose peer sent no heartbeat in time.
	ErrHandshakeTimeout = errors.New("bridge: no heartbeat from peer")

	// ErrLockstepTimeout is logged when an actuator frame does not arrive in time.
	ErrLockstepTimeout = errors.New("bridge: no actuator controls from peer")

	// ErrNoActuatorData is returned when no actuator command has been received
	// in the current session.
	ErrNoActuatorData = errors.New("bridge: no actuator data received")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("bridge: invalid config")
)
