package bridge

import "sync/atomic"

// lockstepFlags are the per-session step markers shared between producers and
// the scheduler. A token in imu is the "received IMU" flag; the scheduler
// blocks on it instead of polling.
type lockstepFlags struct {
	firstIMU      atomic.Bool
	firstActuator atomic.Bool
	actuator      atomic.Bool
	imu           chan struct{}
}

func newLockstepFlags() *lockstepFlags {
	return &lockstepFlags{imu: make(chan struct{}, 1)}
}

// signalIMU marks a fresh IMU sample. Repeated signals before the scheduler
// consumes one collapse into a single token.
func (f *lockstepFlags) signalIMU() {
	f.firstIMU.Store(true)
	select {
	case f.imu <- struct{}{}:
	default:
	}
}

// consumeIMU clears the IMU flag and reports whether it was set.
func (f *lockstepFlags) consumeIMU() bool {
	select {
	case <-f.imu:
		return true
	default:
		return false
	}
}

func (f *lockstepFlags) markActuator() {
	f.firstActuator.Store(true)
	f.actuator.Store(true)
}

func (f *lockstepFlags) reset() {
	f.firstIMU.Store(false)
	f.firstActuator.Store(false)
	f.actuator.Store(false)
	f.consumeIMU()
}

func (f *lockstepFlags) snapshot(enabled bool) LockstepStatus {
	return LockstepStatus{
		Enabled:               enabled,
		ReceivedFirstIMU:      f.firstIMU.Load(),
		ReceivedFirstActuator: f.firstActuator.Load(),
		ReceivedIMU:           len(f.imu) > 0,
		ReceivedActuator:      f.actuator.Load(),
	}
}
