package bridge

// ConnectionState is the lifecycle state of a Bridge.
type ConnectionState int32

const (
	StateUninitialized ConnectionState = iota
	StateAwaitingHeartbeat
	StateStreaming
	StateStopped
)

func (s ConnectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingHeartbeat:
		return "awaiting_heartbeat"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// running reports whether a session owns a live connection.
func (s ConnectionState) running() bool {
	return s == StateAwaitingHeartbeat || s == StateStreaming
}

// LockstepStatus is a snapshot of the lockstep flags.
type LockstepStatus struct {
	Enabled               bool `json:"enabled"`
	ReceivedFirstIMU      bool `json:"received_first_imu"`
	ReceivedFirstActuator bool `json:"received_first_actuator"`
	ReceivedIMU           bool `json:"received_imu"`
	ReceivedActuator      bool `json:"received_actuator"`
}

// Status is a point-in-time view of the bridge for diagnostics.
type Status struct {
	State                  string         `json:"state"`
	SessionID              string         `json:"session_id,omitempty"`
	Endpoint               string         `json:"endpoint"`
	ReceivedFirstHeartbeat bool           `json:"received_first_heartbeat"`
	Lockstep               LockstepStatus `json:"lockstep"`
	LastError              string         `json:"last_error,omitempty"`
	FramesSent             uint64         `json:"frames_sent"`
	SendFailures           uint64         `json:"send_failures"`
	DecodeFailures         uint64         `json:"decode_failures"`
	Ticks                  uint64         `json:"ticks"`
}
