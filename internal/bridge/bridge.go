// Package bridge connects a simulated vehicle to a MAVLink autopilot running
// in the loop. It owns the connection lifecycle, waits for the peer's first
// heartbeat, then runs a fixed-rate scheduler that streams sensor data and
// applies actuator commands, optionally in lockstep with the simulation.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eytandecker/mavbridge/internal/actuator"
	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/monitoring"
	"github.com/eytandecker/mavbridge/internal/sensors"
	"github.com/eytandecker/mavbridge/internal/timeutil"
	"github.com/eytandecker/mavbridge/pkg/types"
)

// WireConn is the MAVLink connection the bridge drives.
type WireConn interface {
	Send(msg mavlink.Message) error
	Recv(ctx context.Context) (mavlink.Frame, error)
	TryRecv() (mavlink.Frame, bool)
	Close() error
}

// Dialer opens a WireConn for an endpoint string.
type Dialer func(ctx context.Context, endpoint string) (WireConn, error)

// MAVLinkDialer returns a Dialer that opens real MAVLink connections.
func MAVLinkDialer(cfg mavlink.ConnConfig) Dialer {
	return func(ctx context.Context, endpoint string) (WireConn, error) {
		c, err := mavlink.Dial(ctx, endpoint, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Config holds bridge settings.
type Config struct {
	Endpoint          string
	Thrusters         int
	Lockstep          bool
	UpdateRate        float64 // Hz
	SystemID          uint8
	ComponentID       uint8
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration // 0 waits forever
	LockstepTimeout   time.Duration // 0 waits forever
}

// DefaultConfig returns the settings PX4 SITL expects out of the box.
func DefaultConfig() Config {
	return Config{
		Endpoint:          "tcpin:0.0.0.0:4560",
		Thrusters:         4,
		Lockstep:          true,
		UpdateRate:        250,
		SystemID:          255,
		ComponentID:       0,
		HeartbeatInterval: time.Second,
	}
}

func (c Config) period() time.Duration {
	return time.Duration(float64(time.Second) / c.UpdateRate)
}

func (c Config) validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: empty endpoint", ErrInvalidConfig)
	case c.Thrusters <= 0:
		return fmt.Errorf("%w: thrusters must be positive, got %d", ErrInvalidConfig, c.Thrusters)
	case c.UpdateRate <= 0:
		return fmt.Errorf("%w: update rate must be positive, got %g", ErrInvalidConfig, c.UpdateRate)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval must be positive, got %s", ErrInvalidConfig, c.HeartbeatInterval)
	case c.HandshakeTimeout < 0 || c.LockstepTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Hooks are the simulator's extension points, called from the scheduler.
type Hooks struct {
	// GroundTruth returns a message to send every tick. A nil message skips the send.
	GroundTruth func() mavlink.Message

	// Control receives the actuator command and the mixed motor outputs on
	// every tick in which an actuator frame arrived.
	Control func(cmd types.ActuatorCommand, outputs []float64)
}

// Options are optional collaborators for New.
type Options struct {
	Dialer Dialer         // defaults to MAVLinkDialer
	Clock  timeutil.Clock // defaults to the real clock
	Mixer  actuator.Mixer // defaults to the identity LinearMixer
	Hooks  Hooks
}

// Bridge streams simulated sensor data to a MAVLink peer and collects its
// actuator commands.
type Bridge struct {
	cfg   Config
	dial  Dialer
	clock timeutil.Clock
	hooks Hooks

	sensors   *sensors.Aggregator
	gps       *sensors.GPSAggregator
	actuators *actuator.State
	flags     *lockstepFlags

	opMu sync.Mutex // serializes Start and Stop

	mu        sync.Mutex
	state     ConnectionState
	conn      WireConn
	sessionID uuid.UUID
	cancel    context.CancelFunc
	done      chan struct{}
	lastErr   error

	hbMu                   sync.Mutex
	receivedFirstHeartbeat bool

	// Owned by the scheduler goroutine.
	lastHeartbeat   time.Time
	lastSendWarn    time.Time
	suppressedWarns uint64

	framesSent     atomic.Uint64
	sendFailures   atomic.Uint64
	decodeFailures atomic.Uint64
	ticks          atomic.Uint64
}

// New creates a Bridge. No connection is opened until Start.
func New(cfg Config, opts Options) (*Bridge, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if opts.Dialer == nil {
		opts.Dialer = MAVLinkDialer(mavlink.ConnConfig{
			SystemID:    cfg.SystemID,
			ComponentID: cfg.ComponentID,
		})
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	done := make(chan struct{})
	close(done)

	b := &Bridge{
		cfg:       cfg,
		dial:      opts.Dialer,
		clock:     opts.Clock,
		hooks:     opts.Hooks,
		sensors:   sensors.NewAggregator(),
		gps:       sensors.NewGPSAggregator(),
		actuators: actuator.NewState(cfg.Thrusters, opts.Mixer),
		flags:     newLockstepFlags(),
		done:      done,
	}
	b.actuators.SetClock(opts.Clock)
	return b, nil
}

// Start opens the connection if needed and begins waiting for the peer's
// heartbeat. It returns once the session is launched; ctx bounds only the
// connection attempt. Calling Start on a running bridge does nothing.
func (b *Bridge) Start(ctx context.Context) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	running, hasConn := b.state.running(), b.conn != nil
	b.mu.Unlock()
	if running {
		return nil
	}
	if !hasConn {
		if err := b.reinitialize(ctx); err != nil {
			return err
		}
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	b.state = StateAwaitingHeartbeat
	b.cancel = cancel
	b.done = done
	conn, id := b.conn, b.sessionID
	b.mu.Unlock()

	monitoring.Logf("bridge: session %s started on %s", id, b.cfg.Endpoint)
	go b.supervise(sessCtx, conn, done)
	return nil
}

// Stop ends the session, waits for the scheduler to exit and closes the
// connection. Calling Stop on a bridge that is not running does nothing.
func (b *Bridge) Stop() error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.Lock()
	if !b.state.running() {
		b.mu.Unlock()
		return nil
	}
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done

	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.conn != nil {
		err = b.conn.Close()
		b.conn = nil
	}
	b.state = StateStopped
	monitoring.Logf("bridge: session %s stopped", b.sessionID)
	if err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// reinitialize opens a fresh connection on the configured endpoint and resets
// all per-session state.
func (b *Bridge) reinitialize(ctx context.Context) error {
	conn, err := b.dial(ctx, b.cfg.Endpoint)
	if err != nil {
		berr := &types.BridgeError{
			Err:         fmt.Errorf("%w: %w", ErrConnection, err),
			Message:     "open " + b.cfg.Endpoint,
			Recoverable: true,
		}
		b.mu.Lock()
		b.lastErr = berr
		b.mu.Unlock()
		return berr
	}

	b.resetTransientState()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = conn
	b.sessionID = uuid.New()
	b.lastErr = nil
	return nil
}

// resetTransientState clears every flag and counter tied to one connection.
func (b *Bridge) resetTransientState() {
	b.flags.reset()

	b.hbMu.Lock()
	b.receivedFirstHeartbeat = false
	b.hbMu.Unlock()

	b.lastHeartbeat = time.Time{}
	b.lastSendWarn = time.Time{}
	b.suppressedWarns = 0
	b.actuators.Reset()
	b.framesSent.Store(0)
	b.sendFailures.Store(0)
	b.decodeFailures.Store(0)
	b.ticks.Store(0)
}

// supervise runs the handshake and then the scheduler for one session.
func (b *Bridge) supervise(ctx context.Context, conn WireConn, done chan struct{}) {
	defer close(done)

	if err := b.awaitHeartbeat(ctx, conn); err != nil {
		if ctx.Err() == nil {
			b.fail(conn, err)
		}
		return
	}

	b.mu.Lock()
	b.state = StateStreaming
	b.mu.Unlock()

	b.runScheduler(ctx, conn)
}

// fail ends a session the supervisor cannot continue.
func (b *Bridge) fail(conn WireConn, err error) {
	monitoring.Logf("bridge: session ended: %v", err)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = err
	if b.conn == conn {
		_ = conn.Close()
		b.conn = nil
	}
	b.state = StateStopped
	if b.cancel != nil {
		b.cancel()
	}
}

// Done returns a channel closed when the current session ends, either through
// Stop or a handshake failure. It is already closed when no session runs.
func (b *Bridge) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// State returns the current lifecycle state.
func (b *Bridge) State() ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the error that ended or prevented the last session, if any.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Bridge) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = err
}

// Status returns a snapshot of the bridge for diagnostics.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	st := Status{
		State:    b.state.String(),
		Endpoint: b.cfg.Endpoint,
	}
	if b.sessionID != uuid.Nil {
		st.SessionID = b.sessionID.String()
	}
	if b.lastErr != nil {
		st.LastError = b.lastErr.Error()
	}
	if fc, ok := b.conn.(interface{ DecodeFailures() uint64 }); ok {
		st.DecodeFailures = fc.DecodeFailures()
	}
	b.mu.Unlock()

	b.hbMu.Lock()
	st.ReceivedFirstHeartbeat = b.receivedFirstHeartbeat
	b.hbMu.Unlock()

	st.Lockstep = b.flags.snapshot(b.cfg.Lockstep)
	st.FramesSent = b.framesSent.Load()
	st.SendFailures = b.sendFailures.Load()
	st.DecodeFailures += b.decodeFailures.Load()
	st.Ticks = b.ticks.Load()
	return st
}

// UpdateIMU stores an accelerometer and gyroscope sample.
func (b *Bridge) UpdateIMU(s types.IMUSample) { b.sensors.UpdateIMU(s) }

// UpdateBarometer stores a barometer sample.
func (b *Bridge) UpdateBarometer(s types.BaroSample) { b.sensors.UpdateBarometer(s) }

// UpdateMagnetometer stores a magnetometer sample.
func (b *Bridge) UpdateMagnetometer(s types.MagSample) { b.sensors.UpdateMagnetometer(s) }

// UpdateAirspeed stores a differential pressure sample.
func (b *Bridge) UpdateAirspeed(s types.AirspeedSample) { b.sensors.UpdateAirspeed(s) }

// UpdateGPS stores a GPS sample; it is sent on the next tick.
func (b *Bridge) UpdateGPS(s types.GPSSample) { b.gps.Update(s) }

// NotifyIMU tells the scheduler that the simulation has supplied this step's
// IMU sample. In lockstep mode every tick after the first actuator command
// waits for it.
func (b *Bridge) NotifyIMU() { b.flags.signalIMU() }

// Actuators returns the latest actuator command of the current session, or
// ErrNoActuatorData when none has arrived.
func (b *Bridge) Actuators() (types.ActuatorCommand, error) {
	cmd, ok := b.actuators.Command()
	if !ok {
		return types.ActuatorCommand{}, ErrNoActuatorData
	}
	return cmd, nil
}

// MotorOutputs returns the mixed outputs for the latest actuator command.
func (b *Bridge) MotorOutputs() []float64 {
	return b.actuators.Outputs()
}
