package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/monitoring"
)

// runScheduler runs fixed-rate ticks until ctx is cancelled.
func (b *Bridge) runScheduler(ctx context.Context, conn WireConn) {
	period := b.cfg.period()
	monitoring.Logf("bridge: streaming at %g Hz (lockstep %t)", b.cfg.UpdateRate, b.cfg.Lockstep)

	for ctx.Err() == nil {
		if !b.waitForIMU(ctx) {
			return
		}

		start := b.clock.Now()
		b.tick(ctx, conn)
		b.ticks.Add(1)

		if d := period - b.clock.Since(start); d > 0 {
			b.clock.Sleep(d)
		}
	}
}

// waitForIMU is the lockstep gate. Once the peer has sent actuator controls,
// a lockstep tick may only start after the simulation signals a fresh IMU
// sample. The IMU flag is consumed either way. It returns false if ctx ends
// while waiting.
func (b *Bridge) waitForIMU(ctx context.Context) bool {
	if !b.cfg.Lockstep || !b.flags.firstActuator.Load() {
		b.flags.consumeIMU()
		return true
	}
	select {
	case <-b.flags.imu:
		return true
	case <-ctx.Done():
		return false
	}
}

// tick performs one scheduler step after the lockstep gate.
func (b *Bridge) tick(ctx context.Context, conn WireConn) {
	if !b.heartbeatReceived() {
		return
	}

	b.flags.actuator.Store(false)
	b.poll(ctx, conn)
	if ctx.Err() != nil {
		return
	}

	now := b.clock.Now()
	if b.lastHeartbeat.IsZero() || now.Sub(b.lastHeartbeat) > b.cfg.HeartbeatInterval {
		b.send(conn, mavlink.NewBridgeHeartbeat())
		b.lastHeartbeat = now
	}

	reading, mask := b.sensors.Drain()
	b.send(conn, encodeSensor(now, reading, mask))

	if fix, ok := b.gps.DrainIfDirty(); ok {
		b.send(conn, encodeGPS(now, fix))
	}

	if b.hooks.GroundTruth != nil {
		if msg := b.hooks.GroundTruth(); msg != nil {
			b.send(conn, msg)
		}
	}

	if b.hooks.Control != nil && b.flags.actuator.Load() {
		cmd, _ := b.actuators.Command()
		b.hooks.Control(cmd, b.actuators.Mix(cmd))
	}
}

// poll reads inbound traffic. In lockstep, once actuator controls have been
// seen, it blocks until the next actuator frame; otherwise it makes a single
// non-blocking attempt.
func (b *Bridge) poll(ctx context.Context, conn WireConn) {
	if !b.cfg.Lockstep || !b.flags.firstActuator.Load() {
		if f, ok := conn.TryRecv(); ok {
			b.handleFrame(f)
		}
		return
	}

	rctx := ctx
	if b.cfg.LockstepTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, b.cfg.LockstepTimeout)
		defer cancel()
	}

	for {
		f, err := conn.Recv(rctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, context.DeadlineExceeded):
				err = fmt.Errorf("%w after %s", ErrLockstepTimeout, b.cfg.LockstepTimeout)
				monitoring.Logf("bridge: %v", err)
				b.setErr(err)
			default:
				monitoring.Debugf("bridge: receive: %v", err)
			}
			return
		}
		if b.handleFrame(f) {
			return
		}
	}
}

// handleFrame decodes one inbound frame and reports whether it carried
// actuator controls. Frames that fail to decode change nothing.
func (b *Bridge) handleFrame(f mavlink.Frame) bool {
	msg, err := mavlink.DecodeMessage(f)
	if err != nil {
		b.decodeFailures.Add(1)
		monitoring.Debugf("bridge: dropped msg %d: %v", f.MsgID, err)
		return false
	}

	switch m := msg.(type) {
	case *mavlink.HilActuatorControls:
		b.actuators.Update(decodeActuator(m))
		b.flags.markActuator()
		return true
	case *mavlink.Heartbeat:
		monitoring.Debugf("bridge: peer heartbeat (status %d)", m.SystemStatus)
	}
	return false
}

// sendWarnInterval is the minimum gap between send-failure warnings.
const sendWarnInterval = time.Second

// send writes msg and absorbs failures; the next tick carries fresh state.
func (b *Bridge) send(conn WireConn, msg mavlink.Message) {
	if err := conn.Send(msg); err != nil {
		b.sendFailures.Add(1)
		b.warnSend(msg, err)
		return
	}
	b.framesSent.Add(1)
}

// warnSend logs a send failure at most once per sendWarnInterval and folds the
// failures in between into the next warning.
func (b *Bridge) warnSend(msg mavlink.Message, err error) {
	now := b.clock.Now()
	if !b.lastSendWarn.IsZero() && now.Sub(b.lastSendWarn) < sendWarnInterval {
		b.suppressedWarns++
		return
	}
	if b.suppressedWarns > 0 {
		monitoring.Logf("bridge: warning: could not send msg %d: %v (%d more failures since last warning)",
			msg.MsgID(), err, b.suppressedWarns)
	} else {
		monitoring.Logf("bridge: warning: could not send msg %d: %v", msg.MsgID(), err)
	}
	b.lastSendWarn = now
	b.suppressedWarns = 0
}
