package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/monitoring"
)

// awaitHeartbeat blocks until the peer's first HEARTBEAT arrives on conn.
func (b *Bridge) awaitHeartbeat(ctx context.Context, conn WireConn) error {
	monitoring.Logf("bridge: waiting for first heartbeat")

	wctx := ctx
	if b.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.cfg.HandshakeTimeout)
		defer cancel()
	}

	hb, err := mavlink.WaitHeartbeat(wctx, conn)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrHandshakeTimeout, b.cfg.HandshakeTimeout)
		}
		return fmt.Errorf("wait heartbeat: %w", err)
	}

	b.hbMu.Lock()
	b.receivedFirstHeartbeat = true
	b.hbMu.Unlock()

	monitoring.Logf("bridge: received first heartbeat (type %d, autopilot %d)", hb.Type, hb.Autopilot)
	return nil
}

func (b *Bridge) heartbeatReceived() bool {
	b.hbMu.Lock()
	defer b.hbMu.Unlock()
	return b.receivedFirstHeartbeat
}
