package bridge

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// fakeConn is an in-memory WireConn. Frames pushed by a test are delivered to
// the bridge; messages the bridge sends are recorded.
type fakeConn struct {
	inbox     chan mavlink.Frame
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    []mavlink.Message
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan mavlink.Frame, 64),
		closed: make(chan struct{}),
	}
}

func frameOf(msg mavlink.Message) mavlink.Frame {
	return mavlink.Frame{Version: 2, MsgID: msg.MsgID(), Payload: msg.Marshal()}
}

func (c *fakeConn) push(msg mavlink.Message) {
	c.inbox <- frameOf(msg)
}

func (c *fakeConn) Send(msg mavlink.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Recv(ctx context.Context) (mavlink.Frame, error) {
	select {
	case f := <-c.inbox:
		return f, nil
	case <-ctx.Done():
		return mavlink.Frame{}, ctx.Err()
	case <-c.closed:
		return mavlink.Frame{}, mavlink.ErrClosed
	}
}

func (c *fakeConn) TryRecv() (mavlink.Frame, bool) {
	select {
	case f := <-c.inbox:
		return f, true
	default:
		return mavlink.Frame{}, false
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sentOf(id uint32) []mavlink.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []mavlink.Message
	for _, m := range c.sent {
		if m.MsgID() == id {
			out = append(out, m)
		}
	}
	return out
}

// fakeDialer hands out a new fakeConn per dial.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	sendErr error
}

func (d *fakeDialer) dial(_ context.Context, _ string) (WireConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	c.sendErr = d.sendErr
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func newTestBridge(t *testing.T, mutate func(*Config), opts Options) (*Bridge, *fakeDialer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Endpoint = "udpin:127.0.0.1:14560"
	if mutate != nil {
		mutate(&cfg)
	}
	d := &fakeDialer{}
	opts.Dialer = d.dial
	b, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Stop() })
	return b, d
}

func armedControls(controls ...float32) *mavlink.HilActuatorControls {
	m := &mavlink.HilActuatorControls{Mode: mavlink.MavModeFlagSafetyArmed}
	copy(m.Controls[:], controls)
	return m
}
