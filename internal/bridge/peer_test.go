package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/transport"
)

// tcpInBridge starts a bridge on a real tcpin listener and returns the address
// peers should dial.
func tcpInBridge(t *testing.T) (*Bridge, string) {
	t.Helper()

	addrs := make(chan string, 1)
	dial := func(ctx context.Context, endpoint string) (WireConn, error) {
		rwc, err := transport.Open(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if a, ok := rwc.(interface{ Addr() net.Addr }); ok {
			addrs <- a.Addr().String()
		}
		return mavlink.NewConn(rwc, mavlink.DefaultConnConfig()), nil
	}

	cfg := DefaultConfig()
	cfg.Endpoint = "tcpin:127.0.0.1:0"
	cfg.Lockstep = false
	b, err := New(cfg, Options{Dialer: dial})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Stop() })

	require.NoError(t, b.Start(context.Background()))
	select {
	case addr := <-addrs:
		return b, addr
	case <-time.After(waitFor):
		t.Fatal("listener address not reported")
		return nil, ""
	}
}

func sendHeartbeat(t *testing.T, peer net.Conn) {
	t.Helper()
	buf, err := mavlink.EncodeFrame(frameOf(mavlink.NewBridgeHeartbeat()))
	require.NoError(t, err)
	_, err = peer.Write(buf)
	require.NoError(t, err)
}

// awaitFrame reads from peer until a frame with id arrives.
func awaitFrame(t *testing.T, peer net.Conn, id uint32) {
	t.Helper()
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(waitFor)))
	fr := mavlink.NewFrameReader(peer)
	for {
		f, err := fr.ReadFrame()
		if mavlink.IsDecodeError(err) {
			continue
		}
		require.NoError(t, err)
		if f.MsgID == id {
			return
		}
	}
}

func TestStreamingResumesWhenPeerReconnects(t *testing.T) {
	b, addr := tcpInBridge(t)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	sendHeartbeat(t, first)
	require.Eventually(t, func() bool { return b.State() == StateStreaming }, waitFor, time.Millisecond)
	awaitFrame(t, first, mavlink.MsgIDHilSensor)

	require.NoError(t, first.Close())

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err, "the endpoint keeps accepting after a disconnect")
	defer second.Close()

	awaitFrame(t, second, mavlink.MsgIDHilSensor)
	awaitFrame(t, second, mavlink.MsgIDHeartbeat)
	assert.Equal(t, StateStreaming, b.State())

	armed := armedControls(0.5)
	buf, err := mavlink.EncodeFrame(frameOf(armed))
	require.NoError(t, err)
	_, err = second.Write(buf)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		cmd, err := b.Actuators()
		return err == nil && cmd.Armed
	}, waitFor, time.Millisecond, "commands from the new peer are applied")
}
