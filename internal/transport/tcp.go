package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/eytandecker/mavbridge/internal/monitoring"
)

// tcpListener serves one peer at a time and keeps listening for the next.
// Reads block until a peer is connected and carry on with the next peer after
// a disconnect. Writes fail with ErrNoPeer while nobody is connected. A newly
// accepted peer replaces the current one.
type tcpListener struct {
	ln      net.Listener
	arrived chan struct{}
	done    chan struct{}
	stopped chan struct{}

	mu        sync.Mutex
	conn      net.Conn
	acceptErr error
	closeOnce sync.Once
}

func listenTCP(ctx context.Context, addr string) (*tcpListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport listen tcp: %w", err)
	}
	t := &tcpListener{
		ln:      ln,
		arrived: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go t.acceptLoop()
	return t, nil
}

func (t *tcpListener) acceptLoop() {
	defer close(t.stopped)
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			t.mu.Lock()
			t.acceptErr = err
			t.mu.Unlock()
			return
		}

		t.mu.Lock()
		prev := t.conn
		t.conn = conn
		t.mu.Unlock()

		if prev != nil {
			monitoring.Logf("transport: tcp peer %s replaced by %s", prev.RemoteAddr(), conn.RemoteAddr())
			_ = prev.Close()
		} else {
			monitoring.Logf("transport: tcp peer %s connected", conn.RemoteAddr())
		}
		select {
		case t.arrived <- struct{}{}:
		default:
		}
	}
}

func (t *tcpListener) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *tcpListener) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// waitPeer blocks until a peer is connected or the listener is closed.
func (t *tcpListener) waitPeer() (net.Conn, error) {
	for {
		if t.isClosed() {
			return nil, ErrClosed
		}
		t.mu.Lock()
		conn, acceptErr := t.conn, t.acceptErr
		t.mu.Unlock()
		if conn != nil {
			return conn, nil
		}
		if acceptErr != nil {
			return nil, fmt.Errorf("transport accept tcp: %w", acceptErr)
		}

		select {
		case <-t.arrived:
		case <-t.stopped:
		case <-t.done:
		}
	}
}

// drop forgets conn if it is still the current peer.
func (t *tcpListener) drop(conn net.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.Close()
}

func (t *tcpListener) Read(p []byte) (int, error) {
	for {
		conn, err := t.waitPeer()
		if err != nil {
			return 0, err
		}
		n, err := conn.Read(p)
		if n > 0 || err == nil {
			return n, nil
		}
		if t.isClosed() {
			return 0, ErrClosed
		}
		if t.current() == conn {
			monitoring.Logf("transport: tcp peer %s disconnected: %v", conn.RemoteAddr(), err)
		}
		t.drop(conn)
	}
}

func (t *tcpListener) Write(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNoPeer
	}
	return conn.Write(p)
}

func (t *tcpListener) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.ln.Close()
		<-t.stopped

		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()
		if conn != nil {
			if cerr := conn.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// Addr reports the listening address.
func (t *tcpListener) Addr() net.Addr {
	return t.ln.Addr()
}
