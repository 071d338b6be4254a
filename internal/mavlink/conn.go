package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/eytandecker/mavbridge/internal/monitoring"
	"github.com/eytandecker/mavbridge/internal/transport"
)

// ConnConfig holds MAVLink connection settings.
type ConnConfig struct {
	SystemID    uint8
	ComponentID uint8
	QueueSize   int
}

// DefaultConnConfig mirrors the identity pymavlink-based simulators use.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{SystemID: 255, ComponentID: 0, QueueSize: 256}
}

// Conn is a MAVLink connection over a byte stream. Inbound frames are read by
// a background goroutine and queued; callers receive them blocking (Recv) or
// non-blocking (TryRecv).
type Conn struct {
	config ConnConfig
	rwc    io.ReadWriteCloser
	mu     sync.Mutex
	seq    atomic.Uint32

	frames chan Frame
	closed chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	readErr   error

	decodeFailures atomic.Uint64
}

// Dial opens endpoint and starts reading frames from it.
func Dial(ctx context.Context, endpoint string, cfg ConnConfig) (*Conn, error) {
	rwc, err := transport.Open(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("mavlink dial %s: %w", endpoint, err)
	}
	return NewConn(rwc, cfg), nil
}

// NewConn wraps an open stream. The Conn owns rwc and closes it on Close.
func NewConn(rwc io.ReadWriteCloser, cfg ConnConfig) *Conn {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConnConfig().QueueSize
	}
	c := &Conn{
		config: cfg,
		rwc:    rwc,
		frames: make(chan Frame, cfg.QueueSize),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send encodes msg into a MAVLink 2 frame and writes it. Thread-safe.
func (c *Conn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return ErrNotConnected
	default:
	}

	seq := uint8(c.seq.Add(1) - 1) //nolint:gosec // sequence numbers wrap at 256
	buf, err := EncodeFrame(Frame{
		Version:     2,
		Seq:         seq,
		SystemID:    c.config.SystemID,
		ComponentID: c.config.ComponentID,
		MsgID:       msg.MsgID(),
		Payload:     msg.Marshal(),
	})
	if err != nil {
		return fmt.Errorf("encode msg %d: %w", msg.MsgID(), err)
	}
	if _, err := c.rwc.Write(buf); err != nil {
		return fmt.Errorf("write msg %d: %w", msg.MsgID(), err)
	}
	return nil
}

// Recv blocks until a frame arrives, ctx is done, or the stream fails.
func (c *Conn) Recv(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	default:
	}

	select {
	case f := <-c.frames:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-c.closed:
		return Frame{}, ErrClosed
	case <-c.done:
		return Frame{}, c.err()
	}
}

// TryRecv returns a queued frame without blocking.
func (c *Conn) TryRecv() (Frame, bool) {
	select {
	case f := <-c.frames:
		return f, true
	default:
		return Frame{}, false
	}
}

// DecodeFailures counts inbound frames dropped for bad checksums or unknown ids.
func (c *Conn) DecodeFailures() uint64 {
	return c.decodeFailures.Load()
}

// Close shuts down the stream. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		// Not under c.mu: closing the stream is what unblocks a stuck Write.
		close(c.closed)
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

func (c *Conn) err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr == nil {
		return ErrClosed
	}
	return c.readErr
}

// readLoop reads frames until the stream fails or the Conn is closed.
func (c *Conn) readLoop() {
	defer close(c.done)

	fr := NewFrameReader(c.rwc)
	for {
		f, err := fr.ReadFrame()
		if err != nil {
			if IsDecodeError(err) {
				c.decodeFailures.Add(1)
				monitoring.Debugf("mavlink: dropped frame: %v", err)
				continue
			}
			select {
			case <-c.closed:
				err = ErrClosed
			default:
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf("%w: %w", ErrClosed, err)
				}
			}
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()
			return
		}

		select {
		case c.frames <- f:
		case <-c.closed:
			return
		}
	}
}

// Receiver is the receive half of a MAVLink connection.
type Receiver interface {
	Recv(ctx context.Context) (Frame, error)
}

// WaitHeartbeat blocks until a HEARTBEAT frame arrives on r and returns it.
// Other frames received while waiting are discarded.
func WaitHeartbeat(ctx context.Context, r Receiver) (*Heartbeat, error) {
	for {
		f, err := r.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if f.MsgID != MsgIDHeartbeat {
			continue
		}
		msg, err := DecodeMessage(f)
		if err != nil {
			monitoring.Debugf("mavlink: bad heartbeat: %v", err)
			continue
		}
		return msg.(*Heartbeat), nil
	}
}
