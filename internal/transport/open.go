// Package transport turns endpoint strings into byte streams for the MAVLink
// connection: UDP, TCP and serial ports.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// DialTimeout bounds outbound TCP dials.
const DialTimeout = 10 * time.Second

// Open parses endpoint and opens the stream it names. Listening endpoints
// (udpin, tcpin) return immediately; writes fail with ErrNoPeer until a peer
// has been heard from.
func Open(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return OpenEndpoint(ctx, ep)
}

// OpenEndpoint opens an already parsed endpoint.
func OpenEndpoint(ctx context.Context, ep Endpoint) (io.ReadWriteCloser, error) {
	switch ep.Kind {
	case KindUDPIn:
		return listenUDP(ep.Address)
	case KindUDPOut:
		dialer := net.Dialer{Timeout: DialTimeout}
		conn, err := dialer.DialContext(ctx, "udp", ep.Address)
		if err != nil {
			return nil, fmt.Errorf("transport dial udp: %w", err)
		}
		return conn, nil
	case KindTCP:
		dialer := net.Dialer{Timeout: DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", ep.Address)
		if err != nil {
			return nil, fmt.Errorf("transport dial tcp: %w", err)
		}
		return conn, nil
	case KindTCPIn:
		return listenTCP(ctx, ep.Address)
	case KindSerial:
		return openSerialPort(ep.Address, PortOptions{BaudRate: ep.Baud})
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidEndpoint, ep.Kind)
	}
}
