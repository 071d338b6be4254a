package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the transport behind an endpoint string.
type Kind int

const (
	KindUDPIn Kind = iota
	KindUDPOut
	KindTCP
	KindTCPIn
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindUDPIn:
		return "udpin"
	case KindUDPOut:
		return "udpout"
	case KindTCP:
		return "tcp"
	case KindTCPIn:
		return "tcpin"
	case KindSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// DefaultBaudRate is used for serial endpoints that do not name one.
const DefaultBaudRate = 57600

// Endpoint is a parsed connection string.
type Endpoint struct {
	Kind    Kind
	Address string // host:port, or the device path for serial
	Baud    int
}

// ParseEndpoint parses a connection string of the forms
//
//	udpin:HOST:PORT  udp:HOST:PORT  udpout:HOST:PORT
//	tcp:HOST:PORT    tcpin:HOST:PORT
//	serial:DEVICE[:BAUD]  DEVICE[,BAUD]
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}

	scheme, rest, found := strings.Cut(s, ":")
	if found {
		switch strings.ToLower(scheme) {
		case "udpin", "udp":
			return netEndpoint(KindUDPIn, rest)
		case "udpout":
			return netEndpoint(KindUDPOut, rest)
		case "tcp":
			return netEndpoint(KindTCP, rest)
		case "tcpin":
			return netEndpoint(KindTCPIn, rest)
		case "serial":
			return serialEndpoint(rest, ":")
		}
	}
	// Bare device path, as in /dev/ttyACM0,921600 or COM3.
	return serialEndpoint(s, ",")
}

func netEndpoint(kind Kind, addr string) (Endpoint, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return Endpoint{}, fmt.Errorf("%w: %s address %q has no port", ErrInvalidEndpoint, kind, addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %s port %q", ErrInvalidEndpoint, kind, addr[i+1:])
	}
	return Endpoint{Kind: kind, Address: addr}, nil
}

func serialEndpoint(s, sep string) (Endpoint, error) {
	ep := Endpoint{Kind: KindSerial, Address: s, Baud: DefaultBaudRate}
	if i := strings.LastIndex(s, sep); i > 0 {
		if baud, err := strconv.Atoi(s[i+1:]); err == nil {
			ep.Address = s[:i]
			ep.Baud = baud
		}
	}
	if ep.Address == "" {
		return Endpoint{}, fmt.Errorf("%w: empty serial device", ErrInvalidEndpoint)
	}
	if ep.Baud <= 0 {
		return Endpoint{}, fmt.Errorf("%w: baud rate %d", ErrInvalidEndpoint, ep.Baud)
	}
	return ep, nil
}

func (e Endpoint) String() string {
	if e.Kind == KindSerial {
		return fmt.Sprintf("serial:%s:%d", e.Address, e.Baud)
	}
	return e.Kind.String() + ":" + e.Address
}
