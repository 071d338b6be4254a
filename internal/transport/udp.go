package transport

import (
	"fmt"
	"net"
	"sync"
)

// udpListener receives from any sender and replies to the most recent one.
type udpListener struct {
	pc   *net.UDPConn
	mu   sync.Mutex
	peer *net.UDPAddr
}

func listenUDP(addr string) (*udpListener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport resolve udp: %w", err)
	}
	pc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport listen udp: %w", err)
	}
	return &udpListener{pc: pc}, nil
}

func (u *udpListener) Read(p []byte) (int, error) {
	n, addr, err := u.pc.ReadFromUDP(p)
	if err != nil {
		return n, err
	}
	u.mu.Lock()
	u.peer = addr
	u.mu.Unlock()
	return n, nil
}

func (u *udpListener) Write(p []byte) (int, error) {
	u.mu.Lock()
	peer := u.peer
	u.mu.Unlock()
	if peer == nil {
		return 0, ErrNoPeer
	}
	return u.pc.WriteToUDP(p, peer)
}

func (u *udpListener) Close() error {
	return u.pc.Close()
}

// LocalAddr reports the bound address, which matters when listening on port 0.
func (u *udpListener) LocalAddr() net.Addr {
	return u.pc.LocalAddr()
}
