package transport

import "errors"

var (
	ErrInvalidEndpoint = errors.New("transport: invalid endpoint")
	ErrNoPeer          = errors.New("transport: no peer connected yet")
	ErrClosed          = errors.New("transport: closed")
)
