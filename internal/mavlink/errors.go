package mavlink

import "errors"

var (
	ErrNotConnected   = errors.New("mavlink: not connected")
	ErrClosed         = errors.New("mavlink: connection closed")
	ErrShortFrame     = errors.New("mavlink: short frame")
	ErrBadMagic       = errors.New("mavlink: bad start byte")
	ErrBadChecksum    = errors.New("mavlink: bad checksum")
	ErrUnknownMessage = errors.New("mavlink: unknown message")
	ErrShortPayload   = errors.New("mavlink: payload too short")
)

// IsDecodeError reports whether err describes a malformed or unsupported
// inbound frame rather than a broken stream.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrBadChecksum) ||
		errors.Is(err, ErrUnknownMessage) ||
		errors.Is(err, ErrShortPayload)
}

func isUnknown(err error) bool {
	return errors.Is(err, ErrUnknownMessage)
}
