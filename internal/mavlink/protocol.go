package mavlink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	STXv1 = 0xFE
	STXv2 = 0xFD

	HeaderSizeV1   = 6
	HeaderSizeV2   = 10
	ChecksumSize   = 2
	SignatureSize  = 13
	MaxPayloadSize = 255

	IncompatFlagSigned = 0x01
)

// Frame is one MAVLink packet with its payload. Payloads of known messages are
// zero-padded to their full length on decode.
type Frame struct {
	Version     int
	Seq         uint8
	SystemID    uint8
	ComponentID uint8
	MsgID       uint32
	Payload     []byte
}

// msgSpec carries the per-message constants needed to check and pad a frame.
type msgSpec struct {
	crcExtra byte
	baseLen  int // fields covered by the v1 wire format
	maxLen   int // base fields plus extensions
}

var specs = map[uint32]msgSpec{
	MsgIDHeartbeat:           {crcExtra: 50, baseLen: 9, maxLen: 9},
	MsgIDHilActuatorControls: {crcExtra: 47, baseLen: 81, maxLen: 81},
	MsgIDHilSensor:           {crcExtra: 108, baseLen: 64, maxLen: 65},
	MsgIDHilGPS:              {crcExtra: 124, baseLen: 36, maxLen: 39},
}

// crcAccumulate folds one byte into a CRC-16/MCRF4XX (X.25) checksum.
func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

// Checksum computes the frame checksum over data followed by the message's
// CRC_EXTRA seed byte.
func Checksum(data []byte, crcExtra byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}
	return crcAccumulate(crcExtra, crc)
}

// EncodeFrame serializes f as a MAVLink 2 packet. Trailing zero bytes of the
// payload are truncated as the v2 format requires; at least one byte is kept.
func EncodeFrame(f Frame) ([]byte, error) {
	spec, ok := specs[f.MsgID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownMessage, f.MsgID)
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too long: %d bytes", len(f.Payload))
	}

	payload := f.Payload
	for len(payload) > 1 && payload[len(payload)-1] == 0 {
		payload = payload[:len(payload)-1]
	}

	buf := make([]byte, 0, HeaderSizeV2+len(payload)+ChecksumSize)
	buf = append(buf,
		STXv2,
		byte(len(payload)),
		0, // incompat flags
		0, // compat flags
		f.Seq,
		f.SystemID,
		f.ComponentID,
		byte(f.MsgID), byte(f.MsgID>>8), byte(f.MsgID>>16),
	)
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint16(buf, Checksum(buf[1:], spec.crcExtra))
	return buf, nil
}

// frameLength returns the total on-wire length of the frame starting at data[0],
// given at least its header.
func frameLength(data []byte) (int, error) {
	switch data[0] {
	case STXv2:
		if len(data) < HeaderSizeV2 {
			return 0, ErrShortFrame
		}
		n := HeaderSizeV2 + int(data[1]) + ChecksumSize
		if data[2]&IncompatFlagSigned != 0 {
			n += SignatureSize
		}
		return n, nil
	case STXv1:
		if len(data) < HeaderSizeV1 {
			return 0, ErrShortFrame
		}
		return HeaderSizeV1 + int(data[1]) + ChecksumSize, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrBadMagic, data[0])
	}
}

// DecodeFrame parses the frame at the start of data. It returns the frame and
// the number of bytes it occupied. Frames of unknown messages report
// ErrUnknownMessage together with their length so a reader can skip them.
func DecodeFrame(data []byte) (Frame, int, error) {
	if len(data) == 0 {
		return Frame{}, 0, ErrShortFrame
	}
	n, err := frameLength(data)
	if err != nil {
		return Frame{}, 0, err
	}
	if len(data) < n {
		return Frame{}, 0, ErrShortFrame
	}

	var f Frame
	var hdr int
	if data[0] == STXv2 {
		hdr = HeaderSizeV2
		f = Frame{
			Version:     2,
			Seq:         data[4],
			SystemID:    data[5],
			ComponentID: data[6],
			MsgID:       uint32(data[7]) | uint32(data[8])<<8 | uint32(data[9])<<16,
		}
	} else {
		hdr = HeaderSizeV1
		f = Frame{
			Version:     1,
			Seq:         data[2],
			SystemID:    data[3],
			ComponentID: data[4],
			MsgID:       uint32(data[5]),
		}
	}

	spec, ok := specs[f.MsgID]
	if !ok {
		return Frame{}, n, fmt.Errorf("%w: id %d", ErrUnknownMessage, f.MsgID)
	}

	payloadLen := int(data[1])
	crcEnd := hdr + payloadLen
	want := binary.LittleEndian.Uint16(data[crcEnd : crcEnd+ChecksumSize])
	if got := Checksum(data[1:crcEnd], spec.crcExtra); got != want {
		return Frame{}, n, fmt.Errorf("%w: msg %d got 0x%04x want 0x%04x", ErrBadChecksum, f.MsgID, got, want)
	}

	size := spec.maxLen
	if payloadLen > size {
		size = payloadLen
	}
	f.Payload = make([]byte, size)
	copy(f.Payload, data[hdr:crcEnd])
	return f, n, nil
}

// FrameReader extracts frames from a byte stream, resynchronizing on the next
// start byte after garbage or a checksum failure.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for frame extraction.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame. Decode failures (ErrBadChecksum,
// ErrUnknownMessage) are returned so the caller can count them; the reader
// stays usable afterwards. Any other error comes from the underlying stream.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if b != STXv1 && b != STXv2 {
			continue
		}

		hdrLen := HeaderSizeV1
		if b == STXv2 {
			hdrLen = HeaderSizeV2
		}
		rest, err := fr.r.Peek(hdrLen - 1)
		if err != nil {
			return Frame{}, err
		}
		head := append([]byte{b}, rest...)
		total, err := frameLength(head)
		if err != nil {
			return Frame{}, err
		}

		rest, err = fr.r.Peek(total - 1)
		if err != nil {
			return Frame{}, err
		}
		f, n, err := DecodeFrame(append([]byte{b}, rest...))
		switch {
		case err == nil:
			_, _ = fr.r.Discard(n - 1)
			return f, nil
		case n > 0 && isUnknown(err):
			_, _ = fr.r.Discard(n - 1)
			return Frame{}, err
		default:
			// Leave the bytes in place so a start byte inside them can be found.
			return Frame{}, err
		}
	}
}
