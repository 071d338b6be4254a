package mavlink

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRCAccumulateCheckValue(t *testing.T) {
	// CRC-16/MCRF4XX check value for "123456789".
	crc := uint16(0xFFFF)
	for _, b := range []byte("123456789") {
		crc = crcAccumulate(b, crc)
	}
	assert.Equal(t, uint16(0x6F91), crc)
}

func TestEncodeFrameLayout(t *testing.T) {
	payload := NewBridgeHeartbeat().Marshal()
	data, err := EncodeFrame(Frame{Seq: 7, SystemID: 255, ComponentID: 0, MsgID: MsgIDHeartbeat, Payload: payload})
	require.NoError(t, err)

	require.Len(t, data, HeaderSizeV2+len(payload)+ChecksumSize)
	assert.Equal(t, byte(STXv2), data[0])
	assert.Equal(t, byte(len(payload)), data[1])
	assert.Equal(t, byte(0), data[2], "incompat flags")
	assert.Equal(t, byte(0), data[3], "compat flags")
	assert.Equal(t, byte(7), data[4])
	assert.Equal(t, byte(255), data[5])
	assert.Equal(t, byte(0), data[6])
	assert.Equal(t, []byte{0, 0, 0}, data[7:10])
	assert.Equal(t, payload, data[10:10+len(payload)])

	crc := binary.LittleEndian.Uint16(data[len(data)-2:])
	assert.Equal(t, Checksum(data[1:len(data)-2], 50), crc)
}

func TestEncodeFrameTruncatesTrailingZeros(t *testing.T) {
	msg := &HilSensor{TimeUsec: 1}
	data, err := EncodeFrame(Frame{MsgID: MsgIDHilSensor, Payload: msg.Marshal()})
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[1], "only the first byte of time_usec is non-zero")

	f, n, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Len(t, f.Payload, 65, "payload is zero padded back to full length")
}

func TestEncodeFrameKeepsOneByte(t *testing.T) {
	data, err := EncodeFrame(Frame{MsgID: MsgIDHilSensor, Payload: (&HilSensor{}).Marshal()})
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[1])
}

func TestEncodeFrameUnknownMessage(t *testing.T) {
	_, err := EncodeFrame(Frame{MsgID: 9999, Payload: []byte{1}})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestDecodeFrameV2RoundTrip(t *testing.T) {
	in := Frame{Version: 2, Seq: 200, SystemID: 1, ComponentID: 1, MsgID: MsgIDHilActuatorControls}
	ctrl := &HilActuatorControls{TimeUsec: 123456, Mode: MavModeFlagSafetyArmed, Flags: 1}
	ctrl.Controls[0] = 0.5
	ctrl.Controls[3] = -0.25
	in.Payload = ctrl.Marshal()

	data, err := EncodeFrame(in)
	require.NoError(t, err)

	got, n, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, in, got)
}

func TestDecodeFrameV1(t *testing.T) {
	payload := (&Heartbeat{Type: 2, Autopilot: 12, BaseMode: 0x81, MavlinkVersion: 3}).Marshal()
	data := []byte{STXv1, byte(len(payload)), 9, 1, 1, byte(MsgIDHeartbeat)}
	data = append(data, payload...)
	data = binary.LittleEndian.AppendUint16(data, Checksum(data[1:], 50))

	f, n, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, 1, f.Version)
	assert.Equal(t, uint8(9), f.Seq)
	assert.Equal(t, payload, f.Payload)
}

func TestDecodeFrameErrors(t *testing.T) {
	good, err := EncodeFrame(Frame{MsgID: MsgIDHeartbeat, Payload: NewBridgeHeartbeat().Marshal()})
	require.NoError(t, err)

	corrupt := append([]byte(nil), good...)
	corrupt[12] ^= 0xFF

	unknown := []byte{STXv2, 1, 0, 0, 0, 1, 1, 0x0F, 0x27, 0, 0x42, 0, 0}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrShortFrame},
		{"truncated header", good[:5], ErrShortFrame},
		{"truncated payload", good[:len(good)-1], ErrShortFrame},
		{"bad magic", []byte{0x00, 1, 2, 3}, ErrBadMagic},
		{"bad checksum", corrupt, ErrBadChecksum},
		{"unknown message", unknown, ErrUnknownMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeFrameSkipsSignature(t *testing.T) {
	data, err := EncodeFrame(Frame{MsgID: MsgIDHeartbeat, Payload: NewBridgeHeartbeat().Marshal()})
	require.NoError(t, err)

	data[2] = IncompatFlagSigned
	crcEnd := len(data) - ChecksumSize
	binary.LittleEndian.PutUint16(data[crcEnd:], Checksum(data[1:crcEnd], 50))
	data = append(data, make([]byte, SignatureSize)...)

	_, n, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestFrameReaderResyncsAfterGarbage(t *testing.T) {
	hb, err := EncodeFrame(Frame{Seq: 1, MsgID: MsgIDHeartbeat, Payload: NewBridgeHeartbeat().Marshal()})
	require.NoError(t, err)
	sensor, err := EncodeFrame(Frame{Seq: 2, MsgID: MsgIDHilSensor, Payload: (&HilSensor{Xacc: 1}).Marshal()})
	require.NoError(t, err)

	corrupt := append([]byte(nil), hb...)
	corrupt[len(corrupt)-1] ^= 0xFF

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x11, 0x22})
	stream.Write(corrupt)
	stream.Write(hb)
	stream.Write([]byte{0x33})
	stream.Write(sensor)

	fr := NewFrameReader(&stream)

	_, err = fr.ReadFrame()
	assert.ErrorIs(t, err, ErrBadChecksum)

	f, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, MsgIDHeartbeat, f.MsgID)
	assert.Equal(t, uint8(1), f.Seq)

	f, err = fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, MsgIDHilSensor, f.MsgID)

	_, err = fr.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReaderSkipsUnknownMessage(t *testing.T) {
	unknown := []byte{STXv2, 1, 0, 0, 0, 1, 1, 0x0F, 0x27, 0, 0x42, 0xAA, 0xBB}
	hb, err := EncodeFrame(Frame{MsgID: MsgIDHeartbeat, Payload: NewBridgeHeartbeat().Marshal()})
	require.NoError(t, err)

	fr := NewFrameReader(bytes.NewReader(append(unknown, hb...)))

	_, err = fr.ReadFrame()
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.True(t, IsDecodeError(err))

	f, err := fr.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, MsgIDHeartbeat, f.MsgID)
}
