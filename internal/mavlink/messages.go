package mavlink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Message ids of the common dialect subset used by the bridge.
const (
	MsgIDHeartbeat           uint32 = 0
	MsgIDHilActuatorControls uint32 = 93
	MsgIDHilSensor           uint32 = 107
	MsgIDHilGPS              uint32 = 113
)

const (
	MavTypeGeneric         uint8 = 0
	MavAutopilotInvalid    uint8 = 8
	MavModeFlagSafetyArmed uint8 = 0x80
	MavlinkVersion         uint8 = 3
)

// Message is an encodable MAVLink message.
type Message interface {
	MsgID() uint32
	Marshal() []byte
}

// Heartbeat is HEARTBEAT (#0).
type Heartbeat struct {
	CustomMode     uint32
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	SystemStatus   uint8
	MavlinkVersion uint8
}

// NewBridgeHeartbeat returns the heartbeat the bridge sends: generic vehicle,
// no autopilot, everything else zero.
func NewBridgeHeartbeat() *Heartbeat {
	return &Heartbeat{
		Type:           MavTypeGeneric,
		Autopilot:      MavAutopilotInvalid,
		MavlinkVersion: MavlinkVersion,
	}
}

func (*Heartbeat) MsgID() uint32 { return MsgIDHeartbeat }

func (m *Heartbeat) Marshal() []byte {
	buf := make([]byte, 0, 9)
	buf = binary.LittleEndian.AppendUint32(buf, m.CustomMode)
	return append(buf, m.Type, m.Autopilot, m.BaseMode, m.SystemStatus, m.MavlinkVersion)
}

func (m *Heartbeat) unmarshal(p []byte) error {
	if len(p) < 9 {
		return fmt.Errorf("%w: heartbeat got %d bytes", ErrShortPayload, len(p))
	}
	m.CustomMode = binary.LittleEndian.Uint32(p[0:4])
	m.Type = p[4]
	m.Autopilot = p[5]
	m.BaseMode = p[6]
	m.SystemStatus = p[7]
	m.MavlinkVersion = p[8]
	return nil
}

// HilSensor is HIL_SENSOR (#107).
type HilSensor struct {
	TimeUsec      uint64
	Xacc          float32
	Yacc          float32
	Zacc          float32
	Xgyro         float32
	Ygyro         float32
	Zgyro         float32
	Xmag          float32
	Ymag          float32
	Zmag          float32
	AbsPressure   float32
	DiffPressure  float32
	PressureAlt   float32
	Temperature   float32
	FieldsUpdated uint32
	ID            uint8
}

func (*HilSensor) MsgID() uint32 { return MsgIDHilSensor }

func (m *HilSensor) Marshal() []byte {
	buf := make([]byte, 0, 65)
	buf = binary.LittleEndian.AppendUint64(buf, m.TimeUsec)
	for _, v := range []float32{
		m.Xacc, m.Yacc, m.Zacc,
		m.Xgyro, m.Ygyro, m.Zgyro,
		m.Xmag, m.Ymag, m.Zmag,
		m.AbsPressure, m.DiffPressure, m.PressureAlt, m.Temperature,
	} {
		buf = appendFloat32(buf, v)
	}
	buf = binary.LittleEndian.AppendUint32(buf, m.FieldsUpdated)
	return append(buf, m.ID)
}

func (m *HilSensor) unmarshal(p []byte) error {
	if len(p) < 64 {
		return fmt.Errorf("%w: hil_sensor got %d bytes", ErrShortPayload, len(p))
	}
	m.TimeUsec = binary.LittleEndian.Uint64(p[0:8])
	fields := []*float32{
		&m.Xacc, &m.Yacc, &m.Zacc,
		&m.Xgyro, &m.Ygyro, &m.Zgyro,
		&m.Xmag, &m.Ymag, &m.Zmag,
		&m.AbsPressure, &m.DiffPressure, &m.PressureAlt, &m.Temperature,
	}
	for i, f := range fields {
		*f = float32At(p, 8+i*4)
	}
	m.FieldsUpdated = binary.LittleEndian.Uint32(p[60:64])
	if len(p) > 64 {
		m.ID = p[64]
	}
	return nil
}

// HilGPS is HIL_GPS (#113). Position and velocity are fixed point.
type HilGPS struct {
	TimeUsec          uint64
	Lat               int32 // deg * 1e7
	Lon               int32 // deg * 1e7
	Alt               int32 // mm
	EPH               uint16
	EPV               uint16
	Vel               uint16 // cm/s
	Vn                int16  // cm/s
	Ve                int16  // cm/s
	Vd                int16  // cm/s
	COG               uint16 // cdeg
	FixType           uint8
	SatellitesVisible uint8
	ID                uint8
	Yaw               uint16
}

func (*HilGPS) MsgID() uint32 { return MsgIDHilGPS }

func (m *HilGPS) Marshal() []byte {
	buf := make([]byte, 0, 39)
	buf = binary.LittleEndian.AppendUint64(buf, m.TimeUsec)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Lat)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Lon)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.Alt)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint16(buf, m.EPH)
	buf = binary.LittleEndian.AppendUint16(buf, m.EPV)
	buf = binary.LittleEndian.AppendUint16(buf, m.Vel)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.Vn)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.Ve)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.Vd)) //nolint:gosec // two's complement reinterpretation
	buf = binary.LittleEndian.AppendUint16(buf, m.COG)
	buf = append(buf, m.FixType, m.SatellitesVisible, m.ID)
	return binary.LittleEndian.AppendUint16(buf, m.Yaw)
}

func (m *HilGPS) unmarshal(p []byte) error {
	if len(p) < 36 {
		return fmt.Errorf("%w: hil_gps got %d bytes", ErrShortPayload, len(p))
	}
	m.TimeUsec = binary.LittleEndian.Uint64(p[0:8])
	m.Lat = int32(binary.LittleEndian.Uint32(p[8:12]))  //nolint:gosec // two's complement reinterpretation
	m.Lon = int32(binary.LittleEndian.Uint32(p[12:16])) //nolint:gosec // two's complement reinterpretation
	m.Alt = int32(binary.LittleEndian.Uint32(p[16:20])) //nolint:gosec // two's complement reinterpretation
	m.EPH = binary.LittleEndian.Uint16(p[20:22])
	m.EPV = binary.LittleEndian.Uint16(p[22:24])
	m.Vel = binary.LittleEndian.Uint16(p[24:26])
	m.Vn = int16(binary.LittleEndian.Uint16(p[26:28])) //nolint:gosec // two's complement reinterpretation
	m.Ve = int16(binary.LittleEndian.Uint16(p[28:30])) //nolint:gosec // two's complement reinterpretation
	m.Vd = int16(binary.LittleEndian.Uint16(p[30:32])) //nolint:gosec // two's complement reinterpretation
	m.COG = binary.LittleEndian.Uint16(p[32:34])
	m.FixType = p[34]
	m.SatellitesVisible = p[35]
	if len(p) >= 39 {
		m.ID = p[36]
		m.Yaw = binary.LittleEndian.Uint16(p[37:39])
	}
	return nil
}

// HilActuatorControls is HIL_ACTUATOR_CONTROLS (#93), sent by the autopilot.
type HilActuatorControls struct {
	TimeUsec uint64
	Flags    uint64
	Controls [16]float32
	Mode     uint8
}

func (*HilActuatorControls) MsgID() uint32 { return MsgIDHilActuatorControls }

// Armed reports whether the mode carries the safety-armed flag.
func (m *HilActuatorControls) Armed() bool {
	return m.Mode&MavModeFlagSafetyArmed != 0
}

func (m *HilActuatorControls) Marshal() []byte {
	buf := make([]byte, 0, 81)
	buf = binary.LittleEndian.AppendUint64(buf, m.TimeUsec)
	buf = binary.LittleEndian.AppendUint64(buf, m.Flags)
	for _, v := range m.Controls {
		buf = appendFloat32(buf, v)
	}
	return append(buf, m.Mode)
}

func (m *HilActuatorControls) unmarshal(p []byte) error {
	if len(p) < 81 {
		return fmt.Errorf("%w: hil_actuator_controls got %d bytes", ErrShortPayload, len(p))
	}
	m.TimeUsec = binary.LittleEndian.Uint64(p[0:8])
	m.Flags = binary.LittleEndian.Uint64(p[8:16])
	for i := range m.Controls {
		m.Controls[i] = float32At(p, 16+i*4)
	}
	m.Mode = p[80]
	return nil
}

type decodable interface {
	Message
	unmarshal([]byte) error
}

// DecodeMessage turns a frame into its typed message.
func DecodeMessage(f Frame) (Message, error) {
	var msg decodable
	switch f.MsgID {
	case MsgIDHeartbeat:
		msg = &Heartbeat{}
	case MsgIDHilSensor:
		msg = &HilSensor{}
	case MsgIDHilGPS:
		msg = &HilGPS{}
	case MsgIDHilActuatorControls:
		msg = &HilActuatorControls{}
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownMessage, f.MsgID)
	}
	if err := msg.unmarshal(f.Payload); err != nil {
		return nil, err
	}
	return msg, nil
}

func appendFloat32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

func float32At(p []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4]))
}
