package bridge

import (
	"time"

	"github.com/eytandecker/mavbridge/internal/mavlink"
	"github.com/eytandecker/mavbridge/internal/sensors"
	"github.com/eytandecker/mavbridge/pkg/types"
)

// Both HIL messages carry whole seconds since the epoch in time_usec.
func wireTime(now time.Time) uint64 {
	return uint64(now.Unix()) //nolint:gosec // wall clock is after 1970
}

func encodeSensor(now time.Time, r sensors.Reading, mask sensors.Source) *mavlink.HilSensor {
	return &mavlink.HilSensor{
		TimeUsec:      wireTime(now),
		Xacc:          float32(r.Accel.X()),
		Yacc:          float32(r.Accel.Y()),
		Zacc:          float32(r.Accel.Z()),
		Xgyro:         float32(r.Gyro.X()),
		Ygyro:         float32(r.Gyro.Y()),
		Zgyro:         float32(r.Gyro.Z()),
		Xmag:          float32(r.Mag.X()),
		Ymag:          float32(r.Mag.Y()),
		Zmag:          float32(r.Mag.Z()),
		AbsPressure:   float32(r.AbsPressure),
		DiffPressure:  float32(r.DiffPressure),
		PressureAlt:   float32(r.PressureAltitude),
		Temperature:   float32(r.Temperature),
		FieldsUpdated: uint32(mask),
	}
}

func encodeGPS(now time.Time, fix sensors.GPSFix) *mavlink.HilGPS {
	return &mavlink.HilGPS{
		TimeUsec:          wireTime(now),
		FixType:           fix.FixType,
		Lat:               fix.Latitude,
		Lon:               fix.Longitude,
		Alt:               fix.Altitude,
		EPH:               fix.EPH,
		EPV:               fix.EPV,
		Vel:               fix.Velocity,
		Vn:                fix.VelocityNorth,
		Ve:                fix.VelocityEast,
		Vd:                fix.VelocityDown,
		COG:               fix.Course,
		SatellitesVisible: fix.SatellitesVisible,
	}
}

func decodeActuator(m *mavlink.HilActuatorControls) types.ActuatorCommand {
	controls := make([]float64, len(m.Controls))
	for i, v := range m.Controls {
		controls[i] = float64(v)
	}
	return types.ActuatorCommand{
		Controls: controls,
		Armed:    m.Armed(),
		Mode:     m.Mode,
		Flags:    m.Flags,
		TimeUsec: m.TimeUsec,
	}
}
