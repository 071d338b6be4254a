package types

import "github.com/go-gl/mathgl/mgl64"

// IMUSample is one accelerometer plus gyroscope reading. Both arrive in the
// same physical message, so they are always updated together.
type IMUSample struct {
	Accel mgl64.Vec3 // m/s^2
	Gyro  mgl64.Vec3 // rad/s
}

// MagSample is a magnetometer reading in gauss.
type MagSample struct {
	Field mgl64.Vec3
}

// BaroSample is a barometer reading.
type BaroSample struct {
	AbsPressure      float64 // hPa
	PressureAltitude float64 // m
	Temperature      float64 // degC
}

// AirspeedSample is a differential pressure reading in hPa.
type AirspeedSample struct {
	DiffPressure float64
}

// GPSSample is a GPS fix in natural units. It is converted to the fixed-point
// wire representation when stored.
type GPSSample struct {
	FixType           uint8
	Latitude          float64 // deg
	Longitude         float64 // deg
	Altitude          float64 // m
	EPH               float64
	EPV               float64
	Speed             float64 // m/s
	VelocityNorth     float64 // m/s
	VelocityEast      float64 // m/s
	VelocityDown      float64 // m/s
	Course            float64 // deg
	SatellitesVisible int
}
