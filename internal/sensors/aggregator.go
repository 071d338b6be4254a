// Package sensors keeps the latest simulated sensor values between producer
// writes and scheduler drains, tracking which groups changed since the last
// drain.
package sensors

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/mavbridge/pkg/types"
)

// Source is a bitmask of sensor groups. The values are the HIL_SENSOR
// fields_updated bits for each group and must not change.
type Source uint32

const (
	SourceAccel     Source = 0x07   // xacc, yacc, zacc
	SourceGyro      Source = 0x38   // xgyro, ygyro, zgyro
	SourceMag       Source = 0x1C0  // xmag, ymag, zmag
	SourceBaro      Source = 0x1A00 // abs_pressure, pressure_alt, temperature
	SourceDiffPress Source = 0x400  // diff_pressure
)

// Has reports whether every bit of g is set in s.
func (s Source) Has(g Source) bool {
	return s&g == g
}

// Reading is a full copy of every sensor field.
type Reading struct {
	Accel            mgl64.Vec3
	Gyro             mgl64.Vec3
	Mag              mgl64.Vec3
	AbsPressure      float64
	DiffPressure     float64
	PressureAltitude float64
	Temperature      float64
}

// Aggregator holds the latest value of every sensor channel plus the set of
// groups written since the previous Drain.
type Aggregator struct {
	mu      sync.Mutex
	reading Reading
	dirty   Source
}

// NewAggregator returns an Aggregator with all fields zero and nothing dirty.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// UpdateIMU stores an accelerometer and gyroscope reading.
func (a *Aggregator) UpdateIMU(s types.IMUSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reading.Accel = s.Accel
	a.reading.Gyro = s.Gyro
	a.dirty |= SourceAccel | SourceGyro
}

// UpdateBarometer stores a barometer reading.
func (a *Aggregator) UpdateBarometer(s types.BaroSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reading.AbsPressure = s.AbsPressure
	a.reading.PressureAltitude = s.PressureAltitude
	a.reading.Temperature = s.Temperature
	a.dirty |= SourceBaro
}

// UpdateMagnetometer stores a magnetometer reading.
func (a *Aggregator) UpdateMagnetometer(s types.MagSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reading.Mag = s.Field
	a.dirty |= SourceMag
}

// UpdateAirspeed stores a differential pressure reading.
func (a *Aggregator) UpdateAirspeed(s types.AirspeedSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reading.DiffPressure = s.DiffPressure
	a.dirty |= SourceDiffPress
}

// Drain returns every field together with the groups written since the last
// Drain, and clears them. The copy and the clear happen under one lock, so a
// write is reported by exactly one Drain.
func (a *Aggregator) Drain() (Reading, Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mask := a.dirty
	a.dirty = 0
	return a.reading, mask
}

// Pending reports the groups written since the last Drain without clearing them.
func (a *Aggregator) Pending() Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}
