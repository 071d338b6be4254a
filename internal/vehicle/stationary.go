// Package vehicle provides a simulated vehicle resting at a fixed position.
// It feeds the bridge physically plausible at-rest sensor data so an
// autopilot link can be exercised without a physics engine.
package vehicle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/mavbridge/internal/monitoring"
	"github.com/eytandecker/mavbridge/pkg/types"
)

const (
	gravity = 9.80665 // m/s^2

	seaLevelPressure    = 101325.0 // Pa
	seaLevelTemperature = 15.0     // degC
	lapseRate           = 0.0065   // K/m
)

// Earth magnetic field in NED, gauss, roughly that of central Europe.
var earthField = mgl64.Vec3{0.21, 0.0, 0.42}

// Sink receives the samples. bridge.Bridge satisfies it.
type Sink interface {
	UpdateIMU(types.IMUSample)
	UpdateBarometer(types.BaroSample)
	UpdateMagnetometer(types.MagSample)
	UpdateGPS(types.GPSSample)
	NotifyIMU()
}

// Config places the vehicle and sets its sensor rates.
type Config struct {
	HomeLatitude  float64 // deg
	HomeLongitude float64 // deg
	HomeAltitude  float64 // m AMSL
	Heading       float64 // deg from north
	IMURate       float64 // Hz
	BaroRate      float64 // Hz
	GPSRate       float64 // Hz
}

// Stationary is a vehicle sitting still at its home position.
type Stationary struct {
	cfg  Config
	sink Sink

	attitude  mgl64.Quat
	baroEvery int
	gpsEvery  int

	mu      sync.Mutex
	armed   bool
	outputs []float64
}

// NewStationary creates a Stationary vehicle. Zero rates default to 250 Hz
// IMU, 50 Hz barometer and magnetometer, and 10 Hz GPS.
func NewStationary(cfg Config, sink Sink) *Stationary {
	if cfg.IMURate <= 0 {
		cfg.IMURate = 250
	}
	if cfg.BaroRate <= 0 {
		cfg.BaroRate = 50
	}
	if cfg.GPSRate <= 0 {
		cfg.GPSRate = 10
	}
	return &Stationary{
		cfg:       cfg,
		sink:      sink,
		attitude:  mgl64.AnglesToQuat(mgl64.DegToRad(cfg.Heading), 0, 0, mgl64.ZYX),
		baroEvery: divisor(cfg.IMURate, cfg.BaroRate),
		gpsEvery:  divisor(cfg.IMURate, cfg.GPSRate),
	}
}

func divisor(base, rate float64) int {
	n := int(math.Round(base / rate))
	if n < 1 {
		return 1
	}
	return n
}

// toBody rotates a NED vector into the body frame.
func (s *Stationary) toBody(v mgl64.Vec3) mgl64.Vec3 {
	return s.attitude.Inverse().Rotate(v)
}

// IMU returns the at-rest accelerometer and gyroscope reading: the specific
// force opposing gravity and no rotation.
func (s *Stationary) IMU() types.IMUSample {
	return types.IMUSample{
		Accel: s.toBody(mgl64.Vec3{0, 0, -gravity}),
		Gyro:  mgl64.Vec3{},
	}
}

// Magnetometer returns the earth field seen in the body frame.
func (s *Stationary) Magnetometer() types.MagSample {
	return types.MagSample{Field: s.toBody(earthField)}
}

// Barometer returns the ISA standard atmosphere at the home altitude, with
// pressure in hPa.
func (s *Stationary) Barometer() types.BaroSample {
	h := s.cfg.HomeAltitude
	pressure := seaLevelPressure * math.Pow(1-2.25577e-5*h, 5.25588)
	return types.BaroSample{
		AbsPressure:      pressure / 100,
		PressureAltitude: h,
		Temperature:      seaLevelTemperature - lapseRate*h,
	}
}

// GPS returns a 3D fix at the home position.
func (s *Stationary) GPS() types.GPSSample {
	return types.GPSSample{
		FixType:           3,
		Latitude:          s.cfg.HomeLatitude,
		Longitude:         s.cfg.HomeLongitude,
		Altitude:          s.cfg.HomeAltitude,
		EPH:               1,
		EPV:               1,
		Course:            0,
		SatellitesVisible: 10,
	}
}

// Step publishes the samples due at step n. The IMU is sent every step and
// followed by NotifyIMU; slower sensors are sent on their divisors.
func (s *Stationary) Step(n int) {
	s.sink.UpdateIMU(s.IMU())
	if n%s.baroEvery == 0 {
		s.sink.UpdateBarometer(s.Barometer())
		s.sink.UpdateMagnetometer(s.Magnetometer())
	}
	if n%s.gpsEvery == 0 {
		s.sink.UpdateGPS(s.GPS())
	}
	s.sink.NotifyIMU()
}

// Run steps at the IMU rate until ctx is done.
func (s *Stationary) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.IMURate))
	defer ticker.Stop()

	for n := 0; ; n++ {
		s.Step(n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HandleControl receives actuator commands from the bridge. A stationary
// vehicle does not move; it records the outputs and logs arming changes.
func (s *Stationary) HandleControl(cmd types.ActuatorCommand, outputs []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Armed != s.armed {
		if cmd.Armed {
			monitoring.Logf("vehicle: armed")
		} else {
			monitoring.Logf("vehicle: disarmed")
		}
		s.armed = cmd.Armed
	}
	s.outputs = append(s.outputs[:0], outputs...)
}

// Armed reports the arming state of the last command.
func (s *Stationary) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Outputs returns a copy of the last motor outputs.
func (s *Stationary) Outputs() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.outputs...)
}
