package sensors

import (
	"math"
	"sync"

	"github.com/eytandecker/mavbridge/pkg/types"
)

// GPSFix is a GPS sample in the fixed-point units of the wire format.
type GPSFix struct {
	FixType           uint8
	Latitude          int32  // deg * 1e7
	Longitude         int32  // deg * 1e7
	Altitude          int32  // mm
	EPH               uint16
	EPV               uint16
	Velocity          uint16 // cm/s
	VelocityNorth     int16  // cm/s
	VelocityEast      int16  // cm/s
	VelocityDown      int16  // cm/s
	Course            uint16 // cdeg
	SatellitesVisible uint8
}

// ToFixed converts a sample to wire units. Scaling truncates toward zero
// rather than rounding, and values outside a field's range saturate at its
// bounds instead of wrapping.
func ToFixed(s types.GPSSample) GPSFix {
	return GPSFix{
		FixType:           s.FixType,
		Latitude:          fixedInt32(s.Latitude * 1e7),
		Longitude:         fixedInt32(s.Longitude * 1e7),
		Altitude:          fixedInt32(s.Altitude * 1e3),
		EPH:               fixedUint16(s.EPH),
		EPV:               fixedUint16(s.EPV),
		Velocity:          fixedUint16(s.Speed * 100),
		VelocityNorth:     fixedInt16(s.VelocityNorth * 100),
		VelocityEast:      fixedInt16(s.VelocityEast * 100),
		VelocityDown:      fixedInt16(s.VelocityDown * 100),
		Course:            fixedUint16(s.Course * 100),
		SatellitesVisible: uint8(min(max(s.SatellitesVisible, 0), math.MaxUint8)), //nolint:gosec // clamped
	}
}

// fixedInt32, fixedInt16 and fixedUint16 truncate v and clamp it to the
// target range. NaN maps to zero.
func fixedInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func fixedInt16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func fixedUint16(v float64) uint16 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// GPSAggregator holds the latest GPS fix and whether it has been sent.
type GPSAggregator struct {
	mu    sync.Mutex
	fix   GPSFix
	dirty bool
}

// NewGPSAggregator returns an empty GPSAggregator.
func NewGPSAggregator() *GPSAggregator {
	return &GPSAggregator{}
}

// Update replaces the stored fix wholesale and marks it dirty.
func (g *GPSAggregator) Update(s types.GPSSample) {
	fix := ToFixed(s)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fix = fix
	g.dirty = true
}

// DrainIfDirty returns the fix and clears the flag when it has changed since
// the last drain; otherwise it returns false.
func (g *GPSAggregator) DrainIfDirty() (GPSFix, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.dirty {
		return GPSFix{}, false
	}
	g.dirty = false
	return g.fix, true
}

// Latest returns the most recent fix regardless of the dirty flag.
func (g *GPSAggregator) Latest() GPSFix {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fix
}
