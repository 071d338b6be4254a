// Package actuator holds the latest control outputs received from the
// autopilot and maps them to motor outputs.
package actuator

import (
	"sync"
	"time"

	"github.com/eytandecker/mavbridge/internal/timeutil"
	"github.com/eytandecker/mavbridge/pkg/types"
)

// State holds a concurrent-safe copy of the most recent actuator command,
// sized to the configured thruster count.
type State struct {
	mu          sync.RWMutex
	thrusters   int
	mixer       Mixer
	clock       timeutil.Clock
	cmd         types.ActuatorCommand
	lastUpdated time.Time
}

// NewState creates a State for the given number of thrusters. A nil mixer
// selects the identity LinearMixer.
func NewState(thrusters int, mixer Mixer) *State {
	if mixer == nil {
		mixer = &LinearMixer{}
	}
	s := &State{
		thrusters: thrusters,
		mixer:     mixer,
		clock:     timeutil.RealClock{},
	}
	s.cmd = s.zeroCommand()
	return s
}

// SetClock replaces the clock used to stamp updates.
func (s *State) SetClock(c timeutil.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

func (s *State) zeroCommand() types.ActuatorCommand {
	return types.ActuatorCommand{Controls: make([]float64, s.thrusters)}
}

// Update stores a new command. Controls beyond the thruster count are
// dropped; missing ones are zero.
func (s *State) Update(cmd types.ActuatorCommand) {
	controls := make([]float64, s.thrusters)
	copy(controls, cmd.Controls)
	cmd.Controls = controls

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = cmd
	s.lastUpdated = s.clock.Now()
}

// Command returns a copy of the latest command and whether one has been
// received since construction or the last Reset.
func (s *State) Command() (types.ActuatorCommand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cmd.Clone(), !s.lastUpdated.IsZero()
}

// Latest returns the latest command, or ErrNoCommand before the first Update.
func (s *State) Latest() (types.ActuatorCommand, error) {
	cmd, ok := s.Command()
	if !ok {
		return types.ActuatorCommand{}, ErrNoCommand
	}
	return cmd, nil
}

// Outputs returns the mixed motor outputs for the latest command. Before any
// command arrives every output is zero.
func (s *State) Outputs() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mixer.Mix(s.cmd)
}

// Mix applies the configured mixer to cmd.
func (s *State) Mix(cmd types.ActuatorCommand) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mixer.Mix(cmd)
}

// Thrusters returns the configured thruster count.
func (s *State) Thrusters() int {
	return s.thrusters
}

// LastUpdated returns the time of the most recent Update, or zero if never updated.
func (s *State) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Reset forgets the stored command.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = s.zeroCommand()
	s.lastUpdated = time.Time{}
}
