// Copyright 2017 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package bridge

import (
	"time"
)

// API of the bridge, the hardware capability used to access the GPIO
// header of the single board computer the robot is built on.
// Pins are addressed using Broadcom (BCM) numbering.
type API interface {
	// Returns number of local pins
	PinCount() int

	// Configure sets the I/O direction of the pin with given number.
	Configure(pin int, direction Direction) error
	// Write sets the level of an output pin.
	Write(pin int, value bool) error
	// Read the level of a pin.
	Read(pin int) (bool, error)

	// StartPWM starts a pulse width modulated signal on an output pin
	// with given frequency. The initial duty cycle is 0%.
	// Starting PWM on a pin that is already modulating only changes the frequency.
	StartPWM(pin int, freqHz uint) error
	// SetDuty changes the duty cycle (0..100%) of a running PWM signal.
	SetDuty(pin int, percent int) error
	// StopPWM stops the PWM signal and drives the pin low.
	StopPWM(pin int) error

	// RegisterEdgeCallback starts watching the input pin for the given edges.
	// The callback is invoked from a goroutine owned by the bridge.
	// The debounce duration is a hint; drivers may use it to tune their
	// detection, callers must still filter edges themselves.
	// Call the returned function to stop watching.
	RegisterEdgeCallback(pin int, edge Edge, debounce time.Duration, cb EdgeFunc) (func(), error)

	// Close brings all pins back to a safe state.
	Close() error
}

// Direction of a pin
type Direction uint8

const (
	// DirectionInput configures a pin for reading
	DirectionInput Direction = iota
	// DirectionOutput configures a pin for writing
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// Edge selects the transitions an edge callback is interested in.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Matches returns true when a transition to the given level
// is selected by the edge.
func (e Edge) Matches(value bool) bool {
	switch e {
	case EdgeRising:
		return value
	case EdgeFalling:
		return !value
	case EdgeBoth:
		return true
	default:
		return false
	}
}

// EdgeEvent is a single transition detected on an input pin.
type EdgeEvent struct {
	// Pin that changed
	Pin int
	// Value is the new level of the pin (true for rising)
	Value bool
	// Time the transition was detected
	Time time.Time
}

// EdgeFunc is the signature of edge callbacks.
type EdgeFunc func(EdgeEvent)
