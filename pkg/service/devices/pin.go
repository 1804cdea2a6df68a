// Copyright 2025 Ewout Prangsma
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

package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/bridge"
)

const (
	// DefaultPWMFrequency is used when PWM is started without a frequency.
	DefaultPWMFrequency = 100
)

// PinState is a snapshot of the state of a pin.
type PinState struct {
	Number     int              `json:"number"`
	Configured bool             `json:"configured"`
	Direction  bridge.Direction `json:"direction"`
	State      bool             `json:"state"`
	PWMEnabled bool             `json:"pwm_enabled"`
	Duty       int              `json:"duty"`
}

// String returns a human readable form of the state.
func (s PinState) String() string {
	if !s.Configured {
		return fmt.Sprintf("pin %d: unconfigured", s.Number)
	}
	dir := "input"
	if s.Direction == bridge.DirectionOutput {
		dir = "output"
	}
	level := "low"
	if s.State {
		level = "high"
	}
	if s.PWMEnabled {
		return fmt.Sprintf("pin %d: %s %s pwm %d%%", s.Number, dir, level, s.Duty)
	}
	return fmt.Sprintf("pin %d: %s %s", s.Number, dir, level)
}

// Pin is a single GPIO line on the header.
// Until configured, a pin is an input.
type Pin struct {
	mutex      sync.Mutex
	log        zerolog.Logger
	api        bridge.API
	number     int
	configured bool
	direction  bridge.Direction
	state      bool
	pwmEnabled bool
	freqHz     uint
	duty       int
}

var _ Device = &Pin{}

// newPin creates a pin with given number on top of the given bridge.
func newPin(log zerolog.Logger, api bridge.API, number int) *Pin {
	return &Pin{
		log:       log.With().Int("pin", number).Logger(),
		api:       api,
		number:    number,
		direction: bridge.DirectionInput,
	}
}

// Number returns the BCM number of the pin.
func (p *Pin) Number() int {
	return p.number
}

// Configure sets the I/O direction of the pin.
func (p *Pin) Configure(direction bridge.Direction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.log.Debug().Str("direction", direction.String()).Msg("Setting pin direction")
	if err := p.api.Configure(p.number, direction); err != nil {
		return errors.Wrapf(err, "Configure[%d] failed", p.number)
	}
	p.configured = true
	p.direction = direction
	p.state = false
	p.pwmEnabled = false
	p.duty = 0
	return nil
}

// warnUnconfigured logs that the default configuration is used.
// Requires a lock on p.mutex.
func (p *Pin) warnUnconfigured() {
	if !p.configured {
		p.log.Warn().Msg("using default pin configuration")
	}
}

// Write sets the level of the pin.
// Returns DirectionError without side effect when the pin is not an output.
func (p *Pin) Write(value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.warnUnconfigured()
	if p.direction != bridge.DirectionOutput {
		p.log.Warn().Msg("trying to write to an input pin")
		return errors.Wrapf(DirectionError, "pin %d is not an output", p.number)
	}
	if err := p.api.Write(p.number, value); err != nil {
		return errors.Wrapf(err, "Write[%d] failed", p.number)
	}
	p.state = value
	return nil
}

// Read the level of the pin.
// An unconfigured pin returns its cached state.
func (p *Pin) Read() (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.configured {
		p.warnUnconfigured()
		return p.state, nil
	}
	value, err := p.api.Read(p.number)
	if err != nil {
		return p.state, errors.Wrapf(err, "Read[%d] failed", p.number)
	}
	p.state = value
	return value, nil
}

// EnablePWM starts pulse width modulation on the pin with given frequency.
// Enabling an already enabled pin only changes its frequency.
func (p *Pin) EnablePWM(freqHz uint) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.enablePWM(freqHz)
}

// Requires a lock on p.mutex.
func (p *Pin) enablePWM(freqHz uint) error {
	if p.direction != bridge.DirectionOutput {
		return errors.Wrapf(DirectionError, "pin %d is not an output", p.number)
	}
	if freqHz == 0 {
		freqHz = DefaultPWMFrequency
	}
	if p.pwmEnabled && p.freqHz == freqHz {
		p.log.Debug().Msg("PWM is already enabled")
		return nil
	}
	if err := p.api.StartPWM(p.number, freqHz); err != nil {
		return errors.Wrapf(err, "StartPWM[%d] failed", p.number)
	}
	if !p.pwmEnabled {
		p.duty = 0
	}
	p.pwmEnabled = true
	p.freqHz = freqHz
	return nil
}

// SetDuty changes the duty cycle of the PWM signal.
// Returns RangeError when percent is outside [0..100], leaving the duty unchanged.
func (p *Pin) SetDuty(percent int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.setDuty(percent)
}

// Requires a lock on p.mutex.
func (p *Pin) setDuty(percent int) error {
	if percent < 0 || percent > 100 {
		return errors.Wrapf(RangeError, "duty %d%% on pin %d", percent, p.number)
	}
	if p.direction != bridge.DirectionOutput {
		return errors.Wrapf(DirectionError, "pin %d is not an output", p.number)
	}
	if !p.pwmEnabled {
		p.log.Warn().Msg("Cannot set duty cycle, PWM is not enabled")
		return errors.Wrapf(PWMNotEnabledError, "pin %d", p.number)
	}
	if err := p.api.SetDuty(p.number, percent); err != nil {
		return errors.Wrapf(err, "SetDuty[%d] failed", p.number)
	}
	p.log.Debug().Int("duty", percent).Msg("Setting duty cycle")
	p.duty = percent
	p.state = percent > 0
	return nil
}

// StartPWM enables PWM (when needed) and applies the given duty cycle.
// A pin that is already modulating is re-based to the new duty cycle.
func (p *Pin) StartPWM(percent int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if percent < 0 || percent > 100 {
		return errors.Wrapf(RangeError, "duty %d%% on pin %d", percent, p.number)
	}
	if !p.pwmEnabled {
		if err := p.enablePWM(p.freqHz); err != nil {
			return err
		}
	}
	return p.setDuty(percent)
}

// DisablePWM stops pulse width modulation and drives the pin low.
// Disabling a pin without PWM is a no-op.
func (p *Pin) DisablePWM() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.pwmEnabled {
		return nil
	}
	if err := p.api.StopPWM(p.number); err != nil {
		return errors.Wrapf(err, "StopPWM[%d] failed", p.number)
	}
	p.pwmEnabled = false
	p.duty = 0
	p.state = false
	return nil
}

// RegisterEdgeCallback watches the input pin for the given edges.
func (p *Pin) RegisterEdgeCallback(edge bridge.Edge, debounce time.Duration, cb bridge.EdgeFunc) (func(), error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.direction != bridge.DirectionInput {
		return nil, errors.Wrapf(DirectionError, "pin %d is not an input", p.number)
	}
	cancel, err := p.api.RegisterEdgeCallback(p.number, edge, debounce, cb)
	if err != nil {
		return nil, errors.Wrapf(err, "RegisterEdgeCallback[%d] failed", p.number)
	}
	return cancel, nil
}

// State returns a snapshot of the pin.
func (p *Pin) State() PinState {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return PinState{
		Number:     p.number,
		Configured: p.configured,
		Direction:  p.direction,
		State:      p.state,
		PWMEnabled: p.pwmEnabled,
		Duty:       p.duty,
	}
}

// Close brings the pin back to a safe state.
func (p *Pin) Close(ctx context.Context) error {
	if err := p.DisablePWM(); err != nil {
		return maskAny(err)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.configured && p.direction == bridge.DirectionOutput && p.state {
		if err := p.api.Write(p.number, false); err != nil {
			return errors.Wrapf(err, "Write[%d] failed", p.number)
		}
		p.state = false
	}
	return nil
}
