// Copyright 2020 Ewout Prangsma
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

package objects

import (
	"context"
	"fmt"
	"sync"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/devices"
)

var (
	_ Object = &MotorPair{}
)

// MotorDirection is the direction a motor is turning in.
type MotorDirection string

const (
	MotorForward MotorDirection = "forward"
	MotorReverse MotorDirection = "reverse"
	MotorStopped MotorDirection = "stopped"
)

// MotorSideConfig holds the BCM pin numbers of a single motor.
type MotorSideConfig struct {
	Enable int `yaml:"enable" json:"enable"`
	Dir1   int `yaml:"dir1" json:"dir1"`
	Dir2   int `yaml:"dir2" json:"dir2"`
}

// MotorPairConfig holds the pins of both motors of a T9 motor controller.
type MotorPairConfig struct {
	Left         MotorSideConfig `yaml:"left" json:"left"`
	Right        MotorSideConfig `yaml:"right" json:"right"`
	PWMFrequency uint            `yaml:"pwm_frequency" json:"pwm_frequency"`
}

// DefaultMotorPairConfig returns the wiring of the T9 board.
func DefaultMotorPairConfig() MotorPairConfig {
	return MotorPairConfig{
		Left:         MotorSideConfig{Enable: 17, Dir1: 22, Dir2: 27},
		Right:        MotorSideConfig{Enable: 5, Dir1: 6, Dir2: 13},
		PWMFrequency: devices.DefaultPWMFrequency,
	}
}

// Pins returns all pins used by the configuration.
func (c MotorPairConfig) Pins() []int {
	return []int{
		c.Left.Enable, c.Left.Dir1, c.Left.Dir2,
		c.Right.Enable, c.Right.Dir1, c.Right.Dir2,
	}
}

// MotorSideStatus is a snapshot of a single motor.
type MotorSideStatus struct {
	Direction MotorDirection `json:"direction"`
	Duty      int            `json:"duty"`
}

// MotorPairStatus is a snapshot of both motors.
type MotorPairStatus struct {
	Left  MotorSideStatus `json:"left"`
	Right MotorSideStatus `json:"right"`
}

// String returns a human readable form of the status.
func (s MotorPairStatus) String() string {
	return fmt.Sprintf("left %s %d%%, right %s %d%%",
		s.Left.Direction, s.Left.Duty, s.Right.Direction, s.Right.Duty)
}

type motorSide struct {
	name      string
	enable    *devices.Pin
	dir1      *devices.Pin
	dir2      *devices.Pin
	direction MotorDirection
	duty      int
}

// configure all pins of the motor as outputs, with the motor stopped.
func (s *motorSide) configure(freqHz uint) error {
	for _, p := range []*devices.Pin{s.dir1, s.dir2, s.enable} {
		if err := p.Configure(bridge.DirectionOutput); err != nil {
			return err
		}
		if err := p.Write(false); err != nil {
			return err
		}
	}
	if err := s.enable.EnablePWM(freqHz); err != nil {
		return err
	}
	if err := s.enable.SetDuty(0); err != nil {
		return err
	}
	s.direction = MotorStopped
	s.duty = 0
	return nil
}

// setDirection writes the direction pins.
// The pin that goes low is always written first, so both
// pins are never high at the same time.
func (s *motorSide) setDirection(direction MotorDirection) error {
	var first, second *devices.Pin
	var secondValue bool
	switch direction {
	case MotorForward:
		first, second, secondValue = s.dir2, s.dir1, true
	case MotorReverse:
		first, second, secondValue = s.dir1, s.dir2, true
	default:
		first, second, secondValue = s.dir1, s.dir2, false
	}
	if err := first.Write(false); err != nil {
		return err
	}
	if err := second.Write(secondValue); err != nil {
		return err
	}
	s.direction = direction
	return nil
}

// setSpeed applies the duty cycle to the enable pin.
func (s *motorSide) setSpeed(duty int) error {
	if err := s.enable.StartPWM(duty); err != nil {
		return err
	}
	s.duty = duty
	s.updateGauge()
	return nil
}

// halt stops the PWM signal of the enable pin.
func (s *motorSide) halt() error {
	if err := s.enable.DisablePWM(); err != nil {
		return err
	}
	s.duty = 0
	s.updateGauge()
	return nil
}

func (s *motorSide) updateGauge() {
	value := float64(s.duty)
	if s.direction == MotorReverse {
		value = -value
	}
	motorDutyGauge.WithLabelValues(s.name).Set(value)
}

func (s *motorSide) status() MotorSideStatus {
	return MotorSideStatus{Direction: s.direction, Duty: s.duty}
}

// MotorPair drives the two motors of the robot through a T9 motor controller.
// Every command is broadcasted before it is written to the hardware.
// All methods are safe for concurrent use.
type MotorPair struct {
	mutex       sync.Mutex
	log         zerolog.Logger
	config      MotorPairConfig
	broadcaster Broadcaster
	left        motorSide
	right       motorSide
	configured  bool
}

// NewMotorPair creates a new motor pair for the given configuration.
func NewMotorPair(log zerolog.Logger, devService devices.Service, config MotorPairConfig, broadcaster Broadcaster) (*MotorPair, error) {
	newSide := func(name string, c MotorSideConfig) (motorSide, error) {
		enable, err := devService.Pin(c.Enable)
		if err != nil {
			return motorSide{}, errors.Wrapf(err, "%s enable pin", name)
		}
		dir1, err := devService.Pin(c.Dir1)
		if err != nil {
			return motorSide{}, errors.Wrapf(err, "%s dir1 pin", name)
		}
		dir2, err := devService.Pin(c.Dir2)
		if err != nil {
			return motorSide{}, errors.Wrapf(err, "%s dir2 pin", name)
		}
		return motorSide{
			name:      name,
			enable:    enable,
			dir1:      dir1,
			dir2:      dir2,
			direction: MotorStopped,
		}, nil
	}
	left, err := newSide("left", config.Left)
	if err != nil {
		return nil, err
	}
	right, err := newSide("right", config.Right)
	if err != nil {
		return nil, err
	}
	return &MotorPair{
		log:         log.With().Str("component", "motors").Logger(),
		config:      config,
		broadcaster: broadcaster,
		left:        left,
		right:       right,
	}, nil
}

// Configure puts all motor pins in output mode with both motors stopped.
func (o *MotorPair) Configure(ctx context.Context) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if err := o.left.configure(o.config.PWMFrequency); err != nil {
		return errors.Wrap(err, "left motor")
	}
	if err := o.right.configure(o.config.PWMFrequency); err != nil {
		return errors.Wrap(err, "right motor")
	}
	o.configured = true
	o.log.Debug().Msg("Motors configured")
	return nil
}

// Forward drives both motors forward with given speeds (0..100).
func (o *MotorPair) Forward(left, right int) error {
	return o.drive(MotorForward, "Forward", left, right)
}

// Reverse drives both motors backwards with given speeds (0..100).
func (o *MotorPair) Reverse(left, right int) error {
	return o.drive(MotorReverse, "Reverse", left, right)
}

// drive sets the direction of both motors first, then their speeds.
func (o *MotorPair) drive(direction MotorDirection, name string, left, right int) error {
	if !validSpeed(left) || !validSpeed(right) {
		motorErrorsTotal.WithLabelValues(string(direction)).Inc()
		return errors.Wrapf(RangeError, "%s: speeds %d, %d must be in [0..100]", name, left, right)
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.configured {
		motorErrorsTotal.WithLabelValues(string(direction)).Inc()
		return errors.Wrap(NotConfiguredError, "motors")
	}
	motorCommandsTotal.WithLabelValues(string(direction)).Inc()
	o.broadcaster.Broadcast(fmt.Sprintf("%s: %d, %d", name, left, right))
	o.log.Debug().
		Str("direction", string(direction)).
		Int("left", left).
		Int("right", right).
		Msg("Driving")

	if err := o.left.setDirection(direction); err != nil {
		return o.failed(direction, err)
	}
	if err := o.right.setDirection(direction); err != nil {
		return o.failed(direction, err)
	}
	if err := o.left.setSpeed(left); err != nil {
		return o.failed(direction, err)
	}
	if err := o.right.setSpeed(right); err != nil {
		return o.failed(direction, err)
	}
	return nil
}

// failed records a hardware failure of a drive command.
// Requires a lock on o.mutex.
func (o *MotorPair) failed(direction MotorDirection, err error) error {
	motorErrorsTotal.WithLabelValues(string(direction)).Inc()
	o.log.Warn().Err(err).Str("direction", string(direction)).Msg("Drive failed")
	return errors.Wrapf(err, "drive %s", direction)
}

// Stop both motors.
// Stop always brings every pin it can reach in the stopped state and
// can be called any number of times.
// Hardware failures are reported but do not prevent the other pins
// from being stopped.
func (o *MotorPair) Stop() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	motorCommandsTotal.WithLabelValues(string(MotorStopped)).Inc()
	o.broadcaster.Broadcast("Stop")
	o.log.Debug().Msg("Stopping")
	return o.stop()
}

// stop brings both motors to a halt.
// Requires a lock on o.mutex.
func (o *MotorPair) stop() error {
	if !o.configured {
		return nil
	}
	var ae aerr.AggregateError
	ae.Add(o.left.setDirection(MotorStopped))
	ae.Add(o.right.setDirection(MotorStopped))
	ae.Add(o.left.halt())
	ae.Add(o.right.halt())
	if err := ae.AsError(); err != nil {
		motorErrorsTotal.WithLabelValues(string(MotorStopped)).Inc()
		o.log.Warn().Err(err).Msg("Stop failed")
		return errors.Wrap(err, "stop")
	}
	return nil
}

// Status returns a snapshot of both motors.
func (o *MotorPair) Status() MotorPairStatus {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	return MotorPairStatus{
		Left:  o.left.status(),
		Right: o.right.status(),
	}
}

// Close stops both motors.
func (o *MotorPair) Close(ctx context.Context) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if err := o.stop(); err != nil {
		return maskAny(err)
	}
	o.configured = false
	return nil
}
