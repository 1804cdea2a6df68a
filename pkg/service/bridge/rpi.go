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
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ecc1/gpio"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
)

const (
	rpiPinCount      = 27
	rpiEdgePollDelay = time.Millisecond * 2
)

type softPWM struct {
	sync.Mutex
	pin    gpio.OutputPin
	freq   uint
	duty   int
	cancel func()
}

// Start (or re-base) the modulation loop.
func (s *softPWM) Start(freqHz uint) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	s.freq = freqHz
	if s.cancel != nil {
		// Already running, the loop picks up the new frequency
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
}

// SetDuty changes the duty cycle of the modulation loop.
func (s *softPWM) SetDuty(percent int) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.duty = percent
}

// Stop the modulation loop and drive the pin low.
func (s *softPWM) Stop() error {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if cancel := s.cancel; cancel != nil {
		s.cancel = nil
		cancel()
	}
	s.duty = 0
	if err := s.pin.Write(false); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

func (s *softPWM) run(ctx context.Context) {
	for {
		s.Mutex.Lock()
		freq, duty := s.freq, s.duty
		s.Mutex.Unlock()
		if freq == 0 {
			freq = 100
		}
		period := time.Second / time.Duration(freq)
		high := period * time.Duration(duty) / 100

		if high > 0 {
			if !s.write(ctx, true) {
				return
			}
			select {
			case <-time.After(high):
			case <-ctx.Done():
				return
			}
		}
		if low := period - high; low > 0 {
			if !s.write(ctx, false) {
				return
			}
			select {
			case <-time.After(low):
			case <-ctx.Done():
				return
			}
		}
	}
}

// write drives the pin to the given level, unless the loop is stopped.
// Stop holds the same lock, so no level lands after Stop returns.
func (s *softPWM) write(ctx context.Context, level bool) bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if ctx.Err() != nil {
		return false
	}
	s.pin.Write(level)
	return true
}

type piPin struct {
	direction Direction
	value     bool
	input     gpio.InputPin
	output    gpio.OutputPin
	pwm       *softPWM
}

type piBridge struct {
	mutex   sync.Mutex
	pins    map[int]*piPin
	cancels map[int]func()
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's using
// the sysfs GPIO interface. PWM is generated in software.
func NewRaspberryPiBridge() (API, error) {
	return &piBridge{
		pins:    make(map[int]*piPin),
		cancels: make(map[int]func()),
	}, nil
}

// Returns number of local pins
func (p *piBridge) PinCount() int {
	return rpiPinCount
}

func (p *piBridge) getPin(pin int) (*piPin, error) {
	if pin < 1 || pin > rpiPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d out of range [1..%d]", pin, rpiPinCount)
	}
	pp, found := p.pins[pin]
	if !found {
		pp = &piPin{}
		p.pins[pin] = pp
	}
	return pp, nil
}

// Configure sets the I/O direction of the pin with given number.
func (p *piBridge) Configure(pin int, direction Direction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	activeLow := false
	switch direction {
	case DirectionInput:
		in, err := gpio.Input(pin, activeLow)
		if err != nil {
			return errors.Wrapf(err, "Input[%d] failed", pin)
		}
		pp.input, pp.output = in, nil
	case DirectionOutput:
		out, err := gpio.Output(pin, activeLow, false)
		if err != nil {
			return errors.Wrapf(err, "Output[%d] failed", pin)
		}
		pp.input, pp.output = nil, out
	default:
		return errors.Wrapf(InvalidDirectionError, "direction %d", direction)
	}
	pp.direction = direction
	pp.value = false
	return nil
}

// Write sets the level of an output pin.
func (p *piBridge) Write(pin int, value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if pp.output == nil {
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	if err := pp.output.Write(value); err != nil {
		pinErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		return errors.Wrapf(err, "Write[%d] failed", pin)
	}
	pp.value = value
	pinWritesTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
	return nil
}

// Read the level of a pin.
// Output pins return the last written value.
func (p *piBridge) Read(pin int) (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return false, err
	}
	if pp.input == nil {
		return pp.value, nil
	}
	value, err := pp.input.Read()
	if err != nil {
		pinErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		return false, errors.Wrapf(err, "Read[%d] failed", pin)
	}
	pp.value = value
	return value, nil
}

// StartPWM starts a software PWM signal on an output pin.
func (p *piBridge) StartPWM(pin int, freqHz uint) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if pp.output == nil {
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	if pp.pwm == nil {
		pp.pwm = &softPWM{pin: pp.output}
	}
	pp.pwm.Start(freqHz)
	return nil
}

// SetDuty changes the duty cycle of a running PWM signal.
func (p *piBridge) SetDuty(pin int, percent int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return errors.Wrapf(InvalidDutyError, "duty %d%% on pin %d", percent, pin)
	}
	if pp.pwm == nil {
		return errors.Wrapf(PWMNotStartedError, "pin %d", pin)
	}
	pp.pwm.SetDuty(percent)
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(float64(percent))
	return nil
}

// StopPWM stops the PWM signal and drives the pin low.
func (p *piBridge) StopPWM(pin int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if pp.pwm == nil {
		return nil
	}
	pwm := pp.pwm
	pp.pwm = nil
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(0)
	if err := pwm.Stop(); err != nil {
		return errors.Wrapf(err, "StopPWM[%d] failed", pin)
	}
	return nil
}

// RegisterEdgeCallback polls the input pin and reports level changes.
func (p *piBridge) RegisterEdgeCallback(pin int, edge Edge, debounce time.Duration, cb EdgeFunc) (func(), error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return nil, err
	}
	if pp.input == nil {
		return nil, errors.Wrapf(InvalidDirectionError, "pin %d is not an input", pin)
	}
	if cancel, found := p.cancels[pin]; found {
		cancel()
	}
	input := pp.input
	ctx, cancel := context.WithCancel(context.Background())
	p.cancels[pin] = cancel
	go func() {
		last, _ := input.Read()
		for {
			select {
			case <-time.After(rpiEdgePollDelay):
			case <-ctx.Done():
				return
			}
			value, err := input.Read()
			if err != nil || value == last {
				continue
			}
			last = value
			edgesDetectedTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
			if edge.Matches(value) {
				cb(EdgeEvent{Pin: pin, Value: value, Time: time.Now()})
			}
		}
	}()
	return cancel, nil
}

// Close stops all PWM signals and edge watchers.
func (p *piBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = make(map[int]func())
	for pin, pp := range p.pins {
		if pp.pwm != nil {
			if err := pp.pwm.Stop(); err != nil {
				ae.Add(errors.Wrapf(err, "StopPWM[%d] failed", pin))
			}
			pp.pwm = nil
		}
	}
	return ae.AsError()
}
