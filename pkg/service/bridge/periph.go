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

package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	periphPinCount      = 27
	periphEdgeWaitDelay = time.Millisecond * 100
)

type periphPin struct {
	io        gpio.PinIO
	direction Direction
	value     bool
	pwm       bool
	freq      physic.Frequency
	cancel    func()
}

type periphBridge struct {
	mutex sync.Mutex
	pins  map[int]*periphPin
}

// NewPeriphBridge implements the bridge using periph.io.
// Edges are interrupt driven and PWM is generated by the SoC.
func NewPeriphBridge() (API, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init failed")
	}
	return &periphBridge{
		pins: make(map[int]*periphPin),
	}, nil
}

// Returns number of local pins
func (p *periphBridge) PinCount() int {
	return periphPinCount
}

func (p *periphBridge) getPin(pin int) (*periphPin, error) {
	if pin < 1 || pin > periphPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d out of range [1..%d]", pin, periphPinCount)
	}
	if pp, found := p.pins[pin]; found {
		return pp, nil
	}
	name := fmt.Sprintf("GPIO%d", pin)
	io := gpioreg.ByName(name)
	if io == nil {
		return nil, errors.Wrapf(InvalidPinError, "pin %d (%s) not found in hardware", pin, name)
	}
	pp := &periphPin{io: io}
	p.pins[pin] = pp
	return pp, nil
}

// Configure sets the I/O direction of the pin with given number.
func (p *periphBridge) Configure(pin int, direction Direction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	switch direction {
	case DirectionInput:
		if err := pp.io.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return errors.Wrapf(err, "In[%d] failed", pin)
		}
	case DirectionOutput:
		if err := pp.io.Out(gpio.Low); err != nil {
			return errors.Wrapf(err, "Out[%d] failed", pin)
		}
	default:
		return errors.Wrapf(InvalidDirectionError, "direction %d", direction)
	}
	pp.direction = direction
	pp.value = false
	return nil
}

// Write sets the level of an output pin.
func (p *periphBridge) Write(pin int, value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if pp.direction != DirectionOutput {
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	if err := pp.io.Out(gpio.Level(value)); err != nil {
		pinErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		return errors.Wrapf(err, "Out[%d] failed", pin)
	}
	pp.value = value
	pinWritesTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
	return nil
}

// Read the level of a pin.
func (p *periphBridge) Read(pin int) (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return false, err
	}
	if pp.direction == DirectionOutput {
		return pp.value, nil
	}
	pp.value = pp.io.Read() == gpio.High
	return pp.value, nil
}

// StartPWM starts a hardware PWM signal with 0% duty.
func (p *periphBridge) StartPWM(pin int, freqHz uint) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if pp.direction != DirectionOutput {
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	pp.freq = physic.Frequency(freqHz) * physic.Hertz
	if pp.pwm {
		// Re-base on the new frequency, keeping the signal running
		return nil
	}
	if err := pp.io.PWM(0, pp.freq); err != nil {
		return errors.Wrapf(err, "PWM[%d] failed", pin)
	}
	pp.pwm = true
	return nil
}

// SetDuty changes the duty cycle of a running PWM signal.
func (p *periphBridge) SetDuty(pin int, percent int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return errors.Wrapf(InvalidDutyError, "duty %d%% on pin %d", percent, pin)
	}
	if !pp.pwm {
		return errors.Wrapf(PWMNotStartedError, "pin %d", pin)
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(percent) / 100)
	if err := pp.io.PWM(duty, pp.freq); err != nil {
		pinErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		return errors.Wrapf(err, "PWM[%d] failed", pin)
	}
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(float64(percent))
	return nil
}

// StopPWM stops the PWM signal and drives the pin low.
func (p *periphBridge) StopPWM(pin int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	pp.pwm = false
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(0)
	if pp.direction != DirectionOutput {
		return nil
	}
	if err := pp.io.Out(gpio.Low); err != nil {
		return errors.Wrapf(err, "Out[%d] failed", pin)
	}
	pp.value = false
	return nil
}

// RegisterEdgeCallback arms interrupt edge detection on the input pin.
func (p *periphBridge) RegisterEdgeCallback(pin int, edge Edge, debounce time.Duration, cb EdgeFunc) (func(), error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pp, err := p.getPin(pin)
	if err != nil {
		return nil, err
	}
	if pp.direction != DirectionInput {
		return nil, errors.Wrapf(InvalidDirectionError, "pin %d is not an input", pin)
	}
	if err := pp.io.In(gpio.PullNoChange, periphEdge(edge)); err != nil {
		return nil, errors.Wrapf(err, "In[%d] failed", pin)
	}
	if pp.cancel != nil {
		pp.cancel()
	}
	io := pp.io
	ctx, cancel := context.WithCancel(context.Background())
	pp.cancel = cancel
	go func() {
		for ctx.Err() == nil {
			if !io.WaitForEdge(periphEdgeWaitDelay) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			edgesDetectedTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
			cb(EdgeEvent{Pin: pin, Value: io.Read() == gpio.High, Time: time.Now()})
		}
	}()
	return cancel, nil
}

// Close stops all PWM signals and edge watchers.
func (p *periphBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for pin, pp := range p.pins {
		if pp.cancel != nil {
			pp.cancel()
			pp.cancel = nil
		}
		if err := pp.io.Halt(); err != nil {
			ae.Add(errors.Wrapf(err, "Halt[%d] failed", pin))
		}
	}
	return ae.AsError()
}

func periphEdge(edge Edge) gpio.Edge {
	switch edge {
	case EdgeRising:
		return gpio.RisingEdge
	case EdgeFalling:
		return gpio.FallingEdge
	case EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}
