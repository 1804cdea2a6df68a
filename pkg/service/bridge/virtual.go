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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

const (
	virtualPinCount = 27
	// Only the most recent operations are kept.
	virtualHistorySize = 1024
)

// OperationKind identifies a hardware operation recorded by the virtual bridge.
type OperationKind string

const (
	OpConfigure OperationKind = "configure"
	OpWrite     OperationKind = "write"
	OpPWMStart  OperationKind = "pwm-start"
	OpPWMDuty   OperationKind = "pwm-duty"
	OpPWMStop   OperationKind = "pwm-stop"
)

// Operation is a single hardware operation executed on the virtual bridge.
type Operation struct {
	Kind  OperationKind
	Pin   int
	Value int
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %d %d", o.Kind, o.Pin, o.Value)
}

type virtualPin struct {
	direction Direction
	value     bool
	pwm       bool
	freq      uint
	duty      int
}

type virtualWatcher struct {
	id   int
	edge Edge
	cb   EdgeFunc
}

// VirtualBridge emulates the GPIO header in memory.
// No hardware is touched; all state lives in this struct.
type VirtualBridge struct {
	mutex         sync.Mutex
	clock         clock.Clock
	pins          map[int]*virtualPin
	watchers      map[int][]virtualWatcher
	nextWatcherID int
	history       []Operation
}

var _ API = &VirtualBridge{}

// NewVirtualBridge implements the bridge for an emulated robot.
// If the given clock is nil, the wall clock is used to timestamp edges.
func NewVirtualBridge(clk clock.Clock) *VirtualBridge {
	if clk == nil {
		clk = clock.New()
	}
	return &VirtualBridge{
		clock:    clk,
		pins:     make(map[int]*virtualPin),
		watchers: make(map[int][]virtualWatcher),
	}
}

// Returns number of local pins
func (p *VirtualBridge) PinCount() int {
	return virtualPinCount
}

// getPin returns the state of the pin with given number, creating it if needed.
// Requires a lock on p.mutex.
func (p *VirtualBridge) getPin(pin int) (*virtualPin, error) {
	if pin < 1 || pin > virtualPinCount {
		return nil, errors.Wrapf(InvalidPinError, "pin %d out of range [1..%d]", pin, virtualPinCount)
	}
	vp, found := p.pins[pin]
	if !found {
		vp = &virtualPin{}
		p.pins[pin] = vp
	}
	return vp, nil
}

func (p *VirtualBridge) record(kind OperationKind, pin, value int) {
	if len(p.history) >= virtualHistorySize {
		n := copy(p.history, p.history[len(p.history)-virtualHistorySize+1:])
		p.history = p.history[:n]
	}
	p.history = append(p.history, Operation{Kind: kind, Pin: pin, Value: value})
}

// Configure sets the I/O direction of the pin with given number.
func (p *VirtualBridge) Configure(pin int, direction Direction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	vp.direction = direction
	p.record(OpConfigure, pin, int(direction))
	return nil
}

// Write sets the level of an output pin.
func (p *VirtualBridge) Write(pin int, value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if vp.direction != DirectionOutput {
		pinErrorsTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	vp.value = value
	pinWritesTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
	p.record(OpWrite, pin, boolToInt(value))
	return nil
}

// Read the level of a pin.
func (p *VirtualBridge) Read(pin int) (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return false, err
	}
	return vp.value, nil
}

// StartPWM starts a PWM signal on an output pin.
func (p *VirtualBridge) StartPWM(pin int, freqHz uint) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if vp.direction != DirectionOutput {
		return errors.Wrapf(InvalidDirectionError, "pin %d is not an output", pin)
	}
	if !vp.pwm {
		vp.duty = 0
	}
	vp.pwm = true
	vp.freq = freqHz
	p.record(OpPWMStart, pin, int(freqHz))
	return nil
}

// SetDuty changes the duty cycle of a running PWM signal.
func (p *VirtualBridge) SetDuty(pin int, percent int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return errors.Wrapf(InvalidDutyError, "duty %d%% on pin %d", percent, pin)
	}
	if !vp.pwm {
		return errors.Wrapf(PWMNotStartedError, "pin %d", pin)
	}
	vp.duty = percent
	vp.value = percent > 0
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(float64(percent))
	p.record(OpPWMDuty, pin, percent)
	return nil
}

// StopPWM stops the PWM signal and drives the pin low.
func (p *VirtualBridge) StopPWM(pin int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	vp, err := p.getPin(pin)
	if err != nil {
		return err
	}
	vp.pwm = false
	vp.duty = 0
	vp.value = false
	pwmDutyGauge.WithLabelValues(strconv.Itoa(pin)).Set(0)
	p.record(OpPWMStop, pin, 0)
	return nil
}

// RegisterEdgeCallback starts watching the input pin for the given edges.
// Edges are produced by SetInput.
func (p *VirtualBridge) RegisterEdgeCallback(pin int, edge Edge, debounce time.Duration, cb EdgeFunc) (func(), error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, err := p.getPin(pin); err != nil {
		return nil, err
	}
	p.nextWatcherID++
	id := p.nextWatcherID
	p.watchers[pin] = append(p.watchers[pin], virtualWatcher{id: id, edge: edge, cb: cb})
	return func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()
		list := p.watchers[pin]
		for i, w := range list {
			if w.id == id {
				p.watchers[pin] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}, nil
}

// SetInput emulates an external level change on the given pin.
// When the level changes, matching edge callbacks are invoked
// on the calling goroutine.
func (p *VirtualBridge) SetInput(pin int, value bool) error {
	p.mutex.Lock()
	vp, err := p.getPin(pin)
	if err != nil {
		p.mutex.Unlock()
		return err
	}
	changed := vp.value != value
	vp.value = value
	var callbacks []EdgeFunc
	if changed {
		for _, w := range p.watchers[pin] {
			if w.edge.Matches(value) {
				callbacks = append(callbacks, w.cb)
			}
		}
	}
	now := p.clock.Now()
	p.mutex.Unlock()

	if changed {
		edgesDetectedTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
	}
	for _, cb := range callbacks {
		cb(EdgeEvent{Pin: pin, Value: value, Time: now})
	}
	return nil
}

// PinState returns the emulated state of a pin.
func (p *VirtualBridge) PinState(pin int) (direction Direction, value bool, pwm bool, duty int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if vp, found := p.pins[pin]; found {
		return vp.direction, vp.value, vp.pwm, vp.duty
	}
	return DirectionInput, false, false, 0
}

// History returns a copy of the most recent hardware operations.
func (p *VirtualBridge) History() []Operation {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return append([]Operation(nil), p.history...)
}

// ResetHistory clears the recorded hardware operations.
func (p *VirtualBridge) ResetHistory() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.history = nil
}

// Close stops all PWM signals and edge watchers.
func (p *VirtualBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, vp := range p.pins {
		vp.pwm = false
		vp.duty = 0
	}
	p.watchers = make(map[int][]virtualWatcher)
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
