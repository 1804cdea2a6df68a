// Copyright 2024 Ewout Prangsma
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

package linefollower

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State of the line follower.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Motors is the part of the motor pair used by the line follower.
type Motors interface {
	Forward(left, right int) error
	Stop() error
}

// LineSensor detects the line.
type LineSensor interface {
	IsDark() (bool, error)
	SetHandlers(onLight, onDark func())
}

// Button is a push button.
type Button interface {
	IsPressed() (bool, error)
	SetHandlers(onPress, onRelease func())
}

// Broadcaster sends status lines to all connected parties.
type Broadcaster interface {
	Broadcast(msg string) int
}

// Poster runs functions on the event loop.
type Poster interface {
	Post(fn func()) bool
}

// StateChange is published every time the line follower changes state.
type StateChange struct {
	State   State
	Profile Profile
}

// Status is a snapshot of the line follower.
type Status struct {
	State       State   `json:"state"`
	Profile     Profile `json:"profile"`
	Calibrating bool    `json:"calibrating"`
}

// Controller steers the robot along a dark line using a single sensor.
// On the line it steers away to one side, off the line it steers back,
// so the robot zig-zags along the edge of the line.
//
// Button and sensor handlers are expected to run on the event loop.
type Controller struct {
	mutex       sync.Mutex
	log         zerolog.Logger
	clock       clock.Clock
	loop        Poster
	motors      Motors
	sensor      LineSensor
	startButton Button
	broadcaster Broadcaster
	config      Config
	state       State
	profile     Profile
	calibration *clock.Timer
	// Incremented for every calibration, so an outdated timer is ignored.
	calibrationSeq int
	stateChanges   *pubsub.PubSub

	receiversMutex sync.Mutex
	receivers      map[int]func(StateChange)
	lastReceiverID int
}

// New creates a line follower and registers its handlers
// with the given sensor and buttons.
func New(log zerolog.Logger, clk clock.Clock, loop Poster, motors Motors, sensor LineSensor, startButton, stopButton Button, broadcaster Broadcaster, config Config) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	c := &Controller{
		log:          log.With().Str("component", "linefollower").Logger(),
		clock:        clk,
		loop:         loop,
		motors:       motors,
		sensor:       sensor,
		startButton:  startButton,
		broadcaster:  broadcaster,
		config:       config,
		state:        StateStopped,
		profile:      config.Fast,
		stateChanges: pubsub.New(),
		receivers:    make(map[int]func(StateChange)),
	}
	c.stateChanges.Sub(c.notifyReceivers)
	go c.logReceiverErrors()
	sensor.SetHandlers(c.onLight, c.onDark)
	startButton.SetHandlers(c.onStartPressed, nil)
	stopButton.SetHandlers(c.onStopPressed, nil)
	stateGauge.Set(0)
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

// Status returns a snapshot of the line follower.
func (c *Controller) Status() Status {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return Status{
		State:       c.state,
		Profile:     c.profile,
		Calibrating: c.calibration != nil,
	}
}

// RegisterStateReceiver registers a callback that is called for every
// state change.
// The callback is called on its own goroutine.
func (c *Controller) RegisterStateReceiver(cb func(StateChange)) context.CancelFunc {
	c.receiversMutex.Lock()
	defer c.receiversMutex.Unlock()

	c.lastReceiverID++
	id := c.lastReceiverID
	c.receivers[id] = cb
	return func() {
		c.receiversMutex.Lock()
		defer c.receiversMutex.Unlock()
		delete(c.receivers, id)
	}
}

// notifyReceivers passes a state change to all registered receivers.
func (c *Controller) notifyReceivers(x StateChange) {
	c.receiversMutex.Lock()
	ids := make([]int, 0, len(c.receivers))
	for id := range c.receivers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	receivers := make([]func(StateChange), 0, len(ids))
	for _, id := range ids {
		receivers = append(receivers, c.receivers[id])
	}
	c.receiversMutex.Unlock()

	for _, cb := range receivers {
		c.notifyReceiver(cb, x)
	}
}

func (c *Controller) notifyReceiver(cb func(StateChange), x StateChange) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("State receiver panicked")
		}
	}()
	cb(x)
}

// logReceiverErrors drains the error channel of the state bus.
func (c *Controller) logReceiverErrors() {
	for err := range c.stateChanges.Error() {
		c.log.Error().Err(err).Msg("State receiver failed")
	}
}

// Start autonomous mode with the fast profile, without calibration.
// Starting a running line follower is a no-op.
func (c *Controller) Start() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == StateRunning {
		return nil
	}
	c.cancelCalibration()
	return c.enterRunning(c.config.Fast)
}

// Stop autonomous mode and stop the motors.
// Stopping a line follower that is calibrating cancels the calibration.
// Stopping a stopped line follower is a no-op.
func (c *Controller) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cancelCalibration() {
		c.log.Info().Msg("Calibration canceled")
		return nil
	}
	if c.state != StateRunning {
		return nil
	}
	c.setState(StateStopped)
	if err := c.motors.Stop(); err != nil {
		return errors.Wrap(err, "stop motors")
	}
	return nil
}

// Disengage leaves autonomous mode without stopping the motors.
// Used when manual control takes over.
func (c *Controller) Disengage() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cancelCalibration()
	if c.state == StateRunning {
		c.setState(StateStopped)
	}
}

// onStartPressed is called when the start button is pressed.
func (c *Controller) onStartPressed() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == StateRunning || c.calibration != nil {
		c.log.Debug().Msg("Ignoring start button")
		return
	}
	if c.config.CalibrationDelay <= 0 {
		if err := c.enterRunning(c.config.Fast); err != nil {
			c.log.Warn().Err(err).Msg("Start failed")
		}
		return
	}
	c.calibrationSeq++
	seq := c.calibrationSeq
	c.log.Info().Dur("delay", c.config.CalibrationDelay).Msg("Calibrating")
	c.calibration = c.clock.AfterFunc(c.config.CalibrationDelay, func() {
		if !c.loop.Post(func() { c.finishCalibration(seq) }) {
			c.log.Warn().Msg("Failed to post calibration result")
			c.abortCalibration(seq)
		}
	})
}

// finishCalibration selects the profile depending on the start button
// and starts running.
func (c *Controller) finishCalibration(seq int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.calibration == nil || seq != c.calibrationSeq {
		// Canceled
		return
	}
	c.calibration = nil

	profile, name := c.config.Fast, "fast"
	if pressed, err := c.startButton.IsPressed(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to read start button, using fast profile")
	} else if pressed {
		profile, name = c.config.Slow, "slow"
	}
	calibrationsTotal.WithLabelValues(name).Inc()
	c.log.Info().Str("profile", name).Msg("Calibrated")
	if err := c.enterRunning(profile); err != nil {
		c.log.Warn().Err(err).Msg("Start failed")
	}
}

// abortCalibration drops the given calibration, so the start button
// can be used again.
func (c *Controller) abortCalibration(seq int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.calibration == nil || seq != c.calibrationSeq {
		return
	}
	c.cancelCalibration()
	c.broadcaster.Broadcast("Autonomous: calibration aborted")
}

// onStopPressed is called when the stop button is pressed.
func (c *Controller) onStopPressed() {
	if err := c.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("Stop failed")
	}
}

// onLight is called when the sensor moves off the line.
func (c *Controller) onLight() {
	c.steer(false)
}

// onDark is called when the sensor moves onto the line.
func (c *Controller) onDark() {
	c.steer(true)
}

func (c *Controller) steer(dark bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != StateRunning {
		return
	}
	if err := c.applyBias(dark); err != nil {
		c.log.Warn().Err(err).Bool("dark", dark).Msg("Steering failed")
	}
}

// applyBias steers away from or back to the line.
// Requires a lock on c.mutex.
func (c *Controller) applyBias(dark bool) error {
	p := c.profile
	if dark {
		steeringTotal.WithLabelValues("dark").Inc()
		return c.motors.Forward(p.High, p.Low)
	}
	steeringTotal.WithLabelValues("light").Inc()
	return c.motors.Forward(p.Low, p.High)
}

// enterRunning switches to running with the given profile and
// applies the bias for the current sensor value.
// Requires a lock on c.mutex.
func (c *Controller) enterRunning(profile Profile) error {
	c.profile = profile
	c.setState(StateRunning)
	dark, err := c.sensor.IsDark()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read sensor, assuming light")
	}
	return c.applyBias(dark)
}

// cancelCalibration stops a pending calibration.
// Returns true if a calibration was pending.
// Requires a lock on c.mutex.
func (c *Controller) cancelCalibration() bool {
	if c.calibration == nil {
		return false
	}
	c.calibration.Stop()
	c.calibration = nil
	c.calibrationSeq++
	return true
}

// setState changes the state and notifies everyone.
// Requires a lock on c.mutex.
func (c *Controller) setState(state State) {
	c.state = state
	if state == StateRunning {
		stateGauge.Set(1)
	} else {
		stateGauge.Set(0)
	}
	transitionsTotal.WithLabelValues(string(state)).Inc()
	c.log.Info().
		Str("state", string(state)).
		Str("profile", c.profile.String()).
		Msg("State changed")
	c.broadcaster.Broadcast("Autonomous: " + string(state))
	c.stateChanges.Pub(StateChange{State: state, Profile: c.profile})
}
