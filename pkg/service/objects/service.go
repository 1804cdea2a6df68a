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

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/devices"
)

// Config holds the configuration of all objects of the robot.
type Config struct {
	Motors      MotorPairConfig `yaml:"motors" json:"motors"`
	Sensor      SensorConfig    `yaml:"sensor" json:"sensor"`
	StartButton ButtonConfig    `yaml:"start_button" json:"start_button"`
	StopButton  ButtonConfig    `yaml:"stop_button" json:"stop_button"`
}

// DefaultConfig returns the wiring of the line following robot.
func DefaultConfig() Config {
	return Config{
		Motors:      DefaultMotorPairConfig(),
		Sensor:      DefaultSensorConfig(),
		StartButton: DefaultStartButtonConfig(),
		StopButton:  DefaultStopButtonConfig(),
	}
}

// Service contains the API that is exposed by the object service.
type Service interface {
	// Motors returns the motor pair.
	Motors() *MotorPair
	// Sensor returns the line sensor.
	Sensor() *Sensor
	// StartButton returns the button that starts autonomous mode.
	StartButton() *Button
	// StopButton returns the button that stops autonomous mode.
	StopButton() *Button
	// Configure is called once to put all objects in the desired state.
	Configure(ctx context.Context) error
	// Attach starts watching all inputs, posting their edges on the given loop.
	Attach(loop Poster) error
	// Close brings all objects back to a safe state.
	Close(ctx context.Context) error
}

type service struct {
	log         zerolog.Logger
	motors      *MotorPair
	sensor      *Sensor
	startButton *Button
	stopButton  *Button
}

// NewService instantiates a new Service and Object's for the given
// configuration.
func NewService(config Config, devService devices.Service, broadcaster Broadcaster, log zerolog.Logger) (Service, error) {
	log = log.With().Str("component", "object-service").Logger()
	motors, err := NewMotorPair(log, devService, config.Motors, broadcaster)
	if err != nil {
		return nil, maskAny(err)
	}
	sensor, err := NewSensor(log, devService, config.Sensor, broadcaster)
	if err != nil {
		return nil, maskAny(err)
	}
	startButton, err := NewButton(log, devService, config.StartButton, broadcaster)
	if err != nil {
		return nil, maskAny(err)
	}
	stopButton, err := NewButton(log, devService, config.StopButton, broadcaster)
	if err != nil {
		return nil, maskAny(err)
	}
	return &service{
		log:         log,
		motors:      motors,
		sensor:      sensor,
		startButton: startButton,
		stopButton:  stopButton,
	}, nil
}

func (s *service) Motors() *MotorPair   { return s.motors }
func (s *service) Sensor() *Sensor      { return s.sensor }
func (s *service) StartButton() *Button { return s.startButton }
func (s *service) StopButton() *Button  { return s.stopButton }

func (s *service) objects() []Object {
	return []Object{s.motors, s.sensor, s.startButton, s.stopButton}
}

// Configure is called once to put all objects in the desired state.
func (s *service) Configure(ctx context.Context) error {
	var ae aerr.AggregateError
	configured := 0
	for _, obj := range s.objects() {
		if err := obj.Configure(ctx); err != nil {
			s.log.Error().Err(err).Msg("Failed to configure object")
			ae.Add(err)
		} else {
			configured++
		}
	}
	objectsConfiguredTotal.Set(float64(configured))
	return ae.AsError()
}

// Attach starts watching all inputs.
func (s *service) Attach(loop Poster) error {
	var ae aerr.AggregateError
	for _, input := range []*EdgeInput{s.sensor.EdgeInput, s.startButton.EdgeInput, s.stopButton.EdgeInput} {
		ae.Add(input.Attach(loop))
	}
	return ae.AsError()
}

// Close brings all objects back to a safe state.
func (s *service) Close(ctx context.Context) error {
	var ae aerr.AggregateError
	for _, obj := range s.objects() {
		ae.Add(obj.Close(ctx))
	}
	objectsConfiguredTotal.Set(0)
	return ae.AsError()
}
