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
	"time"

	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/devices"
)

const (
	// DefaultSensorDebounce is the debounce window of a line sensor.
	DefaultSensorDebounce = time.Millisecond * 100
)

var (
	_ Object = &Sensor{}
)

// SensorConfig holds the configuration of a line sensor.
type SensorConfig struct {
	Pin      int           `yaml:"pin" json:"pin"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	// Invert makes a light surface read as 1.
	Invert bool `yaml:"invert" json:"invert"`
}

// DefaultSensorConfig returns the configuration of the reflective line sensor.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Pin:      26,
		Debounce: DefaultSensorDebounce,
	}
}

// Sensor is a reflective line sensor.
// A light surface reads as 0, a dark surface (the line) as 1.
type Sensor struct {
	*EdgeInput
	invert bool
}

// NewSensor creates a new line sensor for the given configuration.
func NewSensor(log zerolog.Logger, devService devices.Service, config SensorConfig, broadcaster Broadcaster) (*Sensor, error) {
	pin, err := devService.Pin(config.Pin)
	if err != nil {
		return nil, maskAny(err)
	}
	return &Sensor{
		EdgeInput: newEdgeInput(log, "Sensor", "Sensor event", pin, config.Debounce, broadcaster),
		invert:    config.Invert,
	}, nil
}

// SetHandlers sets the functions called when the sensor moves
// onto a light or a dark surface.
func (s *Sensor) SetHandlers(onLight, onDark func()) {
	if s.invert {
		s.setCallbacks(onLight, onDark)
	} else {
		s.setCallbacks(onDark, onLight)
	}
}

// IsDark reads the sensor and returns true when it sees the line.
func (s *Sensor) IsDark() (bool, error) {
	value, err := s.Read()
	if err != nil {
		return false, err
	}
	return value != s.invert, nil
}
