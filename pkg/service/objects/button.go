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
	// DefaultButtonDebounce is the debounce window of a push button.
	DefaultButtonDebounce = time.Millisecond * 200
)

var (
	_ Object = &Button{}
)

// ButtonConfig holds the configuration of a push button.
type ButtonConfig struct {
	Pin      int           `yaml:"pin" json:"pin"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	// Invert makes the button active-high.
	Invert bool `yaml:"invert" json:"invert"`
}

// DefaultStartButtonConfig returns the configuration of the start button.
func DefaultStartButtonConfig() ButtonConfig {
	return ButtonConfig{Pin: 23, Debounce: DefaultButtonDebounce}
}

// DefaultStopButtonConfig returns the configuration of the stop button.
func DefaultStopButtonConfig() ButtonConfig {
	return ButtonConfig{Pin: 24, Debounce: DefaultButtonDebounce}
}

// Button is a push button, active-low unless inverted.
type Button struct {
	*EdgeInput
	invert bool
}

// NewButton creates a new push button for the given configuration.
func NewButton(log zerolog.Logger, devService devices.Service, config ButtonConfig, broadcaster Broadcaster) (*Button, error) {
	pin, err := devService.Pin(config.Pin)
	if err != nil {
		return nil, maskAny(err)
	}
	return &Button{
		EdgeInput: newEdgeInput(log, "Button", "Button", pin, config.Debounce, broadcaster),
		invert:    config.Invert,
	}, nil
}

// SetHandlers sets the functions called when the button
// is pressed or released.
func (b *Button) SetHandlers(onPress, onRelease func()) {
	if b.invert {
		b.setCallbacks(onPress, onRelease)
	} else {
		b.setCallbacks(onRelease, onPress)
	}
}

// IsPressed reads the button and returns true when it is pressed.
func (b *Button) IsPressed() (bool, error) {
	value, err := b.Read()
	if err != nil {
		return false, err
	}
	return value == b.invert, nil
}
