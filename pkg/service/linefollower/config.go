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
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Profile holds the speeds used to steer along the line.
// The wheel on the side of the line runs at Low, the other at High.
type Profile struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

// Validate the profile.
func (p Profile) Validate() error {
	if p.Low < 0 || p.Low > 100 || p.High < 0 || p.High > 100 {
		return errors.Errorf("speeds %d, %d must be in [0..100]", p.Low, p.High)
	}
	return nil
}

// String returns a human readable form of the profile.
func (p Profile) String() string {
	return fmt.Sprintf("%d/%d", p.Low, p.High)
}

// Config holds the calibration of the line follower.
type Config struct {
	// Fast is used when the start button is released before the calibration ends.
	Fast Profile `yaml:"fast" json:"fast"`
	// Slow is used when the start button is still held when the calibration ends.
	Slow Profile `yaml:"slow" json:"slow"`
	// CalibrationDelay between pressing the start button and selecting a profile.
	// When zero, the fast profile is selected immediately.
	CalibrationDelay time.Duration `yaml:"calibration_delay" json:"calibration_delay"`
}

// DefaultConfig returns the default calibration.
func DefaultConfig() Config {
	return Config{
		Fast:             Profile{Low: 25, High: 50},
		Slow:             Profile{Low: 17, High: 35},
		CalibrationDelay: time.Second * 2,
	}
}

// Validate the configuration.
func (c Config) Validate() error {
	if err := c.Fast.Validate(); err != nil {
		return errors.Wrap(err, "fast profile")
	}
	if err := c.Slow.Validate(); err != nil {
		return errors.Wrap(err, "slow profile")
	}
	if c.CalibrationDelay < 0 {
		return errors.Errorf("calibration delay must be >= 0, got %s", c.CalibrationDelay)
	}
	return nil
}
