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

package config

import (
	"fmt"
	"os"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/t9robot/robotd/pkg/service/command"
	"github.com/t9robot/robotd/pkg/service/linefollower"
	"github.com/t9robot/robotd/pkg/service/objects"
)

const (
	// MaxPin is the highest BCM GPIO number on the header.
	MaxPin = 27
)

var (
	// InvalidConfigError is returned when a configuration file contains invalid values.
	InvalidConfigError = errors.New("invalid configuration")
)

// IsInvalidConfig returns true if the given error is (caused by) InvalidConfigError.
func IsInvalidConfig(err error) bool {
	return errors.Cause(err) == InvalidConfigError
}

// File is the configuration file of the robot.
// Values missing from the file keep their defaults.
type File struct {
	Objects      objects.Config      `yaml:"objects"`
	LineFollower linefollower.Config `yaml:"line_follower"`
	Commands     command.Config      `yaml:"commands"`
}

// Default returns the configuration of the T9 board.
func Default() File {
	return File{
		Objects:      objects.DefaultConfig(),
		LineFollower: linefollower.DefaultConfig(),
		Commands:     command.DefaultConfig(),
	}
}

// Load the configuration from the given path.
// An empty path results in the default configuration.
func Load(path string) (File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "failed to read %s", path)
	}
	result, err := Parse(data)
	if err != nil {
		return File{}, errors.Wrapf(err, "in %s", path)
	}
	return result, nil
}

// Parse the given YAML content on top of the defaults.
func Parse(data []byte) (File, error) {
	result := Default()
	if err := yaml.Unmarshal(data, &result); err != nil {
		return File{}, errors.Wrap(err, "failed to parse configuration")
	}
	if err := result.Validate(); err != nil {
		return File{}, err
	}
	return result, nil
}

// Validate the configuration, returning all problems at once.
func (f File) Validate() error {
	var ae aerr.AggregateError
	invalid := func(format string, args ...interface{}) {
		ae.Add(errors.Errorf(format, args...))
	}

	pins := map[int]string{}
	usePin := func(name string, pin int) {
		if pin < 1 || pin > MaxPin {
			invalid("%s pin %d out of range [1..%d]", name, pin, MaxPin)
			return
		}
		if other, found := pins[pin]; found {
			invalid("%s pin %d is already used by %s", name, pin, other)
			return
		}
		pins[pin] = name
	}
	m := f.Objects.Motors
	usePin("left enable", m.Left.Enable)
	usePin("left dir1", m.Left.Dir1)
	usePin("left dir2", m.Left.Dir2)
	usePin("right enable", m.Right.Enable)
	usePin("right dir1", m.Right.Dir1)
	usePin("right dir2", m.Right.Dir2)
	usePin("sensor", f.Objects.Sensor.Pin)
	usePin("start button", f.Objects.StartButton.Pin)
	usePin("stop button", f.Objects.StopButton.Pin)

	if m.PWMFrequency == 0 {
		invalid("pwm frequency must be positive")
	}
	if f.Objects.Sensor.Debounce < 0 {
		invalid("sensor debounce must not be negative")
	}
	if f.Objects.StartButton.Debounce < 0 || f.Objects.StopButton.Debounce < 0 {
		invalid("button debounce must not be negative")
	}

	for name, s := range map[string]command.Speeds{
		"forward": f.Commands.Forward,
		"left":    f.Commands.Left,
		"right":   f.Commands.Right,
		"reverse": f.Commands.Reverse,
	} {
		if !validPercentage(s.Left) || !validPercentage(s.Right) {
			invalid("%s speeds %d, %d out of range [0..100]", name, s.Left, s.Right)
		}
	}

	if err := f.LineFollower.Validate(); err != nil {
		ae.Add(errors.Wrap(err, "line follower"))
	}
	if err := ae.AsError(); err != nil {
		return errors.Wrap(InvalidConfigError, err.Error())
	}
	return nil
}

// String returns the configuration as YAML.
func (f File) String() string {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func validPercentage(v int) bool {
	return v >= 0 && v <= 100
}
