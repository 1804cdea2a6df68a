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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
}

func TestParseOverridesDefaults(t *testing.T) {
	f, err := Parse([]byte(`
objects:
  sensor:
    pin: 16
    debounce: 50ms
    invert: true
line_follower:
  calibration_delay: 1s
  fast:
    low: 30
    high: 60
commands:
  forward:
    left: 80
    right: 80
`))
	require.NoError(t, err)
	assert.Equal(t, 16, f.Objects.Sensor.Pin)
	assert.Equal(t, time.Millisecond*50, f.Objects.Sensor.Debounce)
	assert.True(t, f.Objects.Sensor.Invert)
	assert.Equal(t, time.Second, f.LineFollower.CalibrationDelay)
	assert.Equal(t, 30, f.LineFollower.Fast.Low)
	assert.Equal(t, 80, f.Commands.Forward.Right)

	// Untouched values keep their defaults
	def := Default()
	assert.Equal(t, def.Objects.Motors, f.Objects.Motors)
	assert.Equal(t, def.Objects.StartButton, f.Objects.StartButton)
	assert.Equal(t, def.LineFollower.Slow, f.LineFollower.Slow)
	assert.Equal(t, def.Commands.Reverse, f.Commands.Reverse)
}

func TestValidateErrors(t *testing.T) {
	f := Default()
	f.Objects.Sensor.Pin = f.Objects.Motors.Left.Enable
	err := f.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "sensor pin 17 is already used by left enable")

	f = Default()
	f.Objects.StopButton.Pin = 40
	f.Commands.Left.Right = 120
	err = f.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "stop button pin 40 out of range")
	assert.Contains(t, err.Error(), "left speeds 100, 120 out of range")

	f = Default()
	f.LineFollower.Slow.High = 101
	assert.True(t, IsInvalidConfig(f.Validate()))

	f = Default()
	f.Objects.Motors.PWMFrequency = 0
	assert.True(t, IsInvalidConfig(f.Validate()))
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("objects: [1, 2"))
	assert.Error(t, err)

	_, err = Parse([]byte("objects:\n  start_button:\n    pin: 0\n"))
	assert.True(t, IsInvalidConfig(err))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robotd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("objects:\n  stop_button:\n    pin: 25\n"), 0644))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, f.Objects.StopButton.Pin)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
