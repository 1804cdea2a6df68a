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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/devices"
)

type recorder struct {
	mutex    sync.Mutex
	messages []string
}

func (r *recorder) Broadcast(msg string) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.messages = append(r.messages, msg)
	return 1
}

func (r *recorder) Messages() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.messages = nil
}

// syncPoster runs posted functions immediately.
type syncPoster struct{}

func (syncPoster) Post(fn func()) bool {
	fn()
	return true
}

type testEnv struct {
	clock  *clock.Mock
	bridge *bridge.VirtualBridge
	devs   devices.Service
	rec    *recorder
}

func newTestEnv() *testEnv {
	mock := clock.NewMock()
	vb := bridge.NewVirtualBridge(mock)
	return &testEnv{
		clock:  mock,
		bridge: vb,
		devs:   devices.NewService(vb, zerolog.Nop()),
		rec:    &recorder{},
	}
}

func (e *testEnv) history() []string {
	var result []string
	for _, op := range e.bridge.History() {
		result = append(result, op.String())
	}
	return result
}

func newConfiguredMotors(t *testing.T, env *testEnv) *MotorPair {
	m, err := NewMotorPair(zerolog.Nop(), env.devs, DefaultMotorPairConfig(), env.rec)
	require.NoError(t, err)
	require.NoError(t, m.Configure(context.Background()))
	env.bridge.ResetHistory()
	env.rec.Reset()
	return m
}

func TestMotorPairForwardWriteOrder(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)

	require.NoError(t, m.Forward(40, 60))
	assert.Equal(t, []string{"Forward: 40, 60"}, env.rec.Messages())
	assert.Equal(t, []string{
		// Direction pins first, the pin going low before the pin going high
		"write 27 0",
		"write 22 1",
		"write 13 0",
		"write 6 1",
		// Then the speeds
		"pwm-duty 17 40",
		"pwm-duty 5 60",
	}, env.history())

	status := m.Status()
	assert.Equal(t, MotorSideStatus{Direction: MotorForward, Duty: 40}, status.Left)
	assert.Equal(t, MotorSideStatus{Direction: MotorForward, Duty: 60}, status.Right)
	assert.Equal(t, "left forward 40%, right forward 60%", status.String())
}

func TestMotorPairReverseWriteOrder(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)

	require.NoError(t, m.Reverse(100, 80))
	assert.Equal(t, []string{"Reverse: 100, 80"}, env.rec.Messages())
	assert.Equal(t, []string{
		"write 22 0",
		"write 27 1",
		"write 6 0",
		"write 13 1",
		"pwm-duty 17 100",
		"pwm-duty 5 80",
	}, env.history())
}

func TestMotorPairDirectionPinsNeverBothHigh(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)

	require.NoError(t, m.Forward(50, 50))
	require.NoError(t, m.Reverse(50, 50))
	require.NoError(t, m.Forward(50, 50))

	// Replay the history and check the direction pins after every write
	levels := map[int]int{}
	for _, op := range env.bridge.History() {
		if op.Kind != bridge.OpWrite {
			continue
		}
		levels[op.Pin] = op.Value
		assert.False(t, levels[22] == 1 && levels[27] == 1, "left direction pins both high")
		assert.False(t, levels[6] == 1 && levels[13] == 1, "right direction pins both high")
	}
}

func TestMotorPairInvalidSpeed(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)

	for _, speeds := range [][2]int{{101, 0}, {0, -1}} {
		err := m.Forward(speeds[0], speeds[1])
		assert.True(t, IsRangeError(err), "%v", speeds)
		err = m.Reverse(speeds[0], speeds[1])
		assert.True(t, IsRangeError(err), "%v", speeds)
	}
	assert.Empty(t, env.rec.Messages())
	assert.Empty(t, env.history())
}

func TestMotorPairNotConfigured(t *testing.T) {
	env := newTestEnv()
	m, err := NewMotorPair(zerolog.Nop(), env.devs, DefaultMotorPairConfig(), env.rec)
	require.NoError(t, err)

	assert.True(t, IsNotConfigured(m.Forward(10, 10)))
	assert.NoError(t, m.Stop())
	assert.Empty(t, env.history())
}

func TestMotorPairRepeatedStop(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)
	require.NoError(t, m.Forward(40, 60))

	pinStates := func() map[int]string {
		result := map[int]string{}
		for _, pin := range DefaultMotorPairConfig().Pins() {
			dir, value, pwm, duty := env.bridge.PinState(pin)
			result[pin] = fmt.Sprintf("%s,%v,%v,%d", dir, value, pwm, duty)
		}
		return result
	}

	require.NoError(t, m.Stop())
	afterFirst := pinStates()
	require.NoError(t, m.Stop())
	assert.Equal(t, afterFirst, pinStates())

	assert.Equal(t, []string{"Forward: 40, 60", "Stop", "Stop"}, env.rec.Messages())
	status := m.Status()
	assert.Equal(t, MotorSideStatus{Direction: MotorStopped}, status.Left)
	assert.Equal(t, MotorSideStatus{Direction: MotorStopped}, status.Right)
	for _, pin := range DefaultMotorPairConfig().Pins() {
		_, value, pwm, _ := env.bridge.PinState(pin)
		assert.False(t, value, "pin %d", pin)
		assert.False(t, pwm, "pin %d", pin)
	}
}

func TestMotorPairDriveAfterStop(t *testing.T) {
	env := newTestEnv()
	m := newConfiguredMotors(t, env)
	require.NoError(t, m.Stop())
	env.bridge.ResetHistory()

	require.NoError(t, m.Forward(25, 50))
	assert.Equal(t, []string{
		"write 27 0",
		"write 22 1",
		"write 13 0",
		"write 6 1",
		"pwm-start 17 100",
		"pwm-duty 17 25",
		"pwm-start 5 100",
		"pwm-duty 5 50",
	}, env.history())
}

func TestSensorDebounce(t *testing.T) {
	env := newTestEnv()
	s, err := NewSensor(zerolog.Nop(), env.devs, DefaultSensorConfig(), env.rec)
	require.NoError(t, err)
	require.NoError(t, s.Configure(context.Background()))

	var light, dark int
	s.SetHandlers(func() { light++ }, func() { dark++ })

	t0 := env.clock.Now()
	assert.True(t, s.HandleEdge(bridge.EdgeEvent{Pin: 26, Value: true, Time: t0}))
	assert.False(t, s.HandleEdge(bridge.EdgeEvent{Pin: 26, Value: false, Time: t0.Add(10 * time.Millisecond)}))
	assert.True(t, s.HandleEdge(bridge.EdgeEvent{Pin: 26, Value: false, Time: t0.Add(100 * time.Millisecond)}))

	assert.Equal(t, 1, dark)
	assert.Equal(t, 1, light)
	assert.Equal(t, []string{
		"Sensor event (pin 26): 1",
		"Sensor event (pin 26): 0",
	}, env.rec.Messages())
}

func TestSensorAttach(t *testing.T) {
	env := newTestEnv()
	s, err := NewSensor(zerolog.Nop(), env.devs, DefaultSensorConfig(), env.rec)
	require.NoError(t, err)
	require.NoError(t, s.Configure(context.Background()))

	var dark int
	s.SetHandlers(nil, func() { dark++ })
	require.NoError(t, s.Attach(syncPoster{}))

	require.NoError(t, env.bridge.SetInput(26, true))
	env.clock.Add(50 * time.Millisecond)
	require.NoError(t, env.bridge.SetInput(26, false))
	env.clock.Add(60 * time.Millisecond)
	require.NoError(t, env.bridge.SetInput(26, true))
	assert.Equal(t, 2, dark)

	s.Detach()
	env.clock.Add(time.Second)
	require.NoError(t, env.bridge.SetInput(26, false))
	require.NoError(t, env.bridge.SetInput(26, true))
	assert.Equal(t, 2, dark)
}

func TestSensorRead(t *testing.T) {
	env := newTestEnv()
	s, err := NewSensor(zerolog.Nop(), env.devs, DefaultSensorConfig(), env.rec)
	require.NoError(t, err)
	require.NoError(t, s.Configure(context.Background()))

	require.NoError(t, env.bridge.SetInput(26, true))
	dark, err := s.IsDark()
	require.NoError(t, err)
	assert.True(t, dark)
	assert.Equal(t, []string{"Sensor (pin 26): 1"}, env.rec.Messages())
}

func TestButton(t *testing.T) {
	env := newTestEnv()
	b, err := NewButton(zerolog.Nop(), env.devs, DefaultStartButtonConfig(), env.rec)
	require.NoError(t, err)
	require.NoError(t, b.Configure(context.Background()))

	var pressed, released int
	b.SetHandlers(func() { pressed++ }, func() { released++ })

	t0 := env.clock.Now()
	b.HandleEdge(bridge.EdgeEvent{Pin: 23, Value: false, Time: t0})
	b.HandleEdge(bridge.EdgeEvent{Pin: 23, Value: true, Time: t0.Add(150 * time.Millisecond)})
	b.HandleEdge(bridge.EdgeEvent{Pin: 23, Value: true, Time: t0.Add(250 * time.Millisecond)})
	assert.Equal(t, 1, pressed)
	assert.Equal(t, 1, released)
	assert.Equal(t, []string{"Button (pin 23): 0", "Button (pin 23): 1"}, env.rec.Messages())

	require.NoError(t, env.bridge.SetInput(23, false))
	isPressed, err := b.IsPressed()
	require.NoError(t, err)
	assert.True(t, isPressed)
}

func TestButtonInvert(t *testing.T) {
	env := newTestEnv()
	config := DefaultStopButtonConfig()
	config.Invert = true
	b, err := NewButton(zerolog.Nop(), env.devs, config, env.rec)
	require.NoError(t, err)
	require.NoError(t, b.Configure(context.Background()))

	var pressed, released int
	b.SetHandlers(func() { pressed++ }, func() { released++ })
	b.HandleEdge(bridge.EdgeEvent{Pin: 24, Value: true, Time: env.clock.Now()})
	assert.Equal(t, 1, pressed)
	assert.Equal(t, 0, released)

	require.NoError(t, env.bridge.SetInput(24, true))
	isPressed, err := b.IsPressed()
	require.NoError(t, err)
	assert.True(t, isPressed)
}

func TestServiceLifecycle(t *testing.T) {
	env := newTestEnv()
	s, err := NewService(DefaultConfig(), env.devs, env.rec, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Configure(context.Background()))
	require.NoError(t, s.Attach(syncPoster{}))

	require.NoError(t, s.Motors().Forward(10, 20))
	require.NoError(t, s.Close(context.Background()))
	for _, pin := range DefaultMotorPairConfig().Pins() {
		_, value, pwm, _ := env.bridge.PinState(pin)
		assert.False(t, value, "pin %d", pin)
		assert.False(t, pwm, "pin %d", pin)
	}
}
