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

package devices

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t9robot/robotd/pkg/service/bridge"
)

func newTestService(t *testing.T) (Service, *bridge.VirtualBridge) {
	t.Helper()
	b := bridge.NewVirtualBridge(nil)
	return NewService(b, zerolog.Nop()), b
}

func mustPin(t *testing.T, s Service, number int) *Pin {
	t.Helper()
	p, err := s.Pin(number)
	require.NoError(t, err)
	return p
}

func TestWriteOnInputPin(t *testing.T) {
	s, b := newTestService(t)
	for _, configure := range []bool{false, true} {
		p := mustPin(t, s, 23)
		if configure {
			require.NoError(t, p.Configure(bridge.DirectionInput))
		}
		before := p.State()
		for _, value := range []bool{true, false} {
			err := p.Write(value)
			require.Error(t, err)
			assert.True(t, IsDirectionError(err))
			assert.Equal(t, before.State, p.State().State)
		}
	}
	for _, op := range b.History() {
		assert.NotEqual(t, bridge.OpWrite, op.Kind)
	}
}

func TestReadUnconfiguredReturnsCachedState(t *testing.T) {
	s, b := newTestService(t)
	require.NoError(t, b.SetInput(26, true))

	p := mustPin(t, s, 26)
	value, err := p.Read()
	require.NoError(t, err)
	assert.False(t, value, "unconfigured pin must not touch the hardware")

	require.NoError(t, p.Configure(bridge.DirectionInput))
	require.NoError(t, b.SetInput(26, true))
	value, err = p.Read()
	require.NoError(t, err)
	assert.True(t, value)
}

func TestSetDutyRange(t *testing.T) {
	s, _ := newTestService(t)
	p := mustPin(t, s, 17)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	require.NoError(t, p.EnablePWM(100))

	for d := 0; d <= 100; d++ {
		require.NoError(t, p.SetDuty(d), "duty %d", d)
		assert.Equal(t, d, p.State().Duty)
	}
	require.NoError(t, p.SetDuty(42))
	for _, d := range []int{-1, -50, 101, 1000} {
		err := p.SetDuty(d)
		require.Error(t, err)
		assert.True(t, IsRangeError(err), "duty %d", d)
		assert.Equal(t, 42, p.State().Duty)
	}
}

func TestSetDutyWithoutPWM(t *testing.T) {
	s, _ := newTestService(t)
	p := mustPin(t, s, 17)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	assert.True(t, IsPWMNotEnabled(p.SetDuty(10)))
}

func TestStartPWMRebases(t *testing.T) {
	s, b := newTestService(t)
	p := mustPin(t, s, 5)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	b.ResetHistory()

	require.NoError(t, p.StartPWM(50))
	require.NoError(t, p.StartPWM(75))

	starts := 0
	for _, op := range b.History() {
		if op.Kind == bridge.OpPWMStart {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
	_, _, pwm, duty := b.PinState(5)
	assert.True(t, pwm)
	assert.Equal(t, 75, duty)

	require.NoError(t, p.DisablePWM())
	require.NoError(t, p.DisablePWM())
	assert.False(t, p.State().PWMEnabled)
}

func TestStartPWMRangeHasNoSideEffect(t *testing.T) {
	s, b := newTestService(t)
	p := mustPin(t, s, 5)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	b.ResetHistory()

	assert.True(t, IsRangeError(p.StartPWM(120)))
	assert.Empty(t, b.History())
}

func TestPinRange(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Pin(0)
	assert.True(t, IsInvalidPin(err))
	_, err = s.Pin(s.PinCount() + 1)
	assert.True(t, IsInvalidPin(err))
}

func TestFormatPinStates(t *testing.T) {
	s, _ := newTestService(t)
	p := mustPin(t, s, 3)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	require.NoError(t, p.Write(true))

	lines := s.(*service).formatPinStates()
	require.Len(t, lines, 4)
	assert.Equal(t, "  1  2  3  4  5  6  7  8  9 10 11 12", lines[0])
	assert.Equal(t, "  0  0  1  0  0  0  0  0  0  0  0  0", lines[1])
	assert.Equal(t, " 14 15 16 17 18 19 20 21 22 23 24 25", lines[3])
}

func TestCloseResetsOutputs(t *testing.T) {
	s, b := newTestService(t)
	p := mustPin(t, s, 13)
	require.NoError(t, p.Configure(bridge.DirectionOutput))
	require.NoError(t, p.StartPWM(60))

	require.NoError(t, s.Close(context.Background()))
	_, value, pwm, _ := b.PinState(13)
	assert.False(t, pwm)
	assert.False(t, value)
}

func TestPinStateString(t *testing.T) {
	assert.Equal(t, "pin 4: unconfigured", PinState{Number: 4}.String())
	assert.Equal(t, "pin 26: input high", PinState{Number: 26, Configured: true, State: true}.String())
	assert.Equal(t, "pin 17: output low pwm 40%", PinState{
		Number:     17,
		Configured: true,
		Direction:  bridge.DirectionOutput,
		PWMEnabled: true,
		Duty:       40,
	}.String())
}
