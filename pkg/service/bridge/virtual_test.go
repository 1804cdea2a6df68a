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

package bridge

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualWriteRequiresOutput(t *testing.T) {
	b := NewVirtualBridge(nil)
	err := b.Write(17, true)
	require.Error(t, err)
	assert.True(t, IsInvalidDirection(err))

	require.NoError(t, b.Configure(17, DirectionOutput))
	require.NoError(t, b.Write(17, true))
	value, err := b.Read(17)
	require.NoError(t, err)
	assert.True(t, value)
}

func TestVirtualPinRange(t *testing.T) {
	b := NewVirtualBridge(nil)
	assert.True(t, IsInvalidPin(b.Configure(0, DirectionOutput)))
	assert.True(t, IsInvalidPin(b.Configure(28, DirectionOutput)))
}

func TestVirtualPWM(t *testing.T) {
	b := NewVirtualBridge(nil)
	require.NoError(t, b.Configure(5, DirectionOutput))

	assert.True(t, IsPWMNotStarted(b.SetDuty(5, 50)))
	require.NoError(t, b.StartPWM(5, 100))
	require.NoError(t, b.SetDuty(5, 50))
	assert.True(t, IsInvalidDuty(b.SetDuty(5, 101)))

	_, _, pwm, duty := b.PinState(5)
	assert.True(t, pwm)
	assert.Equal(t, 50, duty)

	// Starting again keeps the duty
	require.NoError(t, b.StartPWM(5, 200))
	_, _, _, duty = b.PinState(5)
	assert.Equal(t, 50, duty)

	require.NoError(t, b.StopPWM(5))
	require.NoError(t, b.StopPWM(5))
	_, value, pwm, _ := b.PinState(5)
	assert.False(t, pwm)
	assert.False(t, value)
}

func TestVirtualEdges(t *testing.T) {
	clk := clock.NewMock()
	b := NewVirtualBridge(clk)
	require.NoError(t, b.Configure(26, DirectionInput))

	var events []EdgeEvent
	cancel, err := b.RegisterEdgeCallback(26, EdgeBoth, 0, func(e EdgeEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	require.NoError(t, b.SetInput(26, true))
	clk.Add(time.Second)
	require.NoError(t, b.SetInput(26, true)) // no change, no edge
	require.NoError(t, b.SetInput(26, false))
	require.Len(t, events, 2)
	assert.True(t, events[0].Value)
	assert.False(t, events[1].Value)
	assert.Equal(t, time.Second, events[1].Time.Sub(events[0].Time))

	cancel()
	require.NoError(t, b.SetInput(26, true))
	assert.Len(t, events, 2)
}

func TestEdgeMatches(t *testing.T) {
	assert.True(t, EdgeRising.Matches(true))
	assert.False(t, EdgeRising.Matches(false))
	assert.True(t, EdgeFalling.Matches(false))
	assert.True(t, EdgeBoth.Matches(false))
	assert.False(t, EdgeNone.Matches(true))
}

func TestVirtualHistoryIsBounded(t *testing.T) {
	b := NewVirtualBridge(nil)
	require.NoError(t, b.Configure(17, DirectionOutput))
	for i := 0; i < virtualHistorySize*3; i++ {
		require.NoError(t, b.Write(17, i%2 == 0))
	}
	require.NoError(t, b.Configure(22, DirectionOutput))

	history := b.History()
	assert.Len(t, history, virtualHistorySize)
	assert.Equal(t, "configure 22 1", history[len(history)-1].String())
	assert.Equal(t, "write 17 0", history[len(history)-2].String())
}
