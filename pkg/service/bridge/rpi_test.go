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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingPin holds the first high write until released.
type stallingPin struct {
	mutex   sync.Mutex
	writes  []bool
	stalled bool
	entered chan struct{}
	release chan struct{}
}

func newStallingPin() *stallingPin {
	return &stallingPin{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *stallingPin) Write(value bool) error {
	p.mutex.Lock()
	stall := value && !p.stalled
	if stall {
		p.stalled = true
	}
	p.mutex.Unlock()
	if stall {
		close(p.entered)
		<-p.release
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.writes = append(p.writes, value)
	return nil
}

func (p *stallingPin) Writes() []bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]bool(nil), p.writes...)
}

func TestSoftPWMStopLeavesPinLow(t *testing.T) {
	pin := newStallingPin()
	pwm := &softPWM{pin: pin}
	pwm.SetDuty(50)
	pwm.Start(100)

	select {
	case <-pin.entered:
	case <-time.After(time.Second * 5):
		t.Fatal("modulation loop did not write")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- pwm.Stop() }()
	// Let Stop race with the write in progress
	time.Sleep(time.Millisecond * 20)
	close(pin.release)
	require.NoError(t, <-stopped)

	writes := pin.Writes()
	require.NotEmpty(t, writes)
	assert.False(t, writes[len(writes)-1], "pin must be low after Stop")

	// No further writes after Stop returned
	time.Sleep(time.Millisecond * 50)
	assert.Equal(t, writes, pin.Writes())
}

func TestSoftPWMRestart(t *testing.T) {
	pin := newStallingPin()
	close(pin.release)
	pwm := &softPWM{pin: pin}
	pwm.SetDuty(100)
	pwm.Start(100)
	require.Eventually(t, func() bool { return len(pin.Writes()) > 0 }, time.Second*5, time.Millisecond)
	require.NoError(t, pwm.Stop())

	pwm.SetDuty(100)
	pwm.Start(100)
	require.Eventually(t, func() bool {
		w := pin.Writes()
		return w[len(w)-1]
	}, time.Second*5, time.Millisecond)
	require.NoError(t, pwm.Stop())
	w := pin.Writes()
	assert.False(t, w[len(w)-1])
}
