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

package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConn struct {
	mutex    sync.Mutex
	id       string
	fail     bool
	messages []string
	onSend   func(msg string)
}

func (c *testConn) ID() string { return c.id }

func (c *testConn) Send(msg string) error {
	if c.onSend != nil {
		c.onSend(msg)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.fail {
		return ConnectionGoneError
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *testConn) received() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.messages...)
}

func TestBroadcastFanOutWithFailingConnection(t *testing.T) {
	r := NewRegistry("fanout", zerolog.Nop())
	conns := []*testConn{
		{id: "c1"},
		{id: "c2", fail: true},
		{id: "c3"},
		{id: "c4"},
	}
	for _, c := range conns {
		r.Add(c)
	}

	attempts := r.Broadcast("Forward: 25, 50")
	assert.Equal(t, len(conns), attempts)
	for _, c := range conns {
		if c.fail {
			assert.Empty(t, c.received(), c.id)
		} else {
			assert.Equal(t, []string{"Forward: 25, 50"}, c.received(), c.id)
		}
	}
}

func TestBroadcastf(t *testing.T) {
	r := NewRegistry("format", zerolog.Nop())
	c := &testConn{id: "c"}
	r.Add(c)
	r.Broadcastf("Sensor event (pin %d): %d", 26, 1)
	assert.Equal(t, []string{"Sensor event (pin 26): 1"}, c.received())
}

func TestRemove(t *testing.T) {
	r := NewRegistry("remove", zerolog.Nop())
	a := &testConn{id: "a"}
	b := &testConn{id: "b"}
	ha := r.Add(a)
	hb := r.Add(b)
	require.Equal(t, 2, r.Len())

	assert.True(t, r.Remove(ha))
	assert.False(t, r.Remove(ha))
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, 1, r.Broadcast("Stop"))
	assert.Empty(t, a.received())
	assert.Equal(t, []string{"Stop"}, b.received())

	assert.True(t, r.Remove(hb))
	assert.Equal(t, 0, r.Broadcast("Stop"))
}

func TestRemoveDuringBroadcast(t *testing.T) {
	r := NewRegistry("concurrent", zerolog.Nop())
	sending := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	a := &testConn{id: "a", onSend: func(string) {
		once.Do(func() {
			close(sending)
			<-release
		})
	}}
	b := &testConn{id: "b"}
	r.Add(a)
	hb := r.Add(b)

	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		r.Broadcast("first")
	}()
	<-sending

	removed := make(chan bool)
	go func() {
		removed <- r.Remove(hb)
	}()

	// Remove must wait for the broadcast in flight.
	select {
	case <-removed:
		t.Fatal("Remove returned while a broadcast was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-broadcastDone
	select {
	case ok := <-removed:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Remove did not complete")
	}

	r.Broadcast("second")
	assert.Equal(t, []string{"first"}, b.received())
	assert.Equal(t, []string{"first", "second"}, a.received())
}

func TestSubscription(t *testing.T) {
	motors := NewRegistry("motors", zerolog.Nop())
	inputs := NewRegistry("inputs", zerolog.Nop())
	c := &testConn{id: "c"}

	s := Subscribe(c, motors, nil, inputs)
	assert.Equal(t, c, s.Connection())
	motors.Broadcast("Stop")
	inputs.Broadcast("Button (pin 23): 0")
	assert.Equal(t, []string{"Stop", "Button (pin 23): 0"}, c.received())

	s.Close()
	s.Close()
	assert.Equal(t, 0, motors.Len())
	assert.Equal(t, 0, inputs.Len())
}
