// Copyright 2017 Ewout Prangsma
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

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/command"
	"github.com/t9robot/robotd/pkg/service/linefollower"
	"github.com/t9robot/robotd/pkg/service/objects"
)

type testConn struct {
	mutex    sync.Mutex
	messages []string
}

func (c *testConn) ID() string { return "test" }

func (c *testConn) Send(msg string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *testConn) Messages() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.messages...)
}

func startService(t *testing.T) (Service, *bridge.VirtualBridge) {
	followerConfig := linefollower.DefaultConfig()
	followerConfig.CalibrationDelay = 0
	vb := bridge.NewVirtualBridge(nil)
	s, err := NewService(Config{
		ProgramVersion: "test",
		Objects:        objects.DefaultConfig(),
		LineFollower:   followerConfig,
		Commands:       command.DefaultConfig(),
	}, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: vb,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Wait until the loop is running
	require.NoError(t, s.Command(context.Background(), ""))
	return s, vb
}

func TestCommandBroadcast(t *testing.T) {
	s, _ := startService(t)
	conn := &testConn{}
	sub := s.OnOpen(conn)
	assert.Equal(t, 1, s.Status().Connections)

	require.NoError(t, s.OnMessage(context.Background(), conn, "forward\nstop"))
	assert.Equal(t, []string{"Forward: 100, 90", "Stop"}, conn.Messages())

	s.OnClose(sub)
	require.NoError(t, s.Command(context.Background(), "reverse"))
	assert.Equal(t, []string{"Forward: 100, 90", "Stop"}, conn.Messages())
	status := s.Status()
	assert.Equal(t, 0, status.Connections)
	assert.Equal(t, objects.MotorReverse, status.Motors.Left.Direction)
	assert.Equal(t, 100, status.Motors.Left.Duty)
	assert.True(t, status.Emulated)
}

func TestStartButtonStartsFollower(t *testing.T) {
	s, _ := startService(t)
	conn := &testConn{}
	s.OnOpen(conn)

	// Start button is active-low
	require.NoError(t, s.SimulateInput(context.Background(), 23, false))
	require.Eventually(t, func() bool {
		return s.Status().Autonomous.State == linefollower.StateRunning
	}, time.Second, time.Millisecond)
	// Let the loop finish processing the edge
	require.NoError(t, s.Command(context.Background(), ""))
	assert.Equal(t, []string{
		"Button (pin 23): 0",
		"Autonomous: running",
		"Sensor (pin 26): 0",
		"Forward: 25, 50",
	}, conn.Messages())

	require.NoError(t, s.StopAutonomous(context.Background()))
	assert.Equal(t, linefollower.StateStopped, s.Status().Autonomous.State)
	assert.Equal(t, objects.MotorStopped, s.Status().Motors.Right.Direction)
}

func TestManualCommandDisengagesFollower(t *testing.T) {
	s, _ := startService(t)

	require.NoError(t, s.StartAutonomous(context.Background()))
	assert.Equal(t, linefollower.StateRunning, s.Status().Autonomous.State)

	require.NoError(t, s.Command(context.Background(), "left"))
	status := s.Status()
	assert.Equal(t, linefollower.StateStopped, status.Autonomous.State)
	assert.Equal(t, 100, status.Motors.Left.Duty)
	assert.Equal(t, 50, status.Motors.Right.Duty)
}
