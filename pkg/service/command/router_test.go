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
package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/t9robot/robotd/pkg/service/linefollower"
)

type fakeMotors struct {
	calls      []string
	forwardErr error
}

func (m *fakeMotors) Forward(left, right int) error {
	m.calls = append(m.calls, fmt.Sprintf("forward %d %d", left, right))
	return m.forwardErr
}

func (m *fakeMotors) Reverse(left, right int) error {
	m.calls = append(m.calls, fmt.Sprintf("reverse %d %d", left, right))
	return nil
}

func (m *fakeMotors) Stop() error {
	m.calls = append(m.calls, "stop")
	return nil
}

type fakeFollower struct {
	motors      *fakeMotors
	state       linefollower.State
	disengaged  int
	stopCounter int
}

func (f *fakeFollower) State() linefollower.State { return f.state }

func (f *fakeFollower) Stop() error {
	f.stopCounter++
	f.state = linefollower.StateStopped
	return f.motors.Stop()
}

func (f *fakeFollower) Disengage() {
	f.disengaged++
	f.state = linefollower.StateStopped
}

func TestRouteInOrder(t *testing.T) {
	m := &fakeMotors{}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, nil)

	require.NoError(t, r.Route(context.Background(), "forward\nstop"))
	assert.Equal(t, []string{"forward 100 90", "stop"}, m.calls)
}

func TestRouteAllCommands(t *testing.T) {
	m := &fakeMotors{}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, nil)

	require.NoError(t, r.Route(context.Background(), " Forward \nLEFT\nright\r\nreverse\nstop\n"))
	assert.Equal(t, []string{
		"forward 100 90",
		"forward 100 50",
		"forward 50 100",
		"reverse 100 80",
		"stop",
	}, m.calls)
}

func TestRouteUnknown(t *testing.T) {
	m := &fakeMotors{}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, nil)

	assert.NoError(t, r.Route(context.Background(), "banana"))
	assert.NoError(t, r.Route(context.Background(), ""))
	assert.Empty(t, m.calls)
}

func TestRouteErrorsDoNotStopLaterLines(t *testing.T) {
	m := &fakeMotors{forwardErr: errors.New("broken")}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, nil)

	err := r.Route(context.Background(), "forward\nleft\nstop")
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, []string{"forward 100 90", "forward 100 50", "stop"}, m.calls)
}

func TestRouteCanceled(t *testing.T) {
	m := &fakeMotors{}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Route(ctx, "forward")
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, m.calls)
}

func TestStopWhileFollowing(t *testing.T) {
	m := &fakeMotors{}
	f := &fakeFollower{motors: m, state: linefollower.StateRunning}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, f)

	require.NoError(t, r.Route(context.Background(), "stop"))
	assert.Equal(t, 1, f.stopCounter)
	// Exactly one motor stop
	assert.Equal(t, []string{"stop"}, m.calls)

	// Not following anymore: stop goes to the motors directly
	require.NoError(t, r.Route(context.Background(), "stop"))
	assert.Equal(t, 1, f.stopCounter)
	assert.Equal(t, []string{"stop", "stop"}, m.calls)
}

func TestManualDriveDisengages(t *testing.T) {
	m := &fakeMotors{}
	f := &fakeFollower{motors: m, state: linefollower.StateRunning}
	r := NewRouter(zerolog.Nop(), DefaultConfig(), m, f)

	require.NoError(t, r.Route(context.Background(), "left"))
	assert.Equal(t, 1, f.disengaged)
	assert.Equal(t, linefollower.StateStopped, f.state)
	assert.Equal(t, []string{"forward 100 50"}, m.calls)
}

func TestParse(t *testing.T) {
	cmd, ok := Parse("  ReVeRsE\t")
	assert.True(t, ok)
	assert.Equal(t, Reverse, cmd)

	_, ok = Parse("banana")
	assert.False(t, ok)
}
