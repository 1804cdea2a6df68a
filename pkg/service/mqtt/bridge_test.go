// Copyright 2021 Ewout Prangsma
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
package mqtt

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/t9robot/robotd/pkg/service/broadcast"
)

func TestTopics(t *testing.T) {
	c := Config{Prefix: "robots/t9/"}
	assert.Equal(t, "robots/t9/command", c.CommandTopic())
	assert.Equal(t, "robots/t9/telemetry", c.TelemetryTopic())
	assert.Equal(t, "robots/t9/log", c.LogTopic())
}

func TestClientIDGenerated(t *testing.T) {
	b := NewBridge(zerolog.Nop(), Config{Broker: "localhost:1883", Prefix: "robot"}, nil)
	assert.True(t, strings.HasPrefix(b.ID(), "mqtt:robotd-"))
}

func TestSendQueueFull(t *testing.T) {
	b := NewBridge(zerolog.Nop(), Config{ClientID: "test"}, nil)
	for i := 0; i < telemetryQueueSize; i++ {
		assert.NoError(t, b.Send("Stop"))
	}
	assert.True(t, broadcast.IsConnectionGone(b.Send("Stop")))
}

func TestPublishNotConnected(t *testing.T) {
	b := NewBridge(zerolog.Nop(), Config{ClientID: "test"}, nil)
	assert.Equal(t, NotConnectedError, b.Publish("robot/log", []byte("x")))
}
