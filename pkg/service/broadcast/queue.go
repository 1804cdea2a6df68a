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

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// QueueConnection is a connection that queues messages for a transport
// that delivers them on its own goroutine.
type QueueConnection struct {
	id     string
	mutex  sync.Mutex
	queue  chan string
	closed bool
}

var _ Connection = &QueueConnection{}

// NewQueueConnection creates a connection with a queue of given size.
// The ID is the given kind followed by a unique suffix.
func NewQueueConnection(kind string, size int) *QueueConnection {
	return &QueueConnection{
		id:    kind + ":" + uuid.NewString(),
		queue: make(chan string, size),
	}
}

// ID returns the unique identifier of the connection.
func (c *QueueConnection) ID() string {
	return c.id
}

// Send queues the message.
// Fails with ConnectionGoneError when the connection is closed or the
// transport cannot keep up.
func (c *QueueConnection) Send(msg string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return errors.Wrapf(ConnectionGoneError, "%s is closed", c.id)
	}
	select {
	case c.queue <- msg:
		return nil
	default:
		return errors.Wrapf(ConnectionGoneError, "%s queue full", c.id)
	}
}

// Messages returns the channel of queued messages.
// The channel is closed when the connection is closed.
func (c *QueueConnection) Messages() <-chan string {
	return c.queue
}

// Close the connection.
func (c *QueueConnection) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}
