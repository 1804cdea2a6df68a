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
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ConnectionGoneError is returned by Connection.Send when the connection
	// is closed or can no longer keep up.
	ConnectionGoneError = errors.New("connection gone")
	IsConnectionGone    = isErrorFunc(ConnectionGoneError)
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

// Connection is a remote party that receives telemetry lines.
type Connection interface {
	// ID returns a unique identifier of the connection (used for logging)
	ID() string
	// Send a single line to the remote party.
	// Send must not block; transports queue the message
	// or fail with ConnectionGoneError.
	Send(msg string) error
}

// Handle identifies a connection in a registry.
type Handle uint64

type entry struct {
	handle Handle
	conn   Connection
}

// Registry is the set of connections that receive status and telemetry lines.
// All methods are safe for concurrent use.
// Once Remove returns, the removed connection will not be handed
// another message.
type Registry struct {
	mutex      sync.RWMutex
	log        zerolog.Logger
	name       string
	entries    []entry
	nextHandle Handle
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, log zerolog.Logger) *Registry {
	return &Registry{
		log:  log.With().Str("component", "broadcast").Str("registry", name).Logger(),
		name: name,
	}
}

// Name returns the name of the registry.
func (r *Registry) Name() string {
	return r.name
}

// Add a connection and return its handle.
func (r *Registry) Add(conn Connection) Handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.nextHandle++
	h := r.nextHandle
	r.entries = append(r.entries, entry{handle: h, conn: conn})
	connectionsGauge.WithLabelValues(r.name).Set(float64(len(r.entries)))
	r.log.Debug().
		Str("connection", conn.ID()).
		Int("connections", len(r.entries)).
		Msg("Added connection")
	return h
}

// Remove the connection with given handle.
// Returns false if the handle is not (or no longer) registered.
func (r *Registry) Remove(h Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, e := range r.entries {
		if e.handle == h {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			connectionsGauge.WithLabelValues(r.name).Set(float64(len(r.entries)))
			r.log.Debug().
				Str("connection", e.conn.ID()).
				Int("connections", len(r.entries)).
				Msg("Removed connection")
			return true
		}
	}
	return false
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}

// Broadcast sends the given line to all registered connections.
// A failing connection does not stop delivery to the others.
// Returns the number of send attempts.
func (r *Registry) Broadcast(msg string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	messagesTotal.WithLabelValues(r.name).Inc()
	for _, e := range r.entries {
		if err := e.conn.Send(msg); err != nil {
			sendFailuresTotal.WithLabelValues(r.name).Inc()
			r.log.Debug().Err(err).
				Str("connection", e.conn.ID()).
				Msg("Send failed")
		}
	}
	return len(r.entries)
}

// Broadcastf formats a line and sends it to all registered connections.
func (r *Registry) Broadcastf(format string, args ...interface{}) int {
	return r.Broadcast(fmt.Sprintf(format, args...))
}
