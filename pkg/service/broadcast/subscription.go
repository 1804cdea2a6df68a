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

// Subscription tracks the registration of a single connection
// in one or more registries.
type Subscription struct {
	conn    Connection
	entries []subscriptionEntry
}

type subscriptionEntry struct {
	registry *Registry
	handle   Handle
}

// Subscribe adds the connection to all given registries.
func Subscribe(conn Connection, registries ...*Registry) *Subscription {
	s := &Subscription{conn: conn}
	for _, r := range registries {
		if r == nil {
			continue
		}
		s.entries = append(s.entries, subscriptionEntry{registry: r, handle: r.Add(conn)})
	}
	return s
}

// Connection returns the subscribed connection.
func (s *Subscription) Connection() Connection {
	return s.conn
}

// Close removes the connection from every registry it was added to.
// Close is idempotent.
func (s *Subscription) Close() {
	for _, e := range s.entries {
		e.registry.Remove(e.handle)
	}
	s.entries = nil
}
