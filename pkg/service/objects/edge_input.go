// Copyright 2020 Ewout Prangsma
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

package objects

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/devices"
)

// EdgeInput is a debounced digital input.
// Edges are handled on the event loop: HandleEdge is never
// called concurrently with itself.
type EdgeInput struct {
	mutex       sync.Mutex
	log         zerolog.Logger
	kind        string
	eventPrefix string
	pin         *devices.Pin
	pinLabel    string
	broadcaster Broadcaster
	debounce    time.Duration
	lastEdge    time.Time
	hasEdge     bool
	onRising    func()
	onFalling   func()
	cancel      func()
}

// newEdgeInput creates an input of given kind on the given pin.
// Accepted edges are broadcasted as "<eventPrefix> (pin <n>): <v>".
func newEdgeInput(log zerolog.Logger, kind, eventPrefix string, pin *devices.Pin, debounce time.Duration, broadcaster Broadcaster) *EdgeInput {
	return &EdgeInput{
		log:         log.With().Str("component", kind).Int("pin", pin.Number()).Logger(),
		kind:        kind,
		eventPrefix: eventPrefix,
		pin:         pin,
		pinLabel:    strconv.Itoa(pin.Number()),
		broadcaster: broadcaster,
		debounce:    debounce,
	}
}

// Pin returns the BCM number of the input.
func (e *EdgeInput) Pin() int {
	return e.pin.Number()
}

// Configure puts the pin in input mode.
func (e *EdgeInput) Configure(ctx context.Context) error {
	if err := e.pin.Configure(bridge.DirectionInput); err != nil {
		return maskAny(err)
	}
	return nil
}

// setCallbacks sets the functions that are called for accepted edges.
// Nil callbacks are allowed.
func (e *EdgeInput) setCallbacks(onRising, onFalling func()) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.onRising = onRising
	e.onFalling = onFalling
}

// Read the current (undebounced) value of the input and broadcast it.
func (e *EdgeInput) Read() (bool, error) {
	value, err := e.pin.Read()
	if err != nil {
		return false, maskAny(err)
	}
	inputActualGauge.WithLabelValues(e.kind, e.pinLabel).Set(float64(boolToInt(value)))
	e.broadcaster.Broadcast(fmt.Sprintf("%s (pin %d): %d", e.kind, e.pin.Number(), boolToInt(value)))
	return value, nil
}

// HandleEdge processes a single edge.
// Edges closer than the debounce window to the previously accepted edge
// are dropped.
// Returns true when the edge was accepted.
func (e *EdgeInput) HandleEdge(ev bridge.EdgeEvent) bool {
	e.mutex.Lock()
	if e.hasEdge && ev.Time.Sub(e.lastEdge) < e.debounce {
		e.mutex.Unlock()
		edgesDebouncedTotal.WithLabelValues(e.kind, e.pinLabel).Inc()
		return false
	}
	e.hasEdge = true
	e.lastEdge = ev.Time
	cb := e.onFalling
	if ev.Value {
		cb = e.onRising
	}
	e.mutex.Unlock()

	edgesAcceptedTotal.WithLabelValues(e.kind, e.pinLabel).Inc()
	inputActualGauge.WithLabelValues(e.kind, e.pinLabel).Set(float64(boolToInt(ev.Value)))
	e.log.Debug().Bool("value", ev.Value).Msg("Edge")
	e.broadcaster.Broadcast(fmt.Sprintf("%s (pin %d): %d", e.eventPrefix, e.pin.Number(), boolToInt(ev.Value)))
	if cb != nil {
		cb()
	}
	return true
}

// Attach starts watching the pin for edges.
// Every edge is posted on the given loop, where it is handled.
func (e *EdgeInput) Attach(loop Poster) error {
	e.Detach()
	cancel, err := e.pin.RegisterEdgeCallback(bridge.EdgeBoth, 0, func(ev bridge.EdgeEvent) {
		if !loop.Post(func() { e.HandleEdge(ev) }) {
			edgesDroppedTotal.WithLabelValues(e.kind, e.pinLabel).Inc()
		}
	})
	if err != nil {
		return maskAny(err)
	}
	e.mutex.Lock()
	e.cancel = cancel
	e.mutex.Unlock()
	return nil
}

// Detach stops watching the pin for edges.
func (e *EdgeInput) Detach() {
	e.mutex.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops watching the pin.
func (e *EdgeInput) Close(ctx context.Context) error {
	e.Detach()
	return nil
}
