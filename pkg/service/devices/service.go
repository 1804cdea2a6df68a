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

package devices

import (
	"context"
	"fmt"
	"strings"
	"sync"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/bridge"
)

// Service contains the API that is exposed by the pin header.
type Service interface {
	// PinCount returns the number of pins on the header.
	PinCount() int
	// Pin returns the pin with given BCM number (1...)
	Pin(number int) (*Pin, error)
	// Close brings all pins back to a safe state and closes the bridge.
	Device
	// States returns a snapshot of all pins.
	States() []PinState
	// LogPinStates logs a pretty print of the states of all pins.
	LogPinStates()
}

type service struct {
	mutex sync.Mutex
	log   zerolog.Logger
	api   bridge.API
	pins  []*Pin
}

// NewService creates the pin header on top of the given bridge.
func NewService(api bridge.API, log zerolog.Logger) Service {
	s := &service{
		log: log.With().Str("component", "device-service").Logger(),
		api: api,
	}
	// Append nothing at index 0 so pin numbers match indexes.
	s.pins = make([]*Pin, api.PinCount()+1)
	for i := 1; i <= api.PinCount(); i++ {
		s.pins[i] = newPin(s.log, api, i)
	}
	return s
}

// PinCount returns the number of pins on the header.
func (s *service) PinCount() int {
	return len(s.pins) - 1
}

// Pin returns the pin with given BCM number (1...)
func (s *service) Pin(number int) (*Pin, error) {
	if number < 1 || number >= len(s.pins) {
		return nil, errors.Wrapf(InvalidPinError, "pin %d out of range [1..%d]", number, s.PinCount())
	}
	return s.pins[number], nil
}

// Close brings all pins back to a safe state and closes the bridge.
func (s *service) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	for _, p := range s.pins[1:] {
		if err := p.Close(ctx); err != nil {
			ae.Add(err)
		}
	}
	if err := s.api.Close(); err != nil {
		ae.Add(errors.Wrap(err, "bridge Close failed"))
	}
	return ae.AsError()
}

// States returns a snapshot of all pins.
func (s *service) States() []PinState {
	result := make([]PinState, 0, s.PinCount())
	for _, p := range s.pins[1:] {
		result = append(result, p.State())
	}
	return result
}

// LogPinStates logs the header in two rows: pins 1-12 with states below
// them, followed by the states of pins 14-25 with their numbers below them.
func (s *service) LogPinStates() {
	for _, line := range s.formatPinStates() {
		s.log.Info().Msg(line)
	}
}

func (s *service) formatPinStates() []string {
	var lines [4]strings.Builder
	cell := func(p *Pin) (string, string) {
		state := p.State()
		return fmt.Sprintf(" %2d", state.Number), fmt.Sprintf("  %d", boolToInt(state.State))
	}
	for i := 1; i <= 12 && i <= s.PinCount(); i++ {
		number, state := cell(s.pins[i])
		lines[0].WriteString(number)
		lines[1].WriteString(state)
	}
	for i := 14; i <= 25 && i <= s.PinCount(); i++ {
		number, state := cell(s.pins[i])
		lines[2].WriteString(state)
		lines[3].WriteString(number)
	}
	return []string{lines[0].String(), lines[1].String(), lines[2].String(), lines[3].String()}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
