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
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/t9robot/robotd/pkg/service/linefollower"
)

// Command is a single remote control command.
type Command string

const (
	Forward Command = "forward"
	Left    Command = "left"
	Right   Command = "right"
	Reverse Command = "reverse"
	Stop    Command = "stop"
)

// Speeds of the left and right motor.
type Speeds struct {
	Left  int `yaml:"left" json:"left"`
	Right int `yaml:"right" json:"right"`
}

// Config holds the speeds used for manual driving.
type Config struct {
	Forward Speeds `yaml:"forward" json:"forward"`
	Left    Speeds `yaml:"left" json:"left"`
	Right   Speeds `yaml:"right" json:"right"`
	Reverse Speeds `yaml:"reverse" json:"reverse"`
}

// DefaultConfig returns the default manual driving speeds.
func DefaultConfig() Config {
	return Config{
		Forward: Speeds{Left: 100, Right: 90},
		Left:    Speeds{Left: 100, Right: 50},
		Right:   Speeds{Left: 50, Right: 100},
		Reverse: Speeds{Left: 100, Right: 80},
	}
}

// Motors is the part of the motor pair used by the router.
type Motors interface {
	Forward(left, right int) error
	Reverse(left, right int) error
	Stop() error
}

// Follower is the part of the line follower used by the router.
type Follower interface {
	State() linefollower.State
	Stop() error
	Disengage()
}

// Router executes line based remote control commands.
type Router struct {
	log      zerolog.Logger
	config   Config
	motors   Motors
	follower Follower
}

// NewRouter creates a new router.
// The follower is optional.
func NewRouter(log zerolog.Logger, config Config, motors Motors, follower Follower) *Router {
	return &Router{
		log:      log.With().Str("component", "command").Logger(),
		config:   config,
		motors:   motors,
		follower: follower,
	}
}

// Parse a single line into a command.
// Returns false for unknown commands.
func Parse(line string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(line)))
	switch cmd {
	case Forward, Left, Right, Reverse, Stop:
		return cmd, true
	default:
		return "", false
	}
}

// Route executes all commands in the given text, one per line, in order.
// Unknown lines are ignored.
// A failing command does not prevent the remaining commands from
// being executed; all errors are returned joined.
func (r *Router) Route(ctx context.Context, text string) error {
	var result error
	for _, line := range strings.Split(text, "\n") {
		if err := ctx.Err(); err != nil {
			return multierr.Append(result, err)
		}
		cmd, ok := Parse(line)
		if !ok {
			ignoredTotal.Inc()
			r.log.Debug().Str("line", line).Msg("Ignoring unknown command")
			continue
		}
		if err := r.Execute(cmd); err != nil {
			r.log.Warn().Err(err).Str("command", string(cmd)).Msg("Command failed")
			result = multierr.Append(result, err)
		}
	}
	return result
}

// Execute a single command.
func (r *Router) Execute(cmd Command) error {
	commandsTotal.WithLabelValues(string(cmd)).Inc()
	r.log.Debug().Str("command", string(cmd)).Msg("Executing")
	if cmd == Stop {
		if r.follower != nil && r.follower.State() == linefollower.StateRunning {
			return r.follower.Stop()
		}
		return r.motors.Stop()
	}

	// Manual driving takes over from the line follower
	if r.follower != nil {
		r.follower.Disengage()
	}
	switch cmd {
	case Forward:
		return r.motors.Forward(r.config.Forward.Left, r.config.Forward.Right)
	case Left:
		return r.motors.Forward(r.config.Left.Left, r.config.Left.Right)
	case Right:
		return r.motors.Forward(r.config.Right.Left, r.config.Right.Right)
	case Reverse:
		return r.motors.Reverse(r.config.Reverse.Left, r.config.Reverse.Right)
	}
	return nil
}
