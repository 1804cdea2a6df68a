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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/broadcast"
	"github.com/t9robot/robotd/pkg/service/command"
	"github.com/t9robot/robotd/pkg/service/devices"
	"github.com/t9robot/robotd/pkg/service/linefollower"
	"github.com/t9robot/robotd/pkg/service/loop"
	"github.com/t9robot/robotd/pkg/service/objects"
)

// Service is a single robot session: the hardware, the controllers
// and all connected remote parties.
type Service interface {
	// Run the robot until the given context is cancelled.
	Run(ctx context.Context) error

	// OnOpen registers a new remote connection for telemetry.
	OnOpen(conn broadcast.Connection) *broadcast.Subscription
	// OnMessage executes the commands in the given text on the event loop.
	OnMessage(ctx context.Context, conn broadcast.Connection, text string) error
	// OnClose removes a remote connection.
	// Once OnClose returns, the connection no longer receives telemetry.
	OnClose(sub *broadcast.Subscription)

	// Command executes the commands in the given text on the event loop.
	Command(ctx context.Context, text string) error
	// StartAutonomous starts the line follower.
	StartAutonomous(ctx context.Context) error
	// StopAutonomous stops the line follower.
	StopAutonomous(ctx context.Context) error
	// SimulateInput changes the level of an input of an emulated robot.
	SimulateInput(ctx context.Context, pin int, value bool) error
	// RegisterStateReceiver registers a callback for line follower state changes.
	RegisterStateReceiver(cb func(linefollower.StateChange)) context.CancelFunc
	// Status returns a snapshot of the robot.
	Status() Status
	// LogPinStates logs the state of all pins.
	LogPinStates()
}

// Config of the robot session.
type Config struct {
	ProgramVersion string
	Objects        objects.Config
	LineFollower   linefollower.Config
	Commands       command.Config
	QueueSize      int
}

// Dependencies of the robot session.
type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	// Clock used for calibration. Defaults to the wall clock.
	Clock clock.Clock
}

// Status is a snapshot of the robot.
type Status struct {
	ProgramVersion string                  `json:"program_version"`
	StartedAt      time.Time               `json:"started_at"`
	Emulated       bool                    `json:"emulated"`
	Connections    int                     `json:"connections"`
	Motors         objects.MotorPairStatus `json:"motors"`
	Autonomous     linefollower.Status     `json:"autonomous"`
	Pins           []devices.PinState      `json:"pins"`
}

type service struct {
	Config
	Dependencies

	startedAt  time.Time
	registry   *broadcast.Registry
	loop       *loop.Loop
	devService devices.Service
	objService objects.Service
	follower   *linefollower.Controller
	router     *command.Router
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	log := deps.Logger.With().Str("component", "service").Logger()
	deps.Logger = log
	registry := broadcast.NewRegistry("telemetry", log)
	l := loop.New(log, conf.QueueSize)
	devService := devices.NewService(deps.Bridge, log)
	objService, err := objects.NewService(conf.Objects, devService, registry, log)
	if err != nil {
		return nil, errors.Wrap(err, "objects.NewService failed")
	}
	follower := linefollower.New(log, deps.Clock, l, objService.Motors(),
		objService.Sensor(), objService.StartButton(), objService.StopButton(),
		registry, conf.LineFollower)
	router := command.NewRouter(log, conf.Commands, objService.Motors(), follower)
	return &service{
		Config:       conf,
		Dependencies: deps,
		startedAt:    time.Now(),
		registry:     registry,
		loop:         l,
		devService:   devService,
		objService:   objService,
		follower:     follower,
		router:       router,
	}, nil
}

// Run configures the hardware, runs the event loop until the given
// context is cancelled and brings the hardware back to a safe state.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	defer func() {
		log.Debug().Msg("closing devices service")
		if err := s.devService.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close devices")
		}
	}()

	// Configure objects
	log.Debug().Msg("configure objects")
	if err := s.objService.Configure(ctx); err != nil {
		log.Error().Err(err).Msg("Not all objects are configured")
		return errors.Wrap(err, "configure objects")
	}
	defer func() {
		log.Debug().Msg("closing objects service")
		if err := s.objService.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close objects")
		}
	}()
	s.setIdleInputs()
	if err := s.objService.Attach(s.loop); err != nil {
		return errors.Wrap(err, "attach inputs")
	}
	s.LogPinStates()

	log.Info().Msg("Robot ready")
	return s.loop.Run(ctx)
}

// setIdleInputs brings the buttons of an emulated robot in the released state.
func (s *service) setIdleInputs() {
	vb, ok := s.Bridge.(*bridge.VirtualBridge)
	if !ok {
		return
	}
	for _, c := range []objects.ButtonConfig{s.Objects.StartButton, s.Objects.StopButton} {
		if err := vb.SetInput(c.Pin, !c.Invert); err != nil {
			s.Logger.Warn().Err(err).Int("pin", c.Pin).Msg("Failed to set idle input")
		}
	}
}

// OnOpen registers a new remote connection for telemetry.
func (s *service) OnOpen(conn broadcast.Connection) *broadcast.Subscription {
	connectionsOpenedTotal.Inc()
	s.Logger.Info().Str("connection", conn.ID()).Msg("Connection opened")
	return broadcast.Subscribe(conn, s.registry)
}

// OnMessage executes the commands in the given text on the event loop.
func (s *service) OnMessage(ctx context.Context, conn broadcast.Connection, text string) error {
	messagesReceivedTotal.Inc()
	s.Logger.Debug().Str("connection", conn.ID()).Str("text", text).Msg("Message received")
	return s.Command(ctx, text)
}

// OnClose removes a remote connection.
func (s *service) OnClose(sub *broadcast.Subscription) {
	if sub == nil {
		return
	}
	sub.Close()
	connectionsClosedTotal.Inc()
	s.Logger.Info().Str("connection", sub.Connection().ID()).Msg("Connection closed")
}

// Command executes the commands in the given text on the event loop.
func (s *service) Command(ctx context.Context, text string) error {
	return s.loop.Do(ctx, func() error {
		return s.router.Route(ctx, text)
	})
}

// StartAutonomous starts the line follower.
func (s *service) StartAutonomous(ctx context.Context) error {
	autonomousRequestsTotal.WithLabelValues("start").Inc()
	return s.loop.Do(ctx, s.follower.Start)
}

// StopAutonomous stops the line follower.
func (s *service) StopAutonomous(ctx context.Context) error {
	autonomousRequestsTotal.WithLabelValues("stop").Inc()
	return s.loop.Do(ctx, s.follower.Stop)
}

// SimulateInput changes the level of an input of an emulated robot.
func (s *service) SimulateInput(ctx context.Context, pin int, value bool) error {
	vb, ok := s.Bridge.(*bridge.VirtualBridge)
	if !ok {
		return errors.Wrap(NotEmulatedError, "simulate input")
	}
	return vb.SetInput(pin, value)
}

// RegisterStateReceiver registers a callback for line follower state changes.
func (s *service) RegisterStateReceiver(cb func(linefollower.StateChange)) context.CancelFunc {
	return s.follower.RegisterStateReceiver(cb)
}

// Status returns a snapshot of the robot.
func (s *service) Status() Status {
	_, emulated := s.Bridge.(*bridge.VirtualBridge)
	return Status{
		ProgramVersion: s.ProgramVersion,
		StartedAt:      s.startedAt,
		Emulated:       emulated,
		Connections:    s.registry.Len(),
		Motors:         s.objService.Motors().Status(),
		Autonomous:     s.follower.Status(),
		Pins:           s.devService.States(),
	}
}

// LogPinStates logs the state of all pins.
func (s *service) LogPinStates() {
	s.devService.LogPinStates()
}
