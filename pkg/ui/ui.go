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

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service"
	"github.com/t9robot/robotd/pkg/service/broadcast"
)

const (
	telemetryQueueSize = 64
)

// Service is the part of the robot session used by the UI.
type Service interface {
	OnOpen(conn broadcast.Connection) *broadcast.Subscription
	OnClose(sub *broadcast.Subscription)
	Command(ctx context.Context, text string) error
	StartAutonomous(ctx context.Context) error
	StopAutonomous(ctx context.Context) error
	Status() service.Status
	LogPinStates()
}

// UI serves the remote control terminal over SSH.
type UI struct {
	log     zerolog.Logger
	service Service
}

// New creates a new UI.
func New(log zerolog.Logger, svc Service) *UI {
	return &UI{
		log:     log.With().Str("component", "ui").Logger(),
		service: svc,
	}
}

// Handler creates the model for a new SSH session.
// The session receives all telemetry until it is closed.
func (ui *UI) Handler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := sess.Pty()
	conn := broadcast.NewQueueConnection("ssh", telemetryQueueSize)
	sub := ui.service.OnOpen(conn)
	ui.log.Debug().
		Str("user", sess.User()).
		Str("connection", conn.ID()).
		Msg("SSH session opened")
	go func() {
		<-sess.Context().Done()
		ui.service.OnClose(sub)
		conn.Close()
	}()
	model := newRoot(ui.service, conn.Messages(), pty.Term, pty.Window.Width, pty.Window.Height)
	return model, []tea.ProgramOption{tea.WithAltScreen()}
}
