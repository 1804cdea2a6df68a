// Copyright 2023 Ewout Prangsma
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
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/t9robot/robotd/pkg/service"
	"github.com/t9robot/robotd/pkg/service/linefollower"
)

const (
	maxTelemetryLines = 200
	statusInterval    = time.Second
	commandTimeout    = time.Second * 5
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var keyCommands = map[string]string{
	"w":     "forward",
	"up":    "forward",
	"a":     "left",
	"left":  "left",
	"d":     "right",
	"right": "right",
	"s":     "reverse",
	"down":  "reverse",
	"x":     "stop",
	" ":     "stop",
}

type Root struct {
	term      string
	width     int
	height    int
	service   Service
	telemetry <-chan string
	status    service.Status
	lines     []string
	lastErr   string
	viewPort  viewport.Model
}

var _ tea.Model = Root{}

func newRoot(svc Service, telemetry <-chan string, term string, width, height int) Root {
	r := Root{
		term:      term,
		service:   svc,
		telemetry: telemetry,
		status:    svc.Status(),
	}
	return r.resize(width, height)
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(waitForTelemetry(r.telemetry), doReloadStatus(r.service))
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		r.status = service.Status(msg)
		return r, doReloadStatus(r.service)
	case telemetryMsg:
		r.lines = append(r.lines, string(msg))
		if len(r.lines) > maxTelemetryLines {
			r.lines = r.lines[len(r.lines)-maxTelemetryLines:]
		}
		r.viewPort.SetContent(strings.Join(r.lines, "\n"))
		r.viewPort.GotoBottom()
		return r, waitForTelemetry(r.telemetry)
	case commandResultMsg:
		if msg.err != nil {
			r.lastErr = msg.err.Error()
		} else {
			r.lastErr = ""
		}
		return r, nil
	case tea.WindowSizeMsg:
		return r.resize(msg.Width, msg.Height), nil
	case tea.KeyMsg:
		key := msg.String()
		if cmd, found := keyCommands[key]; found {
			return r, r.run(func(ctx context.Context) error {
				return r.service.Command(ctx, cmd)
			})
		}
		switch key {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "g":
			return r, r.run(r.service.StartAutonomous)
		case "h":
			return r, r.run(r.service.StopAutonomous)
		case "p":
			r.service.LogPinStates()
			return r, nil
		}
	}

	// Handle keyboard and mouse events in the viewport
	var cmd tea.Cmd
	r.viewPort, cmd = r.viewPort.Update(msg)
	return r, cmd
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	var sb strings.Builder
	sb.WriteString(r.headerView())
	sb.WriteString(r.viewPort.View())
	sb.WriteString("\n")
	if r.lastErr != "" {
		sb.WriteString(errorStyle.Render(r.lastErr))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("w/a/d/s - forward/left/right/reverse  x - stop  g/h - autonomous on/off  p - log pins  q - disconnect"))
	return sb.String()
}

func (r Root) headerView() string {
	st := r.status
	autonomous := string(st.Autonomous.State)
	if st.Autonomous.Calibrating {
		autonomous = "calibrating"
	} else if st.Autonomous.State == linefollower.StateRunning {
		autonomous = fmt.Sprintf("%s (%s)", autonomous, st.Autonomous.Profile)
	}
	started := "-"
	if !st.StartedAt.IsZero() {
		started = humanize.Time(st.StartedAt)
	}
	rows := []string{
		titleStyle.Render("T9 robot " + st.ProgramVersion),
		row("Motors", st.Motors.String()),
		row("Autonomous", autonomous),
		row("Started", started),
		row("Remotes", humanize.Comma(int64(st.Connections))),
	}
	if st.Emulated {
		rows = append(rows, row("Mode", "emulated"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n\n"
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func (r Root) resize(width, height int) Root {
	r.width = width
	r.height = height
	// Header, help & error line
	vpHeight := height - lipgloss.Height(r.headerView()) - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	r.viewPort = viewport.New(width, vpHeight)
	r.viewPort.SetContent(strings.Join(r.lines, "\n"))
	r.viewPort.GotoBottom()
	return r
}

// run the given action as a command.
func (r Root) run(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandResultMsg{err: action(ctx)}
	}
}

type statusMsg service.Status

type telemetryMsg string

type commandResultMsg struct {
	err error
}

func doReloadStatus(svc Service) tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return statusMsg(svc.Status())
	})
}

func waitForTelemetry(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return telemetryMsg(msg)
	}
}
