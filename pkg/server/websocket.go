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

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/t9robot/robotd/pkg/service/broadcast"
)

const (
	wsQueueSize    = 64
	wsWriteTimeout = time.Second * 5
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket serves a remote control connection.
// Every text frame is a command, every telemetry line is sent
// as a text frame.
func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrader has already replied
		s.log.Debug().Err(err).Msg("Upgrade failed")
		return nil
	}
	defer ws.Close()

	conn := broadcast.NewQueueConnection("ws", wsQueueSize)
	log := s.log.With().
		Str("connection", conn.ID()).
		Str("remote", ws.RemoteAddr().String()).
		Logger()
	sub := s.service.OnOpen(conn)
	wsConnectionsGauge.Inc()
	defer wsConnectionsGauge.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Send telemetry
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range conn.Messages() {
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				// Unblock the reader
				ws.Close()
				return
			}
		}
	}()

	// Receive commands
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("Read failed")
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := s.service.OnMessage(ctx, conn, string(data)); err != nil {
			log.Warn().Err(err).Msg("Command failed")
		}
	}

	s.service.OnClose(sub)
	conn.Close()
	<-done
	return nil
}
