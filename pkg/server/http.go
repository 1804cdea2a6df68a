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
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/t9robot/robotd/pkg/service"
)

const (
	maxCommandSize = 4096
)

// newHTTPHandler creates the router for all HTTP requests.
func (s *Server) newHTTPHandler() http.Handler {
	httpRouter := echo.New()
	httpRouter.HideBanner = true
	httpRouter.HidePort = true
	httpRouter.GET("/health", echo.WrapHandler(http.HandlerFunc(healthHandler)))
	httpRouter.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	httpRouter.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	httpRouter.GET("/ws", s.handleWebSocket)
	httpRouter.GET("/api/status", s.handleStatus)
	httpRouter.POST("/api/command", s.handleCommand)
	httpRouter.POST("/api/autonomous/start", s.handleAutonomousStart)
	httpRouter.POST("/api/autonomous/stop", s.handleAutonomousStop)
	httpRouter.POST("/api/simulate/:pin/:value", s.handleSimulateInput)
	return httpRouter
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "OK")
}

// handleStatus returns the status of the robot.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Status())
}

// handleCommand executes the commands in the request body.
func (s *Server) handleCommand(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCommandSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(body) > maxCommandSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("commands exceed %d bytes", maxCommandSize))
	}
	httpRequestsTotal.WithLabelValues("command").Inc()
	if err := s.service.Command(c.Request().Context(), string(body)); err != nil {
		s.log.Warn().Err(err).Msg("Command failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// handleAutonomousStart starts the line follower.
func (s *Server) handleAutonomousStart(c echo.Context) error {
	httpRequestsTotal.WithLabelValues("autonomous_start").Inc()
	if err := s.service.StartAutonomous(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// handleAutonomousStop stops the line follower.
func (s *Server) handleAutonomousStop(c echo.Context) error {
	httpRequestsTotal.WithLabelValues("autonomous_stop").Inc()
	if err := s.service.StopAutonomous(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSimulateInput changes the level of an input pin of an emulated robot.
func (s *Server) handleSimulateInput(c echo.Context) error {
	pin, err := strconv.Atoi(c.Param("pin"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pin")
	}
	value, err := strconv.ParseBool(c.Param("value"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid value")
	}
	httpRequestsTotal.WithLabelValues("simulate").Inc()
	if err := s.service.SimulateInput(c.Request().Context(), pin, value); service.IsNotEmulated(err) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
