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

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/t9robot/robotd/pkg/api"
	"github.com/t9robot/robotd/pkg/service"
	"github.com/t9robot/robotd/pkg/service/broadcast"
)

// Config for the servers.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests (0 disables SSH)
	SSHPort int
	// Port to listen on for GRPC requests (0 disables GRPC)
	GRPCPort int
	// Path of the SSH host key. Created when it does not exist.
	SSHHostKeyPath string
}

// Server runs the HTTP, GRPC & SSH servers for the robot.
type Server struct {
	Config
	log     zerolog.Logger
	ui      UI
	service Service
}

type UI interface {
	// You can wire any Bubble Tea model up to the middleware with a function that
	// handles the incoming ssh.Session.
	Handler(s ssh.Session) (tea.Model, []tea.ProgramOption)
}

// Service is the robot session served by the servers.
type Service interface {
	// OnOpen registers a new remote connection for telemetry.
	OnOpen(conn broadcast.Connection) *broadcast.Subscription
	// OnMessage executes the commands in the given text.
	OnMessage(ctx context.Context, conn broadcast.Connection, text string) error
	// OnClose removes a remote connection.
	OnClose(sub *broadcast.Subscription)
	// Command executes the commands in the given text.
	Command(ctx context.Context, text string) error
	// StartAutonomous starts the line follower.
	StartAutonomous(ctx context.Context) error
	// StopAutonomous stops the line follower.
	StopAutonomous(ctx context.Context) error
	// SimulateInput changes the level of an input of an emulated robot.
	SimulateInput(ctx context.Context, pin int, value bool) error
	// Status returns a snapshot of the robot.
	Status() service.Status
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, ui UI, service Service) (*Server, error) {
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/id_ed25519"
	}
	return &Server{
		Config:  cfg,
		log:     log.With().Str("component", "server").Logger(),
		ui:      ui,
		service: service,
	}, nil
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	// Prepare HTTP listener
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on address %s: %w", httpAddr, err)
	}

	// Prepare HTTP server
	httpSrv := http.Server{
		Handler: s.newHTTPHandler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Serve apis
	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	g.Go(func() error {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to serve HTTP server: %w", err)
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpSrv.Shutdown(context.Background())
	})

	if s.GRPCPort != 0 {
		// Prepare GRPC listener
		grpcAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.GRPCPort))
		grpcLis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on address %s: %w", grpcAddr, err)
		}

		// Prepare GRPC server
		grpcSrv := grpc.NewServer(
			grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
			grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		)
		api.RegisterRobotServer(grpcSrv, &robotServer{log: log, service: s.service})
		grpc_prometheus.Register(grpcSrv)
		// Register reflection service on gRPC server.
		reflection.Register(grpcSrv)

		log.Debug().Str("address", grpcAddr).Msg("Serving GRPC")
		g.Go(func() error {
			if err := grpcSrv.Serve(grpcLis); err != nil {
				return fmt.Errorf("failed to serve GRPC server: %w", err)
			}
			log.Debug().Str("address", grpcAddr).Msg("Done Serving GRPC")
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	if s.SSHPort != 0 && s.ui != nil {
		// Prepare SSH server
		sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
		sshServer, err := wish.NewServer(
			// The address the server will listen to.
			wish.WithAddress(sshAddr),

			// The SSH server need its own keys, this will create a keypair in the
			// given path if it doesn't exist yet.
			// By default, it will create an ED25519 key.
			wish.WithHostKeyPath(s.SSHHostKeyPath),

			// Middlewares do something on a ssh.Session, and then call the next
			// middleware in the stack.
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui.Handler),
				// The last item in the chain is the first to be called.
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			return fmt.Errorf("could not start SSH server: %w", err)
		}

		// Serve UI
		log.Debug().Str("address", sshAddr).Msg("Serving SSH")
		g.Go(func() error {
			if err := sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				return fmt.Errorf("failed to serve SSH server: %w", err)
			}
			log.Debug().Str("address", sshAddr).Msg("Done Serving SSH")
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return sshServer.Shutdown(context.Background())
		})
	}

	err = g.Wait()
	log.Info().Msg("Closed servers")
	return err
}
