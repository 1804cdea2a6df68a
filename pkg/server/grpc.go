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
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/t9robot/robotd/pkg/api"
	"github.com/t9robot/robotd/pkg/service/broadcast"
)

const (
	watchQueueSize = 64
)

// robotServer implements the robot GRPC service.
type robotServer struct {
	log     zerolog.Logger
	service Service
}

var _ api.RobotServer = &robotServer{}

// Command executes the line based commands in the given text.
func (s *robotServer) Command(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.service.Command(ctx, req.GetValue()); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// Autonomous starts (true) or stops (false) the line follower.
func (s *robotServer) Autonomous(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	var err error
	if req.GetValue() {
		err = s.service.StartAutonomous(ctx)
	} else {
		err = s.service.StopAutonomous(ctx)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptypb.Empty{}, nil
}

// Status returns the status of the robot as JSON.
func (s *robotServer) Status(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {
	encoded, err := json.Marshal(s.service.Status())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(string(encoded)), nil
}

// Watch streams all telemetry lines until the client goes away.
func (s *robotServer) Watch(req *emptypb.Empty, server api.Robot_WatchServer) error {
	return s.watch(server)
}

type watchStream interface {
	Send(*wrapperspb.StringValue) error
	Context() context.Context
}

func (s *robotServer) watch(server watchStream) error {
	conn := broadcast.NewQueueConnection("grpc", watchQueueSize)
	defer conn.Close()
	sub := s.service.OnOpen(conn)
	defer s.service.OnClose(sub)

	ctx := server.Context()
	for {
		select {
		case msg := <-conn.Messages():
			if err := server.Send(wrapperspb.String(msg)); err != nil {
				s.log.Debug().Err(err).Str("connection", conn.ID()).Msg("Send failed")
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
