// Copyright 2019 Ewout Prangsma
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

package client

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/t9robot/robotd/pkg/api"
	"github.com/t9robot/robotd/pkg/service"
	"github.com/t9robot/robotd/pkg/service/util"
)

var (
	maskAny = errors.WithStack
)

// Client is a remote control for a robot.
type Client struct {
	conn *grpc.ClientConn
	c    api.RobotClient
}

// NewClient connects to the robot at the given host & GRPC port.
func NewClient(ctx context.Context, host string, port int) (*Client, error) {
	conn, err := util.DialConn(ctx, host, port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s:%d", host, port)
	}
	return &Client{
		conn: conn,
		c:    api.NewRobotClient(conn),
	}, nil
}

// Close the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return maskAny(c.conn.Close())
}

// Command sends line based commands to the robot.
func (c *Client) Command(ctx context.Context, text string) error {
	if _, err := c.c.Command(ctx, wrapperspb.String(text)); err != nil {
		return maskAny(err)
	}
	return nil
}

// SetAutonomous starts or stops the line follower.
func (c *Client) SetAutonomous(ctx context.Context, enabled bool) error {
	if _, err := c.c.Autonomous(ctx, wrapperspb.Bool(enabled)); err != nil {
		return maskAny(err)
	}
	return nil
}

// GetStatus requests the status of the robot.
func (c *Client) GetStatus(ctx context.Context) (service.Status, error) {
	resp, err := c.c.Status(ctx, &emptypb.Empty{})
	if err != nil {
		return service.Status{}, maskAny(err)
	}
	var result service.Status
	if err := json.Unmarshal([]byte(resp.GetValue()), &result); err != nil {
		return service.Status{}, errors.Wrap(err, "failed to decode status")
	}
	return result, nil
}

// Watch calls the given callback for every telemetry line of the robot
// until the given context is canceled or the robot closes the stream.
func (c *Client) Watch(ctx context.Context, cb func(msg string)) error {
	stream, err := c.c.Watch(ctx, &emptypb.Empty{})
	if err != nil {
		return maskAny(err)
	}
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return nil
		} else if status.Code(err) == codes.Canceled && ctx.Err() != nil {
			return nil
		} else if err != nil {
			return maskAny(err)
		}
		cb(msg.GetValue())
	}
}
