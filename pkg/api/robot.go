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
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the full name of the robot gRPC service.
	ServiceName = "robotd.Robot"

	commandMethod    = "/" + ServiceName + "/Command"
	autonomousMethod = "/" + ServiceName + "/Autonomous"
	statusMethod     = "/" + ServiceName + "/Status"
	watchMethod      = "/" + ServiceName + "/Watch"
)

// RobotServer is the server API of the robot service.
type RobotServer interface {
	// Command executes the line based commands in the given text.
	Command(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// Autonomous starts (true) or stops (false) the line follower.
	Autonomous(context.Context, *wrapperspb.BoolValue) (*emptypb.Empty, error)
	// Status returns the status of the robot as JSON.
	Status(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	// Watch streams all telemetry lines.
	Watch(*emptypb.Empty, Robot_WatchServer) error
}

// Robot_WatchServer is the server side of the telemetry stream.
type Robot_WatchServer interface {
	Send(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type robotWatchServer struct {
	grpc.ServerStream
}

func (x *robotWatchServer) Send(m *wrapperspb.StringValue) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterRobotServer registers the given implementation with the given gRPC server.
func RegisterRobotServer(s *grpc.Server, srv RobotServer) {
	s.RegisterService(&robotServiceDesc, srv)
}

func commandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RobotServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: commandMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RobotServer).Command(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func autonomousHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BoolValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RobotServer).Autonomous(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: autonomousMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RobotServer).Autonomous(ctx, req.(*wrapperspb.BoolValue))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RobotServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: statusMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RobotServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RobotServer).Watch(m, &robotWatchServer{stream})
}

var robotServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RobotServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: commandHandler},
		{MethodName: "Autonomous", Handler: autonomousHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "robotd/robot.proto",
}

// RobotClient is the client API of the robot service.
type RobotClient interface {
	Command(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Autonomous(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Robot_WatchClient, error)
}

// Robot_WatchClient is the client side of the telemetry stream.
type Robot_WatchClient interface {
	Recv() (*wrapperspb.StringValue, error)
	grpc.ClientStream
}

type robotClient struct {
	cc *grpc.ClientConn
}

// NewRobotClient creates a client for the robot service on the given connection.
func NewRobotClient(cc *grpc.ClientConn) RobotClient {
	return &robotClient{cc}
}

func (c *robotClient) Command(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, commandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *robotClient) Autonomous(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, autonomousMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *robotClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, statusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *robotClient) Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Robot_WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &robotServiceDesc.Streams[0], watchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &robotWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type robotWatchClient struct {
	grpc.ClientStream
}

func (x *robotWatchClient) Recv() (*wrapperspb.StringValue, error) {
	m := new(wrapperspb.StringValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
