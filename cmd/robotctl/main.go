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

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/t9robot/robotd/pkg/client"
	"github.com/t9robot/robotd/pkg/discovery"
)

const (
	defaultGRPCPort = 7130
	requestTimeout  = time.Second * 10
	discoverTimeout = time.Second * 3
)

func main() {
	var host string
	var port int
	var levelFlag string

	pflag.StringVar(&host, "host", "127.0.0.1", "Host address of the robot")
	pflag.IntVar(&port, "port", defaultGRPCPort, "GRPC port of the robot")
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.Usage = usage
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Debug().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if args[0] == "discover" {
		robots, err := discovery.Browse(ctx, discoverTimeout)
		if err != nil {
			Exitf("Discovery failed: %v\n", err)
		}
		for _, r := range robots {
			fmt.Println(r)
		}
		return
	}

	c, err := client.NewClient(ctx, host, port)
	if err != nil {
		Exitf("Failed to connect: %v\n", err)
	}
	defer c.Close()

	switch args[0] {
	case "command", "cmd":
		if len(args) < 2 {
			Exitf("Usage: robotctl command <forward|left|right|reverse|stop>...\n")
		}
		withTimeout(ctx, func(ctx context.Context) error {
			return c.Command(ctx, strings.Join(args[1:], "\n"))
		})
	case "auto":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			Exitf("Usage: robotctl auto <on|off>\n")
		}
		withTimeout(ctx, func(ctx context.Context) error {
			return c.SetAutonomous(ctx, args[1] == "on")
		})
	case "status":
		withTimeout(ctx, func(ctx context.Context) error {
			st, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Version:    %s\n", st.ProgramVersion)
			fmt.Printf("Emulated:   %v\n", st.Emulated)
			fmt.Printf("Motors:     %s\n", st.Motors)
			fmt.Printf("Autonomous: %s (%s)\n", st.Autonomous.State, st.Autonomous.Profile)
			fmt.Printf("Remotes:    %d\n", st.Connections)
			for _, p := range st.Pins {
				fmt.Printf("  %s\n", p)
			}
			return nil
		})
	case "watch":
		if err := c.Watch(ctx, func(msg string) {
			fmt.Println(msg)
		}); err != nil {
			Exitf("Watch failed: %v\n", err)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func withTimeout(ctx context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		Exitf("Request failed: %v\n", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: robotctl [flags] <command>

Commands:
  command <cmd>...   Send commands (forward, left, right, reverse, stop)
  auto on|off        Start or stop the line follower
  status             Show the status of the robot
  watch              Show all telemetry of the robot
  discover           List robots on the local network

Flags:
`)
	pflag.PrintDefaults()
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
