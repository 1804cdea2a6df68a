//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.


package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/t9robot/robotd/pkg/config"
	"github.com/t9robot/robotd/pkg/discovery"
	"github.com/t9robot/robotd/pkg/environment"
	"github.com/t9robot/robotd/pkg/logging"
	"github.com/t9robot/robotd/pkg/server"
	"github.com/t9robot/robotd/pkg/service"
	"github.com/t9robot/robotd/pkg/service/bridge"
	"github.com/t9robot/robotd/pkg/service/linefollower"
	"github.com/t9robot/robotd/pkg/service/mqtt"
	"github.com/t9robot/robotd/pkg/ui"
)

const (
	projectName       = "T9 robot daemon"
	defaultServerPort = 7129
	defaultGRPCPort   = 7130
	defaultSSHPort    = 7131
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var serverHost string
	var serverPort int
	var grpcPort int
	var sshPort int
	var sshHostKeyPath string
	var bridgeType string
	var configPath string
	var mqttBroker string
	var mqttPrefix string
	var instanceName string
	var noDiscovery bool
	var emulate bool

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "auto", "Type of bridge to use (auto|rpi|periph|virtual)")
	pflag.StringVarP(&configPath, "config", "c", "", "Path of the YAML configuration file")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&serverPort, "port", defaultServerPort, "Port the HTTP server will listen on")
	pflag.IntVar(&grpcPort, "grpc-port", defaultGRPCPort, "Port the GRPC server will listen on (0 disables)")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH server will listen on (0 disables)")
	pflag.StringVar(&sshHostKeyPath, "ssh-host-key", ".ssh/id_ed25519", "Path of the SSH host key")
	pflag.StringVar(&mqttBroker, "mqtt-broker", "", "Address (host:port) of the MQTT broker (empty disables)")
	pflag.StringVar(&mqttPrefix, "mqtt-prefix", "robotd", "Prefix of all MQTT topics")
	pflag.StringVar(&instanceName, "name", "", "Name the robot is advertised with")
	pflag.BoolVar(&emulate, "emulate", false, "Emulate all pins (same as --bridge=virtual)")
	pflag.BoolVar(&noDiscovery, "no-discovery", false, "Do not advertise the robot on the local network")
	pflag.Parse()

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())

	mqttWriter := logging.NewMQTTWriter(ctx)
	logOutput := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr})
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	conf, err := config.Load(configPath)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}

	if emulate {
		bridgeType = environment.BridgeVirtual
	}
	br, err := newBridge(bridgeType, logger)
	if err != nil {
		Exitf("Failed to initialize bridge: %v\n", err)
	}

	svc, err := service.NewService(service.Config{
		ProgramVersion: projectVersion,
		Objects:        conf.Objects,
		LineFollower:   conf.LineFollower,
		Commands:       conf.Commands,
	}, service.Dependencies{
		Logger: logger,
		Bridge: br,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}
	unregister := svc.RegisterStateReceiver(func(change linefollower.StateChange) {
		logger.Info().
			Str("state", string(change.State)).
			Str("profile", change.Profile.String()).
			Msg("Line follower changed state")
	})
	defer unregister()

	srv, err := server.New(server.Config{
		Host:           serverHost,
		HTTPPort:       serverPort,
		GRPCPort:       grpcPort,
		SSHPort:        sshPort,
		SSHHostKeyPath: sshHostKeyPath,
	}, logger, ui.New(logger, svc), svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if mqttBroker != "" {
		mqttConfig := mqtt.Config{
			Broker: mqttBroker,
			Prefix: mqttPrefix,
		}
		mqttBridge := mqtt.NewBridge(logger, mqttConfig, svc)
		logOutput.Add(mqttWriter)
		mqttWriter.SetDestination(mqttConfig.LogTopic(), mqttBridge)
		mqttWriter.Enable(true)
		g.Go(func() error { return mqttBridge.Run(ctx) })
	}
	if !noDiscovery {
		g.Go(func() error {
			return discovery.Advertise(ctx, logger, discovery.Config{
				Instance: instanceName,
				HTTPPort: serverPort,
				GRPCPort: grpcPort,
				Version:  projectVersion,
			})
		})
	}
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// newBridge creates the bridge of the given type.
// A hardware bridge that cannot be opened in auto mode falls back to the virtual bridge.
func newBridge(bridgeType string, log zerolog.Logger) (bridge.API, error) {
	auto := bridgeType == "auto"
	if auto {
		bridgeType = environment.AutoDetectBridgeType(log)
	}
	var br bridge.API
	var err error
	switch bridgeType {
	case environment.BridgeRaspberryPi:
		br, err = bridge.NewRaspberryPiBridge()
	case environment.BridgePeriph:
		br, err = bridge.NewPeriphBridge()
	case environment.BridgeVirtual:
		log.Warn().Msg("Using virtual bridge, all pins are emulated")
		return bridge.NewVirtualBridge(nil), nil
	default:
		return nil, errors.Errorf("unknown bridge type '%s' (auto|rpi|periph|virtual)", bridgeType)
	}
	if err != nil && auto {
		log.Warn().Err(err).Str("bridge", bridgeType).Msg("Failed to open bridge, using virtual bridge")
		return bridge.NewVirtualBridge(nil), nil
	} else if err != nil {
		return nil, maskAny(err)
	}
	return br, nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
