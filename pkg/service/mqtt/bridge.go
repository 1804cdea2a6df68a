// Copyright 2021 Ewout Prangsma
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
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/t9robot/robotd/pkg/service/broadcast"
	"github.com/t9robot/robotd/pkg/service/util"
)

const (
	mqttPublishTimeout = time.Millisecond * 200
	telemetryQueueSize = 64
)

var (
	// NotConnectedError is returned when publishing without a broker connection.
	NotConnectedError = errors.New("not connected")
)

// Session is the part of the robot session used by the bridge.
type Session interface {
	OnOpen(conn broadcast.Connection) *broadcast.Subscription
	OnMessage(ctx context.Context, conn broadcast.Connection, text string) error
	OnClose(sub *broadcast.Subscription)
}

// Config of the MQTT bridge.
type Config struct {
	// Broker address (host:port)
	Broker string
	// Prefix of all topics
	Prefix string
	// ClientID of the connection. Generated when empty.
	ClientID string
}

// CommandTopic returns the topic on which commands are received.
func (c Config) CommandTopic() string { return c.topic("command") }

// TelemetryTopic returns the topic on which telemetry is published.
func (c Config) TelemetryTopic() string { return c.topic("telemetry") }

// LogTopic returns the topic on which log lines are published.
func (c Config) LogTopic() string { return c.topic("log") }

func (c Config) topic(name string) string {
	return strings.TrimSuffix(c.Prefix, "/") + "/" + name
}

// Bridge connects the robot session to an MQTT broker.
// Commands are received on <prefix>/command, telemetry is published
// on <prefix>/telemetry.
type Bridge struct {
	log     zerolog.Logger
	config  Config
	session Session
	id      string
	queue   chan string

	mutex  sync.Mutex
	client mqttapi.Client
}

var _ broadcast.Connection = &Bridge{}

// NewBridge creates a new, unconnected bridge.
func NewBridge(log zerolog.Logger, config Config, session Session) *Bridge {
	if config.ClientID == "" {
		config.ClientID = "robotd-" + uuid.NewString()
	}
	return &Bridge{
		log:     log.With().Str("component", "mqtt").Str("broker", config.Broker).Logger(),
		config:  config,
		session: session,
		id:      "mqtt:" + config.ClientID,
		queue:   make(chan string, telemetryQueueSize),
	}
}

// ID returns the identifier of the bridge as a connection.
func (b *Bridge) ID() string {
	return b.id
}

// Send queues a telemetry line for publication.
func (b *Bridge) Send(msg string) error {
	select {
	case b.queue <- msg:
		return nil
	default:
		telemetryDroppedTotal.Inc()
		return errors.Wrap(broadcast.ConnectionGoneError, "telemetry queue full")
	}
}

// Publish the given payload on the given topic.
func (b *Bridge) Publish(topic string, payload []byte) error {
	b.mutex.Lock()
	client := b.client
	b.mutex.Unlock()

	if client == nil || !client.IsConnectionOpen() {
		return NotConnectedError
	}
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Errorf("failed to deliver message on '%s' in time", topic)
	}
	return token.Error()
}

// Run the bridge until the given context is canceled.
// Lost connections are re-established.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.session.OnOpen(b)
	defer b.session.OnClose(sub)
	return util.UntilCanceled(ctx, b.log, "mqtt bridge", b.runOnce)
}

// runOnce connects to the broker and publishes telemetry until
// the connection is lost or the given context is canceled.
func (b *Bridge) runOnce(ctx context.Context) error {
	lost := make(chan error, 1)
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + b.config.Broker).
		SetClientID(b.config.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(c mqttapi.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	// Connect client
	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt: %w", token.Error())
	}
	defer client.Disconnect(250)

	topic := b.config.CommandTopic()
	onCommand := func(c mqttapi.Client, m mqttapi.Message) {
		commandsReceivedTotal.Inc()
		if err := b.session.OnMessage(ctx, b, string(m.Payload())); err != nil {
			b.log.Warn().Err(err).Msg("Command failed")
		}
	}
	if token := client.Subscribe(topic, 0, onCommand); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", topic, token.Error())
	}

	b.mutex.Lock()
	b.client = client
	b.mutex.Unlock()
	defer func() {
		b.mutex.Lock()
		b.client = nil
		b.mutex.Unlock()
	}()
	b.log.Info().Msg("Connected to MQTT broker")

	telemetryTopic := b.config.TelemetryTopic()
	for {
		select {
		case msg := <-b.queue:
			token := client.Publish(telemetryTopic, 0, false, msg)
			if !token.WaitTimeout(mqttPublishTimeout) {
				b.log.Debug().Str("payload", msg).Msg("failed to deliver telemetry in time")
			} else if err := token.Error(); err != nil {
				return err
			}
			telemetryPublishedTotal.Inc()
		case err := <-lost:
			return fmt.Errorf("connection lost: %w", err)
		case <-ctx.Done():
			return nil
		}
	}
}
