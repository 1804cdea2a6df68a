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

package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// ServiceType is the mDNS service type of a robot.
	ServiceType = "_robotd._tcp"
	// Domain is the mDNS domain robots are advertised in.
	Domain = "local."
)

// Config of the advertisement.
type Config struct {
	// Instance name, defaults to the hostname
	Instance string
	// HTTP port of the robot
	HTTPPort int
	// GRPC port of the robot
	GRPCPort int
	// Version of the robot software
	Version string
}

// Robot is a robot found on the local network.
type Robot struct {
	Instance string
	Address  string
	HTTPPort int
	GRPCPort int
	Version  string
}

// Advertise the robot on the local network until the given context is canceled.
func Advertise(ctx context.Context, log zerolog.Logger, cfg Config) error {
	instance := cfg.Instance
	if instance == "" {
		instance = "robotd"
	}
	server, err := zeroconf.Register(instance, ServiceType, Domain, cfg.HTTPPort, cfg.txtRecords(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to register mDNS service")
	}
	log.Info().
		Str("instance", instance).
		Int("port", cfg.HTTPPort).
		Msg("Advertising robot")
	<-ctx.Done()
	server.Shutdown()
	return nil
}

// Browse the local network for robots for the given duration.
func Browse(ctx context.Context, timeout time.Duration) ([]Robot, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mDNS resolver")
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mutex sync.Mutex
	var robots []Robot
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			mutex.Lock()
			robots = append(robots, entryToRobot(entry))
			mutex.Unlock()
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := resolver.Browse(browseCtx, ServiceType, Domain, entries); err != nil {
		return nil, errors.Wrap(err, "failed to browse")
	}
	<-browseCtx.Done()
	wg.Wait()
	return robots, nil
}

func (cfg Config) txtRecords() []string {
	return []string{
		"version=" + cfg.Version,
		"grpc=" + strconv.Itoa(cfg.GRPCPort),
	}
}

func entryToRobot(entry *zeroconf.ServiceEntry) Robot {
	r := Robot{
		Instance: entry.Instance,
		HTTPPort: entry.Port,
	}
	if len(entry.AddrIPv4) > 0 {
		r.Address = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		r.Address = entry.AddrIPv6[0].String()
	} else {
		r.Address = strings.TrimSuffix(entry.HostName, ".")
	}
	parseTXTRecords(entry.Text, &r)
	return r
}

func parseTXTRecords(records []string, r *Robot) {
	for _, rec := range records {
		idx := strings.Index(rec, "=")
		if idx < 0 {
			continue
		}
		key, value := rec[:idx], rec[idx+1:]
		switch key {
		case "version":
			r.Version = value
		case "grpc":
			if port, err := strconv.Atoi(value); err == nil {
				r.GRPCPort = port
			}
		}
	}
}

// String returns a human readable form of the robot.
func (r Robot) String() string {
	return fmt.Sprintf("%s at %s (http %d, grpc %d, version %s)",
		r.Instance, r.Address, r.HTTPPort, r.GRPCPort, r.Version)
}
