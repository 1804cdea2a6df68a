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
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestTXTRecords(t *testing.T) {
	cfg := Config{Version: "1.0.0", GRPCPort: 7130}
	assert.Equal(t, []string{"version=1.0.0", "grpc=7130"}, cfg.txtRecords())

	var r Robot
	parseTXTRecords(append(cfg.txtRecords(), "garbage", "grpc=abc"), &r)
	assert.Equal(t, "1.0.0", r.Version)
	assert.Equal(t, 7130, r.GRPCPort)
}

func TestEntryToRobot(t *testing.T) {
	entry := zeroconf.NewServiceEntry("kitchen", ServiceType, Domain)
	entry.Port = 7129
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	entry.Text = []string{"version=dev", "grpc=7130"}

	r := entryToRobot(entry)
	assert.Equal(t, Robot{
		Instance: "kitchen",
		Address:  "192.168.1.20",
		HTTPPort: 7129,
		GRPCPort: 7130,
		Version:  "dev",
	}, r)
	assert.Equal(t, "kitchen at 192.168.1.20 (http 7129, grpc 7130, version dev)", r.String())

	entry.AddrIPv4 = nil
	entry.HostName = "t9.local."
	assert.Equal(t, "t9.local", entryToRobot(entry).Address)
}
