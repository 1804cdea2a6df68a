// Copyright 2017 Ewout Prangsma
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
package service

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Total number of opened remote connections
	connectionsOpenedTotal = metrics.MustRegisterCounter(subSystem,
		"connections_opened_total",
		"Total number of opened remote connections")
	// Total number of closed remote connections
	connectionsClosedTotal = metrics.MustRegisterCounter(subSystem,
		"connections_closed_total",
		"Total number of closed remote connections")
	// Total number of received messages
	messagesReceivedTotal = metrics.MustRegisterCounter(subSystem,
		"messages_received_total",
		"Total number of messages received from remote connections")
	// Total number of autonomous start/stop requests
	autonomousRequestsTotal = metrics.MustRegisterCounterVec(subSystem,
		"autonomous_requests_total",
		"Total number of autonomous mode requests",
		"request")
)
