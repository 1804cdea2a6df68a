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

package broadcast

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "broadcast"
)

var (
	// Number of registered connections per registry
	connectionsGauge = metrics.MustRegisterGaugeVec(subSystem,
		"connections",
		"Number of registered connections",
		"registry")
	// Number of broadcasted messages per registry
	messagesTotal = metrics.MustRegisterCounterVec(subSystem,
		"messages_total",
		"Number of broadcasted messages",
		"registry")
	// Number of failed sends per registry
	sendFailuresTotal = metrics.MustRegisterCounterVec(subSystem,
		"send_failures_total",
		"Number of failed sends to a connection",
		"registry")
)
