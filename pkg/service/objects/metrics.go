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

package objects

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "objects"
)

var (
	// Number of configured objects
	objectsConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"objects_configured_total",
		"Number of configured objects")

	// Motor metrics
	motorCommandsTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_commands_total",
		"Number of motor commands",
		"command")
	motorErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_errors_total",
		"Number of motor commands that failed",
		"command")
	motorDutyGauge = metrics.MustRegisterGaugeVec(subSystem,
		"motor_duty",
		"Current duty cycle of a motor (negative when reversing)",
		"side")

	// Edge input metrics
	edgesAcceptedTotal = metrics.MustRegisterCounterVec(subSystem,
		"edges_accepted_total",
		"Number of accepted edges of an input",
		"kind", "pin")
	edgesDebouncedTotal = metrics.MustRegisterCounterVec(subSystem,
		"edges_debounced_total",
		"Number of edges dropped because of debouncing",
		"kind", "pin")
	edgesDroppedTotal = metrics.MustRegisterCounterVec(subSystem,
		"edges_dropped_total",
		"Number of edges dropped because the event loop was full",
		"kind", "pin")
	inputActualGauge = metrics.MustRegisterGaugeVec(subSystem,
		"input_actual",
		"Last known value of an input",
		"kind", "pin")
)
