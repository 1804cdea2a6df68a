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

package bridge

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of pin writes per pin
	pinWritesTotal = metrics.MustRegisterCounterVec(subSystem,
		"pin_writes_total",
		"Total number of writes to a pin",
		"pin")
	// Total number of failed pin operations per pin
	pinErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"pin_errors_total",
		"Total number of failed operations on a pin",
		"pin")
	// Total number of detected edges per pin
	edgesDetectedTotal = metrics.MustRegisterCounterVec(subSystem,
		"edges_detected_total",
		"Total number of edges detected on a pin",
		"pin")
	// Current duty cycle of PWM pins
	pwmDutyGauge = metrics.MustRegisterGaugeVec(subSystem,
		"pwm_duty_percent",
		"Current duty cycle of a PWM pin (0..100)",
		"pin")
)
