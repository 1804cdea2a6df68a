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
package linefollower

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "linefollower"
)

var (
	stateGauge = metrics.MustRegisterGauge(subSystem,
		"running",
		"Line follower state (0=STOPPED, 1=RUNNING)")
	transitionsTotal = metrics.MustRegisterCounterVec(subSystem,
		"transitions_total",
		"Number of state transitions",
		"state")
	calibrationsTotal = metrics.MustRegisterCounterVec(subSystem,
		"calibrations_total",
		"Number of calibrations by selected profile",
		"profile")
	steeringTotal = metrics.MustRegisterCounterVec(subSystem,
		"steering_total",
		"Number of steering corrections",
		"surface")
)
