// Copyright 2018 Ewout Prangsma
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

package loop

import (
	"github.com/t9robot/robotd/pkg/metrics"
)

const (
	subSystem = "loop"
)

var (
	postedTotal = metrics.MustRegisterCounter(subSystem, "posted_total",
		"Number of requests put on the queue")
	droppedTotal = metrics.MustRegisterCounter(subSystem, "dropped_total",
		"Number of requests dropped because the queue was full")
	executedTotal = metrics.MustRegisterCounter(subSystem, "executed_total",
		"Number of requests executed")
	panicsTotal = metrics.MustRegisterCounter(subSystem, "panics_total",
		"Number of requests that panicked")
)
