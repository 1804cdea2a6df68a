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

package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgeTypeFor(t *testing.T) {
	assert.Equal(t, BridgeRaspberryPi, bridgeTypeFor("armv7l", "6.1.21-v7l+"))
	assert.Equal(t, BridgeRaspberryPi, bridgeTypeFor("aarch64", "6.6.31+rpt-rpi-v8"))
	assert.Equal(t, BridgePeriph, bridgeTypeFor("armv7l", "5.15.93-sunxi"))
	assert.Equal(t, BridgePeriph, bridgeTypeFor("aarch64", "6.1.0-generic"))
	assert.Equal(t, BridgeVirtual, bridgeTypeFor("x86_64", "6.8.0-45-generic"))
	assert.Equal(t, BridgeVirtual, bridgeTypeFor("", ""))
}
