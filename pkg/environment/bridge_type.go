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

import "strings"

const (
	// BridgeRaspberryPi uses the Raspberry Pi GPIO registers.
	BridgeRaspberryPi = "rpi"
	// BridgePeriph uses the periph.io host drivers.
	BridgePeriph = "periph"
	// BridgeVirtual emulates all pins in memory.
	BridgeVirtual = "virtual"
)

// bridgeTypeFor selects the bridge for the given kernel machine & release.
func bridgeTypeFor(machine, release string) string {
	machine = strings.TrimSpace(machine)
	release = strings.TrimSpace(release)
	switch {
	case strings.Contains(release, "sunxi"):
		return BridgePeriph
	case strings.Contains(release, "rpi") || strings.Contains(release, "v7l+") || strings.Contains(release, "v8+"):
		return BridgeRaspberryPi
	case strings.HasPrefix(machine, "arm") || machine == "aarch64":
		return BridgePeriph
	default:
		return BridgeVirtual
	}
}
