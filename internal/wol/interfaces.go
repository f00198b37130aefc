/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wol

import (
	"fmt"
	"net"
	"sort"

	"github.com/go-logr/logr"
)

// LocalInterfaces returns the up, non-loopback interfaces that carry an
// Ethernet hardware address, sorted by name.
func LocalInterfaces(log logr.Logger) ([]net.Interface, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}
	return filterLocalInterfaces(interfaces, log), nil
}

func filterLocalInterfaces(interfaces []net.Interface, log logr.Logger) []net.Interface {
	var result []net.Interface
	for _, iface := range interfaces {
		if (iface.Flags&net.FlagLoopback) != 0 || (iface.Flags&net.FlagUp) == 0 {
			continue
		}
		if len(iface.HardwareAddr) != macSize {
			log.V(1).Info("Skipping interface without Ethernet address", "interface", iface.Name)
			continue
		}
		result = append(result, iface)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
