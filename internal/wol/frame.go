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
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthernetTypeWakeOnLAN is the EtherType of Layer-2 magic packets
const EthernetTypeWakeOnLAN layers.EthernetType = 0x0842

// ErrRawUnsupported is returned by RawListener.Start on platforms without AF_PACKET
var ErrRawUnsupported = errors.New("raw Ethernet listener is not supported on this platform")

var (
	errNotWakeFrame = errors.New("not a Wake-on-LAN frame")
	errNotBroadcast = errors.New("frame is not broadcast")
)

// wakeFrame is the part of a Layer-2 WoL frame the raw listener cares about
type wakeFrame struct {
	srcMAC  net.HardwareAddr
	payload []byte
}

// decodeWakeFrame extracts the magic packet payload of a broadcast 0x0842
// frame, looking through one 802.1Q tag.
func decodeWakeFrame(frame []byte) (wakeFrame, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return wakeFrame{}, err
	}

	etherType := eth.EthernetType
	payload := eth.Payload
	if etherType == layers.EthernetTypeDot1Q {
		var tag layers.Dot1Q
		if err := tag.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
			return wakeFrame{}, err
		}
		etherType = tag.Type
		payload = tag.Payload
	}

	if etherType != EthernetTypeWakeOnLAN {
		return wakeFrame{}, errNotWakeFrame
	}
	if !isBroadcastMAC(eth.DstMAC) {
		return wakeFrame{}, errNotBroadcast
	}

	return wakeFrame{
		srcMAC:  append(net.HardwareAddr{}, eth.SrcMAC...),
		payload: payload,
	}, nil
}

func isBroadcastMAC(b []byte) bool {
	if len(b) != macSize {
		return false
	}
	for i := 0; i < macSize; i++ {
		if b[i] != 0xFF {
			return false
		}
	}
	return true
}
