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
	"fmt"
	"net"
)

const (
	// DefaultSleepPort is the UDP port the daemon listens on unless configured otherwise
	DefaultSleepPort = 10
	// MagicPacketSize is the exact size of a magic packet (6 + 6*16 = 102 bytes)
	MagicPacketSize = headerSize + macRepetitions*macSize

	headerSize     = 6
	macSize        = 6
	macRepetitions = 16
)

var (
	// ErrWrongLength is reported for payloads that are not exactly MagicPacketSize bytes
	ErrWrongLength = errors.New("wrong magic packet length")
	// ErrBadHeader is reported when the synchronization header is not 6x0xFF
	ErrBadHeader = errors.New("bad magic packet header")
	// ErrInconsistentMAC is reported when the 16 MAC repetitions differ
	ErrInconsistentMAC = errors.New("inconsistent MAC repetitions")
)

// ValidationError describes why a payload is not a magic packet.
// Reason is one of ErrWrongLength, ErrBadHeader or ErrInconsistentMAC.
type ValidationError struct {
	Reason error
	// Length is the size of the rejected payload
	Length int
	// Offset is the first offending byte; -1 for length errors
	Offset int
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Reason, ErrWrongLength) {
		return fmt.Sprintf("%v: got %d bytes, want %d", e.Reason, e.Length, MagicPacketSize)
	}
	return fmt.Sprintf("%v at offset %d", e.Reason, e.Offset)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Label returns a short, stable name for the failure, suitable for metric labels
func (e *ValidationError) Label() string {
	switch {
	case errors.Is(e.Reason, ErrWrongLength):
		return "wrong_length"
	case errors.Is(e.Reason, ErrBadHeader):
		return "bad_header"
	case errors.Is(e.Reason, ErrInconsistentMAC):
		return "inconsistent_mac"
	default:
		return "unknown"
	}
}

// MagicPacket is a validated Wake-on-LAN payload
type MagicPacket struct {
	targetMAC [macSize]byte
}

// NewMagicPacket builds a packet addressed to mac, which must be a 6-byte hardware address
func NewMagicPacket(mac net.HardwareAddr) (MagicPacket, error) {
	var p MagicPacket
	if len(mac) != macSize {
		return p, fmt.Errorf("MAC address %q must be %d bytes, got %d", mac.String(), macSize, len(mac))
	}
	copy(p.targetMAC[:], mac)
	return p, nil
}

// TargetMAC returns a copy of the MAC address carried by the packet
func (p MagicPacket) TargetMAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, macSize)
	copy(mac, p.targetMAC[:])
	return mac
}

// String formats the target MAC lowercase with colons
func (p MagicPacket) String() string {
	return p.TargetMAC().String()
}

// Bytes encodes the packet in its 102-byte wire form
func (p MagicPacket) Bytes() []byte {
	packet := make([]byte, MagicPacketSize)
	for i := 0; i < headerSize; i++ {
		packet[i] = 0xFF
	}
	for i := 0; i < macRepetitions; i++ {
		copy(packet[headerSize+i*macSize:], p.targetMAC[:])
	}
	return packet
}

// ParseMagicPacket validates a magic packet and extracts its target MAC.
// A valid magic packet is exactly:
// - 6 bytes of 0xFF
// - 16 repetitions of the target MAC address (6 bytes each)
//
// The MAC value itself is not checked against anything.
func ParseMagicPacket(packet []byte) (MagicPacket, error) {
	var p MagicPacket

	if len(packet) != MagicPacketSize {
		return p, &ValidationError{Reason: ErrWrongLength, Length: len(packet), Offset: -1}
	}

	for i := 0; i < headerSize; i++ {
		if packet[i] != 0xFF {
			return p, &ValidationError{Reason: ErrBadHeader, Length: len(packet), Offset: i}
		}
	}

	macBytes := packet[headerSize : headerSize+macSize]
	for i := 1; i < macRepetitions; i++ {
		offset := headerSize + i*macSize
		for j := 0; j < macSize; j++ {
			if packet[offset+j] != macBytes[j] {
				return p, &ValidationError{Reason: ErrInconsistentMAC, Length: len(packet), Offset: offset + j}
			}
		}
	}

	copy(p.targetMAC[:], macBytes)
	return p, nil
}
