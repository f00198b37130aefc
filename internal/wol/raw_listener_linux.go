//go:build linux

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
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

// RawListenerOptions tunes the raw Ethernet listener
type RawListenerOptions struct {
	Promiscuous    bool
	AttachBPF      bool
	RecvTimeoutSec int // default 1
}

// RawListener receives Layer-2 (EtherType 0x0842) magic packets on one interface
type RawListener struct {
	interfaceName string
	fd            int
	log           logr.Logger
	handler       *Handler

	promisc   bool
	attachBPF bool
	rcvTOsec  int

	stopOnce sync.Once
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewRawListener creates a raw listener with BPF filtering and no promiscuous mode
func NewRawListener(interfaceName string, handler *Handler, log logr.Logger) *RawListener {
	return NewRawListenerWithOptions(interfaceName, handler, log, RawListenerOptions{
		AttachBPF:      true,
		RecvTimeoutSec: 1,
	})
}

// NewRawListenerWithOptions creates a raw listener tuned by opt. A non-positive
// RecvTimeoutSec falls back to one second.
func NewRawListenerWithOptions(interfaceName string, handler *Handler, log logr.Logger, opt RawListenerOptions) *RawListener {
	if opt.RecvTimeoutSec <= 0 {
		opt.RecvTimeoutSec = 1
	}
	return &RawListener{
		interfaceName: interfaceName,
		fd:            -1,
		log:           log,
		handler:       handler,
		promisc:       opt.Promiscuous,
		attachBPF:     opt.AttachBPF,
		rcvTOsec:      opt.RecvTimeoutSec,
	}
}

// Start opens the raw socket and starts the receive goroutine. It needs CAP_NET_RAW.
func (r *RawListener) Start(ctx context.Context) error {
	ifi, err := net.InterfaceByName(r.interfaceName)
	if err != nil {
		return fmt.Errorf("failed to get interface %s: %w", r.interfaceName, err)
	}

	r.log.Info("Starting raw Ethernet sleep-on-LAN listener",
		"interface", ifi.Name,
		"mac", ifi.HardwareAddr.String(),
		"mtu", ifi.MTU)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return fmt.Errorf("failed to create raw socket: %w (requires CAP_NET_RAW)", err)
	}
	r.fd = fd

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		r.fd = -1
		return fmt.Errorf("failed to bind to interface %s: %w", ifi.Name, err)
	}

	if r.promisc {
		mreq := &unix.PacketMreq{
			Ifindex: int32(ifi.Index),
			Type:    unix.PACKET_MR_PROMISC,
		}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
			r.log.V(1).Info("Failed to set promiscuous mode (continuing)", "error", err)
		}
	}

	if r.attachBPF {
		bpf := wakeFrameFilter()
		fprog := unix.SockFprog{
			Len:    uint16(len(bpf)),
			Filter: &bpf[0],
		}
		if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
			r.log.V(1).Info("Failed to attach BPF filter (continuing)", "error", err)
		}
	}

	// The receive timeout lets the loop notice cancellation
	tv := &unix.Timeval{Sec: int64(r.rcvTOsec), Usec: 0}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, tv); err != nil {
		r.log.V(1).Info("Failed to set SO_RCVTIMEO (continuing)", "error", err)
	}

	r.log.Info("Raw Ethernet listener started", "interface", r.interfaceName, "fd", fd)

	r.wg.Add(1)
	go r.listen(ctx)
	return nil
}

// Stop closes the socket and waits for the receive goroutine
func (r *RawListener) Stop() {
	r.stopOnce.Do(func() {
		r.closed.Store(true)
		if r.fd >= 0 {
			// Unblock any Recvfrom before waiting for the loop
			_ = unix.Shutdown(r.fd, unix.SHUT_RD)
		}
		r.wg.Wait()
		if r.fd >= 0 {
			if err := unix.Close(r.fd); err != nil {
				r.log.Error(err, "Failed to close raw socket")
			}
			r.fd = -1
		}
		r.log.Info("Raw Ethernet listener stopped")
	})
}

func (r *RawListener) listen(ctx context.Context) {
	defer r.wg.Done()
	buffer := make([]byte, 2000)
	r.log.Info("Raw Ethernet listener loop started, waiting for magic packets...")

	for {
		if ctx.Err() != nil || r.closed.Load() {
			r.log.Info("Context cancelled or listener closed, stopping raw listener loop")
			return
		}

		n, _, err := unix.Recvfrom(r.fd, buffer, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if ctx.Err() != nil || r.closed.Load() {
				return
			}
			r.log.Error(err, "Error reading raw packet")
			ReceiveErrorsTotal.Inc()
			continue
		}

		r.processFrame(buffer[:n])
	}
}

func (r *RawListener) processFrame(frame []byte) {
	wf, err := decodeWakeFrame(frame)
	if err != nil {
		return
	}
	_, _ = r.handler.Handle(wf.payload, wf.srcMAC.String()+"%"+r.interfaceName)
}

// wakeFrameFilter accepts EtherType 0x0842 frames, untagged or behind one
// 802.1Q tag the NIC did not strip.
//
//	ldh [12]; jeq #0x0842 accept; jeq #0x8100 next, drop
//	ldh [16]; jeq #0x0842 accept, drop
func wakeFrameFilter() []unix.SockFilter {
	return []unix.SockFilter{
		{Code: 0x28, Jt: 0, Jf: 0, K: 12},
		{Code: 0x15, Jt: 3, Jf: 0, K: uint32(EthernetTypeWakeOnLAN)},
		{Code: 0x15, Jt: 0, Jf: 3, K: uint32(layers.EthernetTypeDot1Q)},
		{Code: 0x28, Jt: 0, Jf: 0, K: 16},
		{Code: 0x15, Jt: 0, Jf: 1, K: uint32(EthernetTypeWakeOnLAN)},
		{Code: 0x6, Jt: 0, Jf: 0, K: 0x00040000},
		{Code: 0x6, Jt: 0, Jf: 0, K: 0x00000000},
	}
}

// htons converts uint16 from host to network byte order (big-endian)
func htons(v uint16) uint16 { return (v << 8) | (v >> 8) }
