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
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// SuspendFunc is invoked once for every accepted magic packet.
// Failures of the suspend action are the callee's business.
type SuspendFunc func()

// HandlerOptions tunes the packet handler
type HandlerOptions struct {
	// Cooldown ignores valid packets for this long after a suspend returned.
	// Zero disables it.
	Cooldown time.Duration
}

// Handler validates packets and dispatches suspend requests one at a time
type Handler struct {
	onSuspend SuspendFunc
	log       logr.Logger
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	lastSuspend time.Time
	localMACs   map[string]string
}

// NewHandler creates a handler that calls onSuspend for each valid magic packet
func NewHandler(onSuspend SuspendFunc, log logr.Logger, opts HandlerOptions) *Handler {
	return &Handler{
		onSuspend: onSuspend,
		log:       log,
		cooldown:  opts.Cooldown,
		now:       time.Now,
		localMACs: make(map[string]string),
	}
}

// SetLocalInterfaces records which MACs belong to this host, for logging only
func (h *Handler) SetLocalInterfaces(ifaces []net.Interface) {
	macs := make(map[string]string, len(ifaces))
	for _, iface := range ifaces {
		macs[iface.HardwareAddr.String()] = iface.Name
	}

	h.mu.Lock()
	h.localMACs = macs
	h.mu.Unlock()
}

// Handle validates payload and, if it is a magic packet, runs the suspend action.
// The validation error is returned so callers can log or count it; it is never fatal.
func (h *Handler) Handle(payload []byte, from string) (MagicPacket, error) {
	PacketsTotal.Inc()

	pkt, err := ParseMagicPacket(payload)
	if err != nil {
		reason := "unknown"
		var verr *ValidationError
		if errors.As(err, &verr) {
			reason = verr.Label()
		}
		InvalidPacketsTotal.WithLabelValues(reason).Inc()
		h.log.V(1).Info("Invalid magic packet", "from", from, "size", len(payload), "reason", err.Error())
		return pkt, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	mac := pkt.String()
	if h.cooldown > 0 && !h.lastSuspend.IsZero() {
		if elapsed := h.now().Sub(h.lastSuspend); elapsed < h.cooldown {
			SuspendSkippedTotal.Inc()
			h.log.V(1).Info("Skipping suspend request (cooldown)",
				"from", from,
				"targetMAC", mac,
				"lastSuspendAgo", elapsed.String(),
				"cooldown", h.cooldown.String())
			return pkt, nil
		}
	}

	if iface, ok := h.localMACs[mac]; ok {
		h.log.Info("Suspend requested", "from", from, "targetMAC", mac, "interface", iface)
	} else {
		h.log.Info("Suspend requested", "from", from, "targetMAC", mac)
		h.log.V(1).Info("Target MAC does not match any local interface (accepted anyway)", "targetMAC", mac)
	}

	SuspendRequestsTotal.Inc()
	if h.onSuspend != nil {
		h.onSuspend()
	}
	h.lastSuspend = h.now()

	return pkt, nil
}
