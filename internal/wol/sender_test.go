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
	"net"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Send", func() {
	It("delivers a magic packet the listener accepts", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var targets atomic.Value
		handler := NewHandler(func() { targets.Store(true) }, logger, HandlerOptions{})

		listener := NewListener(0, handler, logger)
		Expect(listener.Listen(ctx)).To(Succeed())
		go func() {
			defer GinkgoRecover()
			Expect(listener.Serve(ctx)).To(Succeed())
		}()

		port := listener.LocalAddr().(*net.UDPAddr).Port
		mac, err := net.ParseMAC("52:54:00:12:34:56")
		Expect(err).NotTo(HaveOccurred())
		pkt, err := NewMagicPacket(mac)
		Expect(err).NotTo(HaveOccurred())

		sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
		defer sendCancel()
		Expect(Send(sendCtx, pkt, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))).To(Succeed())

		Eventually(func() bool {
			v, _ := targets.Load().(bool)
			return v
		}, 5*time.Second, 20*time.Millisecond).Should(BeTrue())
	})

	It("fails for an unresolvable address", func() {
		pkt, err := NewMagicPacket(net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56})
		Expect(err).NotTo(HaveOccurred())
		Expect(Send(context.Background(), pkt, "not-a-host-port")).NotTo(Succeed())
	})
})
