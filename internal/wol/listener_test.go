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
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Listener", func() {
	const (
		timeout  = time.Second * 5
		interval = time.Millisecond * 20
	)

	var (
		ctx      context.Context
		cancel   context.CancelFunc
		suspends atomic.Int32
		handler  *Handler
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		suspends.Store(0)
		handler = NewHandler(func() { suspends.Add(1) }, logger, HandlerOptions{})
	})

	AfterEach(func() {
		cancel()
	})

	sendTo := func(addr net.Addr, payload []byte) {
		port := addr.(*net.UDPAddr).Port
		conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()
		_, err = conn.Write(payload)
		Expect(err).NotTo(HaveOccurred())
	}

	Context("receiving datagrams", func() {
		var (
			listener *Listener
			done     chan error
		)

		BeforeEach(func() {
			listener = NewListener(0, handler, logger)
			Expect(listener.Listen(ctx)).To(Succeed())
			Expect(listener.Ready()).To(BeTrue())

			done = make(chan error, 1)
			// Bind per-spec values; the goroutine outlives this spec after AfterEach cancels it
			l, c, d := listener, ctx, done
			go func() {
				defer GinkgoRecover()
				d <- l.Serve(c)
			}()
		})

		It("suspends once for [malformed, valid, malformed] and keeps listening", func() {
			addr := listener.LocalAddr()
			Expect(addr).NotTo(BeNil())
			packetsBefore := testutil.ToFloat64(PacketsTotal)

			By("sending a malformed, a valid and another malformed datagram")
			sendTo(addr, []byte("not a magic packet"))
			sendTo(addr, createValidMagicPacket([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}))
			sendTo(addr, createInvalidRepetitionPacket())

			Eventually(func() float64 {
				return testutil.ToFloat64(PacketsTotal) - packetsBefore
			}, timeout, interval).Should(BeNumerically(">=", 3))
			Expect(suspends.Load()).To(Equal(int32(1)))

			By("checking the loop is still running")
			Consistently(done, 200*time.Millisecond, interval).ShouldNot(Receive())

			sendTo(addr, createValidMagicPacket([]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}))
			Eventually(suspends.Load, timeout, interval).Should(Equal(int32(2)))
		})

		It("starts each spec with a fresh, running loop", func() {
			Consistently(done, 200*time.Millisecond, interval).ShouldNot(Receive())
			Expect(listener.Ready()).To(BeTrue())
		})

		It("accepts datagrams larger than a magic packet without stopping", func() {
			addr := listener.LocalAddr()
			sendTo(addr, make([]byte, receiveBufferSize+100))
			sendTo(addr, createValidMagicPacket([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}))

			Eventually(suspends.Load, timeout, interval).Should(Equal(int32(1)))
			Consistently(done, 100*time.Millisecond, interval).ShouldNot(Receive())
		})

		It("returns nil and releases the socket when the context is cancelled", func() {
			cancel()
			Eventually(done, timeout, interval).Should(Receive(BeNil()))
			Expect(listener.Ready()).To(BeFalse())
			Expect(listener.LocalAddr()).To(BeNil())
		})
	})

	Context("binding", func() {
		It("fails with ErrBindFailed when the port is already in use", func() {
			first := NewListener(0, handler, logger)
			Expect(first.Listen(ctx)).To(Succeed())
			defer first.Close()

			port := first.LocalAddr().(*net.UDPAddr).Port
			second := NewListener(port, handler, logger)

			err := second.Run(ctx)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrBindFailed)).To(BeTrue())
			Expect(errors.Is(err, syscall.EADDRINUSE)).To(BeTrue())
			Expect(second.Ready()).To(BeFalse())
			Expect(suspends.Load()).To(BeZero())
		})

		It("uses the default port for negative values", func() {
			Expect(NewListener(-1, handler, logger).port).To(Equal(DefaultSleepPort))
		})

		It("refuses to serve before Listen", func() {
			err := NewListener(0, handler, logger).Serve(ctx)
			Expect(errors.Is(err, ErrReceiveFailed)).To(BeTrue())
		})
	})

	Context("read errors", func() {
		It("continues after transient errors and fails on fatal ones", func() {
			conn := &fakePacketConn{
				reads: []fakeRead{
					{err: &net.OpError{Op: "read", Net: "udp", Err: syscall.EINTR}},
					{payload: createValidMagicPacket([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})},
					{err: &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}},
					{err: &net.OpError{Op: "read", Net: "udp", Err: syscall.ENETDOWN}},
				},
			}
			listener := NewListener(0, handler, logger)
			listener.conn = conn

			errorsBefore := testutil.ToFloat64(ReceiveErrorsTotal)
			err := listener.Serve(ctx)

			Expect(errors.Is(err, ErrReceiveFailed)).To(BeTrue())
			Expect(errors.Is(err, syscall.ENETDOWN)).To(BeTrue())
			Expect(suspends.Load()).To(Equal(int32(1)))
			Expect(testutil.ToFloat64(ReceiveErrorsTotal) - errorsBefore).To(Equal(3.0))
			Expect(conn.isClosed()).To(BeTrue())
		})
	})
})

type fakeRead struct {
	payload []byte
	err     error
}

// fakePacketConn replays scripted reads, then reports net.ErrClosed
type fakePacketConn struct {
	mu     sync.Mutex
	reads  []fakeRead
	closed bool
}

func (c *fakePacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.reads) == 0 {
		return 0, nil, net.ErrClosed
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	if r.err != nil {
		return 0, nil, r.err
	}
	n := copy(p, r.payload)
	return n, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: 40000}, nil
}

func (c *fakePacketConn) WriteTo(p []byte, _ net.Addr) (int, error) { return len(p), nil }

func (c *fakePacketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakePacketConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakePacketConn) LocalAddr() net.Addr                { return &net.UDPAddr{} }
func (c *fakePacketConn) SetDeadline(_ time.Time) error      { return nil }
func (c *fakePacketConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *fakePacketConn) SetWriteDeadline(_ time.Time) error { return nil }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
