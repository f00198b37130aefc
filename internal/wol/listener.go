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
	"strconv"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// receiveBufferSize holds a magic packet plus whatever trailing bytes some tools append
const receiveBufferSize = 1024

var (
	// ErrBindFailed is returned when the UDP socket cannot be bound
	ErrBindFailed = errors.New("bind failed")
	// ErrReceiveFailed is returned when the socket becomes unusable while listening
	ErrReceiveFailed = errors.New("receive failed")
)

// Listener receives magic packets over UDP and hands them to a Handler
type Listener struct {
	port    int
	handler *Handler
	log     logr.Logger

	mu   sync.Mutex
	conn net.PacketConn
}

// NewListener creates a new UDP listener. A negative port selects DefaultSleepPort,
// port 0 lets the kernel pick one (see LocalAddr).
func NewListener(port int, handler *Handler, log logr.Logger) *Listener {
	if port < 0 {
		port = DefaultSleepPort
	}
	return &Listener{
		port:    port,
		handler: handler,
		log:     log,
	}
}

// Run binds the socket and serves until ctx is cancelled or the socket fails
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Listen(ctx); err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Listen binds 0.0.0.0:<port>. Errors wrap ErrBindFailed and are not retried.
func (l *Listener) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: controlBroadcast}
	address := net.JoinHostPort(net.IPv4zero.String(), strconv.Itoa(l.port))

	conn, err := lc.ListenPacket(ctx, "udp4", address)
	if err != nil {
		return fmt.Errorf("%w: UDP port %d: %w", ErrBindFailed, l.port, err)
	}

	if udp, ok := conn.(*net.UDPConn); ok {
		if err := udp.SetReadBuffer(1024 * 64); err != nil {
			l.log.Error(err, "Failed to set read buffer size")
		}
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.log.Info("Sleep-on-LAN listener started", "port", l.port, "bindAddress", "0.0.0.0", "actualAddress", conn.LocalAddr().String())
	return nil
}

// Serve runs the receive loop on the bound socket. Datagrams are processed
// strictly one after another, suspend action included. It returns nil when ctx
// is cancelled and an error wrapping ErrReceiveFailed when the socket breaks.
func (l *Listener) Serve(ctx context.Context) error {
	conn := l.packetConn()
	if conn == nil {
		return fmt.Errorf("%w: listener is not bound", ErrReceiveFailed)
	}
	defer l.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	buffer := make([]byte, receiveBufferSize)
	l.log.Info("UDP listener loop started, waiting for magic packets...")

	for {
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("Listener context done, exiting")
				return nil
			}
			ReceiveErrorsTotal.Inc()
			if isTransient(err) {
				l.log.Error(err, "Transient error reading UDP packet (continuing)")
				continue
			}
			return fmt.Errorf("%w: %w", ErrReceiveFailed, err)
		}

		from := ""
		if addr != nil {
			from = addr.String()
		}
		l.log.V(1).Info("UDP packet received", "from", from, "size", n)

		// Validation errors are logged by the handler and never end the loop
		_, _ = l.handler.Handle(buffer[:n], from)
	}
}

// LocalAddr returns the bound address, or nil before Listen
func (l *Listener) LocalAddr() net.Addr {
	if conn := l.packetConn(); conn != nil {
		return conn.LocalAddr()
	}
	return nil
}

// Ready reports whether the socket is bound
func (l *Listener) Ready() bool {
	return l.packetConn() != nil
}

// Close releases the socket
func (l *Listener) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	l.log.Info("Sleep-on-LAN listener stopped")
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (l *Listener) packetConn() net.PacketConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// isTransient reports read errors after which the socket is still usable
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.ECONNREFUSED)
}

// controlBroadcast enables SO_BROADCAST before bind
func controlBroadcast(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("SO_BROADCAST: %w", sockErr)
	}
	return nil
}
