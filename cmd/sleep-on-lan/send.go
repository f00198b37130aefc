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

package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gpillon/sleep-on-lan/internal/wol"
)

func newSendCommand() *cobra.Command {
	var (
		mac     string
		addr    string
		port    int
		count   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a magic packet to a sleep-on-lan daemon",
		Long: `
Send a Wake-on-LAN magic packet, e.g. to test a sleep-on-lan daemon.

Examples:
  sleep-on-lan send --mac 52:54:00:12:34:56                         # broadcast to 255.255.255.255:10
  sleep-on-lan send --mac 52:54:00:12:34:56 --addr 192.168.1.20 -p 9
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hw, err := net.ParseMAC(mac)
			if err != nil {
				return fmt.Errorf("invalid MAC address %q: %w", mac, err)
			}
			pkt, err := wol.NewMagicPacket(hw)
			if err != nil {
				return err
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("port %d out of range (must be 1-65535)", port)
			}

			address := net.JoinHostPort(addr, strconv.Itoa(port))
			for i := 0; i < count; i++ {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				err := wol.Send(ctx, pkt, address)
				cancel()
				if err != nil {
					return err
				}
			}

			setupLog.Info("Magic packet sent", "targetMAC", pkt.String(), "address", address, "count", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&mac, "mac", "", "target MAC address carried in the packet")
	cmd.Flags().StringVar(&addr, "addr", net.IPv4bcast.String(), "destination address")
	cmd.Flags().IntVarP(&port, "port", "p", wol.DefaultSleepPort, "destination UDP port")
	cmd.Flags().IntVar(&count, "count", 1, "number of packets to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout for each send")
	_ = cmd.MarkFlagRequired("mac")

	return cmd
}
