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
	"fmt"
	"net"
)

// Send writes pkt to address (host:port) over UDP, with broadcast enabled
func Send(ctx context.Context, pkt MagicPacket, address string) error {
	d := net.Dialer{Control: controlBroadcast}
	conn, err := d.DialContext(ctx, "udp4", address)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	if _, err := conn.Write(pkt.Bytes()); err != nil {
		return fmt.Errorf("failed to send magic packet to %s: %w", address, err)
	}
	return nil
}
