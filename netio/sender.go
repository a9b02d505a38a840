/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package netio

import (
	"context"
	"time"

	"github.com/AdamCarnaffan/hypercast/fifo"
)

// interSendSleep is the cooperative yield after every send.
const interSendSleep = 10 * time.Millisecond

// senderConn is the subset of *Conn the sender task needs; satisfied by
// *Conn and by fakes in tests.
type senderConn interface {
	WriteTo(buf []byte) error
}

// Sender pops encoded packets off the outbound FIFO and writes them to
// the multicast group.
type Sender struct {
	conn     senderConn
	outbound *fifo.Ring
	log      Notifier
}

// NewSender returns a Sender writing popped packets from outbound to conn.
func NewSender(conn *Conn, outbound *fifo.Ring, log Notifier) *Sender {
	return newSender(conn, outbound, log)
}

func newSender(conn senderConn, outbound *fifo.Ring, log Notifier) *Sender {
	if log == nil {
		log = nopNotifier{}
	}
	return &Sender{conn: conn, outbound: outbound, log: log}
}

// Run blocks, sending queued packets until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) {
	for {
		pkt, ok := s.outbound.PopWait(ctx)
		if !ok {
			return
		}

		if err := s.conn.WriteTo(pkt.Data); err != nil {
			s.log.Notify("netio.sender.write_error", map[string]interface{}{"error": err.Error()})
		}

		select {
		case <-time.After(interSendSleep):
		case <-ctx.Done():
			return
		}
	}
}
