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
	"net"
	"time"

	"github.com/AdamCarnaffan/hypercast/fifo"
)

// rateCheckInterval is how many received messages pass between rate
// checks.
const rateCheckInterval = 50

// rateThreshold is the msg/s above which the receiver starts draining its
// socket backlog.
const rateThreshold = 4.0

// drainBudget bounds how many pending datagrams a single drain pass reads.
const drainBudget = 25

// drainSelectTimeout bounds how long the drain waits for each datagram.
const drainSelectTimeout = time.Second

// interPacketSleep is the cooperative yield after every receive.
const interPacketSleep = 10 * time.Millisecond

const maxDatagramSize = 65507

// Notifier receives structured receiver-task events.
type Notifier interface {
	Notify(event string, fields map[string]interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, map[string]interface{}) {}

// receiverConn is the subset of *Conn the receiver task needs; satisfied
// by *Conn and by fakes in tests.
type receiverConn interface {
	ReadFrom(buf []byte) (int, net.IP, error)
	ReadFromTimeout(buf []byte, timeout time.Duration) (int, net.IP, bool)
}

// Receiver reads datagrams off the joined socket, filters self-sourced
// ones, and pushes everything else onto the inbound FIFO, applying the
// rate-limit drain discipline every rateCheckInterval messages.
type Receiver struct {
	conn        receiverConn
	inbound     *fifo.Ring
	selfAddress net.IP
	log         Notifier

	received  int
	lastCheck time.Time
}

// NewReceiver returns a Receiver reading from conn and pushing onto
// inbound, filtering out datagrams whose source matches selfAddress.
func NewReceiver(conn *Conn, inbound *fifo.Ring, selfAddress net.IP, log Notifier) *Receiver {
	return newReceiver(conn, inbound, selfAddress, log)
}

func newReceiver(conn receiverConn, inbound *fifo.Ring, selfAddress net.IP, log Notifier) *Receiver {
	if log == nil {
		log = nopNotifier{}
	}
	return &Receiver{conn: conn, inbound: inbound, selfAddress: selfAddress, log: log, lastCheck: time.Now()}
}

// Run blocks, receiving datagrams until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) {
	buf := make([]byte, maxDatagramSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			r.log.Notify("netio.receiver.read_error", map[string]interface{}{"error": err.Error()})
			continue
		}

		r.afterReceive()

		if r.selfAddress != nil && src != nil && src.Equal(r.selfAddress) {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if err := r.inbound.Push(fifo.NewPacket(data)); err != nil {
			r.log.Notify("netio.receiver.inbound_full", map[string]interface{}{"error": err.Error()})
		}

		select {
		case <-time.After(interPacketSleep):
		case <-ctx.Done():
			return
		}
	}
}

// afterReceive accounts one more received message and, every
// rateCheckInterval messages, checks the rate and drains the backlog if
// it's running hot.
func (r *Receiver) afterReceive() {
	r.received++
	if r.received%rateCheckInterval != 0 {
		return
	}

	elapsed := time.Since(r.lastCheck).Seconds()
	r.lastCheck = time.Now()
	if elapsed <= 0 {
		return
	}

	rate := float64(rateCheckInterval) / elapsed
	if rate <= rateThreshold {
		return
	}

	r.log.Notify("netio.receiver.draining", map[string]interface{}{"rate": rate})
	r.drain()
}

// drain reads and discards up to drainBudget pending datagrams, each
// bounded by drainSelectTimeout, to shed backlog under sustained load.
func (r *Receiver) drain() {
	buf := make([]byte, maxDatagramSize)
	for i := 0; i < drainBudget; i++ {
		if _, _, ok := r.conn.ReadFromTimeout(buf, drainSelectTimeout); !ok {
			return
		}
	}
}
