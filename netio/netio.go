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

// Package netio brings up the UDP multicast socket and runs the receiver
// and sender tasks: join the overlay's multicast group with
// IP_MULTICAST_TTL=1 and loopback disabled on a chosen interface.
package netio

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// Conn wraps the joined multicast socket and the options applied to it.
type Conn struct {
	pc   *ipv4.PacketConn
	addr *net.UDPAddr
}

// Dial joins the multicast group at group:port, sets TTL and disables
// loopback, and returns a ready-to-use Conn.
func Dial(group string, port int, ttl int) (*Conn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(group), Port: port}

	socket, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(socket)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: addr.IP}); err != nil {
		socket.Close()
		return nil, err
	}
	if err := pc.SetMulticastTTL(ttl); err != nil {
		socket.Close()
		return nil, err
	}
	if err := pc.SetMulticastLoopback(false); err != nil {
		socket.Close()
		return nil, err
	}

	return &Conn{pc: pc, addr: addr}, nil
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return c.pc.Close()
}

// ReadFrom reads one datagram into buf, returning its length and the
// source IP it arrived from.
func (c *Conn) ReadFrom(buf []byte) (int, net.IP, error) {
	n, _, src, err := c.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, err
	}
	udpAddr, ok := src.(*net.UDPAddr)
	if !ok {
		return n, nil, nil
	}
	return n, udpAddr.IP, nil
}

// ReadFromTimeout behaves like ReadFrom but gives up after timeout,
// reporting ok=false on expiry (used by the receiver's drain pass, which
// bounds each read by a select-style timeout rather than blocking
// indefinitely).
func (c *Conn) ReadFromTimeout(buf []byte, timeout time.Duration) (n int, src net.IP, ok bool) {
	if err := c.pc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, false
	}
	defer c.pc.SetReadDeadline(time.Time{})

	n, src, err := c.ReadFrom(buf)
	return n, src, err == nil
}

// WriteTo sends buf to the multicast group this Conn was dialed with.
func (c *Conn) WriteTo(buf []byte) error {
	_, err := c.pc.WriteTo(buf, nil, c.addr)
	return err
}
