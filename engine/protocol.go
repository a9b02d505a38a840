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

// Package engine implements the node's single cooperative loop: dequeue
// inbound packets, dispatch by top-nibble protocol id to forwarding or a
// registered control protocol, and drive that protocol's periodic
// maintenance.
package engine

import (
	"github.com/AdamCarnaffan/hypercast/spt"
)

// Protocol is the trait every non-overlay control protocol implements.
// SPT is, today, the only registered implementation; the interface exists
// so a second tree protocol could be added without touching the engine
// loop.
type Protocol interface {
	// ID is the 4-bit top-nibble protocol id this protocol owns.
	ID() uint8
	// Parse validates and handles one inbound message addressed to this
	// protocol, mutating whatever internal state it owns.
	Parse(buf []byte) error
	// Maintain runs this protocol's periodic sweep and returns an encoded
	// message to send, or nil if nothing is due.
	Maintain() []byte
	// SenderTrusted reports whether a message's claimed source logical
	// address should be trusted by the forwarding path.
	SenderTrusted(senderLogical uint32) bool
	// Counts returns the current adjacency and neighborhood table sizes,
	// for the engine's own goroutine to fold into a telemetry snapshot.
	// Never call this from outside the engine's owning goroutine.
	Counts() (adjacency, neighborhood int)
}

// SPTProtocol adapts *spt.State to the Protocol interface.
type SPTProtocol struct {
	state       *spt.State
	overlayHash uint32
	log         spt.Notifier
}

// NewSPTProtocol returns a Protocol backed by state, validating inbound
// messages against overlayHash.
func NewSPTProtocol(state *spt.State, overlayHash uint32, log spt.Notifier) *SPTProtocol {
	if log == nil {
		log = spt.Nop{}
	}
	return &SPTProtocol{state: state, overlayHash: overlayHash, log: log}
}

// ID implements Protocol.
func (*SPTProtocol) ID() uint8 { return spt.ProtocolID }

// Parse implements Protocol: it verifies the protocol id and overlay hash
// and the declared-length bound before dispatching to the beacon or
// goodbye handler.
func (p *SPTProtocol) Parse(buf []byte) error {
	beacon, goodbye, err := spt.Parse(buf, p.overlayHash)
	if err != nil {
		p.log.Notify("spt.parse.rejected", map[string]interface{}{"error": err.Error()})
		return err
	}

	if beacon != nil {
		p.state.HandleBeacon(beacon)
	}
	if goodbye != nil {
		p.state.HandleGoodbye(goodbye)
	}
	return nil
}

// Maintain implements Protocol.
func (p *SPTProtocol) Maintain() []byte {
	beacon := p.state.Maintain()
	if beacon == nil {
		return nil
	}

	buf, err := spt.EncodeBeacon(beacon, p.overlayHash)
	if err != nil {
		p.log.Notify("spt.encode.failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return buf
}

// SenderTrusted implements Protocol. SPT trusts every sender
// unconditionally today; the hook is kept so a future protocol revision
// can add real trust.
func (p *SPTProtocol) SenderTrusted(uint32) bool { return true }

// Counts implements Protocol.
func (p *SPTProtocol) Counts() (adjacency, neighborhood int) {
	return p.state.AdjacencyCount(), p.state.NeighborhoodCount()
}

// overlayMinLength is HC_OVERLAY_PACKET_LENGTH: the smallest packet the
// engine will accept before inspecting its protocol id.
const overlayMinLength = 14

// topNibble reads the 4-bit protocol id at bit offset 0 of a packet.
func topNibble(buf []byte) uint8 {
	if len(buf) == 0 {
		return 0
	}
	return buf[0] >> 4
}

var _ Protocol = (*SPTProtocol)(nil)
