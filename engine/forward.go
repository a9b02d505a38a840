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

package engine

import (
	"github.com/AdamCarnaffan/hypercast/fifo"
	"github.com/AdamCarnaffan/hypercast/overlay"
)

// forward implements component G: parse, trust check, loop suppression,
// hop decrement, re-encode and re-enqueue, then the payload callback.
func (e *Engine) forward(pkt *fifo.Packet) {
	msg, err := overlay.Parse(pkt.Data)
	if err != nil {
		e.log.Notify("engine.overlay.malformed", map[string]interface{}{"error": err.Error()})
		return
	}

	if !e.protocol.SenderTrusted(msg.SourceLogical) {
		e.log.Notify("engine.overlay.untrusted_sender", map[string]interface{}{"source": msg.SourceLogical})
		return
	}

	if rr, ok := msg.RouteRecord(); ok && rr.Contains(e.selfLogical) {
		e.log.Notify("engine.overlay.loop_suppressed", map[string]interface{}{"source": msg.SourceLogical})
		return
	}

	if msg.HopLimit > 0 {
		msg.HopLimit--
	}
	msg.PreviousHopLogical = e.selfLogical

	if err := appendHop(msg, e.selfLogical); err != nil {
		e.log.Notify("engine.overlay.route_record_full", map[string]interface{}{"source": msg.SourceLogical})
		return
	}

	encoded, err := overlay.Encode(msg)
	if err != nil {
		e.log.Notify("engine.overlay.encode_failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := e.outbound.Push(fifo.NewPacket(encoded)); err != nil {
		e.log.Notify("engine.outbound.full", map[string]interface{}{"error": err.Error()})
	}

	if payload, ok := msg.PrimaryPayload(); ok && e.onPayload != nil {
		e.onPayload(payload.Bytes)
	}
}

// appendHop stamps self onto msg's route record, creating an empty one if
// absent. Unlike overlay.Message.AppendRouteRecord (which seeds a fresh
// record with the message's originating source, for callers stamping
// their own outgoing traffic), the forwarding path's record tracks only
// the hops a packet has actually traversed.
func appendHop(msg *overlay.Message, self uint32) error {
	if rr, ok := msg.RouteRecord(); ok {
		if len(rr.Addresses) >= overlay.MaxRouteRecordAddresses {
			return overlay.ErrRouteRecordFull
		}
		rr.Addresses = append(rr.Addresses, self)
		return nil
	}
	return msg.AddExtension(&overlay.RouteRecord{Addresses: []uint32{self}})
}
