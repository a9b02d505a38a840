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
	"context"
	"time"

	"github.com/AdamCarnaffan/hypercast/fifo"
	"github.com/AdamCarnaffan/hypercast/overlay"
	"github.com/AdamCarnaffan/hypercast/telemetry"
)

// idleSleep is how long the engine sleeps after finding the inbound FIFO
// empty, before re-running maintenance and trying again.
const idleSleep = 500 * time.Millisecond

// Notifier is the structured-logging hook the engine and forwarding path
// call through; satisfied by *logging.Logrus and spt.Nop{}.
type Notifier interface {
	Notify(event string, fields map[string]interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, map[string]interface{}) {}

// Engine is the single cooperative loop described in spec component F: it
// owns no state of its own beyond the FIFOs and the registered protocol,
// mirroring bgp/pool.go's one-owning-goroutine pattern generalized from
// "multiplex channels" to "pop a queue, dispatch by protocol id, drive
// maintenance."
type Engine struct {
	inbound  *fifo.Ring
	outbound *fifo.Ring
	protocol Protocol

	selfLogical uint32
	onPayload   func([]byte)
	log         Notifier
	snapshots   chan<- telemetry.Snapshot
}

// Config bundles Engine's construction parameters.
type Config struct {
	Inbound     *fifo.Ring
	Outbound    *fifo.Ring
	Protocol    Protocol
	SelfLogical uint32
	OnPayload   func([]byte)
	Log         Notifier
	// Snapshots, if set, receives a telemetry.Snapshot from the engine's
	// own goroutine on every maintenance pass. The send is non-blocking:
	// a reporter that falls behind simply misses a tick rather than
	// stalling the engine loop.
	Snapshots chan<- telemetry.Snapshot
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = nopNotifier{}
	}
	return &Engine{
		inbound:     cfg.Inbound,
		outbound:    cfg.Outbound,
		protocol:    cfg.Protocol,
		selfLogical: cfg.SelfLogical,
		onPayload:   cfg.OnPayload,
		log:         log,
		snapshots:   cfg.Snapshots,
	}
}

// Run drives the engine loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		e.runMaintenance()

		pkt, ok := e.inbound.Pop()
		if !ok {
			select {
			case <-time.After(idleSleep):
			case <-ctx.Done():
				return
			}
			continue
		}

		e.handlePacket(pkt)
	}
}

func (e *Engine) runMaintenance() {
	e.publishSnapshot()

	buf := e.protocol.Maintain()
	if buf == nil {
		return
	}
	if err := e.outbound.Push(fifo.NewPacket(buf)); err != nil {
		e.log.Notify("engine.outbound.full", map[string]interface{}{"error": err.Error()})
	}
}

// publishSnapshot builds a telemetry.Snapshot from this goroutine, the
// only one that may read the protocol's tables, and hands it off over
// e.snapshots rather than letting a reporter goroutine reach into them
// directly.
func (e *Engine) publishSnapshot() {
	if e.snapshots == nil {
		return
	}

	adjacency, neighborhood := e.protocol.Counts()
	snap := telemetry.Snapshot{
		AdjacencySize:    adjacency,
		NeighborhoodSize: neighborhood,
		InboundDepth:     e.inbound.Size(),
		OutboundDepth:    e.outbound.Size(),
	}

	select {
	case e.snapshots <- snap:
	default:
	}
}

// handlePacket implements the single-iteration dispatch of component F,
// steps 3-6.
func (e *Engine) handlePacket(pkt *fifo.Packet) {
	if pkt.Len() < overlayMinLength {
		e.log.Notify("engine.packet.too_short", map[string]interface{}{"length": pkt.Len()})
		return
	}

	if topNibble(pkt.Data) == overlay.Tag {
		e.forward(pkt)
		return
	}

	if err := e.protocol.Parse(pkt.Data); err != nil {
		e.log.Notify("engine.protocol.rejected", map[string]interface{}{"error": err.Error()})
	}
}
