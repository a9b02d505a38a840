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

// Package overlay implements the wire codec for overlay data packets: the
// fixed 19-byte header plus the ordered chain of typed extensions (TLV)
// that follows it.
package overlay

import "errors"

// Tag is the 4-bit overlay protocol id carried in bits 0-3 of every
// overlay packet.
const Tag = 13

// HeaderBits is the size in bits of the fixed overlay header, before the
// extension chain begins.
const HeaderBits = 152

// HeaderBytes is HeaderBits rounded up to bytes (19).
const HeaderBytes = HeaderBits / 8

// LogicalAddressBytes is the fixed width of a logical address on the wire.
const LogicalAddressBytes = 4

// Extension type ids carried in the TLV chain's next-type field.
const (
	ExtNone        uint8 = 0
	ExtPayload     uint8 = 1
	ExtRouteRecord uint8 = 2
)

// maxSlots is the capacity of the open-addressed extension slot array.
const maxSlots = 10

// MaxRouteRecordAddresses is the maximum number of logical addresses a
// route record may carry.
const MaxRouteRecordAddresses = 256

var (
	// ErrMalformed covers too-short packets, bad alignment, and unknown
	// extension types encountered mid-chain.
	ErrMalformed = errors.New("overlay: malformed packet")
	// ErrExtensionsFull is returned when the open-addressed slot array has
	// no room left for a new extension.
	ErrExtensionsFull = errors.New("overlay: extension table full")
	// ErrRouteRecordFull is returned when a route record is already at its
	// 256-address capacity.
	ErrRouteRecordFull = errors.New("overlay: route record full")
)

// Extension is any typed member of the overlay extension chain.
type Extension interface {
	// Type returns the wire type id of this extension.
	Type() uint8
}

// Payload is the opaque application data extension.
type Payload struct {
	Bytes []byte
}

// Type implements Extension.
func (*Payload) Type() uint8 { return ExtPayload }

// RouteRecord is the ordered list of logical addresses an overlay packet
// has traversed, used for loop suppression.
type RouteRecord struct {
	Addresses []uint32
}

// Type implements Extension.
func (*RouteRecord) Type() uint8 { return ExtRouteRecord }

// Contains reports whether addr already appears in the route record.
func (r *RouteRecord) Contains(addr uint32) bool {
	if r == nil {
		return false
	}
	for _, a := range r.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

type slot struct {
	occupied bool
	order    int // 1-indexed insertion order; 0 means unoccupied
	ext      Extension
}

// Message is a parsed or in-construction overlay packet.
type Message struct {
	Version            uint8
	DataMode           uint8
	HopLimit           uint16
	SourceLogical      uint32
	PreviousHopLogical uint32

	slots     [maxSlots]slot
	nextOrder int
}

// NewMessage constructs an empty overlay message with the given header
// fields and no extensions.
func NewMessage(version, dataMode uint8, hopLimit uint16, source, previousHop uint32) *Message {
	return &Message{
		Version:            version,
		DataMode:           dataMode,
		HopLimit:           hopLimit,
		SourceLogical:      source,
		PreviousHopLogical: previousHop,
		nextOrder:          1,
	}
}

func slotIndex(t uint8) int {
	return int(t) % maxSlots
}

// AddExtension inserts ext into the open-addressed slot array, probing
// forward modulo maxSlots from its type's natural index on collision, and
// assigns it the next strictly-increasing order number.
func (m *Message) AddExtension(ext Extension) error {
	idx := slotIndex(ext.Type())

	for n := 0; n < maxSlots; n++ {
		i := (idx + n) % maxSlots
		if !m.slots[i].occupied {
			m.nextOrder++
			m.slots[i] = slot{occupied: true, order: m.nextOrder - 1, ext: ext}
			return nil
		}
	}

	return ErrExtensionsFull
}

// ExtensionOfType returns the first extension of the given type found by
// probing forward from its natural slot index, mirroring the insertion
// probe so lookups and inserts agree on collision handling.
func (m *Message) ExtensionOfType(t uint8) (Extension, bool) {
	idx := slotIndex(t)

	for n := 0; n < maxSlots; n++ {
		i := (idx + n) % maxSlots
		s := m.slots[i]
		if !s.occupied {
			continue
		}
		if s.ext.Type() == t {
			return s.ext, true
		}
	}

	return nil, false
}

// PrimaryPayload returns the first Payload extension found scanning the
// slot array in index order, not insertion order.
func (m *Message) PrimaryPayload() (*Payload, bool) {
	for i := 0; i < maxSlots; i++ {
		s := m.slots[i]
		if !s.occupied {
			continue
		}
		if p, ok := s.ext.(*Payload); ok {
			return p, true
		}
	}
	return nil, false
}

// RouteRecord returns the message's route record extension, if present.
func (m *Message) RouteRecord() (*RouteRecord, bool) {
	ext, ok := m.ExtensionOfType(ExtRouteRecord)
	if !ok {
		return nil, false
	}
	rr, ok := ext.(*RouteRecord)
	return rr, ok
}

// AppendRouteRecord appends addr to the message's route record, creating
// one with SourceLogical as its first element if absent.
func (m *Message) AppendRouteRecord(addr uint32) error {
	rr, ok := m.RouteRecord()
	if !ok {
		rr = &RouteRecord{Addresses: []uint32{m.SourceLogical}}
		if err := m.AddExtension(rr); err != nil {
			return err
		}
	}

	if len(rr.Addresses) >= MaxRouteRecordAddresses {
		return ErrRouteRecordFull
	}

	rr.Addresses = append(rr.Addresses, addr)
	return nil
}

// orderedExtensions returns the occupied extensions sorted by their
// insertion order, 1..k.
func (m *Message) orderedExtensions() []Extension {
	out := make([]Extension, 0, maxSlots)
	for order := 1; order < m.nextOrder; order++ {
		for i := 0; i < maxSlots; i++ {
			s := m.slots[i]
			if s.occupied && s.order == order {
				out = append(out, s.ext)
				break
			}
		}
	}
	return out
}
