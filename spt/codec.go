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

package spt

import "github.com/AdamCarnaffan/hypercast/bitcodec"

// encodeSenderTable appends a sender table (hash, addr_length, addr_bytes,
// port, source logical) to dst and returns the extended slice.
func encodeSenderTable(dst []byte, s SenderTable) ([]byte, error) {
	body := make([]byte, 2+1+addressBytes+2+4)

	if _, err := bitcodec.WriteUint(body, uint64(s.Hash), 16, 0); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(body, addressLength, 8, 16); err != nil {
		return nil, err
	}
	if err := bitcodec.WriteBytesAligned(body, s.Address, addressBytes*8, 24); err != nil {
		return nil, err
	}
	portOffset := 24 + addressBytes*8
	if _, err := bitcodec.WriteUint(body, uint64(s.Port), 16, portOffset); err != nil {
		return nil, err
	}
	logicalOffset := portOffset + 16
	if _, err := bitcodec.WriteUint(body, uint64(s.SourceLogical), 32, logicalOffset); err != nil {
		return nil, err
	}

	return append(dst, body...), nil
}

// decodeSenderTable reads a sender table starting at byte offset off and
// returns it along with the offset of the next field.
func decodeSenderTable(buf []byte, off int) (SenderTable, int, error) {
	if off+3 > len(buf) {
		return SenderTable{}, 0, ErrMalformed
	}

	hash, err := bitcodec.ReadUint(buf[off:], 16, 0)
	if err != nil {
		return SenderTable{}, 0, ErrMalformed
	}

	addrLen, err := bitcodec.ReadUint(buf[off:], 8, 16)
	if err != nil {
		return SenderTable{}, 0, ErrMalformed
	}
	if addrLen != addressLength {
		return SenderTable{}, 0, ErrMalformed
	}

	if off+3+addressBytes+2+4 > len(buf) {
		return SenderTable{}, 0, ErrMalformed
	}

	addr, err := bitcodec.Snip(buf[off:], addressBytes*8, 24)
	if err != nil {
		return SenderTable{}, 0, ErrMalformed
	}

	portOffset := 24 + addressBytes*8
	port, err := bitcodec.ReadUint(buf[off:], 16, portOffset)
	if err != nil {
		return SenderTable{}, 0, ErrMalformed
	}

	logicalOffset := portOffset + 16
	source, err := bitcodec.ReadUint(buf[off:], 32, logicalOffset)
	if err != nil {
		return SenderTable{}, 0, ErrMalformed
	}

	next := off + 3 + addressBytes + 2 + 4

	return SenderTable{
		Hash:          uint16(hash),
		Address:       addr,
		Port:          uint16(port),
		SourceLogical: uint32(source),
	}, next, nil
}

func encodePrefix(msgType uint8, overlayHash uint32, bodyLen int) []byte {
	buf := make([]byte, prefixBytes)

	bitcodec.WriteUint(buf, ProtocolID, 4, 0)
	bitcodec.WriteUint(buf, ProtocolVersion, 4, 4)
	bitcodec.WriteUint(buf, uint64(prefixBytes+bodyLen-3), 16, 8)
	bitcodec.WriteUint(buf, uint64(msgType), 8, 24)
	bitcodec.WriteUint(buf, uint64(overlayHash), 32, 32)

	return buf
}

// EncodeBeacon serializes b as an SPT beacon addressed to overlayHash.
func EncodeBeacon(b *Beacon, overlayHash uint32) ([]byte, error) {
	var body []byte

	magic := make([]byte, 2)
	bitcodec.WriteUint(magic, reservedBeaconMagic, 16, 0)
	body = append(body, magic...)

	var err error
	body, err = encodeSenderTable(body, b.Sender)
	if err != nil {
		return nil, err
	}

	fixed := make([]byte, 4+4+4+8)
	bitcodec.WriteUint(fixed, uint64(b.RootLogical), 32, 0)
	bitcodec.WriteUint(fixed, uint64(b.ParentLogical), 32, 32)
	bitcodec.WriteUint(fixed, uint64(b.Cost), 32, 64)
	bitcodec.WriteUint(fixed, uint64(b.TimestampSeconds*1000), 64, 96)
	body = append(body, fixed...)

	adjSize := make([]byte, 4)
	bitcodec.WriteUint(adjSize, uint64(len(b.Adjacency)), 32, 0)
	body = append(body, adjSize...)

	for _, a := range b.Adjacency {
		entry := make([]byte, 5)
		bitcodec.WriteUint(entry, uint64(a.ID), 32, 0)
		bitcodec.WriteUint(entry, uint64(a.Quality&0x7f), 8, 32)
		body = append(body, entry...)
	}

	rel := make([]byte, 2)
	bitcodec.WriteUint(rel, uint64(b.Reliability), 16, 0)
	body = append(body, rel...)

	prefix := encodePrefix(MsgBeacon, overlayHash, len(body))
	return append(prefix, body...), nil
}

// EncodeGoodbye serializes g as an SPT goodbye message addressed to
// overlayHash.
func EncodeGoodbye(g *Goodbye, overlayHash uint32) ([]byte, error) {
	body, err := encodeSenderTable(nil, g.Sender)
	if err != nil {
		return nil, err
	}

	prefix := encodePrefix(MsgGoodbye, overlayHash, len(body))
	return append(prefix, body...), nil
}

// Prefix is the decoded shared protocol prefix common to every SPT
// message.
type Prefix struct {
	Version     uint8
	DeclaredLen int // total message length in bytes, as declared on the wire
	MessageType uint8
	OverlayHash uint32
}

// ParsePrefix decodes the shared 8-byte protocol prefix and checks the
// protocol id and overlay hash against expectedOverlayHash.
func ParsePrefix(buf []byte, expectedOverlayHash uint32) (Prefix, error) {
	if len(buf) < prefixBytes {
		return Prefix{}, ErrMalformed
	}

	protoID, err := bitcodec.ReadUint(buf, 4, 0)
	if err != nil {
		return Prefix{}, ErrMalformed
	}
	if uint8(protoID) != ProtocolID {
		return Prefix{}, ErrProtocolMismatch
	}

	version, err := bitcodec.ReadUint(buf, 4, 4)
	if err != nil {
		return Prefix{}, ErrMalformed
	}

	lengthMinus3, err := bitcodec.ReadUint(buf, 16, 8)
	if err != nil {
		return Prefix{}, ErrMalformed
	}

	msgType, err := bitcodec.ReadUint(buf, 8, 24)
	if err != nil {
		return Prefix{}, ErrMalformed
	}

	hash, err := bitcodec.ReadUint(buf, 32, 32)
	if err != nil {
		return Prefix{}, ErrMalformed
	}
	if uint32(hash) != expectedOverlayHash {
		return Prefix{}, ErrProtocolMismatch
	}

	declared := int(lengthMinus3) + 3
	if declared > len(buf) {
		return Prefix{}, ErrDeclaredLengthExceedsPacket
	}

	return Prefix{
		Version:     uint8(version),
		DeclaredLen: declared,
		MessageType: uint8(msgType),
		OverlayHash: uint32(hash),
	}, nil
}

// ParseBeacon decodes a beacon body following a prefix already validated
// by ParsePrefix.
func ParseBeacon(buf []byte) (*Beacon, error) {
	off := prefixBytes

	if off+2 > len(buf) {
		return nil, ErrMalformed
	}
	// the reserved magic is read but not validated against anything else;
	// its presence is just confirmed to be in range.
	if _, err := bitcodec.ReadUint(buf[off:], 16, 0); err != nil {
		return nil, ErrMalformed
	}
	off += 2

	sender, off, err := decodeSenderTable(buf, off)
	if err != nil {
		return nil, err
	}

	if off+4+4+4+8+4 > len(buf) {
		return nil, ErrMalformed
	}

	root, err := bitcodec.ReadUint(buf[off:], 32, 0)
	if err != nil {
		return nil, ErrMalformed
	}
	parent, err := bitcodec.ReadUint(buf[off:], 32, 32)
	if err != nil {
		return nil, ErrMalformed
	}
	cost, err := bitcodec.ReadUint(buf[off:], 32, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	tsMillis, err := bitcodec.ReadUint(buf[off:], 64, 96)
	if err != nil {
		return nil, ErrMalformed
	}
	off += 4 + 4 + 4 + 8

	adjSize, err := bitcodec.ReadUint(buf[off:], 32, 0)
	if err != nil {
		return nil, ErrMalformed
	}
	off += 4

	adjacency := make([]AdjacencyAdvert, 0, adjSize)
	for i := uint64(0); i < adjSize; i++ {
		if off+5 > len(buf) {
			return nil, ErrMalformed
		}
		id, err := bitcodec.ReadUint(buf[off:], 32, 0)
		if err != nil {
			return nil, ErrMalformed
		}
		quality, err := bitcodec.ReadUint(buf[off:], 8, 32)
		if err != nil {
			return nil, ErrMalformed
		}
		adjacency = append(adjacency, AdjacencyAdvert{ID: uint32(id), Quality: uint8(quality) & 0x7f})
		off += 5
	}

	if off+2 > len(buf) {
		return nil, ErrMalformed
	}
	reliability, err := bitcodec.ReadUint(buf[off:], 16, 0)
	if err != nil {
		return nil, ErrMalformed
	}

	return &Beacon{
		Sender:           sender,
		RootLogical:      uint32(root),
		ParentLogical:    uint32(parent),
		Cost:             uint32(cost),
		TimestampSeconds: int64(tsMillis) / 1000,
		Adjacency:        adjacency,
		Reliability:      uint16(reliability),
	}, nil
}

// ParseGoodbye decodes a goodbye body following a prefix already validated
// by ParsePrefix.
func ParseGoodbye(buf []byte) (*Goodbye, error) {
	sender, _, err := decodeSenderTable(buf, prefixBytes)
	if err != nil {
		return nil, err
	}
	return &Goodbye{Sender: sender}, nil
}
