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

package overlay

import "github.com/AdamCarnaffan/hypercast/bitcodec"

// extension chain prefix widths, in bits.
const (
	extNextTypeBits   = 8
	extLengthSizeBits = 8
	extLengthBits     = 8
	extPrefixBytes    = (extNextTypeBits + extLengthSizeBits + extLengthBits) / 8
)

// lengthFieldSize is always 1 byte in this wire revision.
const lengthFieldSize = 1

// Encode serializes m into its wire representation.
func Encode(m *Message) ([]byte, error) {
	exts := m.orderedExtensions()

	// First pass: render each extension's body so we know the total chain
	// length before laying out the header.
	bodies := make([][]byte, len(exts))
	for i, ext := range exts {
		body, err := encodeExtensionBody(ext)
		if err != nil {
			return nil, err
		}
		bodies[i] = body
	}

	chainLen := 0
	for _, b := range bodies {
		chainLen += extPrefixBytes + len(b)
	}

	buf := make([]byte, HeaderBytes+chainLen)

	if _, err := bitcodec.WriteUint(buf, Tag, 4, 0); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, 0, 4, 4); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(m.Version), 4, 8); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(m.DataMode), 4, 12); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, 0, 24, 16); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(chainLen), 16, 40); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(m.HopLimit), 16, 56); err != nil {
		return nil, err
	}

	var firstType uint8
	if len(exts) > 0 {
		firstType = exts[0].Type()
	}
	if _, err := bitcodec.WriteUint(buf, uint64(firstType), 8, 72); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, LogicalAddressBytes, 8, 80); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(m.SourceLogical), 32, 88); err != nil {
		return nil, err
	}
	if _, err := bitcodec.WriteUint(buf, uint64(m.PreviousHopLogical), 32, 120); err != nil {
		return nil, err
	}

	off := HeaderBytes
	for i := range exts {
		var nextType uint8
		if i+1 < len(exts) {
			nextType = exts[i+1].Type()
		}

		body := bodies[i]
		buf[off] = nextType
		buf[off+1] = lengthFieldSize
		buf[off+2] = byte(len(body))
		copy(buf[off+3:], body)
		off += extPrefixBytes + len(body)
	}

	return buf, nil
}

func encodeExtensionBody(ext Extension) ([]byte, error) {
	switch e := ext.(type) {
	case *Payload:
		return e.Bytes, nil
	case *RouteRecord:
		out := make([]byte, len(e.Addresses)*LogicalAddressBytes)
		for i, addr := range e.Addresses {
			off := i * LogicalAddressBytes * 8
			if _, err := bitcodec.WriteUint(out, uint64(addr), 32, off); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, ErrMalformed
	}
}

// Parse decodes a wire-format overlay packet.
func Parse(buf []byte) (*Message, error) {
	if len(buf)*8 < HeaderBits {
		return nil, ErrMalformed
	}

	version, err := bitcodec.ReadUint(buf, 4, 8)
	if err != nil {
		return nil, ErrMalformed
	}
	dataMode, err := bitcodec.ReadUint(buf, 4, 12)
	if err != nil {
		return nil, ErrMalformed
	}
	hopLimit, err := bitcodec.ReadUint(buf, 16, 56)
	if err != nil {
		return nil, ErrMalformed
	}
	firstType, err := bitcodec.ReadUint(buf, 8, 72)
	if err != nil {
		return nil, ErrMalformed
	}
	source, err := bitcodec.ReadUint(buf, 32, 88)
	if err != nil {
		return nil, ErrMalformed
	}
	previousHop, err := bitcodec.ReadUint(buf, 32, 120)
	if err != nil {
		return nil, ErrMalformed
	}

	m := NewMessage(uint8(version), uint8(dataMode), uint16(hopLimit), uint32(source), uint32(previousHop))

	currentType := uint8(firstType)
	off := HeaderBytes

	for currentType != ExtNone {
		if off+extPrefixBytes > len(buf) {
			return nil, ErrMalformed
		}

		nextType := buf[off]
		lengthSize := buf[off+1]
		length := int(buf[off+2])

		if lengthSize != lengthFieldSize {
			return nil, ErrMalformed
		}

		bodyStart := off + extPrefixBytes
		if bodyStart+length > len(buf) {
			return nil, ErrMalformed
		}

		body := buf[bodyStart : bodyStart+length]

		ext, err := decodeExtension(currentType, body)
		if err != nil {
			return nil, err
		}

		if err := m.AddExtension(ext); err != nil {
			return nil, err
		}

		off = bodyStart + length
		currentType = nextType
	}

	return m, nil
}

func decodeExtension(t uint8, body []byte) (Extension, error) {
	switch t {
	case ExtPayload:
		b := make([]byte, len(body))
		copy(b, body)
		return &Payload{Bytes: b}, nil

	case ExtRouteRecord:
		if len(body)%LogicalAddressBytes != 0 {
			return nil, ErrMalformed
		}
		count := len(body) / LogicalAddressBytes
		addrs := make([]uint32, count)
		for i := 0; i < count; i++ {
			off := i * LogicalAddressBytes * 8
			v, err := bitcodec.ReadUint(body, 32, off)
			if err != nil {
				return nil, ErrMalformed
			}
			addrs[i] = uint32(v)
		}
		return &RouteRecord{Addresses: addrs}, nil

	default:
		// unknown types terminate parse with an error
		return nil, ErrMalformed
	}
}
