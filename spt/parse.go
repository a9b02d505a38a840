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

// Parse validates the shared prefix of an SPT packet against
// expectedOverlayHash and decodes its body. Exactly one of the returned
// *Beacon / *Goodbye is non-nil on success.
func Parse(buf []byte, expectedOverlayHash uint32) (*Beacon, *Goodbye, error) {
	prefix, err := ParsePrefix(buf, expectedOverlayHash)
	if err != nil {
		return nil, nil, err
	}

	body := buf[:prefix.DeclaredLen]

	switch prefix.MessageType {
	case MsgBeacon:
		b, err := ParseBeacon(body)
		return b, nil, err
	case MsgGoodbye:
		g, err := ParseGoodbye(body)
		return nil, g, err
	default:
		return nil, nil, ErrMalformed
	}
}
