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

package config

import "fmt"

// OverlayHash computes the 32-bit overlay-partitioning hash, applied
// byte-by-byte over the configuration string
// "/Public/OverlayID=<id>&/Public/Security/SecurityLevel=<level>&/Public/Node=<proto>".
func OverlayHash(overlayID, securityLevel, proto string) uint32 {
	s := fmt.Sprintf("/Public/OverlayID=%s&/Public/Security/SecurityLevel=%s&/Public/Node=%s", overlayID, securityLevel, proto)

	var h uint32
	for i := 0; i < len(s); i++ {
		b := uint32(s[i])
		upper := (h >> 24) & 0xff
		mix := upper ^ b
		shift := (mix & 0x07) + 1
		h = (h << shift) ^ (mix & 0xff)
	}
	return h
}
