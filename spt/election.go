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

// pathMetricOf is PATH_METRIC_FULL minus a beacon's advertised cost; a nil
// beacon (no ancestor, self as root) is full metric.
func pathMetricOf(beacon *Beacon) uint32 {
	if beacon == nil {
		return PathMetricFull
	}
	return PathMetricFull - beacon.Cost
}

// shouldBeAncestor decides whether senderID should become (or remain)
// this node's ancestor, given its beacon and the current tree/neighbor
// state.
func (s *State) shouldBeAncestor(beacon *Beacon, senderID uint32) bool {
	if beacon.ParentLogical == s.tree.AncestorID {
		return true
	}
	if beacon.TimestampSeconds < s.lastBeacon {
		return false
	}

	anc, ok := s.neighborhood.Ancestor()
	if !ok {
		return beacon.RootLogical > s.tree.ID
	}

	if beacon.RootLogical > anc.RootID {
		return true
	}
	if beacon.RootLogical == anc.RootID &&
		pathMetricOf(beacon) >= anc.PathMetric+s.jumpThreshold &&
		beacon.Cost <= anc.Cost+2 {
		return true
	}

	return false
}
