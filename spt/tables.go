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

import "errors"

// PathMetricFull is the path-metric value assigned to a node with no
// ancestor (i.e. one that is its own root).
const PathMetricFull = 10000

// NeighborhoodCapacity bounds the number of entries (ancestor plus
// descendants) a node will track at once.
const NeighborhoodCapacity = 10

// AdjacencyTimeout and NeighborhoodTimeout are the maintenance-sweep
// staleness windows, in seconds.
const (
	AdjacencyTimeout   = 20
	NeighborhoodTimeout = 5
)

// DefaultHeartbeatInterval is how often a node re-broadcasts its beacon.
const DefaultHeartbeatInterval = 5

// DefaultJumpThreshold is how much higher a candidate ancestor's path
// metric must be, over the current ancestor's, before a node will jump to
// it at equal root id (election stage 3). Not specified numerically by
// the wire format; chosen generously so transient metric noise doesn't
// thrash the tree.
const DefaultJumpThreshold = 100

// ErrNeighborhoodFull is returned when an insert would exceed
// NeighborhoodCapacity.
var ErrNeighborhoodFull = errors.New("spt: neighborhood table full")

// TreeInfo is a node's view of its position in the shared spanning tree.
type TreeInfo struct {
	ID             uint32
	RootID         uint32
	AncestorID     uint32
	Cost           uint32
	PathMetric     uint32
	SequenceNumber uint32
}

// selfRootTreeInfo returns the TreeInfo of a node that is its own root
// (no ancestor): used at startup and whenever a node self-promotes.
func selfRootTreeInfo(id uint32) TreeInfo {
	return TreeInfo{
		ID:             id,
		RootID:         id,
		AncestorID:     id,
		Cost:           0,
		PathMetric:     PathMetricFull,
		SequenceNumber: 4, // fixed; TODO: unclear whether this should increment on self-promotion
	}
}

// NeighborEntry is one row of the neighborhood table: the ancestor (at
// most one, IsAncestor true) or a descendant.
type NeighborEntry struct {
	NeighborID      uint32
	PhysicalAddress SenderTable
	RootID          uint32
	Cost            uint32
	PathMetric      uint32
	Timestamp       int64
	IsAncestor      bool
}

// Neighborhood holds at most one ancestor and any number of descendants,
// bounded in total by NeighborhoodCapacity.
type Neighborhood struct {
	entries []NeighborEntry
}

func (n *Neighborhood) indexOf(id uint32) int {
	for i := range n.entries {
		if n.entries[i].NeighborID == id {
			return i
		}
	}
	return -1
}

// Find returns the entry for id, if present.
func (n *Neighborhood) Find(id uint32) (*NeighborEntry, bool) {
	i := n.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return &n.entries[i], true
}

// Ancestor returns the single entry with IsAncestor set, if any.
func (n *Neighborhood) Ancestor() (*NeighborEntry, bool) {
	for i := range n.entries {
		if n.entries[i].IsAncestor {
			return &n.entries[i], true
		}
	}
	return nil, false
}

// Upsert inserts or replaces the entry keyed by NeighborID. A fresh insert
// that would exceed NeighborhoodCapacity is rejected.
func (n *Neighborhood) Upsert(e NeighborEntry) error {
	if i := n.indexOf(e.NeighborID); i >= 0 {
		n.entries[i] = e
		return nil
	}
	if len(n.entries) >= NeighborhoodCapacity {
		return ErrNeighborhoodFull
	}
	n.entries = append(n.entries, e)
	return nil
}

// Remove deletes the entry for id, if present.
func (n *Neighborhood) Remove(id uint32) {
	i := n.indexOf(id)
	if i < 0 {
		return
	}
	n.entries = append(n.entries[:i], n.entries[i+1:]...)
}

// RemoveAncestor deletes the ancestor entry, if any.
func (n *Neighborhood) RemoveAncestor() {
	if a, ok := n.Ancestor(); ok {
		n.Remove(a.NeighborID)
	}
}

// Len reports the current number of entries.
func (n *Neighborhood) Len() int { return len(n.entries) }

// Entries returns a copy of the current entries, for maintenance sweeps
// and telemetry.
func (n *Neighborhood) Entries() []NeighborEntry {
	out := make([]NeighborEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

// pingBufferSize is the width of an adjacency entry's sliding quality
// window.
const pingBufferSize = 10

// AdjacencyEntry tracks link quality to one directly-heard neighbor via a
// sliding window of the last pingBufferSize beacon intervals.
type AdjacencyEntry struct {
	ID         uint32
	Timestamp  int64 // last time a ping/beacon was recorded or probed
	pingBuffer [pingBufferSize]bool
	pingHead   int
}

// Adjacency holds the set of directly-heard neighbors and their link
// quality. Entries are removed by swap-with-tail, so iteration order is
// not stable.
type Adjacency struct {
	entries []AdjacencyEntry
}

func (a *Adjacency) indexOf(id uint32) int {
	for i := range a.entries {
		if a.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the entry for id, if present.
func (a *Adjacency) Find(id uint32) (*AdjacencyEntry, bool) {
	i := a.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return &a.entries[i], true
}

// Upsert returns the entry for id, creating a fresh zero-quality one if
// absent. A fresh entry is seeded one beaconInterval in the past so its
// very first record() call registers as a single hit rather than a
// zero-elapsed no-op.
func (a *Adjacency) Upsert(id uint32, now, beaconInterval int64) *AdjacencyEntry {
	if i := a.indexOf(id); i >= 0 {
		return &a.entries[i]
	}
	a.entries = append(a.entries, AdjacencyEntry{ID: id, Timestamp: now - beaconInterval})
	return &a.entries[len(a.entries)-1]
}

// RemoveSwapTail deletes the entry for id by swapping it with the last
// entry and truncating, per the maintenance sweep's removal discipline.
func (a *Adjacency) RemoveSwapTail(id uint32) {
	i := a.indexOf(id)
	if i < 0 {
		return
	}
	last := len(a.entries) - 1
	a.entries[i] = a.entries[last]
	a.entries = a.entries[:last]
}

// Entries returns a copy of the current entries, for maintenance sweeps
// and telemetry.
func (a *Adjacency) Entries() []AdjacencyEntry {
	out := make([]AdjacencyEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// BackupAncestor is reserved for a future failover path that picks a
// second-best ancestor candidate; unpopulated in this protocol revision.
//
// TODO: populate from the neighborhood's best non-ancestor candidate once
// failover behavior is defined.
type BackupAncestor struct {
	NeighborID uint32
	RootID     uint32
	Cost       uint32
}

// Core is reserved for multi-core overlay membership; sized but unused in
// this protocol revision.
type Core struct {
	ID uint32
}
