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

// Notifier receives structured state-machine events. It is satisfied by
// *logging.Logrus without spt importing that package; Nop is the default.
type Notifier interface {
	Notify(event string, fields map[string]interface{})
}

// Nop is a Notifier that discards everything.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(string, map[string]interface{}) {}

// State is the per-node SPT state machine: tree position, neighborhood,
// adjacency, and the timers that drive beacon emission and staleness
// sweeps. A single goroutine owns State; it is not safe for concurrent
// use, mirroring the single-owner-goroutine discipline of a BGP session.
type State struct {
	tree         TreeInfo
	neighborhood Neighborhood
	adjacency    Adjacency
	backup       BackupAncestor
	core         Core

	self SenderTable

	clock             Clock
	heartbeatInterval int64
	jumpThreshold     uint32
	lastBeacon        int64 // last time this node emitted a beacon

	log Notifier
}

// NewState returns a State rooted at itself, as every node starts before
// hearing any beacons.
func NewState(self SenderTable, clock Clock, log Notifier) *State {
	if log == nil {
		log = Nop{}
	}
	return &State{
		tree:              selfRootTreeInfo(self.SourceLogical),
		self:              self,
		clock:             clock,
		heartbeatInterval: DefaultHeartbeatInterval,
		jumpThreshold:     DefaultJumpThreshold,
		log:               log,
	}
}

// Tree returns a copy of the current tree-info view.
func (s *State) Tree() TreeInfo { return s.tree }

// SetHeartbeatInterval overrides the beacon emission period, normally
// DefaultHeartbeatInterval, from configuration.
func (s *State) SetHeartbeatInterval(seconds int64) { s.heartbeatInterval = seconds }

// SetJumpThreshold overrides the ancestor-election path-metric jump
// threshold, normally DefaultJumpThreshold, from configuration.
func (s *State) SetJumpThreshold(threshold uint32) { s.jumpThreshold = threshold }

// AdjacencyCount returns the current number of tracked adjacency entries,
// for telemetry snapshots. Like every State method, only the goroutine
// that owns this State may call it.
func (s *State) AdjacencyCount() int { return len(s.adjacency.entries) }

// NeighborhoodCount returns the current number of neighborhood entries,
// for telemetry snapshots. Like every State method, only the goroutine
// that owns this State may call it.
func (s *State) NeighborhoodCount() int { return s.neighborhood.Len() }

// HandleBeacon runs the beacon handler: clock bootstrap; adjacency upsert,
// reconciliation of our quality down to the one the peer advertises for
// us, and the quality-gated drop; ancestor election; tree/neighborhood
// update, with path metrics taken from pathMetricOf.
func (s *State) HandleBeacon(b *Beacon) {
	// Stage 1: clock bootstrap.
	bootstrapClock(s.clock, b.TimestampSeconds)
	now := s.clock.Now()

	senderID := b.Sender.SourceLogical
	if senderID == s.tree.ID {
		return // never process our own reflected beacon
	}

	// Stage 2: adjacency upsert, ping recording, quality-gated drop.
	adj := s.adjacency.Upsert(senderID, now, s.heartbeatInterval)
	adj.record(now, s.heartbeatInterval)

	for _, advert := range b.Adjacency {
		if advert.ID == s.tree.ID && advert.Quality < adj.Quality() {
			adj.lowerQualityTo(advert.Quality)
		}
	}

	if adj.qualityFraction() <= qualityDropThreshold {
		s.log.Notify("spt.beacon.dropped_low_quality", map[string]interface{}{
			"sender":  senderID,
			"quality": adj.Quality(),
		})
		return
	}

	// Stage 3: ancestor election.
	becomingAncestor := senderID != s.tree.AncestorID && s.shouldBeAncestor(b, senderID)

	// Stage 4: update tree info and neighborhood.
	switch {
	case becomingAncestor:
		s.becomeAncestor(senderID, b, now)
	case senderID == s.tree.AncestorID && senderID > s.tree.ID:
		s.selfPromote()
	case senderID == s.tree.AncestorID:
		s.refreshAncestor(senderID, b, now)
	case b.ParentLogical == s.tree.ID:
		if err := s.upsertDescendant(senderID, b, now); err != nil {
			s.log.Notify("spt.neighborhood.full", map[string]interface{}{"sender": senderID})
		}
	default:
		s.neighborhood.Remove(senderID)
	}
}

func (s *State) becomeAncestor(sender uint32, b *Beacon, now int64) {
	s.neighborhood.Remove(sender)
	s.neighborhood.RemoveAncestor()

	s.tree.AncestorID = sender
	s.tree.RootID = b.RootLogical
	s.tree.Cost = b.Cost + 1
	s.tree.PathMetric = pathMetricOf(b)

	err := s.neighborhood.Upsert(NeighborEntry{
		NeighborID:      sender,
		PhysicalAddress: b.Sender,
		RootID:          b.RootLogical,
		Cost:            b.Cost,
		PathMetric:      s.tree.PathMetric,
		Timestamp:       now,
		IsAncestor:      true,
	})
	if err != nil {
		s.log.Notify("spt.neighborhood.full", map[string]interface{}{"sender": sender})
	}
}

func (s *State) selfPromote() {
	s.tree = selfRootTreeInfo(s.tree.ID)
	s.neighborhood.RemoveAncestor()
}

func (s *State) refreshAncestor(sender uint32, b *Beacon, now int64) {
	entry, ok := s.neighborhood.Find(sender)
	if !ok {
		entry = &NeighborEntry{NeighborID: sender}
	}
	entry.PhysicalAddress = b.Sender
	entry.RootID = b.RootLogical
	entry.Cost = b.Cost
	entry.PathMetric = pathMetricOf(b)
	entry.Timestamp = now
	entry.IsAncestor = true
	s.neighborhood.Upsert(*entry)
}

func (s *State) upsertDescendant(sender uint32, b *Beacon, now int64) error {
	return s.neighborhood.Upsert(NeighborEntry{
		NeighborID:      sender,
		PhysicalAddress: b.Sender,
		RootID:          b.RootLogical,
		Cost:            b.Cost,
		PathMetric:      pathMetricOf(b),
		Timestamp:       now,
		IsAncestor:      false,
	})
}

// HandleGoodbye removes the sender from both the adjacency and
// neighborhood tables. If the sender was our ancestor, we fall back to
// being our own root until a new beacon re-establishes a tree position.
func (s *State) HandleGoodbye(g *Goodbye) {
	sender := g.Sender.SourceLogical
	s.adjacency.RemoveSwapTail(sender)

	if sender == s.tree.AncestorID {
		s.selfPromote()
		return
	}
	s.neighborhood.Remove(sender)
}

// BuildBeacon constructs the beacon this node should emit right now,
// carrying its current tree position and adjacency table.
func (s *State) BuildBeacon(now int64) *Beacon {
	adverts := make([]AdjacencyAdvert, 0, len(s.adjacency.entries))
	for i := range s.adjacency.entries {
		a := &s.adjacency.entries[i]
		a.probe(now, s.heartbeatInterval)
		adverts = append(adverts, AdjacencyAdvert{ID: a.ID, Quality: a.Quality()})
	}

	return &Beacon{
		Sender:           s.self,
		RootLogical:      s.tree.RootID,
		ParentLogical:    s.tree.AncestorID,
		Cost:             s.tree.Cost,
		TimestampSeconds: now,
		Adjacency:        adverts,
		// Written as the path-metric constant rather than a computed value.
		Reliability: PathMetricFull,
	}
}

// Maintain runs the periodic sweep: drops stale adjacency and
// neighborhood entries, and reports whether a fresh beacon should now be
// emitted (and emits it, updating lastBeacon, if so).
func (s *State) Maintain() *Beacon {
	now := s.clock.Now()

	for _, a := range s.adjacency.Entries() {
		if now-a.Timestamp > AdjacencyTimeout {
			s.adjacency.RemoveSwapTail(a.ID)
			s.log.Notify("spt.adjacency.timeout", map[string]interface{}{"neighbor": a.ID})
		}
	}

	for _, n := range s.neighborhood.Entries() {
		if now-n.Timestamp > NeighborhoodTimeout {
			s.neighborhood.Remove(n.NeighborID)
			s.log.Notify("spt.neighborhood.timeout", map[string]interface{}{"neighbor": n.NeighborID})
			if n.IsAncestor {
				s.selfPromote()
			}
		}
	}

	if now-s.lastBeacon < s.heartbeatInterval {
		return nil
	}

	s.lastBeacon = now
	return s.BuildBeacon(now)
}
