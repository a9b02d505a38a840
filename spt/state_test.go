package spt

import "testing"

func newTestState(selfID uint32, now int64) (*State, *ManualClock) {
	clock := NewManualClock(now)
	self := SenderTable{Address: []byte{10, 0, 0, byte(selfID)}, Port: 9472, SourceLogical: selfID}
	return NewState(self, clock, Nop{}), clock
}

func beaconFrom(sender, root, parent, cost uint32, ts int64) *Beacon {
	return &Beacon{
		Sender:           SenderTable{SourceLogical: sender},
		RootLogical:      root,
		ParentLogical:    parent,
		Cost:             cost,
		TimestampSeconds: ts,
	}
}

// TestAncestorAdoptionRequiresSustainedQuality exercises the quality-gated
// drop: a brand new neighbor's very first beacon is discounted (quality
// 1/10, at the drop threshold) and only takes effect on a following one.
func TestAncestorAdoptionRequiresSustainedQuality(t *testing.T) {
	s, clock := newTestState(5, 1000)

	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	if s.Tree().AncestorID != 5 {
		t.Fatalf("first beacon from a new neighbor should be dropped, ancestor = %d", s.Tree().AncestorID)
	}

	clock.Advance(DefaultHeartbeatInterval)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))

	tree := s.Tree()
	if tree.AncestorID != 10 {
		t.Fatalf("expected ancestor 10 after second beacon, got %d", tree.AncestorID)
	}
	if tree.RootID != 20 {
		t.Fatalf("expected root 20, got %d", tree.RootID)
	}
	if tree.Cost != 2 {
		t.Fatalf("expected cost 2 (beacon cost 1 + 1), got %d", tree.Cost)
	}

	anc, ok := s.neighborhood.Ancestor()
	if !ok || anc.NeighborID != 10 || !anc.IsAncestor {
		t.Fatalf("expected neighborhood ancestor entry for 10, got %+v ok=%v", anc, ok)
	}
	if _, ok := s.neighborhood.Ancestor(); ok && s.neighborhood.Len() != 1 {
		t.Fatalf("expected exactly one neighborhood entry, got %d", s.neighborhood.Len())
	}
}

// TestAncestorNeverOutranksLowerRoot checks that a candidate whose root
// id does not exceed the current ancestor's never displaces it.
func TestAncestorNeverOutranksLowerRoot(t *testing.T) {
	s, clock := newTestState(1, 1000)

	settle := func(sender, root, parent, cost uint32) {
		s.HandleBeacon(beaconFrom(sender, root, parent, cost, clock.Now()))
		clock.Advance(DefaultHeartbeatInterval)
		s.HandleBeacon(beaconFrom(sender, root, parent, cost, clock.Now()))
		clock.Advance(DefaultHeartbeatInterval)
	}

	settle(10, 100, 999, 1)
	if s.Tree().AncestorID != 10 {
		t.Fatalf("expected ancestor 10, got %d", s.Tree().AncestorID)
	}

	settle(11, 50, 999, 1) // lower root id, should not take over
	if s.Tree().AncestorID != 10 {
		t.Fatalf("ancestor should remain 10, got %d", s.Tree().AncestorID)
	}
}

// TestSelfPromotionOnAncestorNeighborhoodTimeout covers the maintenance
// sweep resetting a node to its own root once its ancestor goes stale.
func TestSelfPromotionOnAncestorNeighborhoodTimeout(t *testing.T) {
	s, clock := newTestState(5, 1000)

	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	clock.Advance(DefaultHeartbeatInterval)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	if s.Tree().AncestorID != 10 {
		t.Fatalf("setup failed: ancestor = %d", s.Tree().AncestorID)
	}

	clock.Advance(NeighborhoodTimeout + 1)
	s.Maintain()

	tree := s.Tree()
	if tree.AncestorID != 5 || tree.RootID != 5 || tree.Cost != 0 {
		t.Fatalf("expected self-promotion after ancestor timeout, got %+v", tree)
	}
	if _, ok := s.neighborhood.Ancestor(); ok {
		t.Fatal("expected ancestor neighborhood entry to be gone")
	}
}

// TestAdjacencyTimeoutRemovesStaleEntry covers the 20s adjacency sweep.
func TestAdjacencyTimeoutRemovesStaleEntry(t *testing.T) {
	s, clock := newTestState(1, 1000)
	s.adjacency.Upsert(99, clock.Now(), s.heartbeatInterval)

	clock.Advance(AdjacencyTimeout + 1)
	s.Maintain()

	if _, ok := s.adjacency.Find(99); ok {
		t.Fatal("expected stale adjacency entry to be removed")
	}
}

// TestNeighborhoodCapacityEnforced checks that the 11th distinct entry is
// rejected with ErrNeighborhoodFull rather than silently dropped.
func TestNeighborhoodCapacityEnforced(t *testing.T) {
	var n Neighborhood
	for i := uint32(0); i < NeighborhoodCapacity; i++ {
		if err := n.Upsert(NeighborEntry{NeighborID: i}); err != nil {
			t.Fatalf("unexpected error filling capacity: %v", err)
		}
	}
	if err := n.Upsert(NeighborEntry{NeighborID: 999}); err != ErrNeighborhoodFull {
		t.Fatalf("expected ErrNeighborhoodFull, got %v", err)
	}
	if n.Len() != NeighborhoodCapacity {
		t.Fatalf("expected length to stay at capacity, got %d", n.Len())
	}
}

// TestHandleGoodbyeFromAncestorTriggersSelfPromotion mirrors the
// neighborhood-timeout path but driven by an explicit goodbye message.
func TestHandleGoodbyeFromAncestorTriggersSelfPromotion(t *testing.T) {
	s, clock := newTestState(5, 1000)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	clock.Advance(DefaultHeartbeatInterval)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	if s.Tree().AncestorID != 10 {
		t.Fatalf("setup failed: ancestor = %d", s.Tree().AncestorID)
	}

	s.HandleGoodbye(&Goodbye{Sender: SenderTable{SourceLogical: 10}})

	tree := s.Tree()
	if tree.AncestorID != 5 || tree.RootID != 5 {
		t.Fatalf("expected self-promotion after ancestor goodbye, got %+v", tree)
	}
}

// TestBuildBeaconReflectsCurrentTree ensures the emitted beacon matches
// the node's current tree position.
func TestBuildBeaconReflectsCurrentTree(t *testing.T) {
	s, clock := newTestState(5, 1000)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))
	clock.Advance(DefaultHeartbeatInterval)
	s.HandleBeacon(beaconFrom(10, 20, 999, 1, clock.Now()))

	b := s.BuildBeacon(clock.Now())
	if b.RootLogical != 20 || b.ParentLogical != 10 || b.Cost != 2 {
		t.Fatalf("beacon does not reflect tree state: %+v", b)
	}
	if b.Sender.SourceLogical != 5 {
		t.Fatalf("expected beacon sender to be self, got %d", b.Sender.SourceLogical)
	}
}

// TestBuildBeaconDecaysQualityForQuietNeighbor covers a neighbor that has
// gone quiet but has not yet hit the 20s adjacency timeout: its advertised
// quality must still fall as beacon intervals pass with no reception,
// rather than staying pinned at whatever it was the last time it pinged.
func TestBuildBeaconDecaysQualityForQuietNeighbor(t *testing.T) {
	s, clock := newTestState(1, 1000)

	adj := s.adjacency.Upsert(99, clock.Now(), s.heartbeatInterval)
	for i := 0; i < 10; i++ {
		clock.Advance(DefaultHeartbeatInterval)
		adj.record(clock.Now(), s.heartbeatInterval)
	}

	full := s.BuildBeacon(clock.Now())
	if full.Adjacency[0].Quality != 10 {
		t.Fatalf("setup failed: expected full quality, got %d", full.Adjacency[0].Quality)
	}

	clock.Advance(5 * DefaultHeartbeatInterval)
	decayed := s.BuildBeacon(clock.Now())
	if decayed.Adjacency[0].Quality != 5 {
		t.Fatalf("expected quality to decay to 5 after 5 silent intervals, got %d", decayed.Adjacency[0].Quality)
	}
}

// TestShouldBeAncestorRejectsBeaconOlderThanOurLastSent covers election
// stage 3's staleness gate: a beacon timestamped before this node's own
// last emitted beacon must never install a new ancestor.
func TestShouldBeAncestorRejectsBeaconOlderThanOurLastSent(t *testing.T) {
	s, clock := newTestState(1, 1000)
	s.lastBeacon = clock.Now()

	clock.Advance(-1) // a beacon timestamped before our last send
	if s.shouldBeAncestor(beaconFrom(10, 999, 998, 1, clock.Now()), 10) {
		t.Fatal("expected a beacon predating our last sent beacon to be rejected")
	}
}
